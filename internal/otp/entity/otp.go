// Package entity holds the one-time password domain model shared by the
// usecase and outbound layers.
package entity

import "time"

// Record is a single issued one-time password bound to an identity.
//
// The plain code is never stored; CodeHash carries its keyed digest. At most
// one unused record exists per identity at any time, issuing a new code
// supersedes the previous one.
type Record struct {
	ID        int64
	Identity  string
	CodeHash  string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Used      bool
}

// IsExpired reports whether the record is past its expiry at the given time.
func (r Record) IsExpired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// User is an account row kept by the durable store. A user becomes verified
// the first time one of their codes is successfully consumed.
type User struct {
	ID         int64
	Email      string
	IsVerified bool
}
