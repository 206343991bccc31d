// Package memstore implements the credential store on process memory.
//
// It suits single-instance deployments and tests; records do not survive a
// restart. A periodic Sweep keeps the map from accumulating dead entries.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/tsxr1ck/otpify/internal/otp/entity"
	"github.com/tsxr1ck/otpify/internal/pkg/goerror"
)

type Store struct {
	mu   sync.Mutex
	recs map[string]entity.Record
}

func New() *Store {
	return &Store{recs: make(map[string]entity.Record)}
}

// Put stores the record, superseding any record still active for the identity.
func (s *Store) Put(_ context.Context, rec entity.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.recs[rec.Identity] = rec
	return nil
}

// Get returns the active record for the identity, or goerror.ErrNotFound when
// none exists or it has already been consumed.
func (s *Store) Get(_ context.Context, identity string) (*entity.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.recs[identity]
	if !ok || rec.Used {
		return nil, goerror.ErrNotFound
	}

	cp := rec
	return &cp, nil
}

// Consume marks the record used when the hash still matches. The check and
// the flip happen under one lock so only a single caller can succeed.
func (s *Store) Consume(_ context.Context, identity, codeHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.recs[identity]
	if !ok || rec.Used || rec.CodeHash != codeHash {
		return false, nil
	}

	rec.Used = true
	s.recs[identity] = rec
	return true, nil
}

// Discard removes any record for the identity.
func (s *Store) Discard(_ context.Context, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.recs, identity)
	return nil
}

// Sweep removes consumed and expired records and reports how many were dropped.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for k, rec := range s.recs {
		if rec.Used || rec.IsExpired(now) {
			delete(s.recs, k)
			n++
		}
	}
	return n
}
