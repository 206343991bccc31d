// Package hash provides helpers for hashing and verifying secrets.
//
// One-time codes are never stored in plaintext: the application stores only a
// deterministic keyed hash and compares user input against it. Implementations
// live in this package behind a small interface.
package hash
