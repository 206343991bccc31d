// Package jwt verifies externally-issued identity tokens and extracts the
// email identity claim they carry.
//
// The token only establishes who is asking to verify a one-time code; it
// knows nothing about the codes themselves. A Generate counterpart exists for
// tests and tooling that need to mint tokens with the shared secret.
package jwt
