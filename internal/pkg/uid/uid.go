// Package uid provides unique identifier generators behind small interfaces
// so callers can swap implementations in tests.
package uid

// StringID generates string-form identifiers.
type StringID interface {
	Generate() string
}

// NumberID generates int64 identifiers.
type NumberID interface {
	Generate() int64
}
