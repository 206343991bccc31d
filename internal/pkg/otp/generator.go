package otp

import (
	"crypto/rand"
	"math/big"
	"strconv"
)

const (
	codeMin  = 100000
	codeSpan = 900000
)

// Generator defines the contract for producing one-time codes.
type Generator interface {
	// Generate returns a new one-time code.
	Generate() (string, error)
}

// NumericGenerator produces 6-digit codes drawn uniformly from
// [100000, 999999] using crypto/rand.
type NumericGenerator struct{}

// NewNumericGenerator returns a NumericGenerator.
func NewNumericGenerator() *NumericGenerator {
	return &NumericGenerator{}
}

// Generate returns a string of exactly 6 ASCII digits.
func (g *NumericGenerator) Generate() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpan))
	if err != nil {
		return "", err
	}

	return strconv.FormatInt(codeMin+n.Int64(), 10), nil
}
