// Package otp generates short-lived numeric sign-in codes.
package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Digits is the fixed length of generated codes.
const Digits = 6

var codeSpace = big.NewInt(1_000_000)

// Generate returns a zero-padded 6-digit code drawn uniformly from
// [000000, 999999]. It is pure: storage and delivery are the caller's job.
func Generate() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%0*d", Digits, n), nil
}
