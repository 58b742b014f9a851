package security

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"strings"
)

// GenerateOTP returns a zero-padded numeric one-time code of the requested
// length, drawn from crypto/rand.
func GenerateOTP(digits int) (string, error) {
	if digits < 1 || digits > 12 {
		return "", fmt.Errorf("otp length out of range: %d", digits)
	}
	max := big.NewInt(1)
	for i := 0; i < digits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}

// VerifyOTP compares a submitted code against the stored one in constant
// time.
func VerifyOTP(submitted, stored string) bool {
	submitted = strings.TrimSpace(submitted)
	if submitted == "" || stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(submitted), []byte(stored)) == 1
}
