// review-service/pkg/auth/code.go
package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

// Confirmation codes avoid characters that are easy to misread in mail.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// DefaultCodeLength is used when a non-positive length is requested.
const DefaultCodeLength = 8

// GenerateConfirmationCode returns a random code of the given length.
func GenerateConfirmationCode(length int) (string, error) {
	if length <= 0 {
		length = DefaultCodeLength
	}
	max := big.NewInt(int64(len(codeAlphabet)))
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate confirmation code: %w", err)
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// HashConfirmationCode returns the bcrypt hash that is stored instead of the code.
func HashConfirmationCode(code string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash confirmation code: %w", err)
	}
	return string(hashed), nil
}

// CheckConfirmationCode compares a submitted code with the stored hash.
// A missing hash never matches.
func CheckConfirmationCode(code string, hashed *string) bool {
	if hashed == nil || *hashed == "" || code == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(*hashed), []byte(code)) == nil
}
