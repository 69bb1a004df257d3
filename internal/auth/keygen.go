package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"unicode/utf8"
)

// MinPasswordLength is the shortest password accepted on registration or change.
const MinPasswordLength = 8

// ErrPasswordTooShort indicates a password below MinPasswordLength.
var ErrPasswordTooShort = errors.New("password must be at least 8 characters")

// passwordAlphabet excludes look-alike characters (0/O, 1/l/I).
const passwordAlphabet = "abcdefghijkmnopqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// ValidatePassword checks the password policy.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}

// GeneratePassword returns a random password of length characters, used when
// provisioning accounts from the command line.
func GeneratePassword(length int) (string, error) {
	if length < MinPasswordLength {
		length = MinPasswordLength
	}

	max := big.NewInt(int64(len(passwordAlphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate password: %w", err)
		}
		out[i] = passwordAlphabet[n.Int64()]
	}
	return string(out), nil
}
