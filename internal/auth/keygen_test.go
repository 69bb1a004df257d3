package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestGeneratePassword_Length(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		length int
		want   int
	}{
		{"requested length", 16, 16},
		{"minimum enforced", 3, MinPasswordLength},
		{"zero uses minimum", 0, MinPasswordLength},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			pw, err := GeneratePassword(tt.length)
			if err != nil {
				t.Fatalf("GeneratePassword failed: %v", err)
			}
			if len(pw) != tt.want {
				t.Errorf("expected %d chars, got %d", tt.want, len(pw))
			}
			for _, c := range pw {
				if !strings.ContainsRune(passwordAlphabet, c) {
					t.Errorf("unexpected character %q", c)
				}
			}
		})
	}
}

func TestGeneratePassword_Unique(t *testing.T) {
	t.Parallel()

	const n = 100
	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		pw, err := GeneratePassword(20)
		if err != nil {
			t.Fatalf("GeneratePassword failed: %v", err)
		}
		if seen[pw] {
			t.Fatalf("duplicate password at iteration %d", i)
		}
		seen[pw] = true
	}
}

func TestValidatePassword(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		password string
		wantErr  error
	}{
		{"empty", "", ErrPasswordTooShort},
		{"seven chars", "abcdefg", ErrPasswordTooShort},
		{"eight chars", "abcdefgh", nil},
		{"multibyte counted as runes", "пароль12", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if err := ValidatePassword(tt.password); !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidatePassword(%q) = %v, want %v", tt.password, err, tt.wantErr)
			}
		})
	}
}
