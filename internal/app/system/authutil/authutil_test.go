package authutil

import (
	"strings"
	"testing"
)

func TestValidatePassword_Valid(t *testing.T) {
	for _, pw := range []string{"Dispatch-2024", "a-long enough phrase", strings.Repeat("x", MaxPasswordLength)} {
		if err := ValidatePassword(pw); err != nil {
			t.Errorf("ValidatePassword(%q) = %v, want nil", pw, err)
		}
	}
}

func TestValidatePassword_TooShort(t *testing.T) {
	for _, pw := range []string{"", "a", "1234567"} {
		if err := ValidatePassword(pw); err != ErrPasswordTooShort {
			t.Errorf("ValidatePassword(%q) = %v, want ErrPasswordTooShort", pw, err)
		}
	}
}

func TestValidatePassword_TooLong(t *testing.T) {
	if err := ValidatePassword(strings.Repeat("x", MaxPasswordLength+1)); err != ErrPasswordTooLong {
		t.Errorf("got %v, want ErrPasswordTooLong", err)
	}
}

func TestValidatePassword_CommonCaseInsensitive(t *testing.T) {
	for _, pw := range []string{"password", "PASSWORD1", "ILoveYou", "Admin123"} {
		if err := ValidatePassword(pw); err != ErrPasswordCommon {
			t.Errorf("ValidatePassword(%q) = %v, want ErrPasswordCommon", pw, err)
		}
	}
}

func TestHashPassword_Valid(t *testing.T) {
	password := "SecurePassword123"

	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == "" || hash == password {
		t.Fatalf("unexpected hash %q", hash)
	}
	if !strings.HasPrefix(hash, "$2") {
		t.Error("expected bcrypt hash to start with $2")
	}
}

func TestHashPassword_DifferentHashesForSamePassword(t *testing.T) {
	h1, err := HashPassword("SecurePassword123")
	if err != nil {
		t.Fatal(err)
	}
	h2, err := HashPassword("SecurePassword123")
	if err != nil {
		t.Fatal(err)
	}
	if h1 == h2 {
		t.Error("expected different hashes for same password (random salt)")
	}
}

func TestCheckPassword(t *testing.T) {
	hash, err := HashPassword("SecurePassword123")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		pw   string
		hash string
		want bool
	}{
		{"correct", "SecurePassword123", hash, true},
		{"wrong", "securepassword123", hash, false},
		{"empty password", "", hash, false},
		{"invalid hash", "SecurePassword123", "not-a-hash", false},
		{"empty hash", "SecurePassword123", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CheckPassword(tt.pw, tt.hash); got != tt.want {
				t.Errorf("CheckPassword = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPasswordRules(t *testing.T) {
	if !strings.Contains(PasswordRules(), "8") {
		t.Errorf("rules should mention the minimum length: %q", PasswordRules())
	}
}
