package session

import (
	"testing"

	"moneybook/internal/core"
)

func TestFriendlyMessage(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{CodeInvalidEmail, "Invalid email address"},
		{CodeUserNotFound, "No account found with this email"},
		{CodeWrongPassword, "Incorrect password"},
		{CodeInvalidCredential, "Invalid email or password"},
		{CodeEmailAlreadyInUse, "An account with this email already exists"},
		{CodeWeakPassword, "Password is too weak"},
		{"auth/too-many-requests", "Something went wrong. Please try again."},
	}
	for _, tt := range tests {
		if got := FriendlyMessage(tt.code); got != tt.want {
			t.Errorf("FriendlyMessage(%q) = %q, want %q", tt.code, got, tt.want)
		}
	}

	if got := SignInFailure("auth/unknown"); got != "Failed to sign in. Please try again." {
		t.Errorf("SignInFailure fallback = %q", got)
	}
	if got := RegisterFailure("auth/unknown"); got != "Failed to create account. Please try again." {
		t.Errorf("RegisterFailure fallback = %q", got)
	}
	if got := SignInFailure(CodeWrongPassword); got != "Incorrect password" {
		t.Errorf("SignInFailure(%q) = %q", CodeWrongPassword, got)
	}
}

func TestValidateRegistration(t *testing.T) {
	tests := []struct {
		name     string
		password string
		confirm  string
		want     error
	}{
		{"ok", "secret1", "secret1", nil},
		{"exactly six", "abcdef", "abcdef", nil},
		{"mismatch", "secret1", "secret2", core.ErrPasswordMismatch},
		{"mismatch wins over length", "abc", "abd", core.ErrPasswordMismatch},
		{"too short", "abc12", "abc12", core.ErrWeakPassword},
		{"empty", "", "", core.ErrWeakPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateRegistration(tt.password, tt.confirm); got != tt.want {
				t.Errorf("ValidateRegistration() = %v, want %v", got, tt.want)
			}
		})
	}
}
