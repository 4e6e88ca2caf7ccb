package session

import "moneybook/internal/core"

// Auth provider error codes surfaced on sign-in and registration.
const (
	CodeInvalidEmail      = "auth/invalid-email"
	CodeUserNotFound      = "auth/user-not-found"
	CodeWrongPassword     = "auth/wrong-password"
	CodeInvalidCredential = "auth/invalid-credential"
	CodeEmailAlreadyInUse = "auth/email-already-in-use"
	CodeWeakPassword      = "auth/weak-password"
)

const (
	defaultFailureMessage  = "Something went wrong. Please try again."
	signInFailureMessage   = "Failed to sign in. Please try again."
	registerFailureMessage = "Failed to create account. Please try again."
)

var friendlyMessages = map[string]string{
	CodeInvalidEmail:      "Invalid email address",
	CodeUserNotFound:      "No account found with this email",
	CodeWrongPassword:     "Incorrect password",
	CodeInvalidCredential: "Invalid email or password",
	CodeEmailAlreadyInUse: "An account with this email already exists",
	CodeWeakPassword:      "Password is too weak",
}

// FriendlyMessage turns an auth provider error code into text fit for a user.
func FriendlyMessage(code string) string {
	if msg, ok := friendlyMessages[code]; ok {
		return msg
	}
	return defaultFailureMessage
}

// SignInFailure is FriendlyMessage with the sign-in fallback.
func SignInFailure(code string) string {
	if msg, ok := friendlyMessages[code]; ok {
		return msg
	}
	return signInFailureMessage
}

// RegisterFailure is FriendlyMessage with the registration fallback.
func RegisterFailure(code string) string {
	if msg, ok := friendlyMessages[code]; ok {
		return msg
	}
	return registerFailureMessage
}

// ValidateRegistration runs the local checks made before contacting the
// auth provider: matching confirmation first, then minimum length.
func ValidateRegistration(password, confirm string) error {
	if password != confirm {
		return core.ErrPasswordMismatch
	}
	if len(password) < 6 {
		return core.ErrWeakPassword
	}
	return nil
}
