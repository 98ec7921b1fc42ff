package service

import "errors"

var (
	// ErrInvalidCredentials indicates that provided login credentials are incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailNotVerified is returned when a password login targets an unverified account.
	ErrEmailNotVerified = errors.New("email not verified")
	// ErrInvalidVerificationToken is returned when no account holds the verification token.
	ErrInvalidVerificationToken = errors.New("invalid verification token")
	// ErrInvalidSignature is returned when the wallet signature does not recover to the claimed address.
	ErrInvalidSignature = errors.New("invalid wallet signature")
	// ErrUnauthenticated is returned when a session does not resolve to a live identity.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden is returned when the identity lacks the required role.
	ErrForbidden = errors.New("forbidden")
)

// ValidationError reports missing or malformed request fields. Message is
// safe to show to the caller.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(msg string) error {
	return &ValidationError{Message: msg}
}
