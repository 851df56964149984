package auth

import "errors"

var (
	// ErrEmailTaken is returned when registering an address that already has
	// an account.
	ErrEmailTaken = errors.New("email already registered")

	// ErrInvalidCredentials is returned for every login failure, whether the
	// account is missing, passwordless, deactivated, or the password is wrong.
	// Callers must not be able to distinguish these cases.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrInvalidRefreshToken is returned when a refresh token fails
	// verification or its user no longer qualifies for new tokens.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")

	// ErrTokenInvalidOrUsed is returned for reset or verification secrets that
	// are unknown or already spent.
	ErrTokenInvalidOrUsed = errors.New("token is invalid or already used")

	// ErrTokenExpired is returned for reset or verification secrets past
	// their validity window.
	ErrTokenExpired = errors.New("token has expired")

	// ErrEmailNotFound is returned by resend-verification when no account
	// exists for the address.
	ErrEmailNotFound = errors.New("no account for that email")

	// ErrAlreadyVerified is returned by resend-verification when the account's
	// email is already confirmed.
	ErrAlreadyVerified = errors.New("email already verified")
)
