package errors

import (
	"errors"
	"fmt"
)

// Common error types for the token broker
var (
	// Store errors
	ErrStore            = errors.New("store error")
	ErrInvalidParameter = errors.New("invalid redis parameter")

	// Session errors
	ErrPersistence     = errors.New("failed to persist session")
	ErrCorruptSession  = errors.New("corrupt session")
	ErrSessionNotFound = errors.New("session not found")
	ErrLoggedOut       = errors.New("logged out")

	// Sign-in flow errors
	ErrInvalidState     = errors.New("invalid state parameter")
	ErrMissingCode      = errors.New("missing authorization code")
	ErrTokenExchange    = errors.New("token exchange failed")
	ErrInvalidIDToken   = errors.New("invalid id token")
	ErrProviderResponse = errors.New("unexpected provider response")

	// General errors
	ErrNotFound    = errors.New("not found")
	ErrInvalidConf = errors.New("invalid configuration")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// New is errors.New, re-exported so callers need only one errors import
func New(text string) error {
	return errors.New(text)
}
