// Package common defines shared constants and sentinel errors used across
// client and server layers of Sekure. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound    = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// ErrInvalidInput marks malformed salts, nonces, keys or ciphertext
	// shapes. It is local and not retryable.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDecryptionFailure is returned for any authentication tag mismatch.
	// Wrong key, corruption and tampering are not distinguished.
	ErrDecryptionFailure = errors.New("decryption failed, re-authenticate")

	// ErrKeyUnavailable means the session lost the key for a domain and the
	// user has to log in again.
	ErrKeyUnavailable = errors.New("key unavailable, log in again")

	// ErrNetworkFailure wraps transport errors talking to the backing store.
	// It is retryable and never mutates cached key state.
	ErrNetworkFailure = errors.New("backing store unavailable")

	// Share resolution errors.
	ErrShareExpired = errors.New("share expired")
	ErrShareDenied  = errors.New("share access denied")
	ErrShareInvalid = errors.New("share link invalid")

	// Strong-auth gate results.
	ErrCancelled  = errors.New("verification cancelled")
	ErrAuthFailed = errors.New("verification failed")

	// ErrRotationInProgress rejects a second concurrent master secret change.
	ErrRotationInProgress = errors.New("secret rotation already in progress")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
