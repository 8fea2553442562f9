// Package common contains shared constants and sentinel errors used across
// Sekure components.
package common

const (
	// AuthorizationHeader carries the bearer access token on REST requests.
	AuthorizationHeader = "Authorization"

	// BearerPrefix precedes the access token in AuthorizationHeader.
	BearerPrefix = "Bearer "

	// SessionEnvVar holds the session token that lets a new CLI process
	// resume the keys cached by an earlier one in the same shell session.
	SessionEnvVar = "SEKURE_SESSION"
)
