// Package common contains shared constants and small helpers used across
// the eduportal client packages.
package common

// Header names set on every outbound request to the auth service.
const (
	AuthorizationHeaderName = "Authorization"
	RequestIDHeaderName     = "X-Request-ID"
	BearerPrefix            = "Bearer "
)

// Credential store slot names.
const (
	TokenKey = "token"
	UserKey  = "user"
	SaltKey  = "salt"
)

// CredentialKeys lists the slots that make up a persisted session.
var CredentialKeys = []string{TokenKey, UserKey}
