// Package client contains the transport to the eduportal auth service.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic API contract (see the Client interface):
//     Register/Login/Logout, Me, UpdateProfile and the password endpoints.
//  2. A concrete REST/JSON implementation (see HTTPClient) that attaches the
//     stored bearer token and a request id to every call, enforces a fixed
//     request timeout and treats an unauthorized status from any endpoint
//     as a global invalidation signal: it clears the stored credentials and
//     fires the OnUnauthorized hook.
//  3. TokenExpiry, which reads the exp claim of a JWT without verifying it.
//
// # Error Handling
//
// Non-2xx responses come back as *APIError carrying the status code and the
// server's structured message, if any. Transport failures wrap
// ErrUnavailable; undecodable success bodies wrap ErrInvalidResponse.
// errors.Is(err, ErrUnauthorized) holds for 401 and 403 responses.
//
// Concurrency & Contexts
//
// HTTPClient is safe for concurrent use. All operations accept
// context.Context and honor cancellation on top of the fixed timeout.
package client
