// Package session owns the authentication state of the eduportal client.
//
// State changes are expressed as Events folded by the pure Reduce function.
// Manager serializes every transition, talks to the remote auth service and
// keeps the credential store in step with the in-memory State:
//
//   - Start accepts cached credentials at once and verifies them with the
//     server in the background.
//   - Login and Register move through Resolving and end in Authenticated
//     or Failed.
//   - Logout always ends Unauthenticated, even when the server is down.
//   - UpdateProfile and the password operations report only to the caller.
//
// No operation panics or returns an error past the Manager: failures come
// back as a Result and, for Login and Register, in State.Error.
package session
