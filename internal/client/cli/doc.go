// Package cli provides the interactive eduportal command-line client.
//
// It wires configuration, the local session database, the auth service
// client and the session manager, and exposes the session operations as
// REPL commands and as one-shot commands used by cmd/client.
//
// Key features:
//   - Login / Register / Logout
//   - Whoami and profile editing
//   - Password change, reset request and reset
//
// The REPL is started via App.Root(ctx), which blocks until the user exits.
// See Open, App and runREPL for details.
package cli
