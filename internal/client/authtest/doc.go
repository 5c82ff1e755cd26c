// Package authtest runs an in-process fake of the eduportal auth service
// for tests. It speaks the same REST contract as the real backend, issues
// HS256 tokens, keeps accounts in memory and lets tests inject failures
// or hold requests at a route.
package authtest
