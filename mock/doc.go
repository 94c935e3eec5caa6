// Package mock provides an in-process stand-in for the remote auth service
// (register, login, refresh and validate endpoints) that facilitates testing
// the client session without a real backend.
//
// Tokens are HS256 JWTs carrying a `type` claim of either "access" or "refresh".
package mock
