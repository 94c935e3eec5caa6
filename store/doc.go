// Package store defines the credential store used by the session transport.
//
// A Store persists exactly two entries, the access and refresh token, and always
// writes or clears them together. It ships with an in-memory implementation that is
// sufficient for tests, a file backed implementation (viant/afs) for CLI usage and a
// Redis implementation for shared deployments.
package store
