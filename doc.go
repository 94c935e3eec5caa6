// Package authsession wires a client session from configuration.
//
// A session keeps an access/refresh token pair in a credential store, authenticates every
// outgoing request with it, refreshes an expired access token once for all concurrent callers
// and exposes a cached authentication state. See the session package for the Manager API.
package authsession
