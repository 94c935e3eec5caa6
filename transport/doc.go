// Package transport implements an http.RoundTripper that attaches the stored bearer
// credentials to every outbound request and recovers from `401 Unauthorized` with a
// single coordinated token refresh followed by one replay of the original request.
//
// Concurrent requests failing with 401 share one refresh call. When the refresh
// fails, credentials are cleared and registered listeners are told the session expired.
package transport
