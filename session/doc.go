// Package session exposes the client session: register, login and logout operations,
// an authenticated http.Client and a cached "authenticated?" signal.
//
// Example:
//
//	manager, _ := session.New(session.WithBaseURL("http://localhost:8080"))
//	_, err := manager.Login(ctx, &schema.LoginRequest{Username: "alice", Password: "pw"})
//	state, err := manager.IsAuthenticated(ctx)
//	resp, err := manager.Client().Get("http://localhost:8080/api/items")
package session
