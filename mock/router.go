package mock

import (
	"net/http"
)

// Handler routes HTTP requests to the appropriate mock auth endpoints.
type Handler struct {
	Server *AuthService
}

// ServeHTTP dispatches incoming HTTP requests based on URL path.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if counter, ok := h.Server.calls.Get(r.URL.Path); ok {
		counter.Add(1)
	}
	switch r.URL.Path {
	case RegisterPath:
		if h.Server.RegisterHandler != nil {
			h.Server.RegisterHandler(w, r)
		} else {
			h.Server.defaultRegisterHandler(w, r)
		}
	case LoginPath:
		if h.Server.LoginHandler != nil {
			h.Server.LoginHandler(w, r)
		} else {
			h.Server.defaultLoginHandler(w, r)
		}
	case RefreshPath:
		if h.Server.RefreshHandler != nil {
			h.Server.RefreshHandler(w, r)
		} else {
			h.Server.defaultRefreshHandler(w, r)
		}
	case ValidatePath:
		if h.Server.ValidateHandler != nil {
			h.Server.ValidateHandler(w, r)
		} else {
			h.Server.defaultValidateHandler(w, r)
		}
	default:
		h.Server.defaultResourceHandler(w, r)
	}
}
