package mock

import (
	"encoding/json"
	"net/http"
)

// defaultRefreshHandler issues a new pair for a valid refresh bearer token
func (s *AuthService) defaultRefreshHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	refreshToken, ok := bearerToken(r)
	if !ok {
		http.Error(w, "invalid token format", http.StatusBadRequest)
		return
	}
	claims, err := s.parseJWT(refreshToken, refreshType)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	if s.SingleUseRefresh {
		s.revoked.Put(claims["jti"].(string), true)
	}
	pair, err := s.tokenPair(claims["user_id"].(string))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(pair)
}

// defaultValidateHandler accepts a valid access bearer token
func (s *AuthService) defaultValidateHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := s.authorize(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"user_id": claims["user_id"].(string)})
}

// defaultResourceHandler simulates any other protected resource
func (s *AuthService) defaultResourceHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authorize(w, r); !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"message": "This is a protected resource"})
}

func (s *AuthService) authorize(w http.ResponseWriter, r *http.Request) (map[string]interface{}, bool) {
	accessToken, ok := bearerToken(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return nil, false
	}
	claims, err := s.parseJWT(accessToken, accessType)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return nil, false
	}
	return claims, true
}
