package mock

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/viant/authsession/schema"
	"golang.org/x/crypto/bcrypt"
)

var errUserExists = errors.New("username already exists")

// AddUser registers an account directly, bypassing the HTTP endpoint
func (s *AuthService) AddUser(username, password, email string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[username]; ok {
		return "", errUserExists
	}
	id := uuid.NewString()
	s.users[username] = &user{ID: id, Username: username, Email: email, Password: hashed}
	return id, nil
}

func (s *AuthService) lookup(username string) *user {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[username]
}

func (s *AuthService) defaultRegisterHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	request := &schema.RegisterRequest{}
	if err := json.NewDecoder(r.Body).Decode(request); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	id, err := s.AddUser(request.Username, request.Password, request.Email)
	if errors.Is(err, errUserExists) {
		http.Error(w, "username already exists", http.StatusConflict)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeAuthResponse(w, http.StatusCreated, id, request.Username)
}

func (s *AuthService) defaultLoginHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	request := &schema.LoginRequest{}
	if err := json.NewDecoder(r.Body).Decode(request); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	account := s.lookup(request.Username)
	if account == nil || bcrypt.CompareHashAndPassword(account.Password, []byte(request.Password)) != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	s.writeAuthResponse(w, http.StatusOK, account.ID, account.Username)
}

func (s *AuthService) writeAuthResponse(w http.ResponseWriter, status int, userID, username string) {
	pair, err := s.tokenPair(userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	response := &schema.AuthResponse{
		User:      schema.User{ID: userID, Username: username},
		Tokens:    *pair,
		ExpiresIn: int64(s.AccessTTL.Seconds()),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response)
}
