package schema

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

const bearer = "Bearer"

type (
	// TokenPair represents the access/refresh credentials issued by the auth service.
	TokenPair struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}

	// User represents the account returned with an AuthResponse. It is informational only.
	User struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	}

	// AuthResponse represents a successful login or register response.
	AuthResponse struct {
		User      User      `json:"user"`
		Tokens    TokenPair `json:"tokens"`
		ExpiresIn int64     `json:"expires_in"`
	}

	// LoginRequest represents login credentials
	LoginRequest struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	// RegisterRequest represents registration credentials
	RegisterRequest struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Email    string `json:"email"`
	}

	// FieldError is a single field level validation failure reported by the service.
	FieldError struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	}

	// ErrorResponse is the service error body.
	ErrorResponse struct {
		Error string       `json:"error"`
		Data  []FieldError `json:"data,omitempty"`
	}
)

// Validate checks that both tokens are present; a pair is never accepted partially.
func (p *TokenPair) Validate() error {
	if p == nil {
		return NewValidationError("tokens", "missing token pair")
	}
	var fields []FieldError
	if p.AccessToken == "" {
		fields = append(fields, FieldError{Field: "access_token", Message: "required"})
	}
	if p.RefreshToken == "" {
		fields = append(fields, FieldError{Field: "refresh_token", Message: "required"})
	}
	if len(fields) > 0 {
		return &Error{Kind: ErrValidation, Op: "tokens", Message: "invalid token response", Fields: fields}
	}
	return nil
}

// Token converts the pair to an oauth2 token. Expiry is decoded, without verification,
// from the access token exp claim when it is a JWT.
func (p *TokenPair) Token() *oauth2.Token {
	ret := &oauth2.Token{
		TokenType:    bearer,
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
	}
	ret.Expiry = Expiry(p.AccessToken)
	return ret
}

// Expiry returns JWT exp claim or zero time for opaque tokens.
func Expiry(token string) time.Time {
	if strings.Count(token, ".") != 2 {
		return time.Time{}
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

// Validate validates the response shape, only tokens feed the session.
func (r *AuthResponse) Validate() error {
	if r == nil {
		return NewValidationError("response", "empty auth response")
	}
	if err := r.Tokens.Validate(); err != nil {
		return err
	}
	return nil
}

// Validate validates login credentials before they are sent.
func (r *LoginRequest) Validate() error {
	if r == nil {
		return NewValidationError("credentials", "missing credentials")
	}
	var fields []FieldError
	if strings.TrimSpace(r.Username) == "" {
		fields = append(fields, FieldError{Field: "username", Message: "required"})
	}
	if r.Password == "" {
		fields = append(fields, FieldError{Field: "password", Message: "required"})
	}
	if len(fields) > 0 {
		return &Error{Kind: ErrValidation, Op: "login", Message: "invalid credentials", Fields: fields}
	}
	return nil
}

// Validate validates registration credentials before they are sent.
func (r *RegisterRequest) Validate() error {
	if r == nil {
		return NewValidationError("credentials", "missing credentials")
	}
	var fields []FieldError
	if strings.TrimSpace(r.Username) == "" {
		fields = append(fields, FieldError{Field: "username", Message: "required"})
	}
	if r.Password == "" {
		fields = append(fields, FieldError{Field: "password", Message: "required"})
	}
	if at := strings.Index(r.Email, "@"); at <= 0 || at == len(r.Email)-1 {
		fields = append(fields, FieldError{Field: "email", Message: "invalid email"})
	}
	if len(fields) > 0 {
		return &Error{Kind: ErrValidation, Op: "register", Message: "invalid credentials", Fields: fields}
	}
	return nil
}
