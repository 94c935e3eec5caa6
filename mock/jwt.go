package mock

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/viant/authsession/schema"
)

const (
	accessType  = "access"
	refreshType = "refresh"
)

// createJWT creates a signed HS256 token for userID with the given type and expiry
func (s *AuthService) createJWT(userID, tokenType string, expiry time.Duration) (string, error) {
	now := time.Now()
	id := uuid.NewString()
	claims := jwt.MapClaims{
		"user_id": userID,
		"type":    tokenType,
		"jti":     id,
		"iat":     now.Unix(),
		"exp":     now.Add(expiry).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
	if err != nil {
		return "", err
	}
	s.issued.Put(id, tokenType)
	return signed, nil
}

func (s *AuthService) tokenPair(userID string) (*schema.TokenPair, error) {
	access, err := s.createJWT(userID, accessType, s.AccessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.createJWT(userID, refreshType, s.RefreshTTL)
	if err != nil {
		return nil, err
	}
	return &schema.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// parseJWT validates token signature, expiry, type and revocation; it returns claims
func (s *AuthService) parseJWT(tokenString, tokenType string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.New("token expired")
		}
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims["type"] != tokenType {
		return nil, errors.New("invalid token type")
	}
	if id, _ := claims["jti"].(string); id != "" {
		if revoked, _ := s.revoked.Get(id); revoked {
			return nil, errors.New("token expired")
		}
	}
	if _, ok := claims["user_id"].(string); !ok {
		return nil, errors.New("invalid user_id claim")
	}
	return claims, nil
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	return strings.TrimPrefix(header, "Bearer "), true
}
