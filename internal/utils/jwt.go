package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned for any token that fails parsing or validation.
var ErrInvalidToken = errors.New("Invalid or expired token")

// Identity is the subject a session token is issued for.
type Identity struct {
	UserID   string
	Username string
	Email    string
}

// Claims carried by a session token.
type Claims struct {
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// IssuedToken is the result of GenerateJWT.
type IssuedToken struct {
	Token     string
	ID        string // jti
	ExpiresAt time.Time
}

// GenerateJWT signs an HS256 session token for id bound to sessionID.
func GenerateJWT(secret []byte, id Identity, sessionID uuid.UUID, ttl time.Duration) (IssuedToken, error) {
	if len(secret) == 0 {
		return IssuedToken{}, fmt.Errorf("JWT secret not configured")
	}
	now := time.Now()
	exp := now.Add(ttl)
	jti := uuid.NewString()
	claims := Claims{
		UserID:    id.UserID,
		Username:  id.Username,
		Email:     id.Email,
		SessionID: sessionID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return IssuedToken{}, err
	}
	return IssuedToken{Token: signed, ID: jti, ExpiresAt: exp}, nil
}

// ParseJWT verifies signature and expiry and returns the claims.
func ParseJWT(secret []byte, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Ensure the signing method is HMAC
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == "" || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
