package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// JWTParser resolves principals from Bearer tokens signed with a shared
// HMAC secret.
type JWTParser struct {
	secret []byte
}

// NewJWTParser creates a parser for the given signing secret.
func NewJWTParser(secret string) *JWTParser {
	return &JWTParser{secret: []byte(secret)}
}

// Parse validates the token and maps its claims onto a Principal.
// Expected claims: "email" (identity), optional "sub", optional "roles"
// (array of strings).
func (j *JWTParser) Parse(tokenString string) (Principal, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secret, nil
	})
	if err != nil {
		return Anonymous(), fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Anonymous(), fmt.Errorf("invalid token claims")
	}

	p := Principal{IsAuthenticated: true}
	if sub, ok := claims["sub"].(string); ok {
		p.UserID = sub
	}
	if email, ok := claims["email"].(string); ok {
		p.UserDetails = email
	}
	if roles, ok := claims["roles"].([]interface{}); ok {
		for _, r := range roles {
			if s, ok := r.(string); ok {
				p.Roles = append(p.Roles, s)
			}
		}
	}
	return p, nil
}
