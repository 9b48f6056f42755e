package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const principalKey = "principal"

// Middleware resolves the request principal and stores it in the gin
// context. The client-principal header wins; a Bearer token is the
// fallback when a JWT parser is configured. Unresolvable requests
// continue as anonymous; route guards decide what that means.
func Middleware(jwtParser *JWTParser, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := Anonymous()

		if header := c.GetHeader(ClientPrincipalHeader); header != "" {
			parsed, err := ParseClientPrincipal(header)
			if err != nil {
				logger.Warn("Failed to parse client principal header", zap.Error(err))
			} else {
				p = parsed
			}
		} else if jwtParser != nil {
			if authHeader := c.GetHeader("Authorization"); authHeader != "" {
				parts := strings.SplitN(authHeader, " ", 2)
				if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
					parsed, err := jwtParser.Parse(parts[1])
					if err != nil {
						logger.Warn("Failed to parse bearer token", zap.Error(err))
					} else {
						p = parsed
					}
				}
			}
		}

		c.Set(principalKey, p)
		c.Next()
	}
}

// FromContext returns the principal resolved for this request.
func FromContext(c *gin.Context) Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(Principal); ok {
			return p
		}
	}
	return Anonymous()
}

// RequireAuthenticated aborts unauthenticated requests with 401.
func RequireAuthenticated() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !FromContext(c).IsAuthenticated {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Next()
	}
}

// RequireAdmin aborts requests whose principal lacks the admin role.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := FromContext(c)
		if !p.IsAuthenticated {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		if !p.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin role required"})
			return
		}
		c.Next()
	}
}
