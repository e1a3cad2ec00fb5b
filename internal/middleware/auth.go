package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"helpdesk-service/internal/auth"
)

const identityContextKey = "identity"

// AuthMiddleware validates the Authorization header and attaches the
// verified identity to the request context.
func AuthMiddleware(verifier *auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			return
		}

		identity, err := verifier.Verify(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(identityContextKey, identity)
		c.Next()
	}
}

// IdentityFromContext returns the identity attached by AuthMiddleware.
func IdentityFromContext(c *gin.Context) (auth.Identity, bool) {
	val, ok := c.Get(identityContextKey)
	if !ok {
		return auth.Identity{}, false
	}
	identity, ok := val.(auth.Identity)
	return identity, ok
}

// SetIdentity attaches an identity to the context. Exposed for tests.
func SetIdentity(c *gin.Context, identity auth.Identity) {
	c.Set(identityContextKey, identity)
}
