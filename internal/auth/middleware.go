package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// MemberAuth enforces bearer JWT tokens signed with HS256 and stores the
// verified claims on the request context.
func MemberAuth(signingKey, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		tokenStr := strings.TrimSpace(authz[len("bearer "):])
		claims, err := Parse(tokenStr, signingKey, issuer)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set("claims", claims)
		c.Next()
	}
}

// RequireRole rejects requests whose token carries none of the given roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := FromContext(c)
		for _, role := range roles {
			if claims.Role == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
	}
}

// FromContext returns the claims stored by MemberAuth, or zero claims.
func FromContext(c *gin.Context) Claims {
	claimsAny, _ := c.Get("claims")
	claims, _ := claimsAny.(Claims)
	return claims
}
