package middleware

import (
	"creatorhub/internal/auth"
	"creatorhub/internal/logger"
	"creatorhub/pkg/apperrors"
	"creatorhub/pkg/contextkeys"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Credential returns the bearer token from the Authorization header, falling
// back to the token query parameter used by browser websocket clients.
func Credential(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		return header
	}
	return c.Query("token")
}

// AuthMiddleware resolves the caller and stores the identity in the context.
func AuthMiddleware(resolver auth.Resolver, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := resolver.Resolve(c.Request.Context(), db, Credential(c))
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}

		c.Set(string(contextkeys.UserContextKey), identity)
		c.Request = c.Request.WithContext(logger.WithUserID(c.Request.Context(), identity.UserID))
		c.Next()
	}
}

// GetIdentity returns the identity stored by AuthMiddleware.
func GetIdentity(c *gin.Context) (*auth.Identity, bool) {
	value, exists := c.Get(string(contextkeys.UserContextKey))
	if !exists {
		return nil, false
	}
	identity, ok := value.(*auth.Identity)
	return identity, ok
}

// GetUserID returns the authenticated user id, or 0.
func GetUserID(c *gin.Context) uint {
	if identity, ok := GetIdentity(c); ok {
		return identity.UserID
	}
	return 0
}
