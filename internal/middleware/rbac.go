package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/block-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/block-scheduler-api/pkg/errors"
	"github.com/noah-isme/block-scheduler-api/pkg/response"
)

// RequireRoles lets the request through only when the claims set by JWT
// carry one of roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		value, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims, ok := value.(*models.JWTClaims)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

// AdminOnly guards schedule mutations. With enabled false it is a no-op so
// local setups can run without a token issuer.
func AdminOnly(verifier TokenVerifier, enabled bool) []gin.HandlerFunc {
	if !enabled || verifier == nil {
		return nil
	}
	return []gin.HandlerFunc{JWT(verifier), RequireRoles(models.RoleSuperAdmin, models.RoleAdmin)}
}
