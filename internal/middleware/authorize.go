package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MaxtDesign/MaxtPM/internal/models"
	"github.com/MaxtDesign/MaxtPM/internal/response"
	"github.com/MaxtDesign/MaxtPM/internal/security"
)

func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	roleSet := make(map[models.UserRole]struct{}, len(roles))
	for _, role := range roles {
		roleSet[role] = struct{}{}
	}

	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			response.Fail(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
			return
		}
		if _, ok := roleSet[identity.Role]; !ok {
			response.Fail(c, http.StatusForbidden, "INSUFFICIENT_PERMISSIONS", "You do not have permission to access this resource", nil)
			return
		}
		c.Next()
	}
}

// RequireCompanyAccess checks the company named by the path parameter param
// against the caller's own company.
func RequireCompanyAccess(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			response.Fail(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
			return
		}
		if !security.CanAccessCompany(identity.Role, identity.CompanyID, c.Param(param)) {
			response.Fail(c, http.StatusForbidden, "INSUFFICIENT_PERMISSIONS", "You can only access resources from your own company", nil)
			return
		}
		c.Next()
	}
}
