package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/smallbiznis/valora-admin/internal/domain"
	"github.com/smallbiznis/valora-admin/internal/jwt"
)

const claimsKey = "adminClaims"

// Auth validates the Authorization header and attaches verified claims.
type Auth struct {
	Tokens *jwt.Generator
}

// ValidateJWT ensures the request carries a valid bearer access token.
func (m *Auth) ValidateJWT(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		abortError(c, http.StatusUnauthorized, "Authorization header required")
		return
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		abortError(c, http.StatusUnauthorized, "Bearer token required")
		return
	}

	claims, err := m.Tokens.VerifyAccessToken(token)
	if err != nil {
		abortError(c, http.StatusUnauthorized, "Invalid access token")
		return
	}

	c.Set(claimsKey, claims)
	c.Next()
}

// RequireRole passes only principals holding the required role. SUPERADMIN
// satisfies every role requirement.
func RequireRole(required domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := GetClaims(c)
		if !ok {
			abortError(c, http.StatusUnauthorized, "Authentication required")
			return
		}
		if claims.Role != required && claims.Role != domain.RoleSuperAdmin {
			abortError(c, http.StatusForbidden, "Insufficient role")
			return
		}
		c.Next()
	}
}

// SelfOrSuperadmin passes when the principal targets their own resource or
// holds the elevated role. The path parameter must be the numeric admin id.
func SelfOrSuperadmin(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := GetClaims(c)
		if !ok {
			abortError(c, http.StatusUnauthorized, "Authentication required")
			return
		}
		if claims.Role == domain.RoleSuperAdmin {
			c.Next()
			return
		}
		id, err := strconv.ParseInt(c.Param(param), 10, 64)
		if err != nil {
			abortError(c, http.StatusBadRequest, "Invalid id parameter")
			return
		}
		if id != claims.AdminID {
			abortError(c, http.StatusForbidden, "Access restricted to own account")
			return
		}
		c.Next()
	}
}

// GetClaims exposes the verified token claims to handlers.
func GetClaims(c *gin.Context) (*jwt.Claims, bool) {
	value, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := value.(*jwt.Claims)
	return claims, ok
}

func abortError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"status_code": status, "message": message})
}
