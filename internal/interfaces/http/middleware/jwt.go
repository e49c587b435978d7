package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/loanflow/backend/internal/infrastructure/auth"
	"github.com/loanflow/backend/internal/interfaces/http/dto"
)

// Context keys populated from validated token claims
const (
	ClaimsKey   = "jwt_claims"
	TenantIDKey = "jwt_tenant_id"
	ActorIDKey  = "jwt_actor_id"
	RoleKey     = "jwt_role"

	authHeaderKey = "Authorization"
	bearerPrefix  = "Bearer "
)

// Role names re-exported for route guards
const (
	RoleCashier   = auth.RoleCashier
	RoleCollector = auth.RoleCollector
)

// JWTAuth validates the bearer token and stores its claims in the context
func JWTAuth(tokens *auth.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(authHeaderKey)
		if header == "" {
			abortUnauthorized(c, "Missing authorization header")
			return
		}
		if !strings.HasPrefix(header, bearerPrefix) {
			abortUnauthorized(c, "Invalid authorization header format")
			return
		}

		tokenString := strings.TrimPrefix(header, bearerPrefix)
		claims, err := tokens.Validate(tokenString)
		if err != nil {
			abortUnauthorized(c, "Token validation failed")
			return
		}

		c.Set(ClaimsKey, claims)
		c.Set(TenantIDKey, claims.TenantID)
		c.Set(ActorIDKey, claims.ActorID)
		c.Set(RoleKey, claims.Role)
		c.Next()
	}
}

// RequireRole rejects requests whose token carries none of the given roles
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actual := c.GetString(RoleKey)
		for _, role := range roles {
			if actual == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(dto.GetHTTPStatus(dto.ErrCodeForbidden),
			dto.NewErrorResponse(dto.ErrCodeForbidden, "Insufficient role for this operation", c.GetString(RequestIDKey)))
	}
}

// GetJWTTenantID returns the tenant ID claim, or empty
func GetJWTTenantID(c *gin.Context) string {
	return c.GetString(TenantIDKey)
}

// GetJWTActorID returns the actor ID claim, or empty
func GetJWTActorID(c *gin.Context) string {
	return c.GetString(ActorIDKey)
}

// GetJWTRole returns the role claim, or empty
func GetJWTRole(c *gin.Context) string {
	return c.GetString(RoleKey)
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(dto.GetHTTPStatus(dto.ErrCodeUnauthorized),
		dto.NewErrorResponse(dto.ErrCodeUnauthorized, message, c.GetString(RequestIDKey)))
}
