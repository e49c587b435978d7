package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/loanflow/backend/internal/infrastructure/logger"
	"github.com/loanflow/backend/internal/interfaces/http/dto"
)

// TenantContext requires a tenant claim and threads tenant, actor and
// request IDs into the request context so downstream logs carry them.
// Must run after JWTAuth.
func TenantContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, err := uuid.Parse(GetJWTTenantID(c))
		if err != nil || tenantID == uuid.Nil {
			c.AbortWithStatusJSON(dto.GetHTTPStatus(dto.ErrCodeUnauthorized),
				dto.NewErrorResponse(dto.ErrCodeUnauthorized, "Missing or invalid tenant context", c.GetString(RequestIDKey)))
			return
		}

		ctx := c.Request.Context()
		log := logger.FromContext(ctx)
		ctx, log = logger.WithTenantID(ctx, log, tenantID.String())
		if actorID := GetJWTActorID(c); actorID != "" {
			ctx, log = logger.WithActorID(ctx, log, actorID)
		}
		if requestID := c.GetString(RequestIDKey); requestID != "" {
			ctx, _ = logger.WithRequestID(ctx, log, requestID)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
