package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loanflow/backend/internal/infrastructure/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestTenantContextThreadsIdentity(t *testing.T) {
	tenantID := uuid.New()
	actorID := uuid.New()

	var gotTenant, gotActor, gotRequest string

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(TenantIDKey, tenantID.String())
		c.Set(ActorIDKey, actorID.String())
		c.Set(RequestIDKey, "req-123")
	})
	router.Use(TenantContext())
	router.GET("/ping", func(c *gin.Context) {
		ctx := c.Request.Context()
		gotTenant = logger.GetTenantID(ctx)
		gotActor = logger.GetActorID(ctx)
		gotRequest = logger.GetRequestID(ctx)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, tenantID.String(), gotTenant)
	assert.Equal(t, actorID.String(), gotActor)
	assert.Equal(t, "req-123", gotRequest)
}

func TestTenantContextRejectsMissingTenant(t *testing.T) {
	router := gin.New()
	router.Use(TenantContext())
	router.GET("/ping", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTenantContextRejectsMalformedTenant(t *testing.T) {
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(TenantIDKey, "not-a-uuid")
	})
	router.Use(TenantContext())
	router.GET("/ping", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
