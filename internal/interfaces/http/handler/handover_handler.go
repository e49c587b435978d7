package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	appcustody "github.com/loanflow/backend/internal/application/custody"
	"github.com/loanflow/backend/internal/interfaces/http/dto"
	"github.com/loanflow/backend/internal/interfaces/http/middleware"
)

// HandoverHandler serves the end-of-day settlement endpoints
type HandoverHandler struct {
	BaseHandler
	handovers *appcustody.HandoverService
}

// NewHandoverHandler creates a HandoverHandler
func NewHandoverHandler(handovers *appcustody.HandoverService) *HandoverHandler {
	return &HandoverHandler{handovers: handovers}
}

// RegisterRoutes mounts handover routes
func (h *HandoverHandler) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group("/custody/handovers")

	group.POST("/floats/:id", middleware.RequireRole(middleware.RoleCollector), h.Submit)

	cashier := group.Group("", middleware.RequireRole(middleware.RoleCashier))
	{
		cashier.POST("/:id/confirm", h.Confirm)
		cashier.POST("/:id/reject", h.Reject)
		cashier.GET("/pending", h.ListPending)
	}

	group.GET("/:id", h.Get)
}

// Submit freezes a float and opens its handover
func (h *HandoverHandler) Submit(c *gin.Context) {
	tenantID, collectorID, ok := h.identity(c)
	if !ok {
		return
	}
	floatID, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.SubmitHandoverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Error(c, dto.GetHTTPStatus(dto.ErrCodeValidation), dto.ErrCodeValidation, err.Error())
		return
	}

	handover, err := h.handovers.Submit(c.Request.Context(), appcustody.SubmitHandoverRequest{
		TenantID:     tenantID,
		CollectorID:  collectorID,
		FloatID:      floatID,
		ActualAmount: decimal.NewFromFloat(req.ActualAmount),
		Notes:        req.Notes,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dto.NewHandoverResponse(handover))
}

// Confirm accepts a pending handover and closes its float
func (h *HandoverHandler) Confirm(c *gin.Context) {
	tenantID, cashierID, ok := h.identity(c)
	if !ok {
		return
	}
	handoverID, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	handover, err := h.handovers.Confirm(c.Request.Context(), tenantID, cashierID, handoverID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewHandoverResponse(handover))
}

// Reject disputes a pending handover; the float closes as rejected
func (h *HandoverHandler) Reject(c *gin.Context) {
	tenantID, cashierID, ok := h.identity(c)
	if !ok {
		return
	}
	handoverID, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.RejectHandoverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Error(c, dto.GetHTTPStatus(dto.ErrCodeValidation), dto.ErrCodeValidation, err.Error())
		return
	}

	handover, err := h.handovers.Reject(c.Request.Context(), tenantID, cashierID, handoverID, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewHandoverResponse(handover))
}

// Get returns one handover
func (h *HandoverHandler) Get(c *gin.Context) {
	tenantID, _, ok := h.identity(c)
	if !ok {
		return
	}
	handoverID, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	handover, err := h.handovers.GetHandover(c.Request.Context(), tenantID, handoverID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewHandoverResponse(handover))
}

// ListPending lists handovers awaiting cashier decision
func (h *HandoverHandler) ListPending(c *gin.Context) {
	tenantID, _, ok := h.identity(c)
	if !ok {
		return
	}

	handovers, err := h.handovers.ListPending(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewHandoverResponses(handovers))
}
