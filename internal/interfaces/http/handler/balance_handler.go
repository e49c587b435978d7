package handler

import (
	"github.com/gin-gonic/gin"

	appcustody "github.com/loanflow/backend/internal/application/custody"
	"github.com/loanflow/backend/internal/domain/custody"
	"github.com/loanflow/backend/internal/interfaces/http/dto"
	"github.com/loanflow/backend/internal/interfaces/http/middleware"
)

// BalanceHandler serves the read-side balance projections and the
// collector's cash flow history.
type BalanceHandler struct {
	BaseHandler
	monitor  *appcustody.BalanceMonitor
	recorder *appcustody.TransactionRecorder
}

// NewBalanceHandler creates a BalanceHandler
func NewBalanceHandler(monitor *appcustody.BalanceMonitor, recorder *appcustody.TransactionRecorder) *BalanceHandler {
	return &BalanceHandler{monitor: monitor, recorder: recorder}
}

// RegisterRoutes mounts balance routes
func (h *BalanceHandler) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group("/custody/balances")

	group.GET("", middleware.RequireRole(middleware.RoleCashier), h.CollectorBalances)
	group.GET("/floats/:id", h.FloatBalance)

	rg.GET("/custody/entries/history",
		middleware.RequireRole(middleware.RoleCollector), h.EntryHistory)
}

// CollectorBalances returns the per-collector position for one day.
// An absent date defaults to today.
func (h *BalanceHandler) CollectorBalances(c *gin.Context) {
	tenantID, _, ok := h.identity(c)
	if !ok {
		return
	}

	balances, err := h.monitor.CollectorBalances(c.Request.Context(), tenantID, c.Query("date"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewCollectorBalanceResponses(balances))
}

// FloatBalance returns the projection for one float
func (h *BalanceHandler) FloatBalance(c *gin.Context) {
	tenantID, _, ok := h.identity(c)
	if !ok {
		return
	}
	floatID, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	balance, err := h.monitor.FloatBalance(c.Request.Context(), tenantID, floatID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewCollectorBalanceResponse(balance))
}

// EntryHistory lists the authenticated collector's entries across floats
func (h *BalanceHandler) EntryHistory(c *gin.Context) {
	tenantID, collectorID, ok := h.identity(c)
	if !ok {
		return
	}

	var req dto.EntryHistoryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.Error(c, dto.GetHTTPStatus(dto.ErrCodeValidation), dto.ErrCodeValidation, err.Error())
		return
	}

	filter := custody.EntryHistoryFilter{
		FromDate: req.FromDate,
		ToDate:   req.ToDate,
		Page:     req.Page,
		PageSize: req.PageSize,
	}
	if req.Kind != "" {
		kind := custody.EntryKind(req.Kind)
		filter.Kind = &kind
	}

	page, err := h.recorder.History(c.Request.Context(), tenantID, collectorID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, dto.NewLedgerEntryResponses(page.Items), page.Total, page.Page, page.PageSize)
}
