package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	appcustody "github.com/loanflow/backend/internal/application/custody"
	"github.com/loanflow/backend/internal/domain/custody"
	"github.com/loanflow/backend/internal/interfaces/http/dto"
	"github.com/loanflow/backend/internal/interfaces/http/middleware"
)

// idempotencyKeyHeader lets mobile clients replay safely without a body change
const idempotencyKeyHeader = "X-Idempotency-Key"

// FloatHandler serves the float lifecycle and cash recording endpoints
type FloatHandler struct {
	BaseHandler
	issuance     *appcustody.FloatIssuanceService
	confirmation *appcustody.CollectorConfirmationService
	recorder     *appcustody.TransactionRecorder
}

// NewFloatHandler creates a FloatHandler
func NewFloatHandler(
	issuance *appcustody.FloatIssuanceService,
	confirmation *appcustody.CollectorConfirmationService,
	recorder *appcustody.TransactionRecorder,
) *FloatHandler {
	return &FloatHandler{
		issuance:     issuance,
		confirmation: confirmation,
		recorder:     recorder,
	}
}

// RegisterRoutes mounts float routes. The cashier group issues and settles;
// the collector group confirms receipt and records cash.
func (h *FloatHandler) RegisterRoutes(rg *gin.RouterGroup) {
	floats := rg.Group("/custody/floats")

	cashier := floats.Group("", middleware.RequireRole(middleware.RoleCashier))
	{
		cashier.POST("", h.Issue)
		cashier.POST("/:id/cancel", h.Cancel)
		cashier.GET("/pending", h.ListPendingForTenant)
		cashier.GET("/history", h.History)
	}

	collector := floats.Group("", middleware.RequireRole(middleware.RoleCollector))
	{
		collector.POST("/:id/confirm", h.ConfirmReceipt)
		collector.GET("/assigned", h.ListAssigned)
		collector.POST("/:id/collections", h.RecordCollection)
		collector.POST("/:id/disbursements", h.RecordDisbursement)
	}

	// Both roles may inspect a float and its entries
	floats.GET("/:id", h.Get)
	floats.GET("/:id/entries", h.ListEntries)
}

// Issue creates a new daily float for a collector
func (h *FloatHandler) Issue(c *gin.Context) {
	tenantID, cashierID, ok := h.identity(c)
	if !ok {
		return
	}

	var req dto.IssueFloatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Error(c, dto.GetHTTPStatus(dto.ErrCodeValidation), dto.ErrCodeValidation, err.Error())
		return
	}

	collectorID, err := uuid.Parse(req.CollectorID)
	if err != nil {
		h.Error(c, dto.GetHTTPStatus(dto.ErrCodeValidation), dto.ErrCodeValidation, "Invalid collector_id")
		return
	}

	issueReq := appcustody.IssueFloatRequest{
		TenantID:      tenantID,
		CashierID:     cashierID,
		CollectorID:   collectorID,
		FloatDate:     req.FloatDate,
		OpeningAmount: decimal.NewFromFloat(req.OpeningAmount),
		DailyCap:      decimal.NewFromFloat(req.DailyCap),
		Notes:         req.Notes,
	}
	if req.ReissuedFromID != nil {
		reissuedFrom, err := uuid.Parse(*req.ReissuedFromID)
		if err != nil {
			h.Error(c, dto.GetHTTPStatus(dto.ErrCodeValidation), dto.ErrCodeValidation, "Invalid reissued_from_id")
			return
		}
		issueReq.ReissuedFromID = &reissuedFrom
	}

	f, err := h.issuance.Issue(c.Request.Context(), issueReq)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dto.NewFloatResponse(f))
}

// Cancel withdraws a float the collector has not yet confirmed
func (h *FloatHandler) Cancel(c *gin.Context) {
	tenantID, cashierID, ok := h.identity(c)
	if !ok {
		return
	}
	floatID, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.CancelFloatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Error(c, dto.GetHTTPStatus(dto.ErrCodeValidation), dto.ErrCodeValidation, err.Error())
		return
	}

	f, err := h.issuance.Cancel(c.Request.Context(), tenantID, cashierID, floatID, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewFloatResponse(f))
}

// Get returns one float
func (h *FloatHandler) Get(c *gin.Context) {
	tenantID, _, ok := h.identity(c)
	if !ok {
		return
	}
	floatID, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	f, err := h.issuance.GetFloat(c.Request.Context(), tenantID, floatID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewFloatResponse(f))
}

// ListPendingForTenant lists floats still awaiting collector receipt
func (h *FloatHandler) ListPendingForTenant(c *gin.Context) {
	tenantID, _, ok := h.identity(c)
	if !ok {
		return
	}

	floats, err := h.issuance.ListPending(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewFloatResponses(floats))
}

// History lists floats with filtering and pagination
func (h *FloatHandler) History(c *gin.Context) {
	tenantID, _, ok := h.identity(c)
	if !ok {
		return
	}

	var req dto.FloatHistoryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.Error(c, dto.GetHTTPStatus(dto.ErrCodeValidation), dto.ErrCodeValidation, err.Error())
		return
	}

	filter := custody.FloatHistoryFilter{
		FromDate: req.FromDate,
		ToDate:   req.ToDate,
		Page:     req.Page,
		PageSize: req.PageSize,
	}
	if req.CollectorID != "" {
		collectorID, err := uuid.Parse(req.CollectorID)
		if err != nil {
			h.Error(c, dto.GetHTTPStatus(dto.ErrCodeValidation), dto.ErrCodeValidation, "Invalid collector_id")
			return
		}
		filter.CollectorID = &collectorID
	}
	if req.Status != "" {
		status := custody.FloatStatus(req.Status)
		if !status.IsValid() {
			h.Error(c, dto.GetHTTPStatus(dto.ErrCodeValidation), dto.ErrCodeValidation, "Invalid status")
			return
		}
		filter.Status = &status
	}

	page, err := h.issuance.ListHistory(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, dto.NewFloatResponses(page.Items), page.Total, page.Page, page.PageSize)
}

// ConfirmReceipt activates a float on collector acknowledgement
func (h *FloatHandler) ConfirmReceipt(c *gin.Context) {
	tenantID, collectorID, ok := h.identity(c)
	if !ok {
		return
	}
	floatID, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	f, err := h.confirmation.ConfirmReceipt(c.Request.Context(), tenantID, collectorID, floatID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewFloatResponse(f))
}

// ListAssigned lists floats awaiting this collector's receipt
func (h *FloatHandler) ListAssigned(c *gin.Context) {
	tenantID, collectorID, ok := h.identity(c)
	if !ok {
		return
	}

	floats, err := h.confirmation.ListPending(c.Request.Context(), tenantID, collectorID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewFloatResponses(floats))
}

// RecordCollection appends a cash collection to an active float
func (h *FloatHandler) RecordCollection(c *gin.Context) {
	h.recordEntry(c, h.recorder.RecordCollection)
}

// RecordDisbursement appends a cash payout to an active float
func (h *FloatHandler) RecordDisbursement(c *gin.Context) {
	h.recordEntry(c, h.recorder.RecordDisbursement)
}

func (h *FloatHandler) recordEntry(
	c *gin.Context,
	record func(ctx context.Context, req appcustody.RecordEntryRequest) (*custody.AppendResult, error),
) {
	tenantID, collectorID, ok := h.identity(c)
	if !ok {
		return
	}
	floatID, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.RecordEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Error(c, dto.GetHTTPStatus(dto.ErrCodeValidation), dto.ErrCodeValidation, err.Error())
		return
	}

	idempotencyKey := req.IdempotencyKey
	if idempotencyKey == "" {
		idempotencyKey = c.GetHeader(idempotencyKeyHeader)
	}

	result, err := record(c.Request.Context(), appcustody.RecordEntryRequest{
		TenantID:       tenantID,
		CollectorID:    collectorID,
		FloatID:        floatID,
		Amount:         decimal.NewFromFloat(req.Amount),
		IdempotencyKey: idempotencyKey,
		Reference:      req.Reference,
		Notes:          req.Notes,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	// A replayed request returns the original entry, not an error
	if result.Duplicate {
		h.Success(c, dto.NewAppendResultResponse(result))
		return
	}
	h.Created(c, dto.NewAppendResultResponse(result))
}

// ListEntries returns all entries of one float in sequence order
func (h *FloatHandler) ListEntries(c *gin.Context) {
	tenantID, _, ok := h.identity(c)
	if !ok {
		return
	}
	floatID, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	entries, err := h.recorder.ListEntries(c.Request.Context(), tenantID, floatID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewLedgerEntryResponses(entries))
}
