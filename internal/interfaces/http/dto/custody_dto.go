package dto

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/loanflow/backend/internal/domain/custody"
)

// RegisterCustomValidators installs custody-specific binding validators
func RegisterCustomValidators(v *validator.Validate) error {
	return v.RegisterValidation("floatdate", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(custody.FloatDateLayout, fl.Field().String())
		return err == nil
	})
}

// IssueFloatRequest is the cashier's request to issue a daily float
type IssueFloatRequest struct {
	CollectorID    string  `json:"collector_id" binding:"required,uuid"`
	FloatDate      string  `json:"float_date" binding:"required,floatdate"`
	OpeningAmount  float64 `json:"opening_amount" binding:"required,gt=0"`
	DailyCap       float64 `json:"daily_cap" binding:"gte=0"`
	Notes          string  `json:"notes" binding:"max=500"`
	ReissuedFromID *string `json:"reissued_from_id" binding:"omitempty,uuid"`
}

// CancelFloatRequest cancels an unconfirmed float
type CancelFloatRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// RecordEntryRequest records one collection or disbursement. The idempotency
// key may instead arrive in the X-Idempotency-Key header; the body value wins
// if both are set.
type RecordEntryRequest struct {
	Amount         float64 `json:"amount" binding:"required,gt=0"`
	IdempotencyKey string  `json:"idempotency_key" binding:"max=100"`
	Reference      string  `json:"reference" binding:"max=100"`
	Notes          string  `json:"notes" binding:"max=500"`
}

// SubmitHandoverRequest declares the counted end-of-day cash
type SubmitHandoverRequest struct {
	ActualAmount float64 `json:"actual_amount" binding:"gte=0"`
	Notes        string  `json:"notes" binding:"max=500"`
}

// RejectHandoverRequest disputes a pending handover
type RejectHandoverRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// FloatHistoryRequest narrows the cashier's float history query
type FloatHistoryRequest struct {
	CollectorID string `form:"collector_id" binding:"omitempty,uuid"`
	Status      string `form:"status"`
	FromDate    string `form:"from_date" binding:"omitempty,floatdate"`
	ToDate      string `form:"to_date" binding:"omitempty,floatdate"`
	Page        int    `form:"page" binding:"omitempty,min=1"`
	PageSize    int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// EntryHistoryRequest narrows a collector's cash flow history query
type EntryHistoryRequest struct {
	Kind     string `form:"kind" binding:"omitempty,oneof=COLLECTION DISBURSEMENT"`
	FromDate string `form:"from_date" binding:"omitempty,floatdate"`
	ToDate   string `form:"to_date" binding:"omitempty,floatdate"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// FloatResponse is the wire form of a cash float
type FloatResponse struct {
	ID             string          `json:"id"`
	CollectorID    string          `json:"collector_id"`
	CashierID      string          `json:"cashier_id"`
	FloatDate      string          `json:"float_date"`
	OpeningAmount  decimal.Decimal `json:"opening_amount"`
	DailyCap       decimal.Decimal `json:"daily_cap"`
	Status         string          `json:"status"`
	Notes          string          `json:"notes,omitempty"`
	ReissuedFromID *string         `json:"reissued_from_id,omitempty"`
	ConfirmedAt    *time.Time      `json:"confirmed_at,omitempty"`
	ClosedAt       *time.Time      `json:"closed_at,omitempty"`
	CancelReason   string          `json:"cancel_reason,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// NewFloatResponse maps a float aggregate to its wire form
func NewFloatResponse(f *custody.Float) FloatResponse {
	resp := FloatResponse{
		ID:            f.ID.String(),
		CollectorID:   f.CollectorID.String(),
		CashierID:     f.CashierID.String(),
		FloatDate:     f.FloatDate,
		OpeningAmount: f.OpeningAmount,
		DailyCap:      f.DailyCap,
		Status:        f.Status.String(),
		Notes:         f.Notes,
		ConfirmedAt:   f.ConfirmedAt,
		ClosedAt:      f.ClosedAt,
		CancelReason:  f.CancelReason,
		CreatedAt:     f.CreatedAt,
		UpdatedAt:     f.UpdatedAt,
	}
	if f.ReissuedFromID != nil {
		id := f.ReissuedFromID.String()
		resp.ReissuedFromID = &id
	}
	return resp
}

// NewFloatResponses maps a slice of floats
func NewFloatResponses(floats []custody.Float) []FloatResponse {
	out := make([]FloatResponse, 0, len(floats))
	for i := range floats {
		out = append(out, NewFloatResponse(&floats[i]))
	}
	return out
}

// LedgerEntryResponse is the wire form of one ledger entry
type LedgerEntryResponse struct {
	ID         string          `json:"id"`
	FloatID    string          `json:"float_id"`
	Kind       string          `json:"kind"`
	Amount     decimal.Decimal `json:"amount"`
	SequenceNo int64           `json:"sequence_no"`
	Reference  string          `json:"reference,omitempty"`
	Notes      string          `json:"notes,omitempty"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// NewLedgerEntryResponse maps a ledger entry to its wire form
func NewLedgerEntryResponse(e *custody.LedgerEntry) LedgerEntryResponse {
	return LedgerEntryResponse{
		ID:         e.ID.String(),
		FloatID:    e.FloatID.String(),
		Kind:       e.Kind.String(),
		Amount:     e.Amount,
		SequenceNo: e.SequenceNo,
		Reference:  e.Reference,
		Notes:      e.Notes,
		RecordedAt: e.RecordedAt,
	}
}

// NewLedgerEntryResponses maps a slice of entries
func NewLedgerEntryResponses(entries []custody.LedgerEntry) []LedgerEntryResponse {
	out := make([]LedgerEntryResponse, 0, len(entries))
	for i := range entries {
		out = append(out, NewLedgerEntryResponse(&entries[i]))
	}
	return out
}

// BalanceSnapshotResponse is the wire form of a float's ledger position
type BalanceSnapshotResponse struct {
	FloatID           string          `json:"float_id"`
	OpeningAmount     decimal.Decimal `json:"opening_amount"`
	Collected         decimal.Decimal `json:"collected"`
	Disbursed         decimal.Decimal `json:"disbursed"`
	Balance           decimal.Decimal `json:"balance"`
	LastTransactionAt *time.Time      `json:"last_transaction_at,omitempty"`
}

// NewBalanceSnapshotResponse maps a balance snapshot
func NewBalanceSnapshotResponse(s custody.BalanceSnapshot) BalanceSnapshotResponse {
	return BalanceSnapshotResponse{
		FloatID:           s.FloatID.String(),
		OpeningAmount:     s.OpeningAmount,
		Collected:         s.Collected,
		Disbursed:         s.Disbursed,
		Balance:           s.Balance,
		LastTransactionAt: s.LastTransactionAt,
	}
}

// AppendResultResponse is returned from collection/disbursement recording
type AppendResultResponse struct {
	Entry     LedgerEntryResponse     `json:"entry"`
	Snapshot  BalanceSnapshotResponse `json:"snapshot"`
	Duplicate bool                    `json:"duplicate"`
}

// NewAppendResultResponse maps an append result
func NewAppendResultResponse(r *custody.AppendResult) AppendResultResponse {
	return AppendResultResponse{
		Entry:     NewLedgerEntryResponse(r.Entry),
		Snapshot:  NewBalanceSnapshotResponse(r.Snapshot),
		Duplicate: r.Duplicate,
	}
}

// HandoverResponse is the wire form of an end-of-day handover
type HandoverResponse struct {
	ID             string          `json:"id"`
	FloatID        string          `json:"float_id"`
	CollectorID    string          `json:"collector_id"`
	CashierID      string          `json:"cashier_id"`
	ExpectedAmount decimal.Decimal `json:"expected_amount"`
	ActualAmount   decimal.Decimal `json:"actual_amount"`
	Variance       decimal.Decimal `json:"variance"`
	Status         string          `json:"status"`
	ConfirmedBy    *string         `json:"confirmed_by,omitempty"`
	ConfirmedAt    *time.Time      `json:"confirmed_at,omitempty"`
	RejectReason   string          `json:"reject_reason,omitempty"`
	Notes          string          `json:"notes,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// NewHandoverResponse maps a handover aggregate to its wire form
func NewHandoverResponse(h *custody.Handover) HandoverResponse {
	resp := HandoverResponse{
		ID:             h.ID.String(),
		FloatID:        h.FloatID.String(),
		CollectorID:    h.CollectorID.String(),
		CashierID:      h.CashierID.String(),
		ExpectedAmount: h.ExpectedAmount,
		ActualAmount:   h.ActualAmount,
		Variance:       h.Variance,
		Status:         h.Status.String(),
		ConfirmedAt:    h.ConfirmedAt,
		RejectReason:   h.RejectReason,
		Notes:          h.Notes,
		CreatedAt:      h.CreatedAt,
	}
	if h.ConfirmedBy != nil {
		id := h.ConfirmedBy.String()
		resp.ConfirmedBy = &id
	}
	return resp
}

// NewHandoverResponses maps a slice of handovers
func NewHandoverResponses(handovers []custody.Handover) []HandoverResponse {
	out := make([]HandoverResponse, 0, len(handovers))
	for i := range handovers {
		out = append(out, NewHandoverResponse(&handovers[i]))
	}
	return out
}

// CollectorBalanceResponse is the wire form of the read-side projection
type CollectorBalanceResponse struct {
	CollectorID              string          `json:"collector_id"`
	FloatID                  string          `json:"float_id"`
	FloatDate                string          `json:"float_date"`
	Status                   string          `json:"status"`
	OpeningAmount            decimal.Decimal `json:"opening_amount"`
	DailyCap                 decimal.Decimal `json:"daily_cap"`
	Collected                decimal.Decimal `json:"collected"`
	Disbursed                decimal.Decimal `json:"disbursed"`
	Balance                  decimal.Decimal `json:"balance"`
	AvailableForDisbursement decimal.Decimal `json:"available_for_disbursement"`
	LastTransactionAt        *time.Time      `json:"last_transaction_at,omitempty"`
}

// NewCollectorBalanceResponse maps one projection row
func NewCollectorBalanceResponse(b *custody.CollectorBalance) CollectorBalanceResponse {
	return CollectorBalanceResponse{
		CollectorID:              b.CollectorID.String(),
		FloatID:                  b.FloatID.String(),
		FloatDate:                b.FloatDate,
		Status:                   b.Status.String(),
		OpeningAmount:            b.OpeningAmount,
		DailyCap:                 b.DailyCap,
		Collected:                b.Collected,
		Disbursed:                b.Disbursed,
		Balance:                  b.Balance,
		AvailableForDisbursement: b.AvailableForDisbursement,
		LastTransactionAt:        b.LastTransactionAt,
	}
}

// NewCollectorBalanceResponses maps the per-collector projection
func NewCollectorBalanceResponses(balances []custody.CollectorBalance) []CollectorBalanceResponse {
	out := make([]CollectorBalanceResponse, 0, len(balances))
	for i := range balances {
		out = append(out, NewCollectorBalanceResponse(&balances[i]))
	}
	return out
}
