package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	appcustody "github.com/loanflow/backend/internal/application/custody"
	"github.com/loanflow/backend/internal/domain/custody"
	"github.com/loanflow/backend/internal/domain/shared"
	"github.com/loanflow/backend/internal/interfaces/http/dto"
	"github.com/loanflow/backend/internal/interfaces/http/middleware"
)

var (
	testTenantID    = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	testCashierID   = uuid.MustParse("00000000-0000-0000-0000-000000000002")
	testCollectorID = uuid.MustParse("00000000-0000-0000-0000-000000000003")
)

const testFloatDate = "2026-08-28"

func setupFloatHandler(floatRepo *MockFloatRepository, entryRepo *MockLedgerEntryRepository) *FloatHandler {
	issuance := appcustody.NewFloatIssuanceService(floatRepo, nil)
	confirmation := appcustody.NewCollectorConfirmationService(floatRepo, nil)
	recorder := appcustody.NewTransactionRecorder(floatRepo, entryRepo, nil, shared.DefaultIdempotencyConfig())
	return NewFloatHandler(issuance, confirmation, recorder)
}

func newPendingFloat(t *testing.T) *custody.Float {
	t.Helper()
	f, err := custody.NewFloat(testTenantID, testCashierID, testCollectorID, testFloatDate,
		decimal.NewFromInt(5000), decimal.NewFromInt(5000), "")
	require.NoError(t, err)
	f.ClearDomainEvents()
	return f
}

func newActiveFloat(t *testing.T) *custody.Float {
	t.Helper()
	f := newPendingFloat(t)
	require.NoError(t, f.ConfirmReceipt(testCollectorID))
	f.ClearDomainEvents()
	return f
}

func newAppendResult(t *testing.T, f *custody.Float, kind custody.EntryKind, amount int64, duplicate bool) *custody.AppendResult {
	t.Helper()
	entry, err := custody.NewLedgerEntry(testTenantID, f.GetID(), kind, decimal.NewFromInt(amount), "", "LOAN-1", "")
	require.NoError(t, err)
	entry.SequenceNo = 1
	return &custody.AppendResult{
		Entry: entry,
		Snapshot: custody.BalanceSnapshot{
			FloatID:       f.GetID(),
			OpeningAmount: f.OpeningAmount,
			Balance:       f.OpeningAmount.Add(entry.Signed()),
		},
		Duplicate: duplicate,
	}
}

func postJSON(router *gin.Engine, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBuffer(payload))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestFloatHandler_Issue_Success(t *testing.T) {
	floatRepo := new(MockFloatRepository)
	handler := setupFloatHandler(floatRepo, new(MockLedgerEntryRepository))

	floatRepo.On("Create", mock.Anything, mock.AnythingOfType("*custody.Float")).Return(nil)

	router := setupTestRouter(testTenantID, testCashierID, middleware.RoleCashier)
	router.POST("/custody/floats", handler.Issue)

	w := postJSON(router, "/custody/floats", dto.IssueFloatRequest{
		CollectorID:   testCollectorID.String(),
		FloatDate:     testFloatDate,
		OpeningAmount: 5000,
		DailyCap:      5000,
	}, nil)

	assert.Equal(t, http.StatusCreated, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)
	floatRepo.AssertExpectations(t)
}

func TestFloatHandler_Issue_DuplicateSlot(t *testing.T) {
	floatRepo := new(MockFloatRepository)
	handler := setupFloatHandler(floatRepo, new(MockLedgerEntryRepository))

	floatRepo.On("Create", mock.Anything, mock.AnythingOfType("*custody.Float")).
		Return(shared.ErrDuplicateActiveFloat)

	router := setupTestRouter(testTenantID, testCashierID, middleware.RoleCashier)
	router.POST("/custody/floats", handler.Issue)

	w := postJSON(router, "/custody/floats", dto.IssueFloatRequest{
		CollectorID:   testCollectorID.String(),
		FloatDate:     testFloatDate,
		OpeningAmount: 5000,
	}, nil)

	assert.Equal(t, http.StatusConflict, w.Code)
	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeDuplicateActiveFloat, resp.Error.Code)
}

func TestFloatHandler_Issue_InvalidDate(t *testing.T) {
	handler := setupFloatHandler(new(MockFloatRepository), new(MockLedgerEntryRepository))

	router := setupTestRouter(testTenantID, testCashierID, middleware.RoleCashier)
	router.POST("/custody/floats", handler.Issue)

	w := postJSON(router, "/custody/floats", dto.IssueFloatRequest{
		CollectorID:   testCollectorID.String(),
		FloatDate:     "28-08-2026",
		OpeningAmount: 5000,
	}, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFloatHandler_Issue_InvalidJSON(t *testing.T) {
	handler := setupFloatHandler(new(MockFloatRepository), new(MockLedgerEntryRepository))

	router := setupTestRouter(testTenantID, testCashierID, middleware.RoleCashier)
	router.POST("/custody/floats", handler.Issue)

	req := httptest.NewRequest(http.MethodPost, "/custody/floats", bytes.NewBufferString("not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFloatHandler_Issue_Reissue(t *testing.T) {
	floatRepo := new(MockFloatRepository)
	handler := setupFloatHandler(floatRepo, new(MockLedgerEntryRepository))

	predecessor := newActiveFloat(t)
	require.NoError(t, predecessor.BeginHandover())
	require.NoError(t, predecessor.CloseRejected())

	floatRepo.On("FindByIDForTenant", mock.Anything, testTenantID, predecessor.GetID()).
		Return(predecessor, nil)
	floatRepo.On("Create", mock.Anything, mock.MatchedBy(func(f *custody.Float) bool {
		return f.ReissuedFromID != nil && *f.ReissuedFromID == predecessor.GetID()
	})).Return(nil)

	router := setupTestRouter(testTenantID, testCashierID, middleware.RoleCashier)
	router.POST("/custody/floats", handler.Issue)

	reissuedFrom := predecessor.GetID().String()
	w := postJSON(router, "/custody/floats", dto.IssueFloatRequest{
		CollectorID:    testCollectorID.String(),
		FloatDate:      testFloatDate,
		OpeningAmount:  5000,
		ReissuedFromID: &reissuedFrom,
	}, nil)

	assert.Equal(t, http.StatusCreated, w.Code)
	floatRepo.AssertExpectations(t)
}

func TestFloatHandler_Cancel_Success(t *testing.T) {
	floatRepo := new(MockFloatRepository)
	handler := setupFloatHandler(floatRepo, new(MockLedgerEntryRepository))

	f := newPendingFloat(t)
	floatRepo.On("FindByIDForTenant", mock.Anything, testTenantID, f.GetID()).Return(f, nil)
	floatRepo.On("SaveTransition", mock.Anything, f, custody.FloatStatusPendingConfirmation).Return(nil)

	router := setupTestRouter(testTenantID, testCashierID, middleware.RoleCashier)
	router.POST("/custody/floats/:id/cancel", handler.Cancel)

	w := postJSON(router, "/custody/floats/"+f.GetID().String()+"/cancel",
		dto.CancelFloatRequest{Reason: "wrong amount keyed"}, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	floatRepo.AssertExpectations(t)
}

func TestFloatHandler_Cancel_MissingReason(t *testing.T) {
	handler := setupFloatHandler(new(MockFloatRepository), new(MockLedgerEntryRepository))

	router := setupTestRouter(testTenantID, testCashierID, middleware.RoleCashier)
	router.POST("/custody/floats/:id/cancel", handler.Cancel)

	w := postJSON(router, "/custody/floats/"+uuid.NewString()+"/cancel",
		dto.CancelFloatRequest{}, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFloatHandler_Get_NotFound(t *testing.T) {
	floatRepo := new(MockFloatRepository)
	handler := setupFloatHandler(floatRepo, new(MockLedgerEntryRepository))

	floatID := uuid.New()
	floatRepo.On("FindByIDForTenant", mock.Anything, testTenantID, floatID).Return(nil, nil)

	router := setupTestRouter(testTenantID, testCashierID, middleware.RoleCashier)
	router.GET("/custody/floats/:id", handler.Get)

	req := httptest.NewRequest(http.MethodGet, "/custody/floats/"+floatID.String(), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFloatHandler_ConfirmReceipt_Success(t *testing.T) {
	floatRepo := new(MockFloatRepository)
	handler := setupFloatHandler(floatRepo, new(MockLedgerEntryRepository))

	f := newPendingFloat(t)
	floatRepo.On("FindByIDForTenant", mock.Anything, testTenantID, f.GetID()).Return(f, nil)
	floatRepo.On("SaveTransition", mock.Anything, f, custody.FloatStatusPendingConfirmation).Return(nil)

	router := setupTestRouter(testTenantID, testCollectorID, middleware.RoleCollector)
	router.POST("/custody/floats/:id/confirm", handler.ConfirmReceipt)

	w := postJSON(router, "/custody/floats/"+f.GetID().String()+"/confirm", gin.H{}, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, custody.FloatStatusActive, f.Status)
	floatRepo.AssertExpectations(t)
}

func TestFloatHandler_RecordCollection_Created(t *testing.T) {
	floatRepo := new(MockFloatRepository)
	entryRepo := new(MockLedgerEntryRepository)
	handler := setupFloatHandler(floatRepo, entryRepo)

	f := newActiveFloat(t)
	result := newAppendResult(t, f, custody.EntryKindCollection, 1000, false)

	floatRepo.On("FindByIDForTenant", mock.Anything, testTenantID, f.GetID()).Return(f, nil)
	entryRepo.On("Append", mock.Anything, mock.MatchedBy(func(input custody.AppendEntryInput) bool {
		return input.Kind == custody.EntryKindCollection && input.Amount.Equal(decimal.NewFromInt(1000))
	})).Return(result, nil)

	router := setupTestRouter(testTenantID, testCollectorID, middleware.RoleCollector)
	router.POST("/custody/floats/:id/collections", handler.RecordCollection)

	w := postJSON(router, "/custody/floats/"+f.GetID().String()+"/collections",
		dto.RecordEntryRequest{Amount: 1000, Reference: "LOAN-1"}, nil)

	assert.Equal(t, http.StatusCreated, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)
	entryRepo.AssertExpectations(t)
}

func TestFloatHandler_RecordCollection_Replayed(t *testing.T) {
	floatRepo := new(MockFloatRepository)
	entryRepo := new(MockLedgerEntryRepository)
	handler := setupFloatHandler(floatRepo, entryRepo)

	f := newActiveFloat(t)
	result := newAppendResult(t, f, custody.EntryKindCollection, 1000, true)

	floatRepo.On("FindByIDForTenant", mock.Anything, testTenantID, f.GetID()).Return(f, nil)
	entryRepo.On("Append", mock.Anything, mock.Anything).Return(result, nil)

	router := setupTestRouter(testTenantID, testCollectorID, middleware.RoleCollector)
	router.POST("/custody/floats/:id/collections", handler.RecordCollection)

	w := postJSON(router, "/custody/floats/"+f.GetID().String()+"/collections",
		dto.RecordEntryRequest{Amount: 1000, IdempotencyKey: "client-key-1"}, nil)

	// A replay returns the original entry with 200, not 201
	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `"duplicate":true`)
}

func TestFloatHandler_RecordEntry_HeaderIdempotencyKey(t *testing.T) {
	floatRepo := new(MockFloatRepository)
	entryRepo := new(MockLedgerEntryRepository)
	handler := setupFloatHandler(floatRepo, entryRepo)

	f := newActiveFloat(t)
	result := newAppendResult(t, f, custody.EntryKindCollection, 500, false)

	floatRepo.On("FindByIDForTenant", mock.Anything, testTenantID, f.GetID()).Return(f, nil)
	entryRepo.On("Append", mock.Anything, mock.MatchedBy(func(input custody.AppendEntryInput) bool {
		return input.IdempotencyKey == "hdr-key-7"
	})).Return(result, nil)

	router := setupTestRouter(testTenantID, testCollectorID, middleware.RoleCollector)
	router.POST("/custody/floats/:id/collections", handler.RecordCollection)

	w := postJSON(router, "/custody/floats/"+f.GetID().String()+"/collections",
		dto.RecordEntryRequest{Amount: 500},
		map[string]string{"X-Idempotency-Key": "hdr-key-7"})

	assert.Equal(t, http.StatusCreated, w.Code)
	entryRepo.AssertExpectations(t)
}

func TestFloatHandler_RecordDisbursement_CapExceeded(t *testing.T) {
	floatRepo := new(MockFloatRepository)
	entryRepo := new(MockLedgerEntryRepository)
	handler := setupFloatHandler(floatRepo, entryRepo)

	f := newActiveFloat(t)
	floatRepo.On("FindByIDForTenant", mock.Anything, testTenantID, f.GetID()).Return(f, nil)
	entryRepo.On("Append", mock.Anything, mock.Anything).Return(nil, shared.ErrDailyCapExceeded)

	router := setupTestRouter(testTenantID, testCollectorID, middleware.RoleCollector)
	router.POST("/custody/floats/:id/disbursements", handler.RecordDisbursement)

	w := postJSON(router, "/custody/floats/"+f.GetID().String()+"/disbursements",
		dto.RecordEntryRequest{Amount: 9000}, nil)

	assert.Equal(t, http.StatusConflict, w.Code)
	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeDailyCapExceeded, resp.Error.Code)
}

func TestFloatHandler_RecordDisbursement_InsufficientCash(t *testing.T) {
	floatRepo := new(MockFloatRepository)
	entryRepo := new(MockLedgerEntryRepository)
	handler := setupFloatHandler(floatRepo, entryRepo)

	f := newActiveFloat(t)
	floatRepo.On("FindByIDForTenant", mock.Anything, testTenantID, f.GetID()).Return(f, nil)
	entryRepo.On("Append", mock.Anything, mock.Anything).Return(nil, shared.ErrInsufficientCash)

	router := setupTestRouter(testTenantID, testCollectorID, middleware.RoleCollector)
	router.POST("/custody/floats/:id/disbursements", handler.RecordDisbursement)

	w := postJSON(router, "/custody/floats/"+f.GetID().String()+"/disbursements",
		dto.RecordEntryRequest{Amount: 6000}, nil)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeInsufficientCash, resp.Error.Code)
}

func TestFloatHandler_RecordEntry_WrongCollector(t *testing.T) {
	floatRepo := new(MockFloatRepository)
	handler := setupFloatHandler(floatRepo, new(MockLedgerEntryRepository))

	f := newActiveFloat(t)
	otherCollector := uuid.New()
	floatRepo.On("FindByIDForTenant", mock.Anything, testTenantID, f.GetID()).Return(f, nil)

	router := setupTestRouter(testTenantID, otherCollector, middleware.RoleCollector)
	router.POST("/custody/floats/:id/collections", handler.RecordCollection)

	w := postJSON(router, "/custody/floats/"+f.GetID().String()+"/collections",
		dto.RecordEntryRequest{Amount: 100}, nil)

	// Someone else's float reads as not found, not forbidden
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFloatHandler_ListEntries(t *testing.T) {
	floatRepo := new(MockFloatRepository)
	entryRepo := new(MockLedgerEntryRepository)
	handler := setupFloatHandler(floatRepo, entryRepo)

	f := newActiveFloat(t)
	entry, err := custody.NewLedgerEntry(testTenantID, f.GetID(), custody.EntryKindCollection,
		decimal.NewFromInt(250), "", "", "")
	require.NoError(t, err)
	entry.SequenceNo = 1

	entryRepo.On("FindByFloat", mock.Anything, testTenantID, f.GetID()).
		Return([]custody.LedgerEntry{*entry}, nil)

	router := setupTestRouter(testTenantID, testCollectorID, middleware.RoleCollector)
	router.GET("/custody/floats/:id/entries", handler.ListEntries)

	req := httptest.NewRequest(http.MethodGet, "/custody/floats/"+f.GetID().String()+"/entries", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	entryRepo.AssertExpectations(t)
}

func TestFloatHandler_History(t *testing.T) {
	floatRepo := new(MockFloatRepository)
	handler := setupFloatHandler(floatRepo, new(MockLedgerEntryRepository))

	f := newActiveFloat(t)
	floatRepo.On("FindHistory", mock.Anything, testTenantID, mock.MatchedBy(func(filter custody.FloatHistoryFilter) bool {
		return filter.CollectorID != nil && *filter.CollectorID == testCollectorID &&
			filter.Status != nil && *filter.Status == custody.FloatStatusActive
	})).Return([]custody.Float{*f}, int64(1), nil)

	router := setupTestRouter(testTenantID, testCashierID, middleware.RoleCashier)
	router.GET("/custody/floats/history", handler.History)

	req := httptest.NewRequest(http.MethodGet,
		"/custody/floats/history?collector_id="+testCollectorID.String()+"&status=ACTIVE&page=1&page_size=20", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(1), resp.Meta.Total)
	floatRepo.AssertExpectations(t)
}

func TestFloatHandler_History_InvalidStatus(t *testing.T) {
	handler := setupFloatHandler(new(MockFloatRepository), new(MockLedgerEntryRepository))

	router := setupTestRouter(testTenantID, testCashierID, middleware.RoleCashier)
	router.GET("/custody/floats/history", handler.History)

	req := httptest.NewRequest(http.MethodGet, "/custody/floats/history?status=DONE", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
