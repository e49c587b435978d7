package dto

import "net/http"

// Error codes exposed on the wire. Format: ERR_<CATEGORY>_<DESCRIPTION>.
const (
	ErrCodeUnknown      = "ERR_UNKNOWN"
	ErrCodeInternal     = "ERR_INTERNAL"
	ErrCodeBadRequest   = "ERR_BAD_REQUEST"
	ErrCodeValidation   = "ERR_VALIDATION"
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	ErrCodeForbidden    = "ERR_FORBIDDEN"
	ErrCodeNotFound     = "ERR_NOT_FOUND"
	ErrCodeConflict     = "ERR_CONFLICT"
	ErrCodeConcurrency  = "ERR_CONCURRENCY_CONFLICT"
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	ErrCodeUnavailable  = "ERR_UNAVAILABLE"
)

// Custody-specific error codes
const (
	ErrCodeDuplicateActiveFloat = "ERR_DUPLICATE_ACTIVE_FLOAT"
	ErrCodeInvalidTransition    = "ERR_INVALID_TRANSITION"
	ErrCodeFloatNotActive       = "ERR_FLOAT_NOT_ACTIVE"
	ErrCodeDailyCapExceeded     = "ERR_DAILY_CAP_EXCEEDED"
	ErrCodeInsufficientCash     = "ERR_INSUFFICIENT_CASH"
)

// ErrorCodeHTTPStatus maps wire error codes to HTTP status codes.
// Lifecycle races and slot collisions are conflicts; a disbursement the
// books cannot cover is a semantically invalid request; a transient
// serialization failure asks the client to retry.
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:      http.StatusInternalServerError,
	ErrCodeInternal:     http.StatusInternalServerError,
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeValidation:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,
	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,
	ErrCodeNotFound:     http.StatusNotFound,
	ErrCodeConflict:     http.StatusConflict,
	ErrCodeConcurrency:  http.StatusConflict,
	ErrCodeInvalidState: http.StatusUnprocessableEntity,
	ErrCodeUnavailable:  http.StatusServiceUnavailable,

	ErrCodeDuplicateActiveFloat: http.StatusConflict,
	ErrCodeInvalidTransition:    http.StatusConflict,
	ErrCodeFloatNotActive:       http.StatusConflict,
	ErrCodeDailyCapExceeded:     http.StatusConflict,
	ErrCodeInsufficientCash:     http.StatusUnprocessableEntity,
}

// GetHTTPStatus returns the HTTP status for a wire error code, defaulting
// to 500 for codes it does not know.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// domainCodeMapping translates domain error codes to wire codes. Validation
// codes the domain emits (INVALID_AMOUNT, INVALID_FLOAT_DATE, ...) fall
// through NormalizeErrorCode's INVALID_ prefix rule.
var domainCodeMapping = map[string]string{
	"NOT_FOUND":              ErrCodeNotFound,
	"ALREADY_EXISTS":         ErrCodeConflict,
	"INVALID_INPUT":          ErrCodeInvalidInput,
	"INVALID_STATE":          ErrCodeInvalidState,
	"UNAUTHORIZED":           ErrCodeUnauthorized,
	"FORBIDDEN":              ErrCodeForbidden,
	"CONCURRENCY_CONFLICT":   ErrCodeConcurrency,
	"DUPLICATE_ACTIVE_FLOAT": ErrCodeDuplicateActiveFloat,
	"INVALID_TRANSITION":     ErrCodeInvalidTransition,
	"FLOAT_NOT_ACTIVE":       ErrCodeFloatNotActive,
	"DAILY_CAP_EXCEEDED":     ErrCodeDailyCapExceeded,
	"INSUFFICIENT_CASH":      ErrCodeInsufficientCash,
	"TRANSIENT":              ErrCodeUnavailable,
}

// NormalizeErrorCode converts a domain error code to its wire form
func NormalizeErrorCode(code string) string {
	if wireCode, ok := domainCodeMapping[code]; ok {
		return wireCode
	}
	if len(code) > 8 && code[:8] == "INVALID_" {
		return ErrCodeValidation
	}
	return ErrCodeUnknown
}
