package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrUnauthorized        = NewDomainError("UNAUTHORIZED", "Not authorized to perform this action")
	ErrForbidden           = NewDomainError("FORBIDDEN", "Access to this resource is forbidden")
	ErrInvalidState        = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
)

// Cash custody errors
var (
	ErrDuplicateActiveFloat = NewDomainError("DUPLICATE_ACTIVE_FLOAT", "An open float already exists for this collector and date")
	ErrInvalidTransition    = NewDomainError("INVALID_TRANSITION", "Float is not in the expected status")
	ErrFloatNotActive       = NewDomainError("FLOAT_NOT_ACTIVE", "Float is not active")
	ErrDailyCapExceeded     = NewDomainError("DAILY_CAP_EXCEEDED", "Disbursement would exceed the daily cap")
	ErrInsufficientCash     = NewDomainError("INSUFFICIENT_CASH", "Disbursement exceeds cash on hand")
	ErrTransient            = NewDomainError("TRANSIENT", "Operation failed due to a transient conflict, retry later")
)
