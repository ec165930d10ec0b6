package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	EntityName string `json:"entity_name,omitempty"`
	ErrorKey   string `json:"error_key,omitempty"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// BadRequest is a client error about one entity, identified by a short reason key.
func BadRequest(code, message, entity, key string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		EntityName: entity,
		ErrorKey:   key,
	}
}

// ---- Identity validation (VAL) ----

func IDExists(entity string) *AppError {
	return BadRequest("VAL_001", fmt.Sprintf("A new %s cannot already have an ID", entity), entity, "idexists")
}

func IDNull(entity string) *AppError {
	return BadRequest("VAL_002", "Invalid id", entity, "idnull")
}

func IDInvalid(entity string) *AppError {
	return BadRequest("VAL_003", "Invalid ID", entity, "idinvalid")
}

func IDNotFound(entity string) *AppError {
	return BadRequest("VAL_004", "Entity not found", entity, "idnotfound")
}

func SortInvalid(entity string) *AppError {
	return BadRequest("VAL_005", "Only sorting by id is supported", entity, "sortinvalid")
}

// Validation returns a generic request validation error.
func Validation(message string) *AppError {
	return New("VAL_000", message, http.StatusBadRequest)
}

// PayloadTooLarge rejects a request body over the configured limit.
func PayloadTooLarge() *AppError {
	return New("VAL_006", "Request body too large", http.StatusRequestEntityTooLarge)
}

// ---- Resource state (RES) ----

// NotFound is rendered as a bare 404 without a body.
func NotFound(entity string) *AppError {
	return &AppError{
		Code:       "RES_001",
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		EntityName: entity,
		ErrorKey:   "notfound",
	}
}

func VersionConflict(entity string) *AppError {
	return &AppError{
		Code:       "RES_002",
		Message:    "Entity was modified concurrently",
		HTTPStatus: http.StatusConflict,
		EntityName: entity,
		ErrorKey:   "versionmismatch",
	}
}

// IdempotencyInFlight rejects a create whose Idempotency-Key is held by a
// request that has not finished yet.
func IdempotencyInFlight() *AppError {
	return &AppError{
		Code:       "RES_004",
		Message:    "A request with this Idempotency-Key is still in progress",
		HTTPStatus: http.StatusConflict,
		ErrorKey:   "idempotencyinflight",
	}
}

func UnsupportedMediaType(contentType string) *AppError {
	return New("RES_003", fmt.Sprintf("Content type %q is not supported", contentType), http.StatusUnsupportedMediaType)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrStoreFailure(err error) *AppError {
	return Wrap("SYS_002", "Document store failure", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}
