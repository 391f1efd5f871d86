package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/RubyEDE/ls-demo-be-sub000/internal/types"
)

// Response represents a standardized API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error represents an error response
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes
const (
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeBadRequest          = "BAD_REQUEST"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeForbidden           = "FORBIDDEN"
	ErrCodeInternalError       = "INTERNAL_ERROR"
	ErrCodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	ErrCodeMarketInactive      = "MARKET_INACTIVE"
	ErrCodePostOnlyWouldMatch  = "POST_ONLY_WOULD_MATCH"
	ErrCodeNotCancellable      = "NOT_CANCELLABLE"
	ErrCodeNoPrice             = "NO_PRICE_AVAILABLE"
	ErrCodeValidationFailed    = "VALIDATION_FAILED"
	ErrCodeDuplicateResource   = "DUPLICATE_RESOURCE"
)

// Handle maps a service result to the appropriate response. Business-rule
// failures from the core are expected and map to 4xx codes; anything
// unrecognized is a 500.
func Handle(c *gin.Context, data interface{}, err error) {
	if err == nil {
		Success(c, data)
		return
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound),
		errors.Is(err, types.ErrOrderNotFound),
		errors.Is(err, types.ErrMarketNotFound):
		NotFound(c, err.Error())
	case errors.Is(err, types.ErrNotOwner):
		Forbidden(c, err.Error())
	case errors.Is(err, types.ErrInsufficientBalance):
		errorWithCode(c, http.StatusBadRequest, ErrCodeInsufficientBalance, err.Error())
	case errors.Is(err, types.ErrMarketInactive):
		errorWithCode(c, http.StatusBadRequest, ErrCodeMarketInactive, err.Error())
	case errors.Is(err, types.ErrPostOnlyWouldMatch):
		errorWithCode(c, http.StatusBadRequest, ErrCodePostOnlyWouldMatch, err.Error())
	case errors.Is(err, types.ErrNotCancellable):
		errorWithCode(c, http.StatusConflict, ErrCodeNotCancellable, err.Error())
	case errors.Is(err, types.ErrNoPriceAvailable):
		errorWithCode(c, http.StatusBadRequest, ErrCodeNoPrice, err.Error())
	case errors.Is(err, types.ErrInvalidAmount),
		errors.Is(err, types.ErrInvalidQuantity),
		errors.Is(err, types.ErrInvalidPrice),
		errors.Is(err, types.ErrInvalidLeverage):
		errorWithCode(c, http.StatusBadRequest, ErrCodeValidationFailed, err.Error())
	case errors.Is(err, gorm.ErrDuplicatedKey):
		Conflict(c, "Resource already exists")
	default:
		InternalError(c, "An unexpected error occurred")
	}
}

// Success sends a successful response
func Success(c *gin.Context, data interface{}) {
	status := http.StatusOK
	if c.Request.Method == "POST" {
		status = http.StatusCreated
	}

	c.JSON(status, Response{
		Success: true,
		Data:    data,
	})
}

// NotFound sends a 404 response
func NotFound(c *gin.Context, message string) {
	errorWithCode(c, http.StatusNotFound, ErrCodeNotFound, message)
}

// BadRequest sends a 400 response
func BadRequest(c *gin.Context, message string) {
	errorWithCode(c, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// Unauthorized sends a 401 response
func Unauthorized(c *gin.Context, message string) {
	errorWithCode(c, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// Forbidden sends a 403 response
func Forbidden(c *gin.Context, message string) {
	errorWithCode(c, http.StatusForbidden, ErrCodeForbidden, message)
}

// InternalError sends a 500 response
func InternalError(c *gin.Context, message string) {
	errorWithCode(c, http.StatusInternalServerError, ErrCodeInternalError, message)
}

// Conflict sends a 409 response
func Conflict(c *gin.Context, message string) {
	errorWithCode(c, http.StatusConflict, ErrCodeDuplicateResource, message)
}

func errorWithCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, Response{
		Success: false,
		Error: &Error{
			Code:    code,
			Message: message,
		},
	})
}
