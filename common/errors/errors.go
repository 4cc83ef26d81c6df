package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Kind is the stable reason code of a business rejection.
type Kind string

const (
	KindInvalidInput          Kind = "invalid_input"
	KindNotFound              Kind = "not_found"
	KindInactive              Kind = "inactive"
	KindTargetMismatch        Kind = "target_mismatch"
	KindUserLimitExceeded     Kind = "user_limit_exceeded"
	KindUsageLimitExceeded    Kind = "usage_limit_exceeded"
	KindBelowMinimum          Kind = "below_minimum"
	KindInvalidAmount         Kind = "invalid_amount"
	KindInsufficientAvailable Kind = "insufficient_available"
	KindExcessRelease         Kind = "excess_release"
	KindNegativeStock         Kind = "negative_stock"
	KindInvalidMode           Kind = "invalid_mode"
	KindUnknownMovementType   Kind = "unknown_movement_type"
	KindEmptyCart             Kind = "empty_cart"
	KindProductUnavailable    Kind = "product_unavailable"
	KindInvalidTransition     Kind = "invalid_transition"
	KindUnauthorized          Kind = "unauthorized"
	KindForbidden             Kind = "forbidden"
	KindConflict              Kind = "conflict"
	KindRateLimited           Kind = "rate_limited"
	KindInternal              Kind = "internal"
)

// Error represents an application error
type Error struct {
	Code    int    `json:"code"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// JSON returns the error as a JSON string
func (e *Error) JSON() string {
	b, _ := json.Marshal(e)
	return string(b)
}

// New creates a new Error
func New(code int, kind Kind, message string, err error) *Error {
	return &Error{
		Code:    code,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Newf creates an Error of the given kind with the status code registered for it.
func Newf(kind Kind, format string, args ...any) *Error {
	return New(StatusFor(kind), kind, fmt.Sprintf(format, args...), nil)
}

var statusByKind = map[Kind]int{
	KindInvalidInput:          http.StatusBadRequest,
	KindNotFound:              http.StatusNotFound,
	KindInactive:              http.StatusUnprocessableEntity,
	KindTargetMismatch:        http.StatusUnprocessableEntity,
	KindUserLimitExceeded:     http.StatusUnprocessableEntity,
	KindUsageLimitExceeded:    http.StatusUnprocessableEntity,
	KindBelowMinimum:          http.StatusUnprocessableEntity,
	KindInvalidAmount:         http.StatusUnprocessableEntity,
	KindInsufficientAvailable: http.StatusConflict,
	KindExcessRelease:         http.StatusConflict,
	KindNegativeStock:         http.StatusConflict,
	KindInvalidMode:           http.StatusBadRequest,
	KindUnknownMovementType:   http.StatusBadRequest,
	KindEmptyCart:             http.StatusBadRequest,
	KindProductUnavailable:    http.StatusUnprocessableEntity,
	KindInvalidTransition:     http.StatusConflict,
	KindUnauthorized:          http.StatusUnauthorized,
	KindForbidden:             http.StatusForbidden,
	KindConflict:              http.StatusConflict,
	KindRateLimited:           http.StatusTooManyRequests,
	KindInternal:              http.StatusInternalServerError,
}

// StatusFor returns the HTTP status used for kind.
func StatusFor(kind Kind) int {
	if code, ok := statusByKind[kind]; ok {
		return code
	}
	return http.StatusInternalServerError
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsBusiness reports whether err is an expected rule rejection rather than an infrastructure fault.
func IsBusiness(err error) bool {
	var appErr *Error
	return stderrors.As(err, &appErr) && appErr.Kind != KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Shorthand constructors.
func InvalidInput(format string, args ...any) *Error { return Newf(KindInvalidInput, format, args...) }
func NotFound(format string, args ...any) *Error { return Newf(KindNotFound, format, args...) }
func Forbidden(format string, args ...any) *Error { return Newf(KindForbidden, format, args...) }
func Conflict(format string, args ...any) *Error { return Newf(KindConflict, format, args...) }

// Common error types
var (
	ErrUnauthorized = New(http.StatusUnauthorized, KindUnauthorized, "Unauthorized", nil)
	ErrForbidden    = New(http.StatusForbidden, KindForbidden, "Forbidden", nil)
	ErrRateLimited  = New(http.StatusTooManyRequests, KindRateLimited, "Rate limit exceeded", nil)
)

// ErrorMiddleware renders the last error attached with c.Error. Errors that are not
// *Error are logged and answered with a generic 500.
func ErrorMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		var appErr *Error
		if !stderrors.As(err, &appErr) || appErr.Kind == KindInternal {
			logger.Error("request failed",
				zap.String("path", c.Request.URL.Path),
				zap.String("request_id", c.GetString("request_id")),
				zap.Error(err),
			)
			appErr = New(http.StatusInternalServerError, KindInternal, "Internal server error", nil)
		}
		c.AbortWithStatusJSON(appErr.Code, appErr)
	}
}
