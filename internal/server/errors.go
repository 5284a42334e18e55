package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/brainspark/engine/internal/auth"
	"github.com/brainspark/engine/internal/grading"
	"github.com/brainspark/engine/internal/ratelimit"
)

// statusFor maps engine errors to HTTP status codes. The grading code
// taxonomy is closed, so the mapping is total.
func statusFor(err error) int {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrPermission):
		return http.StatusForbidden
	case errors.Is(err, ratelimit.ErrExhausted):
		return http.StatusTooManyRequests
	}

	var ge *grading.Error
	if errors.As(err, &ge) {
		switch ge.Code {
		case grading.CodeInvalidArgument:
			return http.StatusBadRequest
		case grading.CodeNotFound:
			return http.StatusNotFound
		case grading.CodeTimeout:
			return http.StatusGatewayTimeout
		case grading.CodeUpstreamFailure:
			return http.StatusBadGateway
		case grading.CodeContentRejected:
			return http.StatusUnprocessableEntity
		}
	}
	return http.StatusInternalServerError
}

// codeFor returns the stable machine-readable error code for a response
// body.
func codeFor(err error) string {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, auth.ErrPermission):
		return "permission_denied"
	case errors.Is(err, ratelimit.ErrExhausted):
		return "rate_limited"
	}
	var ge *grading.Error
	if errors.As(err, &ge) {
		return string(ge.Code)
	}
	return string(grading.CodeInternal)
}

// abortError writes the uniform error envelope and stops the chain.
func abortError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(statusFor(err), gin.H{
		"error": gin.H{"code": codeFor(err), "message": publicMessage(err)},
	})
}

// publicMessage strips wrapped internal detail from 5xx-class errors so
// backend specifics never leak to clients.
func publicMessage(err error) string {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		switch status {
		case http.StatusGatewayTimeout:
			return "grading exceeded its latency budget"
		case http.StatusBadGateway:
			return "grading backend unavailable"
		default:
			return "internal error"
		}
	}
	return err.Error()
}
