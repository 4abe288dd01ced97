// Package respond writes handler results and errors in the API's JSON shape.
package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/liliang-cn/fixdoc/internal/domain"
)

// KindRateLimited is reported when a caller exceeds its request budget
const KindRateLimited = "rate_limited"

// KindUnauthorized is reported for a missing or unknown API key
const KindUnauthorized = "unauthorized"

// Body is the error envelope returned by every endpoint
type Body struct {
	Error Detail `json:"error"`
}

// Detail carries the stable error kind and a human readable message
type Detail struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

// Status maps an error kind to its HTTP status code
func Status(kind string) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindExtraction:
		return http.StatusUnprocessableEntity
	case domain.KindDependency:
		return http.StatusBadGateway
	case domain.KindTimeout:
		return http.StatusGatewayTimeout
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Error aborts the request with the error's kind and status. Server-side
// failures are attached to the context for the request logger and only a
// fixed detail is echoed back.
func Error(c *gin.Context, err error) {
	kind := domain.KindOf(err)
	status := Status(kind)
	detail := err.Error()
	switch {
	case kind == domain.KindDependency:
		detail = "upstream service failed"
	case kind == domain.KindTimeout:
		detail = "upstream service timed out"
	case status >= http.StatusInternalServerError:
		detail = "internal server error"
	}
	c.Error(err)
	Abort(c, status, kind, detail)
}

// Abort writes an error envelope without a Go error value
func Abort(c *gin.Context, status int, kind, detail string) {
	c.AbortWithStatusJSON(status, Body{Error: Detail{Kind: kind, Detail: detail}})
}

// BindError reports a request binding failure as a validation error
func BindError(c *gin.Context, err error) {
	Error(c, domain.Errorf(domain.ErrValidation, "%s", err.Error()))
}
