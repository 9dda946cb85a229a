package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/groupledger/internal/errs"
	"github.com/smallbiznis/groupledger/internal/observability/logger"
	"go.uber.org/zap"
)

var (
	ErrInvalidRequest = errs.Validation("invalid_request", "request body is malformed")
	ErrMissingTenant  = errs.Validation("missing_tenant", "X-Tenant-ID header is required")
	ErrInvalidTenant  = errs.Validation("invalid_tenant", "X-Tenant-ID must be a numeric id")
	ErrNotFound       = errs.NotFound("not_found", "resource not found")
	errRateLimited    = &errs.Error{Kind: kindRateLimited, Code: "rate_limited", Message: "too many requests"}
)

const kindRateLimited errs.Kind = "rate_limited"

type errorBody struct {
	Code     string         `json:"code"`
	Message  string         `json:"message"`
	Fields   map[string]any `json:"fields,omitempty"`
	Problems []string       `json:"problems,omitempty"`
}

// AbortWithError renders err and stops the handler chain. Errors outside the
// domain taxonomy become a 500 without leaking their text.
func AbortWithError(c *gin.Context, err error) {
	_ = c.Error(err)

	var classified *errs.Error
	if !errors.As(err, &classified) {
		logger.FromContext(c.Request.Context()).Error("unhandled request error", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": errorBody{
			Code:    "internal_error",
			Message: "internal server error",
		}})
		return
	}

	status := statusForKind(classified.Kind)
	if status >= http.StatusInternalServerError {
		logger.FromContext(c.Request.Context()).Error("request failed", zap.Error(err))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": errorBody{
		Code:     classified.Code,
		Message:  classified.Message,
		Fields:   classified.Fields,
		Problems: classified.Problems,
	}})
}

func statusForKind(kind errs.Kind) int {
	switch kind {
	case errs.KindValidation:
		return http.StatusBadRequest
	case errs.KindConflict, errs.KindInvalidState:
		return http.StatusConflict
	case errs.KindIntegrity:
		return http.StatusUnprocessableEntity
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindConfiguration:
		return http.StatusInternalServerError
	case kindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func invalidRequestError() error {
	return ErrInvalidRequest
}

func invalidParam(name string) error {
	return errs.Validation("invalid_"+name, name+" is invalid").WithField("param", name)
}
