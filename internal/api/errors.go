package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/lalith-99/echogram/internal/apperr"
	"go.uber.org/zap"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error  apperr.Kind `json:"error"`
	Detail string      `json:"detail"`
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindRecordMissing, apperr.KindMismatch, apperr.KindIntegrityViolation, apperr.KindInvalid:
		return http.StatusBadRequest
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as an errorResponse. Unclassified errors become a
// 500 with a generic detail and are logged with op; classified ones carry
// their own detail.
func respondError(c *gin.Context, logger *zap.Logger, op string, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		logger.Error(op+" failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{
			Error:  apperr.KindInternal,
			Detail: op + " failed",
		})
		return
	}

	status := statusFor(appErr.Kind)
	if status == http.StatusInternalServerError {
		logger.Error(op+" failed", zap.Error(err))
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: appErr.Kind, Detail: appErr.Detail})
}

// respondInvalid reports a binding failure, surfacing only the first
// violated field.
func respondInvalid(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{
		Error:  apperr.KindInvalid,
		Detail: firstViolation(err),
	})
}

func firstViolation(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			return field + " is required"
		case "email":
			return field + " must be a valid email address"
		case "min", "max":
			return fmt.Sprintf("%s must satisfy %s=%s", field, fe.Tag(), fe.Param())
		case "gte", "lte":
			return fmt.Sprintf("%s must be %s %s", field, comparison(fe.Tag()), fe.Param())
		default:
			return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
		}
	}
	return "malformed request body"
}

func comparison(tag string) string {
	if tag == "gte" {
		return ">="
	}
	return "<="
}

// idParam parses a positive integer path parameter.
func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{
			Error:  apperr.KindInvalid,
			Detail: "invalid " + name,
		})
		return 0, false
	}
	return id, true
}
