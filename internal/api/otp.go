package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/echogram/internal/middleware"
	"github.com/lalith-99/echogram/internal/models"
	"go.uber.org/zap"
)

// OTPService is the email verification flow behind the handler.
type OTPService interface {
	Issue(ctx context.Context, memberID int64, email string) (int, error)
	Verify(ctx context.Context, memberID int64, code int) (*models.Member, error)
}

// LimitResetter clears a member's attempt window.
type LimitResetter interface {
	Reset(ctx context.Context, key string) error
}

// Rate limit scopes for the OTP routes. The verify window is cleared after
// a successful verification.
const (
	ScopeOTPIssue  = "otp:issue"
	ScopeOTPVerify = "otp:verify"
)

type OTPHandler struct {
	svc     OTPService
	limiter LimitResetter
	logger  *zap.Logger
}

func NewOTPHandler(svc OTPService, limiter LimitResetter, logger *zap.Logger) *OTPHandler {
	return &OTPHandler{svc: svc, limiter: limiter, logger: logger}
}

type issueOTPRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type verifyOTPRequest struct {
	OTP int `json:"otp" binding:"required,gte=100000,lte=999999"`
}

// Issue handles POST /v1/members/email/otp
//
// The code goes out by email only; the response never carries it.
func (h *OTPHandler) Issue(c *gin.Context) {
	var req issueOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, err)
		return
	}

	memberID := middleware.GetUserID(c)
	if _, err := h.svc.Issue(c.Request.Context(), memberID, req.Email); err != nil {
		respondError(c, h.logger, "issue otp", err)
		return
	}

	h.logger.Info("otp issued", zap.Int64("member_id", memberID))
	c.JSON(http.StatusOK, gin.H{"detail": "Success"})
}

// Verify handles POST /v1/members/email/otp/verify
func (h *OTPHandler) Verify(c *gin.Context) {
	var req verifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, err)
		return
	}

	memberID := middleware.GetUserID(c)
	member, err := h.svc.Verify(c.Request.Context(), memberID, req.OTP)
	if err != nil {
		respondError(c, h.logger, "verify otp", err)
		return
	}

	if h.limiter != nil {
		key := ScopeOTPVerify + ":" + strconv.FormatInt(memberID, 10)
		if err := h.limiter.Reset(c.Request.Context(), key); err != nil {
			h.logger.Warn("reset otp verify window", zap.Int64("member_id", memberID), zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, member)
}
