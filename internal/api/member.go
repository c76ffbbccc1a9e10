package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/echogram/internal/apperr"
	"github.com/lalith-99/echogram/internal/auth"
	"github.com/lalith-99/echogram/internal/middleware"
	"github.com/lalith-99/echogram/internal/models"
	"github.com/lalith-99/echogram/internal/repository"
	"go.uber.org/zap"
)

// MemberHandler handles signup, login and the member's own account.
type MemberHandler struct {
	repo      repository.MemberRepository
	jwtSecret string
	tokenTTL  time.Duration
	logger    *zap.Logger
}

func NewMemberHandler(repo repository.MemberRepository, jwtSecret string, tokenTTL time.Duration, logger *zap.Logger) *MemberHandler {
	return &MemberHandler{repo: repo, jwtSecret: jwtSecret, tokenTTL: tokenTTL, logger: logger}
}

type signupRequest struct {
	Username string `json:"username" binding:"required,max=10"`
	Password string `json:"password" binding:"required"`
}

type updatePasswordRequest struct {
	NewPassword string `json:"new_password" binding:"required"`
}

// tokenResponse is what login returns. The client sends it back as
// "Authorization: Bearer <token>".
type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

type usernameResponse struct {
	Username string `json:"username"`
}

// Signup handles POST /v1/members
func (h *MemberHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(c, h.logger, "signup", err)
		return
	}

	member, err := h.repo.Create(c.Request.Context(), &models.Member{
		Username:     req.Username,
		PasswordHash: hash,
	})
	if err != nil {
		respondError(c, h.logger, "signup", err)
		return
	}

	c.JSON(http.StatusCreated, member)
}

// Login handles POST /v1/members/login with HTTP Basic credentials.
//
// Unknown usernames are a 404 and wrong passwords a 401, as the mobile
// client tells the two apart.
func (h *MemberHandler) Login(c *gin.Context) {
	username, password, ok := c.Request.BasicAuth()
	if !ok {
		c.Header("WWW-Authenticate", `Basic realm="echogram"`)
		respondError(c, h.logger, "login", apperr.New(apperr.KindUnauthorized, "basic credentials required"))
		return
	}

	member, err := h.repo.GetByUsername(c.Request.Context(), username)
	if err != nil {
		respondError(c, h.logger, "login", err)
		return
	}
	if member == nil {
		respondError(c, h.logger, "login", apperr.New(apperr.KindNotFound, "User not found"))
		return
	}
	if !auth.CheckPassword(password, member.PasswordHash) {
		respondError(c, h.logger, "login", apperr.New(apperr.KindUnauthorized, "Unauthorized"))
		return
	}

	token, err := auth.GenerateToken(member.ID, h.jwtSecret, h.tokenTTL)
	if err != nil {
		respondError(c, h.logger, "login", err)
		return
	}

	c.JSON(http.StatusOK, tokenResponse{AccessToken: token})
}

// me loads the authenticated member, answering 404 itself when the token
// outlived the account.
func (h *MemberHandler) me(c *gin.Context, op string) (*models.Member, bool) {
	member, err := h.repo.GetByID(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, op, err)
		return nil, false
	}
	if member == nil {
		respondError(c, h.logger, op, apperr.New(apperr.KindNotFound, "User not found"))
		return nil, false
	}
	return member, true
}

// GetMe handles GET /v1/members/me
func (h *MemberHandler) GetMe(c *gin.Context) {
	member, ok := h.me(c, "get member")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, member)
}

// UpdatePassword handles PATCH /v1/members/me
func (h *MemberHandler) UpdatePassword(c *gin.Context) {
	var req updatePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, err)
		return
	}

	member, ok := h.me(c, "update password")
	if !ok {
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		respondError(c, h.logger, "update password", err)
		return
	}
	if err := h.repo.UpdatePassword(c.Request.Context(), member.ID, hash); err != nil {
		respondError(c, h.logger, "update password", err)
		return
	}

	member.PasswordHash = hash
	c.JSON(http.StatusOK, member)
}

// DeleteMe handles DELETE /v1/members/me
func (h *MemberHandler) DeleteMe(c *gin.Context) {
	member, ok := h.me(c, "delete member")
	if !ok {
		return
	}
	if err := h.repo.Delete(c.Request.Context(), member.ID); err != nil {
		respondError(c, h.logger, "delete member", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetByUsername handles GET /v1/members/:username
func (h *MemberHandler) GetByUsername(c *gin.Context) {
	member, err := h.repo.GetByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		respondError(c, h.logger, "get member", err)
		return
	}
	if member == nil {
		respondError(c, h.logger, "get member", apperr.New(apperr.KindNotFound, "User not found"))
		return
	}
	c.JSON(http.StatusOK, usernameResponse{Username: member.Username})
}
