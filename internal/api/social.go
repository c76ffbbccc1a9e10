package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/echogram/internal/apperr"
	"github.com/lalith-99/echogram/internal/auth"
	"github.com/lalith-99/echogram/internal/models"
	"github.com/lalith-99/echogram/internal/repository"
	"github.com/lalith-99/echogram/internal/social"
	"go.uber.org/zap"
)

const stateCookie = "echogram_oauth_state"

// IdentityProvider is an OAuth2 login such as social.KakaoClient.
type IdentityProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*social.Profile, error)
}

// SocialHandler signs members in through Kakao, creating an account on
// first login.
type SocialHandler struct {
	kakao     IdentityProvider
	members   repository.MemberRepository
	jwtSecret string
	tokenTTL  time.Duration
	logger    *zap.Logger
}

func NewSocialHandler(kakao IdentityProvider, members repository.MemberRepository, jwtSecret string, tokenTTL time.Duration, logger *zap.Logger) *SocialHandler {
	return &SocialHandler{
		kakao:     kakao,
		members:   members,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
		logger:    logger,
	}
}

// KakaoLogin handles GET /v1/members/social/kakao/login
func (h *SocialHandler) KakaoLogin(c *gin.Context) {
	state := uuid.NewString()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookie, state, int((10 * time.Minute).Seconds()), "/", "", false, true)
	c.Redirect(http.StatusTemporaryRedirect, h.kakao.AuthCodeURL(state))
}

// KakaoCallback handles GET /v1/members/social/kakao/callback?code=&state=
func (h *SocialHandler) KakaoCallback(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		respondError(c, h.logger, "kakao login", apperr.New(apperr.KindInvalid, "code is required"))
		return
	}
	expected, err := c.Cookie(stateCookie)
	if err != nil || expected == "" || expected != c.Query("state") {
		respondError(c, h.logger, "kakao login", apperr.New(apperr.KindInvalid, "state mismatch"))
		return
	}
	c.SetCookie(stateCookie, "", -1, "/", "", false, true)

	profile, err := h.kakao.Exchange(c.Request.Context(), code)
	if err != nil {
		h.logger.Warn("kakao exchange failed", zap.Error(err))
		detail := "kakao login failed"
		if errors.Is(err, social.ErrNoEmail) {
			detail = "kakao account must share an email"
		}
		respondError(c, h.logger, "kakao login", apperr.Wrap(apperr.KindInvalid, detail, err))
		return
	}

	member, err := h.members.GetBySocialEmail(c.Request.Context(), models.SocialProviderKakao, profile.Email)
	if err != nil {
		respondError(c, h.logger, "kakao login", err)
		return
	}
	if member == nil {
		member, err = h.socialSignup(c.Request.Context(), profile)
		if err != nil {
			respondError(c, h.logger, "kakao signup", err)
			return
		}
		h.logger.Info("social member created", zap.Int64("member_id", member.ID))
	}

	token, err := auth.GenerateToken(member.ID, h.jwtSecret, h.tokenTTL)
	if err != nil {
		respondError(c, h.logger, "kakao login", err)
		return
	}
	c.JSON(http.StatusOK, tokenResponse{AccessToken: token})
}

func (h *SocialHandler) socialSignup(ctx context.Context, profile *social.Profile) (*models.Member, error) {
	hash, err := auth.UnusablePasswordHash()
	if err != nil {
		return nil, err
	}

	provider := models.SocialProviderKakao
	email := profile.Email
	subject := profile.Subject
	return h.members.Create(ctx, &models.Member{
		Username:       randomUsername(),
		PasswordHash:   hash,
		Email:          &email,
		SocialProvider: &provider,
		SocialSubject:  &subject,
	})
}

// randomUsername fits the 16 character username column.
func randomUsername() string {
	return "k_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14]
}
