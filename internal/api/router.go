package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/echogram/internal/middleware"
	"go.uber.org/zap"
)

// RouterConfig carries the settings routes need beyond the handlers.
type RouterConfig struct {
	JWTSecret string

	// Limiter guards the OTP routes; nil disables the guard.
	Limiter        middleware.Allower
	OTPIssueLimit  int
	OTPVerifyLimit int
	OTPLimitWindow time.Duration
}

type Handlers struct {
	Health  *HealthHandler
	Member  *MemberHandler
	OTP     *OTPHandler
	Social  *SocialHandler
	Post    *PostHandler
	Comment *CommentHandler
	Like    *LikeHandler
	Chat    *ChatHandler
}

// NewRouter builds the gin engine with every route mounted.
func NewRouter(cfg RouterConfig, h Handlers, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.RequestLogger(logger), gin.Recovery())

	r.GET("/", h.Health.Ping)
	r.GET("/now", h.Health.Now)

	v1 := r.Group("/v1")
	v1.GET("/health", h.Health.Health)

	requireAuth := middleware.AuthMiddleware(cfg.JWTSecret, false)

	members := v1.Group("/members")
	members.POST("", h.Member.Signup)
	members.POST("/login", h.Member.Login)
	members.GET("/social/kakao/login", h.Social.KakaoLogin)
	members.GET("/social/kakao/callback", h.Social.KakaoCallback)
	members.GET("/:username", h.Member.GetByUsername)

	me := members.Group("", requireAuth)
	me.GET("/me", h.Member.GetMe)
	me.PATCH("/me", h.Member.UpdatePassword)
	me.DELETE("/me", h.Member.DeleteMe)
	me.POST("/email/otp", otpGuard(cfg, ScopeOTPIssue, cfg.OTPIssueLimit, logger), h.OTP.Issue)
	me.POST("/email/otp/verify", otpGuard(cfg, ScopeOTPVerify, cfg.OTPVerifyLimit, logger), h.OTP.Verify)

	posts := v1.Group("/posts", requireAuth)
	posts.POST("", h.Post.Create)
	posts.GET("", h.Post.List)
	posts.GET("/:post_id", h.Post.Get)
	posts.PATCH("/:post_id", h.Post.Update)
	posts.DELETE("/:post_id", h.Post.Delete)
	posts.POST("/:post_id/comments", h.Comment.Create)
	posts.DELETE("/:post_id/comments/:comment_id", h.Comment.Delete)
	posts.POST("/:post_id/likes", h.Like.Create)
	posts.DELETE("/:post_id/likes", h.Like.Delete)

	rooms := v1.Group("/chat/rooms")
	rooms.POST("", requireAuth, h.Chat.CreateRoom)
	rooms.GET("", requireAuth, h.Chat.ListRooms)
	rooms.GET("/:room_id/messages", requireAuth, h.Chat.History)
	// Browsers cannot set headers on the handshake.
	rooms.GET("/:room_id/ws", middleware.AuthMiddleware(cfg.JWTSecret, true), h.Chat.Connect)

	return r
}

func otpGuard(cfg RouterConfig, scope string, limit int, logger *zap.Logger) gin.HandlerFunc {
	if cfg.Limiter == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return middleware.PerMemberLimit(cfg.Limiter, scope, limit, cfg.OTPLimitWindow, logger)
}
