package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gin-gonic/gin"
	"github.com/lalith-99/echogram/internal/api"
	"github.com/lalith-99/echogram/internal/chat"
	"github.com/lalith-99/echogram/internal/config"
	"github.com/lalith-99/echogram/internal/db"
	"github.com/lalith-99/echogram/internal/mail"
	"github.com/lalith-99/echogram/internal/observ"
	"github.com/lalith-99/echogram/internal/otp"
	"github.com/lalith-99/echogram/internal/ratelimit"
	"github.com/lalith-99/echogram/internal/repository"
	"github.com/lalith-99/echogram/internal/repository/postgres"
	redisstore "github.com/lalith-99/echogram/internal/repository/redis"
	"github.com/lalith-99/echogram/internal/social"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// ---------------------------------------------------------------
	// 1. Load config
	// ---------------------------------------------------------------
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// ---------------------------------------------------------------
	// 2. Create logger
	// ---------------------------------------------------------------
	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// ---------------------------------------------------------------
	// 3. Connect to Postgres and Redis
	// ---------------------------------------------------------------
	database, err := db.New(context.Background(), cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()

	rdb, err := db.NewRedis(context.Background(), cfg.RedisURL, logger)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer rdb.Close()

	// ---------------------------------------------------------------
	// 4. Create repositories
	//
	// Assigned to the interface types so a store missing a method fails
	// to compile here.
	// ---------------------------------------------------------------
	pool := database.Pool()
	var (
		memberRepo  repository.MemberRepository      = postgres.NewMemberStore(pool)
		postRepo    repository.PostRepository        = postgres.NewPostStore(pool)
		commentRepo repository.CommentRepository     = postgres.NewCommentStore(pool)
		likeRepo    repository.LikeRepository        = postgres.NewLikeStore(pool)
		roomRepo    repository.ChatRoomRepository    = postgres.NewChatRoomStore(pool)
		messageRepo repository.ChatMessageRepository = postgres.NewChatMessageStore(pool)
	)

	// ---------------------------------------------------------------
	// 5. Services: mail, OTP, chat hub
	// ---------------------------------------------------------------
	var mailer mail.Mailer = mail.NewLogMailer(logger)
	if cfg.SMTPHost != "" {
		mailer = mail.NewSMTPMailer(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		})
	} else {
		logger.Warn("SMTP_HOST not set, mail will only be logged")
	}

	dispatcher := mail.NewDispatcher(mail.DispatcherConfig{
		Workers:   cfg.MailWorkers,
		QueueSize: cfg.MailQueueSize,
	}, mailer, logger)
	if err := dispatcher.Start(context.Background()); err != nil {
		return fmt.Errorf("start mail dispatcher: %w", err)
	}

	otpService := otp.NewService(memberRepo, redisstore.NewOTPStore(rdb), dispatcher, cfg.OTPTTL, logger)
	limiter := ratelimit.NewLimiter(rdb, "ratelimit:")
	hub := chat.NewHub(messageRepo, logger)
	kakao := social.NewKakaoClient(cfg.KakaoRestAPIKey, cfg.KakaoClientSecret, cfg.KakaoRedirectURL)

	// ---------------------------------------------------------------
	// 6. HTTP
	// ---------------------------------------------------------------
	router := api.NewRouter(api.RouterConfig{
		JWTSecret:      cfg.JWTSecret,
		Limiter:        limiter,
		OTPIssueLimit:  cfg.OTPIssueLimit,
		OTPVerifyLimit: cfg.OTPVerifyLimit,
		OTPLimitWindow: cfg.OTPLimitWindow,
	}, api.Handlers{
		Health: api.NewHealthHandler(map[string]api.HealthCheck{
			"postgres": database.Health,
			"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		}, hub, logger),
		Member:  api.NewMemberHandler(memberRepo, cfg.JWTSecret, cfg.TokenTTL, logger),
		OTP:     api.NewOTPHandler(otpService, limiter, logger),
		Social:  api.NewSocialHandler(kakao, memberRepo, cfg.JWTSecret, cfg.TokenTTL, logger),
		Post:    api.NewPostHandler(postRepo, commentRepo, likeRepo, cfg.StaticBaseURL, logger),
		Comment: api.NewCommentHandler(postRepo, commentRepo, logger),
		Like:    api.NewLikeHandler(postRepo, likeRepo, logger),
		Chat:    api.NewChatHandler(roomRepo, messageRepo, hub, logger),
	}, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting echogram",
			zap.String("port", cfg.Port),
			zap.String("env", cfg.Env),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// ---------------------------------------------------------------
	// 7. Graceful shutdown
	//
	// Hijacked websockets are invisible to srv.Shutdown, so the hub closes
	// them itself. Mail still queued gets the rest of the timeout.
	// Postgres and Redis close through the defers above once wait fires.
	// ---------------------------------------------------------------
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"http": func(ctx context.Context) error {
				err := srv.Shutdown(ctx)
				hub.Shutdown()
				return err
			},
			"mail": func(ctx context.Context) error {
				return dispatcher.Stop(ctx)
			},
		},
	)

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	case code := <-wait:
		logger.Info("echogram stopped", zap.Int("exit_code", code))
		if code != 0 {
			return fmt.Errorf("shutdown finished with code %d", code)
		}
	}
	return nil
}
