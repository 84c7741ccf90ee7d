package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"wonderclimb/internal/config"
	"wonderclimb/internal/database"
	"wonderclimb/internal/middleware"
	"wonderclimb/internal/modules/auth"
	jwtsvc "wonderclimb/internal/pkg/jwt"
	"wonderclimb/internal/pkg/logger"
	"wonderclimb/internal/pkg/mailer"
	"wonderclimb/internal/pkg/oauth"
	"wonderclimb/internal/pkg/password"
	"wonderclimb/internal/pkg/validator"
	"wonderclimb/internal/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	lg, err := logger.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, lg); err != nil {
		lg.Fatal("api stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, lg *zap.Logger) error {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := validator.RegisterGinValidators(); err != nil {
		return err
	}

	db := database.NewHandle(cfg.DatabaseURL, lg)
	defer func() { _ = db.Close() }()

	gdb, err := db.Acquire(ctx)
	if err != nil {
		return err
	}
	if err := database.Migrate(gdb); err != nil {
		return err
	}

	m, err := mailer.New(mailer.Options{
		Provider: cfg.MailProvider,
		SMTP: mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.EmailFrom,
			FromName: cfg.EmailFromName,
		},
		AMQPURL: cfg.RabbitMQURL,
		Queue:   cfg.EmailQueue,
	}, lg)
	if err != nil {
		return err
	}
	if q, ok := m.(*mailer.QueueMailer); ok {
		defer func() { _ = q.Close() }()
	}

	var states auth.StateStore = auth.CookieStateStore{}
	if rdb := database.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, lg); rdb != nil {
		defer func() { _ = rdb.Close() }()
		states = auth.NewRedisStateStore(rdb)
		lg.Info("oauth state stored in redis", zap.String("addr", cfg.RedisAddr))
	}

	jwt := jwtsvc.New(cfg.JWTSecret, cfg.JWTAccessTTL)

	authService := auth.NewService(auth.Deps{
		Users:            repository.NewUserRepository(db),
		RefreshTokens:    repository.NewRefreshTokenRepository(db),
		ActivationTokens: repository.NewActivationTokenRepository(db),
		Hasher:           password.NewHasher(bcrypt.DefaultCost),
		Signer:           jwt,
		Mailer:           m,
		Provider: oauth.NewGoogleProvider(oauth.GoogleConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURI,
		}),
		States: states,
	}, auth.Options{
		RefreshTTL:             cfg.RefreshTTL,
		RefreshTokenPepper:     cfg.RefreshTokenPepper,
		RevokeFamilyOnReuse:    cfg.RefreshReuseRevokeFamily,
		ActivationEmailEnabled: cfg.ActivationEmailEnabled,
		ActivationTTL:          cfg.ActivationTTL,
		ActivationEmail: auth.ActivationEmail{
			AppName:     cfg.AppName,
			FrontendURL: cfg.FrontendURL,
			Subject:     cfg.ActivationEmailSubject,
			Template:    cfg.ActivationEmailTemplate,
		},
		Development: !cfg.IsProduction(),
	}, lg)
	authHandler := auth.NewHandler(authService, auth.CookieConfig{
		Secure:   cfg.CookieSecure,
		SameSite: cfg.CookieSameSite,
		Path:     cfg.CookiePath,
	}, cfg.FrontendURL, !cfg.IsProduction(), lg)

	r := gin.New()
	r.Use(middleware.ErrorLogger(lg, !cfg.IsProduction()))
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	{
		authHandler.RegisterPublicRoutes(v1)

		protected := v1.Group("")
		protected.Use(middleware.JWTAuth(jwt))
		{
			authHandler.RegisterProtectedRoutes(protected)
		}
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		lg.Info("api listening",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("env", cfg.AppEnv),
			zap.Bool("activation_email", cfg.ActivationEmailEnabled),
			zap.Bool("google", cfg.GoogleEnabled()),
			zap.String("mail_provider", cfg.MailProvider),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	lg.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
