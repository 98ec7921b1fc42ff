package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"authgate/internal/auth"
	"authgate/internal/config"
	apphttp "authgate/internal/http"
	"authgate/internal/mail"
	"authgate/internal/repository/sqlite"
	"authgate/internal/service"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	configureLogger(logger, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	if err := sqlite.Migrate(ctx, db, logger); err != nil {
		logger.Fatalf("migrate database: %v", err)
	}

	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret)
	if err != nil {
		logger.Fatalf("token service: %v", err)
	}

	sender, err := buildSender(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup mail: %v", err)
	}

	authService := service.NewAuthService(
		sqlite.NewUserRepository(db),
		sqlite.NewMagicLinkRepository(db),
		tokens,
		mail.NewMailer(sender, cfg.Mail.BaseURL),
		service.Config{
			MagicLinkTTL:        cfg.Auth.MagicLinkTTL,
			SessionTTL:          cfg.Auth.SessionTTL,
			ChallengeTTL:        cfg.Auth.ChallengeTTL,
			SingleUseMagicLinks: cfg.Auth.SingleUseMagicLinks,
			PlaceholderDomain:   cfg.Auth.PlaceholderDomain,
			AppName:             cfg.Auth.AppName,
		},
		logger.WithField("component", "auth"),
	)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(authService, logger.WithField("component", "http"), cfg.Server.AllowOrigins)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}

	logger.Info("bye")
}

func configureLogger(logger *logrus.Logger, cfg config.Config) {
	if cfg.Log.JSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.Warnf("unknown log level %q, using info", cfg.Log.Level)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
}

func buildSender(ctx context.Context, cfg config.Config, logger *logrus.Logger) (mail.Sender, error) {
	if cfg.Mail.Driver == config.MailDriverLog {
		logger.Warn("mail driver is log; emails will not be delivered")
		return mail.NewLogSender(logger.WithField("component", "mail")), nil
	}

	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.AWS.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	switch cfg.Mail.Driver {
	case config.MailDriverSES:
		client := sesv2.NewFromConfig(awsCfg, func(o *sesv2.Options) {
			if cfg.AWS.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.Endpoint)
			}
		})
		logger.Infof("sending mail through ses as %s (region %s)", cfg.Mail.From, cfg.AWS.Region)
		return mail.NewSESSender(client, cfg.Mail.From), nil
	case config.MailDriverS3:
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.AWS.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.Endpoint)
				o.UsePathStyle = true
			}
		})
		logger.Infof("dropping mail into s3 bucket %s (region %s)", cfg.Mail.Bucket, cfg.AWS.Region)
		return mail.NewS3DropSender(client, cfg.Mail.Bucket, cfg.Mail.KeyPrefix, cfg.Mail.From), nil
	default:
		return nil, fmt.Errorf("unknown mail driver %q", cfg.Mail.Driver)
	}
}
