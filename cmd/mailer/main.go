// Command mailer drains the activation email queue and delivers each message
// over SMTP (or to the log when SMTP is not configured).
package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"wonderclimb/internal/config"
	"wonderclimb/internal/pkg/logger"
	"wonderclimb/internal/pkg/mailer"
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

	if cfg.RabbitMQURL == "" {
		lg.Fatal("RABBITMQ_URL is required")
	}

	var deliver mailer.Mailer = mailer.NewLogMailer(lg)
	if cfg.SMTPHost != "" {
		deliver = mailer.NewSMTPMailer(mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.EmailFrom,
			FromName: cfg.EmailFromName,
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lg.Info("mailer consuming", zap.String("queue", cfg.EmailQueue), zap.Bool("smtp", cfg.SMTPHost != ""))
	err = mailer.NewConsumer(cfg.RabbitMQURL, cfg.EmailQueue, deliver, lg).Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		lg.Fatal("mailer stopped", zap.Error(err))
	}
	lg.Info("mailer stopped")
}
