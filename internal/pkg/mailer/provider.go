package mailer

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const (
	ProviderLog  = "log"
	ProviderSMTP = "smtp"
	ProviderAMQP = "amqp"
)

type Options struct {
	Provider string
	SMTP     SMTPConfig
	AMQPURL  string
	Queue    string
}

// New returns the Mailer selected by opts.Provider. An empty provider means log.
func New(opts Options, logger *zap.Logger) (Mailer, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Provider)) {
	case "", ProviderLog:
		return NewLogMailer(logger), nil
	case ProviderSMTP:
		if opts.SMTP.Host == "" {
			return nil, fmt.Errorf("mailer: smtp provider requires SMTP_HOST")
		}
		return NewSMTPMailer(opts.SMTP), nil
	case ProviderAMQP:
		if opts.AMQPURL == "" {
			return nil, fmt.Errorf("mailer: amqp provider requires RABBITMQ_URL")
		}
		return NewQueueMailer(opts.AMQPURL, opts.Queue, logger), nil
	default:
		return nil, fmt.Errorf("mailer: unknown provider %q", opts.Provider)
	}
}
