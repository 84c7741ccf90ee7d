package mailer

import (
	"context"

	"go.uber.org/zap"
)

// LogMailer writes messages to the log instead of sending them. Used in
// development and when no provider is configured.
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info("email (log provider)",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	m.logger.Debug("email body", zap.String("to", msg.To), zap.String("html", msg.HTML))
	return nil
}
