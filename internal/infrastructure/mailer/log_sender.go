package mailer

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LogSender is the transport used when no mail credentials are configured.
// It only logs the message and always succeeds.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, to, subject, html string) (string, error) {
	id := "log_" + uuid.NewString()
	s.logger.Info("email transport not configured, message logged only",
		zap.String("messageId", id),
		zap.String("to", to),
		zap.String("subject", subject),
		zap.Int("bodyBytes", len(html)),
	)
	return id, nil
}
