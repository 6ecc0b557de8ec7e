package notifications

import (
	"context"
	"fmt"

	"github.com/mieldesol/modhu-backend/pkg/logger"
	"github.com/mieldesol/modhu-backend/pkg/sendgrid"
)

// LogSender writes the rendered email to the log instead of posting it.
// Demo mode wires it in place of the SendGrid client.
type LogSender struct {
	logg *logger.Logger
}

func NewLogSender(logg *logger.Logger) (*LogSender, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &LogSender{logg: logg}, nil
}

func (s *LogSender) Send(ctx context.Context, msg sendgrid.Message) error {
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"to":      msg.To,
		"subject": msg.Subject,
	})
	s.logg.Info(logCtx, "demo mode: email logged, not sent")
	return nil
}
