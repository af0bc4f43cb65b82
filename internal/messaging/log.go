package messaging

import (
	"context"

	"go.uber.org/zap"
)

// LogSender пишет исходящие сообщения в журнал. Используется, когда Twilio не настроен.
type LogSender struct {
	Logger *zap.Logger
}

func (s LogSender) SendText(_ context.Context, to, body string) error {
	s.Logger.Info("outbound text", zap.String("to", to), zap.String("body", body))
	return nil
}

func (s LogSender) SendMedia(_ context.Context, to, mediaURL string) error {
	s.Logger.Info("outbound media", zap.String("to", to), zap.String("media_url", mediaURL))
	return nil
}
