package notification

import (
	"context"
	"log/slog"
)

// LogSink writes notifications to the log. Used when no broker is configured.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Send(ctx context.Context, msgs []Message) error {
	for _, m := range msgs {
		s.logger.InfoContext(ctx, "notification",
			"nr_num", m.Data.Request.NRNum,
			"option", m.Data.Request.Option,
			"refund_value", m.Data.Request.RefundValue,
			"id", m.ID,
		)
	}
	return nil
}
