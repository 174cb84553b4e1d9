package audit

import (
	"context"
	"log/slog"
	"time"
)

type ctxKey struct{}

// WithRequestID stores the request id for audit entries emitted during a request
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, requestID)
}

// Logger emits a structured audit trail of admin mutations
type Logger struct {
	logger *slog.Logger
}

func NewLogger(logger *slog.Logger) *Logger {
	return &Logger{logger: logger}
}

func (al *Logger) LogAction(ctx context.Context, action, resource, resourceID, status, details string) {
	requestID, _ := ctx.Value(ctxKey{}).(string)

	al.logger.Info("audit",
		slog.String("action", action),
		slog.String("resource", resource),
		slog.String("resource_id", resourceID),
		slog.String("status", status),
		slog.String("details", details),
		slog.String("request_id", requestID),
		slog.Time("timestamp", time.Now()),
	)
}

func (al *Logger) LogDSAChange(ctx context.Context, action, dsaID, status, details string) {
	al.LogAction(ctx, action, "dsa", dsaID, status, details)
}

func (al *Logger) LogLinkChange(ctx context.Context, action, linkID, status, details string) {
	al.LogAction(ctx, action, "referral_link", linkID, status, details)
}

func (al *Logger) LogDraft(ctx context.Context, status, details string) {
	al.LogAction(ctx, "draft_message", "message", "", status, details)
}
