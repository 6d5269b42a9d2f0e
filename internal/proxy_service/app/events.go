package app

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/Tech-Aware/ProxyCall/internal/proxy_service/domain"
)

// eventPublisher publishes best-effort JSON events. A nil publisher is a no-op.
type eventPublisher struct {
	pub    domain.EventPublisher
	logger *slog.Logger
}

func (p eventPublisher) publish(ctx context.Context, subject string, event any) {
	if p.pub == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to marshal event", "error", err, "subject", subject)
		return
	}
	if err := p.pub.Publish(ctx, subject, data); err != nil {
		p.logger.WarnContext(ctx, "Failed to publish event", "error", err, "subject", subject)
	}
}
