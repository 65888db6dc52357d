package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/access-control/internal/events"
)

// AuditService writes an audit log line for every authentication event.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger) *AuditService {
	return &AuditService{
		dispatcher: dispatcher,
		logger:     logger.Named("audit"),
	}
}

// RegisterHandlers subscribes to events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	for _, eventType := range events.AllEventTypes {
		a.dispatcher.Subscribe(eventType, a.handle)
	}
}

func (a *AuditService) handle(_ context.Context, event events.Event) error {
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("event", string(event.Type)),
		zap.Time("at", event.Timestamp),
	}
	if event.UserID != "" {
		fields = append(fields, zap.String("user_id", event.UserID))
	}
	if event.Payload != nil {
		fields = append(fields, zap.Any("payload", event.Payload))
	}

	if event.Type == events.EventLoginFailed {
		a.logger.Warn("auth event", fields...)
		return nil
	}
	a.logger.Info("auth event", fields...)
	return nil
}
