package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/classroom-client/internal/events"
)

// SessionAudit logs session lifecycle events.
type SessionAudit struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewSessionAudit creates the audit subscriber.
func NewSessionAudit(dispatcher events.Dispatcher, logger *zap.Logger) *SessionAudit {
	return &SessionAudit{dispatcher: dispatcher, logger: logger}
}

// RegisterHandlers subscribes to events.
func (a *SessionAudit) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventSessionStarted, a.handleSessionStarted)
	a.dispatcher.Subscribe(events.EventSessionEnded, a.handleSessionEnded)
	a.dispatcher.Subscribe(events.EventSessionExpired, a.handleSessionExpired)
}

func (a *SessionAudit) handleSessionStarted(_ context.Context, event events.Event) error {
	a.logger.Info("SessionStarted", zap.String("subject", event.Subject), zap.Any("payload", event.Payload))
	return nil
}

func (a *SessionAudit) handleSessionEnded(_ context.Context, event events.Event) error {
	a.logger.Info("SessionEnded", zap.String("subject", event.Subject))
	return nil
}

func (a *SessionAudit) handleSessionExpired(_ context.Context, event events.Event) error {
	a.logger.Warn("SessionExpired", zap.String("subject", event.Subject), zap.Any("payload", event.Payload))
	return nil
}
