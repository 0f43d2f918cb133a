package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/rola/core"
	"github.com/layer-3/rola/internal/metrics"
	"github.com/layer-3/rola/ports"
	"go.uber.org/zap"
)

// EventLog records authentication attempts. Events are stored first and then
// published, when a publisher is configured.
type EventLog struct {
	repo      ports.EventRepository
	publisher ports.EventPublisher
	logger    *zap.Logger
	metrics   metrics.Recorder

	now func() time.Time
}

// NewEventLog creates an event log. publisher may be nil.
func NewEventLog(repo ports.EventRepository, publisher ports.EventPublisher, logger *zap.Logger, m metrics.Recorder) *EventLog {
	if m == nil {
		m = metrics.Nop{}
	}
	return &EventLog{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		metrics:   m,
		now:       time.Now,
	}
}

// Append stores a new event. Publishing is best-effort and never fails the call.
func (l *EventLog) Append(ctx context.Context, walletAddress, action string, status core.EventStatus) (*core.AuthEvent, error) {
	event := &core.AuthEvent{
		ID:            uuid.New().String(),
		WalletAddress: walletAddress,
		Action:        action,
		Status:        status,
		Timestamp:     l.now().UTC(),
	}

	if err := l.repo.AppendEvent(ctx, event); err != nil {
		l.metrics.EventAppendFailed()
		return nil, fmt.Errorf("failed to append event: %w", err)
	}

	if l.publisher != nil {
		if err := l.publisher.PublishAuthEvent(ctx, event); err != nil {
			l.metrics.EventPublishFailed()
			l.logger.Warn("failed to publish auth event",
				zap.String("tx_id", event.ID),
				zap.String("wallet_address", walletAddress),
				zap.Error(err),
			)
		}
	}

	return event, nil
}

// List returns events newest first. An empty wallet address lists every event.
func (l *EventLog) List(ctx context.Context, walletAddress string) ([]core.AuthEvent, error) {
	events, err := l.repo.ListEvents(ctx, walletAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}
