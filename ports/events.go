package ports

import (
	"context"

	"github.com/layer-3/rola/core"
)

// EventRepository is the append-only storage of authentication events
type EventRepository interface {
	AppendEvent(ctx context.Context, event *core.AuthEvent) error

	// ListEvents returns events newest first. An empty walletAddress lists all events.
	ListEvents(ctx context.Context, walletAddress string) ([]core.AuthEvent, error)
}

// EventPublisher notifies other systems about authentication events
type EventPublisher interface {
	PublishAuthEvent(ctx context.Context, event *core.AuthEvent) error
}
