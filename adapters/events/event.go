// Package events publishes authentication events to message brokers.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/layer-3/rola/core"
)

// DefaultTopic is the topic authentication events are published to
const DefaultTopic = "rola.auth_events"

// AuthEventMessage is the wire form of an authentication event
type AuthEventMessage struct {
	ID            string    `json:"tx_id"`
	WalletAddress string    `json:"wallet_address"`
	Action        string    `json:"action"`
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
}

func encodeEvent(event *core.AuthEvent) ([]byte, error) {
	payload, err := json.Marshal(AuthEventMessage{
		ID:            event.ID,
		WalletAddress: event.WalletAddress,
		Action:        event.Action,
		Status:        string(event.Status),
		Timestamp:     event.Timestamp.UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return payload, nil
}

// DecodeEvent parses a message payload back into an event. Consumers of the
// topic use it to read what the publishers write.
func DecodeEvent(payload []byte) (*core.AuthEvent, error) {
	var m AuthEventMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return &core.AuthEvent{
		ID:            m.ID,
		WalletAddress: m.WalletAddress,
		Action:        m.Action,
		Status:        core.EventStatus(m.Status),
		Timestamp:     m.Timestamp,
	}, nil
}
