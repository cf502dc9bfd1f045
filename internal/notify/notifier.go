// Package notify is the fan-out boundary to connected agent consoles.
// Delivery is best-effort and fire-and-forget: a failed broadcast must never
// fail the state transition that triggered it, and consoles reconcile by
// polling the queue regardless.
package notify

import (
	"encoding/json"

	"github.com/rs/zerolog"
)

// Notifier pushes events to connected agent consoles
type Notifier interface {
	Broadcast(event string, payload any)
	BroadcastToOwner(ownerID, event string, payload any)
}

// envelope is the wire format consoles receive
type envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Sender is the subset of the websocket hub the notifier needs
type Sender interface {
	BroadcastAll(message []byte)
	BroadcastOwner(ownerID string, message []byte)
}

// HubNotifier fans events out over the websocket hub
type HubNotifier struct {
	sender Sender
	logger zerolog.Logger
}

// NewHubNotifier creates a Notifier backed by the websocket hub
func NewHubNotifier(sender Sender, logger zerolog.Logger) *HubNotifier {
	return &HubNotifier{sender: sender, logger: logger}
}

func (n *HubNotifier) Broadcast(event string, payload any) {
	data, err := json.Marshal(envelope{Event: event, Data: payload})
	if err != nil {
		n.logger.Error().Err(err).Str("event", event).Msg("failed to marshal broadcast")
		return
	}
	n.sender.BroadcastAll(data)
}

func (n *HubNotifier) BroadcastToOwner(ownerID, event string, payload any) {
	data, err := json.Marshal(envelope{Event: event, Data: payload})
	if err != nil {
		n.logger.Error().Err(err).Str("event", event).Msg("failed to marshal broadcast")
		return
	}
	n.sender.BroadcastOwner(ownerID, data)
}

// Noop is a Notifier that drops everything; used in tests
type Noop struct{}

func (Noop) Broadcast(string, any)                {}
func (Noop) BroadcastToOwner(string, string, any) {}
