package types

import "time"

// Event names pushed to connected agent consoles. Push is a latency
// optimization only; consoles reconcile by re-fetching the queue.
const (
	EventIncomingCall = "incoming-call"
	EventQueueUpdate  = "queue-update"
	EventCallStatus   = "call-status"
)

// IncomingCallEvent announces a new queue entry to agent consoles
type IncomingCallEvent struct {
	QueueID        string      `json:"queueId"`
	CustomerPhone  string      `json:"customerPhone"`
	CustomerName   string      `json:"customerName,omitempty"`
	ProviderCallID string      `json:"providerCallId,omitempty"`
	Source         QueueSource `json:"source"`
	Priority       int         `json:"priority"`
	WaitStart      time.Time   `json:"waitStartTime"`
}

// QueueUpdateEvent tells consoles an entry changed hands or state,
// so it disappears from every other agent's view immediately
type QueueUpdateEvent struct {
	Action  string      `json:"action"` // accepted, completed, expired, abandoned, answered
	QueueID string      `json:"queueId"`
	AgentID string      `json:"agentId,omitempty"`
	Status  QueueStatus `json:"status"`
}

// CallStatusEvent mirrors call lifecycle changes to consoles
type CallStatusEvent struct {
	CallID string     `json:"callId"`
	Status CallStatus `json:"status"`
}
