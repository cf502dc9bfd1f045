package types

import "time"

// QueueStatus represents the state of a caller waiting for a human agent
type QueueStatus string

const (
	QueueWaiting   QueueStatus = "waiting"
	QueueRinging   QueueStatus = "ringing"
	QueueAnswered  QueueStatus = "answered"
	QueueCompleted QueueStatus = "completed"
	QueueAbandoned QueueStatus = "abandoned"
	QueueTimeout   QueueStatus = "timeout"
)

// Terminal reports whether the entry can never transition again
func (s QueueStatus) Terminal() bool {
	switch s {
	case QueueCompleted, QueueAbandoned, QueueTimeout:
		return true
	}
	return false
}

// QueueSource tags how a caller ended up in the queue
type QueueSource string

const (
	SourceInbound  QueueSource = "inbound"
	SourceTransfer QueueSource = "ai-transfer"
	SourceTest     QueueSource = "test"
)

// Queue priorities. Transfer requests outrank plain inbound calls.
const (
	PriorityInbound  = 1
	PriorityTransfer = 2
)

// QueueEntry is one caller waiting for, or connected to, a human agent.
// WaitStart is immutable; AssignedAgent is set at most once via the
// conditional accept in storage.
type QueueEntry struct {
	ID             string      `json:"id"`
	OwnerID        string      `json:"ownerId"`
	CallID         string      `json:"callId,omitempty"`
	ProviderCallID string      `json:"providerCallId,omitempty"`
	CallSID        string      `json:"callSid,omitempty"`
	CustomerPhone  string      `json:"customerPhone"`
	CustomerName   string      `json:"customerName,omitempty"`
	Source         QueueSource `json:"source"`
	KeyPressed     string      `json:"keyPressed,omitempty"`
	Status         QueueStatus `json:"status"`
	Priority       int         `json:"priority"`
	AssignedAgent  string      `json:"assignedAgent,omitempty"`
	WaitStart      time.Time   `json:"waitStartTime"`
	AnswerTime     *time.Time  `json:"answerTime,omitempty"`
	EndTime        *time.Time  `json:"endTime,omitempty"`
	WaitDuration   int         `json:"waitDuration,omitempty"` // seconds
	CallDuration   int         `json:"callDuration,omitempty"` // seconds
	Notes          string      `json:"notes,omitempty"`
}

// QueueStats summarizes queue activity for an owner
type QueueStats struct {
	Waiting     int     `json:"waiting"`
	Answered    int     `json:"answered"`
	Abandoned   int     `json:"abandoned"`
	AvgWaitTime float64 `json:"avgWaitTime"` // seconds
}
