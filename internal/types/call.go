package types

import "time"

// CallStatus represents the lifecycle state of an AI-driven call
type CallStatus string

const (
	CallQueued      CallStatus = "queued"
	CallInitiated   CallStatus = "initiated"
	CallRinging     CallStatus = "ringing"
	CallInProgress  CallStatus = "in-progress"
	CallInQueue     CallStatus = "in-queue"
	CallTransferred CallStatus = "transferred"
	CallCompleted   CallStatus = "completed"
	CallFailed      CallStatus = "failed"
	CallNoAnswer    CallStatus = "no-answer"
	CallBusy        CallStatus = "busy"
)

// Terminal reports whether the status is an end state. A transferred call is
// quasi-terminal: the AI leg is over but the human continuation lives in the
// QueueEntry, so it is not counted here.
func (s CallStatus) Terminal() bool {
	switch s {
	case CallCompleted, CallFailed, CallNoAnswer, CallBusy:
		return true
	}
	return false
}

// TransferStatus tracks the sub-state of a direct agent transfer
type TransferStatus string

const (
	TransferInitiated TransferStatus = "initiated"
	TransferRinging   TransferStatus = "ringing"
	TransferAnswered  TransferStatus = "answered"
	TransferCompleted TransferStatus = "completed"
	TransferFailed    TransferStatus = "failed"
	TransferNoAnswer  TransferStatus = "no-answer"
)

// TranscriptTurn is one utterance in the structured transcript
type TranscriptTurn struct {
	Role      string    `json:"role"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Recording references the provider-hosted call recording
type Recording struct {
	URL      string `json:"url"`
	Duration int    `json:"duration"` // seconds
}

// TransferDetails captures the outcome of a direct transfer attempt
type TransferDetails struct {
	AgentName    string         `json:"agentName"`
	AgentPhone   string         `json:"agentPhone"`
	TransferTime time.Time      `json:"transferTime"`
	Status       TransferStatus `json:"transferStatus"`
	Duration     int            `json:"transferDuration,omitempty"` // seconds
}

// CallRecord is the audit record of one AI-driven call attempt.
// External ids (ProviderCallID from the AI provider, CallSID from the
// telephony provider) are set once and never rewritten.
type CallRecord struct {
	ID              string            `json:"id"`
	OwnerID         string            `json:"ownerId"`
	CustomerPhone   string            `json:"customerPhone"`
	CustomerName    string            `json:"customerName,omitempty"`
	Status          CallStatus        `json:"status"`
	ProviderCallID  string            `json:"providerCallId,omitempty"`
	CallSID         string            `json:"callSid,omitempty"`
	Duration        int               `json:"duration"` // seconds
	Recording       *Recording        `json:"recording,omitempty"`
	Transcript      string            `json:"transcript,omitempty"`
	TranscriptTurns []TranscriptTurn  `json:"transcriptMessages,omitempty"`
	Summary         string            `json:"summary,omitempty"`
	Sentiment       string            `json:"sentiment,omitempty"`
	KeyPressed      string            `json:"keyPressed,omitempty"`
	TransferredTo   string            `json:"transferredTo,omitempty"`
	Transfer        *TransferDetails  `json:"transferDetails,omitempty"`
	Cost            float64           `json:"cost"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	StartTime       *time.Time        `json:"startTime,omitempty"`
	EndTime         *time.Time        `json:"endTime,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
}
