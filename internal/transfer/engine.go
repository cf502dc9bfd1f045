// Package transfer decides what happens when a caller asks to reach a human,
// either by pressing a key or because the AI assistant invoked its transfer
// tool. The engine always produces an instruction the voice provider can
// speak or act on; a failed transfer ends as a spoken fallback, never a
// dropped call.
package transfer

import (
	"context"
	"fmt"
	"time"

	"github.com/hardw419/ivr-system/internal/bridge"
	"github.com/hardw419/ivr-system/internal/metrics"
	"github.com/hardw419/ivr-system/internal/notify"
	"github.com/hardw419/ivr-system/internal/queue"
	"github.com/hardw419/ivr-system/internal/storage"
	"github.com/hardw419/ivr-system/internal/types"
	"github.com/rs/zerolog"
)

// Mode selects how transfers are fulfilled
type Mode string

const (
	// ModeDirect dials a specific agent's phone based on the key pressed
	ModeDirect Mode = "direct"
	// ModeQueue parks the caller in the agent queue
	ModeQueue Mode = "queue"
)

// Request kinds
const (
	KindDTMF = "dtmf"
	KindTool = "tool-invocation"
)

// Outcomes of a transfer decision
const (
	OutcomeDial     = "dial"      // connect to a number now
	OutcomeQueued   = "queued"    // caller parked in queue
	OutcomeSpoken   = "spoken"    // nothing to connect, assistant speaks Message
	OutcomeNotFound = "not-found" // no call record for the request
)

// Request describes a single transfer attempt
type Request struct {
	ProviderCallID string
	Kind           string // KindDTMF or KindTool
	Digit          string // set for KindDTMF
	ToolCallID     string // set for KindTool
	CallSID        string
	CustomerPhone  string
	CustomerName   string
}

// Instruction is what the voice provider should do next
type Instruction struct {
	Outcome      string
	Message      string // spoken to the caller
	Destination  string // phone number, set when Outcome is dial
	QueueEntryID string // set when Outcome is queued
}

// CallRedirector moves the live telephony leg to new call instructions
type CallRedirector interface {
	RedirectCall(ctx context.Context, callSID, twimlURL string) error
}

// Config tunes engine behavior
type Config struct {
	Mode            Mode
	QueueNumber     string        // dialed as fallback when redirect fails
	TransferBaseURL string        // base for the conference TwiML endpoint
	DedupWindow     time.Duration // suppress duplicate transfers within this window
	RedirectTimeout time.Duration
}

// Engine executes transfer decisions
type Engine struct {
	store      storage.Store
	queue      *queue.Service
	notifier   notify.Notifier
	redirector CallRedirector
	cfg        Config
	logger     zerolog.Logger
}

// NewEngine creates a transfer Engine. redirector may be nil; queue-mode
// transfers then fall back to dialing the queue number.
func NewEngine(store storage.Store, queueSvc *queue.Service, notifier notify.Notifier, redirector CallRedirector, cfg Config, logger zerolog.Logger) *Engine {
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = 30 * time.Second
	}
	if cfg.RedirectTimeout <= 0 {
		cfg.RedirectTimeout = 5 * time.Second
	}
	return &Engine{
		store:      store,
		queue:      queueSvc,
		notifier:   notifier,
		redirector: redirector,
		cfg:        cfg,
		logger:     logger,
	}
}

// Execute resolves a transfer request to an instruction. It never returns an
// error alongside an empty instruction: every path yields something the
// assistant can do.
func (e *Engine) Execute(ctx context.Context, req Request) Instruction {
	call, err := e.store.GetCallByProviderID(ctx, req.ProviderCallID)
	if err != nil {
		if err != storage.ErrNotFound {
			e.logger.Error().Err(err).Str("provider_call_id", req.ProviderCallID).Msg("call lookup failed")
		}
		metrics.Get().RecordTransferRequested()
		metrics.Get().RecordTransferFailed()
		return Instruction{
			Outcome: OutcomeNotFound,
			Message: "I'm sorry, I couldn't process your request. Please try again.",
		}
	}
	return e.ExecuteForCall(ctx, call, req)
}

// ExecuteForCall resolves a transfer request for an already-loaded call,
// used when the caller was found by telephony leg id instead.
func (e *Engine) ExecuteForCall(ctx context.Context, call *types.CallRecord, req Request) Instruction {
	metrics.Get().RecordTransferRequested()

	// Webhook payloads may carry fresher leg identifiers than the record
	if req.CallSID != "" && call.CallSID == "" {
		call.CallSID = req.CallSID
		if err := e.store.SaveCall(ctx, call); err != nil {
			e.logger.Warn().Err(err).Str("call_id", call.ID).Msg("failed to persist call sid")
		}
	}
	if req.CustomerPhone == "" {
		req.CustomerPhone = call.CustomerPhone
	}
	if req.CustomerName == "" {
		req.CustomerName = call.CustomerName
	}

	if req.Kind == KindDTMF && req.Digit != "" {
		call.KeyPressed = req.Digit
	}

	switch e.cfg.Mode {
	case ModeDirect:
		return e.executeDirect(ctx, call, req)
	default:
		return e.executeQueue(ctx, call, req)
	}
}

// executeDirect looks up the agent mapped to the pressed key and dials them
func (e *Engine) executeDirect(ctx context.Context, call *types.CallRecord, req Request) Instruction {
	digit := req.Digit
	if digit == "" {
		digit = call.KeyPressed
	}
	if digit == "" {
		metrics.Get().RecordTransferFailed()
		return Instruction{
			Outcome: OutcomeSpoken,
			Message: "Please press a key to choose a department.",
		}
	}

	agent, err := e.store.GetAgentByKey(ctx, call.OwnerID, digit)
	if err != nil || !agent.IsAvailable {
		if err != nil && err != storage.ErrNotFound {
			e.logger.Error().Err(err).Str("digit", digit).Msg("agent lookup failed")
		}
		metrics.Get().RecordTransferFailed()
		return Instruction{
			Outcome: OutcomeSpoken,
			Message: "I'm sorry, no agent is available for that selection right now. Please stay on the line or try again later.",
		}
	}

	now := time.Now()
	call.Status = types.CallTransferred
	call.TransferredTo = agent.PhoneNumber
	call.Transfer = &types.TransferDetails{
		AgentName:    agent.Name,
		AgentPhone:   agent.PhoneNumber,
		TransferTime: now,
		Status:       types.TransferInitiated,
	}
	if err := e.store.SaveCall(ctx, call); err != nil {
		e.logger.Error().Err(err).Str("call_id", call.ID).Msg("failed to persist transfer")
	}

	e.notifier.BroadcastToOwner(call.OwnerID, types.EventCallStatus, types.CallStatusEvent{
		CallID: call.ID,
		Status: call.Status,
	})

	e.logger.Info().
		Str("call_id", call.ID).
		Str("agent_id", agent.ID).
		Str("digit", digit).
		Msg("direct transfer initiated")

	return Instruction{
		Outcome:     OutcomeDial,
		Message:     fmt.Sprintf("Connecting you to %s now.", agent.Name),
		Destination: agent.PhoneNumber,
	}
}

// executeQueue parks the caller in the agent queue and moves the telephony
// leg into the conference room where an accepting agent will join.
func (e *Engine) executeQueue(ctx context.Context, call *types.CallRecord, req Request) Instruction {
	// A retried webhook or an impatient assistant must not produce a second
	// queue entry for the same caller.
	if req.CustomerPhone != "" {
		since := time.Now().Add(-e.cfg.DedupWindow)
		existing, err := e.queue.FindActiveByPhone(ctx, call.OwnerID, req.CustomerPhone, since)
		if err == nil && existing != nil {
			e.logger.Debug().
				Str("entry_id", existing.ID).
				Str("customer", req.CustomerPhone).
				Msg("duplicate transfer suppressed")
			return Instruction{
				Outcome:      OutcomeQueued,
				Message:      "Your transfer is already in progress. Please stay on the line.",
				QueueEntryID: existing.ID,
			}
		}
	}

	callSID := bridge.CanonicalLegID(req.CallSID, call.CallSID)

	entry, err := e.queue.Enqueue(ctx, queue.EnqueueParams{
		OwnerID:        call.OwnerID,
		CallID:         call.ID,
		ProviderCallID: call.ProviderCallID,
		CallSID:        callSID,
		CustomerPhone:  req.CustomerPhone,
		CustomerName:   req.CustomerName,
		KeyPressed:     req.Digit,
		Source:         types.SourceTransfer,
		Priority:       types.PriorityTransfer,
	})
	if err != nil {
		e.logger.Error().Err(err).Str("call_id", call.ID).Msg("enqueue failed")
		metrics.Get().RecordTransferFailed()
		return Instruction{
			Outcome: OutcomeSpoken,
			Message: "I'm sorry, I couldn't transfer you right now. Please try again in a moment.",
		}
	}

	call.Status = types.CallInQueue
	if err := e.store.SaveCall(ctx, call); err != nil {
		e.logger.Error().Err(err).Str("call_id", call.ID).Msg("failed to persist queue state")
	}
	e.notifier.BroadcastToOwner(call.OwnerID, types.EventCallStatus, types.CallStatusEvent{
		CallID: call.ID,
		Status: call.Status,
	})

	// Move the telephony leg into the conference room. Failure here is not
	// fatal: the assistant can still hand the caller to the queue number.
	if e.redirector != nil && callSID != "" {
		rctx, cancel := context.WithTimeout(ctx, e.cfg.RedirectTimeout)
		defer cancel()

		twimlURL := fmt.Sprintf("%s/webhooks/telephony/transfer-twiml?queueId=%s", e.cfg.TransferBaseURL, entry.ID)
		if err := e.redirector.RedirectCall(rctx, callSID, twimlURL); err != nil {
			e.logger.Warn().Err(err).
				Str("call_sid", callSID).
				Str("entry_id", entry.ID).
				Msg("redirect failed, falling back to queue number")
			if e.cfg.QueueNumber != "" {
				return Instruction{
					Outcome:      OutcomeDial,
					Message:      "Please hold while I connect you to the next available agent.",
					Destination:  e.cfg.QueueNumber,
					QueueEntryID: entry.ID,
				}
			}
		}
	} else if e.cfg.QueueNumber != "" && callSID == "" {
		// No telephony leg to redirect; the assistant must hand off by number
		return Instruction{
			Outcome:      OutcomeDial,
			Message:      "Please hold while I connect you to the next available agent.",
			Destination:  e.cfg.QueueNumber,
			QueueEntryID: entry.ID,
		}
	}

	e.logger.Info().
		Str("call_id", call.ID).
		Str("entry_id", entry.ID).
		Msg("caller queued for agent")

	return Instruction{
		Outcome:      OutcomeQueued,
		Message:      "Please hold while I connect you to the next available agent. Your call is in the queue.",
		QueueEntryID: entry.ID,
	}
}
