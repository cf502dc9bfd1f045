// Package webhook is the unauthenticated ingress for both providers. Every
// handler answers 200 with something useful even on internal failure, since
// provider retries of a failed webhook replay the same event anyway.
package webhook

import (
	"encoding/json"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/hardw419/ivr-system/internal/bridge"
	"github.com/hardw419/ivr-system/internal/metrics"
	"github.com/hardw419/ivr-system/internal/notify"
	"github.com/hardw419/ivr-system/internal/storage"
	"github.com/hardw419/ivr-system/internal/transfer"
	"github.com/hardw419/ivr-system/internal/types"
	"github.com/rs/zerolog"
)

// vapiCall is the call object embedded in AI provider webhooks
type vapiCall struct {
	ID                  string `json:"id"`
	PhoneCallProviderID string `json:"phoneCallProviderId"`
	Transport           struct {
		CallSID string `json:"callSid"`
	} `json:"transport"`
	Customer struct {
		Number string `json:"number"`
		Name   string `json:"name"`
	} `json:"customer"`
	Duration float64 `json:"duration"`
	Summary  string  `json:"summary"`
	Cost     float64 `json:"cost"`
}

type vapiToolCall struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Function *struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}

func (tc vapiToolCall) functionName() string {
	if tc.Function != nil && tc.Function.Name != "" {
		return tc.Function.Name
	}
	return tc.Name
}

type vapiChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Message string `json:"message"`
	Time    int64  `json:"time"` // epoch millis
}

func (m vapiChatMessage) text() string {
	if m.Content != "" {
		return m.Content
	}
	return m.Message
}

type vapiArtifact struct {
	Transcript   string            `json:"transcript"`
	Messages     []vapiChatMessage `json:"messages"`
	RecordingURL string            `json:"recordingUrl"`
}

// vapiMessage is the normalized event payload. The provider wraps events in
// a "message" object on some paths and sends them bare on others, so the
// envelope below accepts both.
type vapiMessage struct {
	Type         string            `json:"type"`
	Call         *vapiCall         `json:"call"`
	Digit        string            `json:"digit"`
	Digits       string            `json:"digits"`
	ToolCalls    []vapiToolCall    `json:"toolCalls"`
	ToolCallList []vapiToolCall    `json:"toolCallList"`
	Artifact     *vapiArtifact     `json:"artifact"`
	Transcript   string            `json:"transcript"`
	Conversation []vapiChatMessage `json:"conversation"`
}

type vapiEnvelope struct {
	vapiMessage
	Message *vapiMessage `json:"message"`
}

// normalized merges the wrapped and bare forms, preferring wrapped fields
func (e *vapiEnvelope) normalized() vapiMessage {
	if e.Message == nil {
		return e.vapiMessage
	}
	m := *e.Message
	if m.Type == "" {
		m.Type = e.Type
	}
	if m.Call == nil {
		m.Call = e.Call
	}
	if m.Digit == "" {
		m.Digit = e.Digit
	}
	if len(m.ToolCalls) == 0 {
		m.ToolCalls = e.ToolCalls
	}
	if m.Artifact == nil {
		m.Artifact = e.Artifact
	}
	if m.Transcript == "" {
		m.Transcript = e.Transcript
	}
	if len(m.Conversation) == 0 {
		m.Conversation = e.Conversation
	}
	return m
}

// toolCalls returns tool invocations from either field the provider uses
func (m vapiMessage) toolCalls() []vapiToolCall {
	if len(m.ToolCalls) > 0 {
		return m.ToolCalls
	}
	return m.ToolCallList
}

// telephonySID digs the telephony leg id out of the call object
func (c *vapiCall) telephonySID() string {
	if c == nil {
		return ""
	}
	return bridge.CanonicalLegID(c.PhoneCallProviderID, c.Transport.CallSID)
}

// VapiHandler processes AI provider webhooks
type VapiHandler struct {
	store    storage.Store
	engine   *transfer.Engine
	notifier notify.Notifier
	logger   zerolog.Logger
}

// NewVapiHandler creates a VapiHandler
func NewVapiHandler(store storage.Store, engine *transfer.Engine, notifier notify.Notifier, logger zerolog.Logger) *VapiHandler {
	return &VapiHandler{
		store:    store,
		engine:   engine,
		notifier: notifier,
		logger:   logger,
	}
}

// Handle processes POST /webhooks/vapi
func (h *VapiHandler) Handle(w http.ResponseWriter, r *http.Request) {
	metrics.Get().RecordWebhookReceived()

	var env vapiEnvelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		metrics.Get().RecordWebhookError()
		h.logger.Warn().Err(err).Msg("malformed ai provider webhook")
		writeJSONBody(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	msg := env.normalized()

	h.logger.Debug().
		Str("type", msg.Type).
		Bool("has_call", msg.Call != nil).
		Msg("ai provider webhook")

	switch msg.Type {
	case "tool-calls":
		h.handleToolCalls(w, r, msg)
	case "function-call":
		// Legacy event shape, acknowledged but not acted on
		writeJSONBody(w, http.StatusOK, map[string]string{"result": "OK"})
	case "dtmf", "keypad":
		h.handleDTMF(w, r, msg)
	case "assistant-request":
		h.handleAssistantRequest(w, r, msg)
	default:
		h.handleLifecycle(w, r, msg)
	}
	metrics.Get().RecordWebhookProcessed()
}

// vapiResult is one element of the results array the provider expects back
type vapiResult struct {
	ToolCallID  string           `json:"toolCallId,omitempty"`
	Result      string           `json:"result"`
	Destination *vapiDestination `json:"destination,omitempty"`
}

type vapiDestination struct {
	Type    string `json:"type"`
	Number  string `json:"number"`
	Message string `json:"message,omitempty"`
}

// writeInstruction renders a transfer decision in the provider's results shape
func writeInstruction(w http.ResponseWriter, inst transfer.Instruction, toolCallID string) {
	res := vapiResult{ToolCallID: toolCallID}
	switch inst.Outcome {
	case transfer.OutcomeDial:
		res.Result = "transfer"
		res.Destination = &vapiDestination{
			Type:    "number",
			Number:  inst.Destination,
			Message: inst.Message,
		}
	default:
		res.Result = inst.Message
	}
	writeJSONBody(w, http.StatusOK, map[string]any{"results": []vapiResult{res}})
}

func (h *VapiHandler) handleToolCalls(w http.ResponseWriter, r *http.Request, msg vapiMessage) {
	var transferCall *vapiToolCall
	for i, tc := range msg.toolCalls() {
		name := tc.functionName()
		if name == "transferToAgent" || name == "transferCall" {
			transferCall = &msg.toolCalls()[i]
			break
		}
	}
	if transferCall == nil {
		writeJSONBody(w, http.StatusOK, map[string]any{"results": []vapiResult{}})
		return
	}

	var providerCallID string
	if msg.Call != nil {
		providerCallID = msg.Call.ID
	}

	req := transfer.Request{
		ProviderCallID: providerCallID,
		Kind:           transfer.KindTool,
		ToolCallID:     transferCall.ID,
		CallSID:        msg.Call.telephonySID(),
	}
	if msg.Call != nil {
		req.CustomerPhone = msg.Call.Customer.Number
		req.CustomerName = msg.Call.Customer.Name
	}

	inst := h.engine.Execute(r.Context(), req)
	writeInstruction(w, inst, transferCall.ID)
}

func (h *VapiHandler) handleDTMF(w http.ResponseWriter, r *http.Request, msg vapiMessage) {
	digit := msg.Digit
	if digit == "" {
		digit = msg.Digits
	}
	if digit == "" || msg.Call == nil || msg.Call.ID == "" {
		writeJSONBody(w, http.StatusOK, map[string]any{"results": []vapiResult{{Result: "continue"}}})
		return
	}

	inst := h.engine.Execute(r.Context(), transfer.Request{
		ProviderCallID: msg.Call.ID,
		Kind:           transfer.KindDTMF,
		Digit:          digit,
		CallSID:        msg.Call.telephonySID(),
		CustomerPhone:  msg.Call.Customer.Number,
		CustomerName:   msg.Call.Customer.Name,
	})
	writeInstruction(w, inst, "")
}

// handleAssistantRequest returns live transfer destinations so the assistant
// announces only agents who are actually available.
func (h *VapiHandler) handleAssistantRequest(w http.ResponseWriter, r *http.Request, msg vapiMessage) {
	ownerID := ""
	if msg.Call != nil && msg.Call.ID != "" {
		if call, err := h.store.GetCallByProviderID(r.Context(), msg.Call.ID); err == nil {
			ownerID = call.OwnerID
		}
	}

	agents, err := h.store.ListAvailableAgents(r.Context(), ownerID)
	if err != nil || len(agents) == 0 {
		writeJSONBody(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	type destination struct {
		Type        string `json:"type"`
		Number      string `json:"number"`
		Message     string `json:"message"`
		Description string `json:"description"`
	}
	destinations := make([]destination, 0, len(agents))
	for _, agent := range agents {
		desc := "Press " + agent.TransferKey + " for " + agent.Name
		if agent.Department != "" {
			desc += " (" + agent.Department + ")"
		}
		destinations = append(destinations, destination{
			Type:        "number",
			Number:      agent.PhoneNumber,
			Message:     "Transferring you to " + agent.Name + ". Please hold.",
			Description: desc,
		})
	}

	writeJSONBody(w, http.StatusOK, map[string]any{
		"assistant": map[string]any{
			"transferDestinations": destinations,
		},
	})
}

// handleLifecycle applies call state events to the call record
func (h *VapiHandler) handleLifecycle(w http.ResponseWriter, r *http.Request, msg vapiMessage) {
	if msg.Call == nil || msg.Call.ID == "" {
		writeJSONBody(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	call, err := h.store.GetCallByProviderID(r.Context(), msg.Call.ID)
	if err != nil {
		if err != storage.ErrNotFound {
			h.logger.Error().Err(err).Str("provider_call_id", msg.Call.ID).Msg("call lookup failed")
		}
		writeJSONBody(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	// Telephony leg id is set once, from whichever event carries it first
	if sid := msg.Call.telephonySID(); sid != "" && call.CallSID == "" {
		call.CallSID = sid
	}

	now := time.Now()
	switch msg.Type {
	case "call-started":
		if !call.Status.Terminal() {
			call.Status = types.CallInProgress
			if call.StartTime == nil {
				call.StartTime = &now
			}
		}

	case "call-ended":
		h.applyCallEnded(call, msg, now)

	case "call-failed":
		if !call.Status.Terminal() {
			call.Status = types.CallFailed
			if call.EndTime == nil {
				call.EndTime = &now
			}
		}

	case "transcript":
		if msg.Transcript != "" {
			if call.Transcript == "" {
				call.Transcript = msg.Transcript
			} else {
				call.Transcript += " " + msg.Transcript
			}
		}

	case "conversation-update":
		if len(msg.Conversation) > 0 {
			call.TranscriptTurns = chatToTurns(msg.Conversation)
		}
	}

	if err := h.store.SaveCall(r.Context(), call); err != nil {
		h.logger.Error().Err(err).Str("call_id", call.ID).Msg("failed to persist call update")
	}

	h.notifier.BroadcastToOwner(call.OwnerID, types.EventCallStatus, types.CallStatusEvent{
		CallID: call.ID,
		Status: call.Status,
	})

	writeJSONBody(w, http.StatusOK, map[string]bool{"received": true})
}

// applyCallEnded folds the end-of-call artifact into the record. A call that
// left the assistant for an agent stays transferred; everything else
// completes.
func (h *VapiHandler) applyCallEnded(call *types.CallRecord, msg vapiMessage, now time.Time) {
	if call.Status == types.CallTransferred || call.Status == types.CallInQueue {
		call.Status = types.CallTransferred
	} else if !call.Status.Terminal() {
		call.Status = types.CallCompleted
	}
	if call.EndTime == nil {
		call.EndTime = &now
	}
	if msg.Call.Duration > 0 {
		call.Duration = int(math.Round(msg.Call.Duration))
	}
	if msg.Artifact != nil {
		if msg.Artifact.Transcript != "" {
			call.Transcript = msg.Artifact.Transcript
		}
		if len(msg.Artifact.Messages) > 0 {
			call.TranscriptTurns = chatToTurns(msg.Artifact.Messages)
		}
		if msg.Artifact.RecordingURL != "" {
			call.Recording = &types.Recording{
				URL:      msg.Artifact.RecordingURL,
				Duration: int(math.Round(msg.Call.Duration)),
			}
		}
	}
	if msg.Call.Summary != "" {
		call.Summary = msg.Call.Summary
	}
	if msg.Call.Cost > 0 {
		call.Cost = msg.Call.Cost
	}
}

func chatToTurns(messages []vapiChatMessage) []types.TranscriptTurn {
	turns := make([]types.TranscriptTurn, 0, len(messages))
	for _, m := range messages {
		text := strings.TrimSpace(m.text())
		if text == "" && m.Role == "" {
			continue
		}
		ts := time.Now()
		if m.Time > 0 {
			ts = time.UnixMilli(m.Time)
		}
		turns = append(turns, types.TranscriptTurn{
			Role:      m.Role,
			Message:   text,
			Timestamp: ts,
		})
	}
	return turns
}

func writeJSONBody(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
