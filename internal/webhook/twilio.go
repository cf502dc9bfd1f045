package webhook

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/hardw419/ivr-system/internal/bridge"
	"github.com/hardw419/ivr-system/internal/metrics"
	"github.com/hardw419/ivr-system/internal/notify"
	"github.com/hardw419/ivr-system/internal/queue"
	"github.com/hardw419/ivr-system/internal/storage"
	"github.com/hardw419/ivr-system/internal/transfer"
	"github.com/hardw419/ivr-system/internal/types"
	"github.com/rs/zerolog"
)

// telephonyStatusMap translates telephony provider call statuses to ours.
// Identical strings still go through the map so an unrecognized status is
// ignored instead of written blindly.
var telephonyStatusMap = map[string]types.CallStatus{
	"queued":      types.CallQueued,
	"initiated":   types.CallInitiated,
	"ringing":     types.CallRinging,
	"in-progress": types.CallInProgress,
	"completed":   types.CallCompleted,
	"failed":      types.CallFailed,
	"no-answer":   types.CallNoAnswer,
	"busy":        types.CallBusy,
}

// TwilioConfig carries the endpoints and copy the handlers render
type TwilioConfig struct {
	PublicBaseURL string // externally reachable base for webhook callbacks
	GreetingText  string // spoken to inbound callers before they queue
}

// TwilioHandler processes telephony provider webhooks and serves TwiML
type TwilioHandler struct {
	store    storage.Store
	engine   *transfer.Engine
	queue    *queue.Service
	resolver OwnerResolver
	notifier notify.Notifier
	cfg      TwilioConfig
	logger   zerolog.Logger
}

// NewTwilioHandler creates a TwilioHandler
func NewTwilioHandler(store storage.Store, engine *transfer.Engine, queueSvc *queue.Service, resolver OwnerResolver, notifier notify.Notifier, cfg TwilioConfig, logger zerolog.Logger) *TwilioHandler {
	if cfg.GreetingText == "" {
		cfg.GreetingText = "Thank you for calling. Please hold while we connect you to the next available agent."
	}
	return &TwilioHandler{
		store:    store,
		engine:   engine,
		queue:    queueSvc,
		resolver: resolver,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
	}
}

// HandleStatus processes POST /webhooks/telephony/status
func (h *TwilioHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	metrics.Get().RecordWebhookReceived()

	callSID := r.PostFormValue("CallSid")
	rawStatus := r.PostFormValue("CallStatus")

	call, err := h.store.GetCallBySID(r.Context(), callSID)
	if err != nil {
		// Status callbacks for legs we never tracked are normal
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
		return
	}

	status, known := telephonyStatusMap[rawStatus]
	if known && !call.Status.Terminal() {
		call.Status = status
		if status.Terminal() && call.EndTime == nil {
			now := time.Now()
			call.EndTime = &now
		}
	}
	if d := r.PostFormValue("CallDuration"); d != "" {
		if seconds, err := strconv.Atoi(d); err == nil {
			call.Duration = seconds
		}
	}

	if err := h.store.SaveCall(r.Context(), call); err != nil {
		h.logger.Error().Err(err).Str("call_id", call.ID).Msg("failed to persist status update")
	}

	h.notifier.BroadcastToOwner(call.OwnerID, types.EventCallStatus, types.CallStatusEvent{
		CallID: call.ID,
		Status: call.Status,
	})
	metrics.Get().RecordWebhookProcessed()

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// HandleRecording processes POST /webhooks/telephony/recording
func (h *TwilioHandler) HandleRecording(w http.ResponseWriter, r *http.Request) {
	metrics.Get().RecordWebhookReceived()

	callSID := r.PostFormValue("CallSid")
	call, err := h.store.GetCallBySID(r.Context(), callSID)
	if err == nil {
		duration := 0
		if d := r.PostFormValue("RecordingDuration"); d != "" {
			duration, _ = strconv.Atoi(d)
		}
		call.Recording = &types.Recording{
			URL:      r.PostFormValue("RecordingUrl"),
			Duration: duration,
		}
		if err := h.store.SaveCall(r.Context(), call); err != nil {
			h.logger.Error().Err(err).Str("call_id", call.ID).Msg("failed to persist recording")
		}
	}
	metrics.Get().RecordWebhookProcessed()

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// HandleGather processes POST /webhooks/telephony/gather: the caller pressed
// a key on a telephony-managed menu.
func (h *TwilioHandler) HandleGather(w http.ResponseWriter, r *http.Request) {
	metrics.Get().RecordWebhookReceived()

	callSID := r.PostFormValue("CallSid")
	digits := r.PostFormValue("Digits")

	call, err := h.store.GetCallBySID(r.Context(), callSID)
	if err != nil {
		h.renderTwiML(w, new(TwiML).Say("I'm sorry, something went wrong. Goodbye.").Hangup())
		return
	}

	inst := h.engine.ExecuteForCall(r.Context(), call, transfer.Request{
		ProviderCallID: call.ProviderCallID,
		Kind:           transfer.KindDTMF,
		Digit:          digits,
		CallSID:        callSID,
	})

	t := new(TwiML)
	switch inst.Outcome {
	case transfer.OutcomeDial:
		t.Say(inst.Message).DialNumber(inst.Destination, "")
	case transfer.OutcomeQueued:
		entry, err := h.store.GetQueueEntry(r.Context(), inst.QueueEntryID)
		if err != nil {
			t.Say(inst.Message)
			break
		}
		t.Say(inst.Message).JoinConference(
			bridge.RoomFor(entry.CallSID), false, false,
			h.cfg.PublicBaseURL+"/webhooks/telephony/queue-result?queueId="+entry.ID,
		)
	default:
		t.Say(inst.Message).Hangup()
	}
	metrics.Get().RecordWebhookProcessed()
	h.renderTwiML(w, t)
}

// HandleInbound processes POST /webhooks/telephony/inbound: a customer dialed
// one of our numbers directly. The caller gets a baseline-priority queue
// entry and parks in the conference room until an agent accepts.
func (h *TwilioHandler) HandleInbound(w http.ResponseWriter, r *http.Request) {
	metrics.Get().RecordWebhookReceived()

	callSID := r.PostFormValue("CallSid")
	from := r.PostFormValue("From")
	to := r.PostFormValue("To")
	callerName := r.PostFormValue("CallerName")

	ownerID, ok := h.resolver.ResolveOwner(to)
	if !ok {
		h.logger.Warn().Str("to", to).Msg("inbound call to unrecognized number")
		metrics.Get().RecordWebhookError()
		h.renderTwiML(w, new(TwiML).
			Say("We're sorry, this number is not in service. Goodbye.").
			Hangup())
		return
	}

	// Delivery is at-least-once. A retried webhook for a leg we already
	// queued must re-serve the park TwiML, not enqueue the caller twice.
	if existing, err := h.store.GetQueueEntryBySID(r.Context(), callSID); err == nil && !existing.Status.Terminal() {
		h.logger.Debug().
			Str("call_sid", callSID).
			Str("queue_id", existing.ID).
			Msg("retried inbound webhook, reusing queue entry")
		metrics.Get().RecordWebhookProcessed()
		h.renderTwiML(w, new(TwiML).
			Say(h.cfg.GreetingText).
			JoinConference(
				bridge.RoomFor(callSID), false, false,
				h.cfg.PublicBaseURL+"/webhooks/telephony/queue-result?queueId="+existing.ID,
			))
		return
	}

	call := &types.CallRecord{
		ID:            uuid.New().String(),
		OwnerID:       ownerID,
		CustomerPhone: from,
		CustomerName:  callerName,
		Status:        types.CallInQueue,
		CallSID:       callSID,
		CreatedAt:     time.Now(),
	}
	if err := h.store.CreateCall(r.Context(), call); err != nil {
		h.logger.Error().Err(err).Str("call_sid", callSID).Msg("failed to create inbound call record")
	}

	entry, err := h.queue.Enqueue(r.Context(), queue.EnqueueParams{
		OwnerID:       ownerID,
		CallID:        call.ID,
		CallSID:       callSID,
		CustomerPhone: from,
		CustomerName:  callerName,
		Source:        types.SourceInbound,
		Priority:      types.PriorityInbound,
	})
	if err != nil {
		h.logger.Error().Err(err).Str("call_sid", callSID).Msg("failed to enqueue inbound call")
		h.renderTwiML(w, new(TwiML).
			Say("We're sorry, we can't take your call right now. Please try again later.").
			Hangup())
		return
	}

	metrics.Get().RecordWebhookProcessed()
	h.renderTwiML(w, new(TwiML).
		Say(h.cfg.GreetingText).
		JoinConference(
			bridge.RoomFor(callSID), false, false,
			h.cfg.PublicBaseURL+"/webhooks/telephony/queue-result?queueId="+entry.ID,
		))
}

// HandleQueueResult processes the Dial action callback when a caller leaves
// the conference: bridged means an agent picked up, anything else means the
// caller gave up waiting.
func (h *TwilioHandler) HandleQueueResult(w http.ResponseWriter, r *http.Request) {
	metrics.Get().RecordWebhookReceived()

	queueID := r.URL.Query().Get("queueId")
	dialStatus := r.PostFormValue("DialCallStatus")

	entry, err := h.store.GetQueueEntry(r.Context(), queueID)
	if err != nil {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
		return
	}

	if !entry.Status.Terminal() {
		result := types.QueueAbandoned
		if dialStatus == "completed" && entry.AssignedAgent != "" {
			result = types.QueueAnswered
		}
		if _, err := h.queue.MarkResult(r.Context(), entry.ID, result); err != nil {
			h.logger.Error().Err(err).Str("entry_id", entry.ID).Msg("failed to record queue result")
		}
	}
	metrics.Get().RecordWebhookProcessed()

	h.renderTwiML(w, new(TwiML).Hangup())
}

// HandleVoice processes POST /webhooks/telephony/voice: the agent's browser
// softphone dialing into a conference room. This leg starts the bridge and
// tears the room down when the agent hangs up.
func (h *TwilioHandler) HandleVoice(w http.ResponseWriter, r *http.Request) {
	metrics.Get().RecordWebhookReceived()

	room := r.PostFormValue("roomId")
	if room == "" {
		if queueID := r.PostFormValue("queueId"); queueID != "" {
			if entry, err := h.store.GetQueueEntry(r.Context(), queueID); err == nil {
				room = bridge.RoomFor(entry.CallSID)
			}
		}
	}

	if room == "" {
		h.renderTwiML(w, new(TwiML).Say("No call to connect to.").Hangup())
		return
	}

	metrics.Get().RecordWebhookProcessed()
	h.renderTwiML(w, new(TwiML).JoinConference(room, true, true, ""))
}

// HandleTransferTwiML serves the document a redirected AI call leg lands on:
// the caller leaves the assistant and waits in the conference room.
func (h *TwilioHandler) HandleTransferTwiML(w http.ResponseWriter, r *http.Request) {
	metrics.Get().RecordWebhookReceived()

	queueID := r.URL.Query().Get("queueId")
	entry, err := h.store.GetQueueEntry(r.Context(), queueID)
	if err != nil {
		h.renderTwiML(w, new(TwiML).
			Say("We're sorry, your transfer could not be completed. Goodbye.").
			Hangup())
		return
	}

	metrics.Get().RecordWebhookProcessed()
	h.renderTwiML(w, new(TwiML).
		Say("Please hold while we connect you to the next available agent.").
		JoinConference(
			bridge.RoomFor(entry.CallSID), false, false,
			h.cfg.PublicBaseURL+"/webhooks/telephony/queue-result?queueId="+entry.ID,
		))
}

func (h *TwilioHandler) renderTwiML(w http.ResponseWriter, t *TwiML) {
	doc, err := t.Render()
	if err != nil {
		h.logger.Error().Err(err).Msg("twiml render failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(doc))
}
