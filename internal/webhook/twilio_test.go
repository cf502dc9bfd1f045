package webhook

import (
	"context"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/hardw419/ivr-system/internal/notify"
	"github.com/hardw419/ivr-system/internal/queue"
	"github.com/hardw419/ivr-system/internal/storage"
	"github.com/hardw419/ivr-system/internal/transfer"
	"github.com/hardw419/ivr-system/internal/types"
	"github.com/rs/zerolog"
)

func newTwilioHandler(t *testing.T) (*TwilioHandler, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	queueSvc := queue.NewService(store, notify.Noop{}, 2*time.Minute, zerolog.Nop())
	engine := transfer.NewEngine(store, queueSvc, notify.Noop{}, nil, transfer.Config{
		Mode:        transfer.ModeDirect,
		QueueNumber: "+15559990000",
	}, zerolog.Nop())
	resolver := NewStaticOwnerResolver(map[string]string{"+15550005555": "owner-1"})
	h := NewTwilioHandler(store, engine, queueSvc, resolver, notify.Noop{}, TwilioConfig{
		PublicBaseURL: "https://ivr.example.com",
	}, zerolog.Nop())
	return h, store
}

func TestStatusCallbackUpdatesCall(t *testing.T) {
	h, store := newTwilioHandler(t)
	ctx := context.Background()

	store.CreateCall(ctx, &types.CallRecord{
		ID: "call-1", OwnerID: "owner-1", CallSID: "CA123",
		Status: types.CallRinging, CreatedAt: time.Now(),
	})

	form := url.Values{}
	form.Set("CallSid", "CA123")
	form.Set("CallStatus", "completed")
	form.Set("CallDuration", "85")
	req := httptest.NewRequest("POST", "/webhooks/telephony/status", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.HandleStatus(rr, req)

	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	call, _ := store.GetCall(ctx, "call-1")
	if call.Status != types.CallCompleted {
		t.Errorf("expected completed, got %s", call.Status)
	}
	if call.Duration != 85 {
		t.Errorf("expected duration 85, got %d", call.Duration)
	}
	if call.EndTime == nil {
		t.Error("expected EndTime set on terminal status")
	}
}

func TestStatusCallbackNeverRegressesTerminal(t *testing.T) {
	h, store := newTwilioHandler(t)
	ctx := context.Background()

	ended := time.Now().Add(-time.Minute)
	store.CreateCall(ctx, &types.CallRecord{
		ID: "call-1", OwnerID: "owner-1", CallSID: "CA123",
		Status: types.CallCompleted, EndTime: &ended, CreatedAt: time.Now(),
	})

	form := url.Values{}
	form.Set("CallSid", "CA123")
	form.Set("CallStatus", "in-progress")
	req := httptest.NewRequest("POST", "/webhooks/telephony/status", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	h.HandleStatus(httptest.NewRecorder(), req)

	call, _ := store.GetCall(ctx, "call-1")
	if call.Status != types.CallCompleted {
		t.Errorf("terminal status must not regress, got %s", call.Status)
	}
	if !call.EndTime.Equal(ended) {
		t.Error("EndTime must be preserved")
	}
}

func TestRecordingCallback(t *testing.T) {
	h, store := newTwilioHandler(t)
	ctx := context.Background()

	store.CreateCall(ctx, &types.CallRecord{
		ID: "call-1", OwnerID: "owner-1", CallSID: "CA123",
		Status: types.CallCompleted, CreatedAt: time.Now(),
	})

	form := url.Values{}
	form.Set("CallSid", "CA123")
	form.Set("RecordingUrl", "https://rec.example/r.mp3")
	form.Set("RecordingDuration", "61")
	req := httptest.NewRequest("POST", "/webhooks/telephony/recording", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	h.HandleRecording(httptest.NewRecorder(), req)

	call, _ := store.GetCall(ctx, "call-1")
	if call.Recording == nil || call.Recording.URL != "https://rec.example/r.mp3" || call.Recording.Duration != 61 {
		t.Errorf("expected recording saved, got %+v", call.Recording)
	}
}

func TestGatherDialsMatchedAgent(t *testing.T) {
	h, store := newTwilioHandler(t)
	ctx := context.Background()

	store.CreateCall(ctx, &types.CallRecord{
		ID: "call-1", OwnerID: "owner-1", CallSID: "CA123",
		Status: types.CallInProgress, CreatedAt: time.Now(),
	})
	store.PutAgent(ctx, &types.Agent{
		ID: "agent-1", OwnerID: "owner-1", Name: "Alice",
		PhoneNumber: "+15557770001", TransferKey: "1", IsAvailable: true,
	})

	form := url.Values{}
	form.Set("CallSid", "CA123")
	form.Set("Digits", "1")
	req := httptest.NewRequest("POST", "/webhooks/telephony/gather", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.HandleGather(rr, req)

	if ct := rr.Header().Get("Content-Type"); ct != "text/xml" {
		t.Errorf("expected text/xml, got %s", ct)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "<Number>+15557770001</Number>") {
		t.Errorf("expected dial to agent number, got %s", body)
	}

	call, _ := store.GetCall(ctx, "call-1")
	if call.Status != types.CallTransferred {
		t.Errorf("expected transferred, got %s", call.Status)
	}
}

func TestGatherUnknownDigitHangsUp(t *testing.T) {
	h, store := newTwilioHandler(t)
	store.CreateCall(context.Background(), &types.CallRecord{
		ID: "call-1", OwnerID: "owner-1", CallSID: "CA123",
		Status: types.CallInProgress, CreatedAt: time.Now(),
	})

	form := url.Values{}
	form.Set("CallSid", "CA123")
	form.Set("Digits", "9")
	req := httptest.NewRequest("POST", "/webhooks/telephony/gather", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.HandleGather(rr, req)

	if !strings.Contains(rr.Body.String(), "<Hangup") {
		t.Errorf("expected hangup, got %s", rr.Body.String())
	}
}

func TestInboundCreatesEntryAndParksCaller(t *testing.T) {
	h, store := newTwilioHandler(t)

	form := url.Values{}
	form.Set("CallSid", "CA555")
	form.Set("From", "+15551112222")
	form.Set("To", "+15550005555")
	req := httptest.NewRequest("POST", "/webhooks/telephony/inbound", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.HandleInbound(rr, req)

	body := rr.Body.String()
	if !strings.Contains(body, "queue-CA555") {
		t.Errorf("expected conference room keyed by call sid, got %s", body)
	}
	if !strings.Contains(body, `startConferenceOnEnter="false"`) {
		t.Errorf("caller leg must not start the conference, got %s", body)
	}

	entries, _ := store.ListQueueEntries(context.Background(), "owner-1")
	if len(entries) != 1 {
		t.Fatalf("expected one queue entry, got %d", len(entries))
	}
	if entries[0].Priority != types.PriorityInbound {
		t.Errorf("expected baseline priority, got %d", entries[0].Priority)
	}
	if entries[0].Source != types.SourceInbound {
		t.Errorf("expected inbound source, got %s", entries[0].Source)
	}

	call, err := store.GetCallBySID(context.Background(), "CA555")
	if err != nil {
		t.Fatalf("expected call record for inbound leg: %v", err)
	}
	if call.Status != types.CallInQueue {
		t.Errorf("expected in-queue, got %s", call.Status)
	}
}

func TestInboundRetryReusesQueueEntry(t *testing.T) {
	h, store := newTwilioHandler(t)
	ctx := context.Background()

	form := url.Values{}
	form.Set("CallSid", "CA555")
	form.Set("From", "+15551112222")
	form.Set("To", "+15550005555")

	post := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/webhooks/telephony/inbound", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rr := httptest.NewRecorder()
		h.HandleInbound(rr, req)
		return rr
	}

	post()
	first, _ := store.GetQueueEntryBySID(ctx, "CA555")

	rr := post()
	entries, _ := store.ListQueueEntries(ctx, "owner-1")
	if len(entries) != 1 {
		t.Fatalf("retried inbound webhook must not duplicate entries, got %d", len(entries))
	}

	body := rr.Body.String()
	if !strings.Contains(body, "queue-CA555") {
		t.Errorf("retry must re-park the caller in the same room, got %s", body)
	}
	if !strings.Contains(body, "queueId="+first.ID) {
		t.Errorf("retry must reference the original entry %s, got %s", first.ID, body)
	}
}

func TestInboundRetryAfterTerminalEntryQueuesFresh(t *testing.T) {
	h, store := newTwilioHandler(t)
	ctx := context.Background()

	store.CreateQueueEntry(ctx, &types.QueueEntry{
		ID: "old-entry", OwnerID: "owner-1", CallSID: "CA555",
		Status: types.QueueAbandoned, WaitStart: time.Now().Add(-time.Hour),
	})

	form := url.Values{}
	form.Set("CallSid", "CA555")
	form.Set("From", "+15551112222")
	form.Set("To", "+15550005555")
	req := httptest.NewRequest("POST", "/webhooks/telephony/inbound", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.HandleInbound(rr, req)

	if !strings.Contains(rr.Body.String(), "queue-CA555") {
		t.Errorf("expected caller parked, got %s", rr.Body.String())
	}
	entries, _ := store.ListQueueEntries(ctx, "owner-1", types.QueueWaiting)
	if len(entries) != 1 {
		t.Fatalf("expected a fresh waiting entry after the old one ended, got %d", len(entries))
	}
	if entries[0].ID == "old-entry" {
		t.Error("terminal entry must not be reused")
	}
}

func TestInboundUnknownNumberRejected(t *testing.T) {
	h, store := newTwilioHandler(t)

	form := url.Values{}
	form.Set("CallSid", "CA556")
	form.Set("From", "+15551112222")
	form.Set("To", "+19999999999")
	req := httptest.NewRequest("POST", "/webhooks/telephony/inbound", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.HandleInbound(rr, req)

	if !strings.Contains(rr.Body.String(), "<Hangup") {
		t.Errorf("expected hangup for unknown number, got %s", rr.Body.String())
	}
	entries, _ := store.ListQueueEntries(context.Background(), "owner-1")
	if len(entries) != 0 {
		t.Errorf("no entry should be created for unknown numbers")
	}
}

func TestQueueResultAnsweredWhenAgentBridged(t *testing.T) {
	h, store := newTwilioHandler(t)
	ctx := context.Background()

	answerTime := time.Now()
	store.CreateQueueEntry(ctx, &types.QueueEntry{
		ID: "entry-1", OwnerID: "owner-1", CallSID: "CA555",
		Status: types.QueueRinging, AssignedAgent: "agent-1",
		WaitStart: time.Now().Add(-30 * time.Second), AnswerTime: &answerTime,
	})

	form := url.Values{}
	form.Set("DialCallStatus", "completed")
	req := httptest.NewRequest("POST", "/webhooks/telephony/queue-result?queueId=entry-1", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	h.HandleQueueResult(httptest.NewRecorder(), req)

	entry, _ := store.GetQueueEntry(ctx, "entry-1")
	if entry.Status != types.QueueAnswered {
		t.Errorf("expected answered, got %s", entry.Status)
	}
}

func TestQueueResultAbandonedWhenNoAgent(t *testing.T) {
	h, store := newTwilioHandler(t)
	ctx := context.Background()

	store.CreateQueueEntry(ctx, &types.QueueEntry{
		ID: "entry-1", OwnerID: "owner-1", CallSID: "CA555",
		Status: types.QueueWaiting, WaitStart: time.Now().Add(-30 * time.Second),
	})

	form := url.Values{}
	form.Set("DialCallStatus", "completed")
	req := httptest.NewRequest("POST", "/webhooks/telephony/queue-result?queueId=entry-1", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	h.HandleQueueResult(httptest.NewRecorder(), req)

	entry, _ := store.GetQueueEntry(ctx, "entry-1")
	if entry.Status != types.QueueAbandoned {
		t.Errorf("caller who left before assignment is abandoned, got %s", entry.Status)
	}
	if entry.EndTime == nil {
		t.Error("expected EndTime set")
	}
}

func TestVoiceJoinsAgentLeg(t *testing.T) {
	h, store := newTwilioHandler(t)

	store.CreateQueueEntry(context.Background(), &types.QueueEntry{
		ID: "entry-1", OwnerID: "owner-1", CallSID: "CA555",
		Status: types.QueueRinging, WaitStart: time.Now(),
	})

	form := url.Values{}
	form.Set("queueId", "entry-1")
	req := httptest.NewRequest("POST", "/webhooks/telephony/voice", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.HandleVoice(rr, req)

	body := rr.Body.String()
	if !strings.Contains(body, "queue-CA555") {
		t.Errorf("expected room from entry call sid, got %s", body)
	}
	if !strings.Contains(body, `startConferenceOnEnter="true"`) || !strings.Contains(body, `endConferenceOnExit="true"`) {
		t.Errorf("agent leg must start and tear down the conference, got %s", body)
	}
}

func TestTransferTwiMLParksRedirectedCaller(t *testing.T) {
	h, store := newTwilioHandler(t)

	store.CreateQueueEntry(context.Background(), &types.QueueEntry{
		ID: "entry-1", OwnerID: "owner-1", CallSID: "CA777",
		Status: types.QueueWaiting, WaitStart: time.Now(),
	})

	req := httptest.NewRequest("POST", "/webhooks/telephony/transfer-twiml?queueId=entry-1", nil)
	rr := httptest.NewRecorder()
	h.HandleTransferTwiML(rr, req)

	body := rr.Body.String()
	if !strings.Contains(body, "queue-CA777") {
		t.Errorf("expected conference room for redirected leg, got %s", body)
	}
	if !strings.Contains(body, `startConferenceOnEnter="false"`) {
		t.Errorf("redirected caller waits for the agent, got %s", body)
	}
}
