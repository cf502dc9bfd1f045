package webhook

import (
	"context"
	"encoding/json"
	"net/http/httptest"
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

func newVapiHandler(t *testing.T, mode transfer.Mode) (*VapiHandler, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	queueSvc := queue.NewService(store, notify.Noop{}, 2*time.Minute, zerolog.Nop())
	engine := transfer.NewEngine(store, queueSvc, notify.Noop{}, nil, transfer.Config{
		Mode:            mode,
		QueueNumber:     "+15559990000",
		TransferBaseURL: "https://ivr.example.com",
	}, zerolog.Nop())
	return NewVapiHandler(store, engine, notify.Noop{}, zerolog.Nop()), store
}

func seedVapiCall(t *testing.T, store *storage.MemoryStore) *types.CallRecord {
	t.Helper()
	call := &types.CallRecord{
		ID:             "call-1",
		OwnerID:        "owner-1",
		CustomerPhone:  "+15551234567",
		Status:         types.CallRinging,
		ProviderCallID: "vapi-abc",
		CreatedAt:      time.Now(),
	}
	if err := store.CreateCall(context.Background(), call); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	return call
}

func postVapi(t *testing.T, h *VapiHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/webhooks/vapi", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.Handle(rr, req)
	return rr
}

func TestVapiWrappedAndBareEnvelopes(t *testing.T) {
	h, store := newVapiHandler(t, transfer.ModeQueue)
	seedVapiCall(t, store)

	wrapped := `{"message":{"type":"call-started","call":{"id":"vapi-abc"}}}`
	if rr := postVapi(t, h, wrapped); rr.Code != 200 {
		t.Fatalf("wrapped envelope: expected 200, got %d", rr.Code)
	}
	call, _ := store.GetCall(context.Background(), "call-1")
	if call.Status != types.CallInProgress {
		t.Errorf("expected in-progress after wrapped call-started, got %s", call.Status)
	}
	if call.StartTime == nil {
		t.Error("expected StartTime set")
	}

	startTime := *call.StartTime
	bare := `{"type":"call-started","call":{"id":"vapi-abc"}}`
	if rr := postVapi(t, h, bare); rr.Code != 200 {
		t.Fatalf("bare envelope: expected 200, got %d", rr.Code)
	}
	call, _ = store.GetCall(context.Background(), "call-1")
	if !call.StartTime.Equal(startTime) {
		t.Error("StartTime must be set once")
	}
}

func TestVapiToolCallTransferQueuesCaller(t *testing.T) {
	h, store := newVapiHandler(t, transfer.ModeQueue)
	seedVapiCall(t, store)

	body := `{"message":{"type":"tool-calls","toolCalls":[{"id":"tc-1","function":{"name":"transferToAgent"}}],` +
		`"call":{"id":"vapi-abc","phoneCallProviderId":"CA777","customer":{"number":"+15551234567"}}}}`
	rr := postVapi(t, h, body)
	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var resp struct {
		Results []struct {
			ToolCallID string `json:"toolCallId"`
			Result     string `json:"result"`
		} `json:"results"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response json: %v", err)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("expected one result, got %d", len(resp.Results))
	}
	if resp.Results[0].ToolCallID != "tc-1" {
		t.Errorf("expected tool call id echoed, got %q", resp.Results[0].ToolCallID)
	}

	call, _ := store.GetCall(context.Background(), "call-1")
	if call.Status != types.CallInQueue {
		t.Errorf("expected call in-queue, got %s", call.Status)
	}
	if call.CallSID != "CA777" {
		t.Errorf("expected telephony sid recorded, got %q", call.CallSID)
	}

	entries, _ := store.ListQueueEntries(context.Background(), "owner-1")
	if len(entries) != 1 {
		t.Fatalf("expected one queue entry, got %d", len(entries))
	}
	if entries[0].Priority != types.PriorityTransfer {
		t.Errorf("expected transfer priority, got %d", entries[0].Priority)
	}
}

func TestVapiToolCallsWithoutTransferFunction(t *testing.T) {
	h, _ := newVapiHandler(t, transfer.ModeQueue)

	body := `{"message":{"type":"tool-calls","toolCalls":[{"id":"tc-1","function":{"name":"lookupOrder"}}]}}`
	rr := postVapi(t, h, body)
	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"results":[]`) {
		t.Errorf("expected empty results, got %s", rr.Body.String())
	}
}

func TestVapiDTMFDirectTransfer(t *testing.T) {
	h, store := newVapiHandler(t, transfer.ModeDirect)
	seedVapiCall(t, store)

	if err := store.PutAgent(context.Background(), &types.Agent{
		ID: "agent-1", OwnerID: "owner-1", Name: "Alice",
		PhoneNumber: "+15557770001", TransferKey: "1", IsAvailable: true,
	}); err != nil {
		t.Fatalf("seed agent failed: %v", err)
	}

	body := `{"message":{"type":"dtmf","digit":"1","call":{"id":"vapi-abc"}}}`
	rr := postVapi(t, h, body)
	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var resp struct {
		Results []struct {
			Result      string `json:"result"`
			Destination *struct {
				Type   string `json:"type"`
				Number string `json:"number"`
			} `json:"destination"`
		} `json:"results"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response json: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].Result != "transfer" {
		t.Fatalf("expected transfer result, got %s", rr.Body.String())
	}
	if resp.Results[0].Destination == nil || resp.Results[0].Destination.Number != "+15557770001" {
		t.Errorf("expected destination +15557770001, got %+v", resp.Results[0].Destination)
	}

	call, _ := store.GetCall(context.Background(), "call-1")
	if call.Status != types.CallTransferred {
		t.Errorf("expected transferred, got %s", call.Status)
	}
}

func TestVapiDTMFWithoutDigitContinues(t *testing.T) {
	h, _ := newVapiHandler(t, transfer.ModeDirect)

	rr := postVapi(t, h, `{"message":{"type":"dtmf"}}`)
	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "continue") {
		t.Errorf("expected continue result, got %s", rr.Body.String())
	}
}

func TestVapiCallEndedFoldsArtifact(t *testing.T) {
	h, store := newVapiHandler(t, transfer.ModeQueue)
	call := seedVapiCall(t, store)
	call.Status = types.CallInProgress
	if err := store.SaveCall(context.Background(), call); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	body := `{"message":{"type":"call-ended",` +
		`"call":{"id":"vapi-abc","duration":42.6,"summary":"asked about billing","cost":0.35},` +
		`"artifact":{"transcript":"full text","recordingUrl":"https://rec.example/1.mp3",` +
		`"messages":[{"role":"assistant","content":"Hello","time":1700000000000}]}}}`
	if rr := postVapi(t, h, body); rr.Code != 200 {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	got, _ := store.GetCall(context.Background(), "call-1")
	if got.Status != types.CallCompleted {
		t.Errorf("expected completed, got %s", got.Status)
	}
	if got.Duration != 43 {
		t.Errorf("expected rounded duration 43, got %d", got.Duration)
	}
	if got.Transcript != "full text" {
		t.Errorf("expected artifact transcript, got %q", got.Transcript)
	}
	if got.Recording == nil || got.Recording.URL != "https://rec.example/1.mp3" {
		t.Error("expected recording from artifact")
	}
	if len(got.TranscriptTurns) != 1 || got.TranscriptTurns[0].Role != "assistant" {
		t.Errorf("expected one transcript turn, got %+v", got.TranscriptTurns)
	}
	if got.Summary != "asked about billing" {
		t.Errorf("expected summary, got %q", got.Summary)
	}
	if got.Cost != 0.35 {
		t.Errorf("expected cost 0.35, got %f", got.Cost)
	}
	if got.EndTime == nil {
		t.Error("expected EndTime set")
	}
}

func TestVapiCallEndedAfterQueueStaysTransferred(t *testing.T) {
	h, store := newVapiHandler(t, transfer.ModeQueue)
	call := seedVapiCall(t, store)
	call.Status = types.CallInQueue
	if err := store.SaveCall(context.Background(), call); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	if rr := postVapi(t, h, `{"message":{"type":"call-ended","call":{"id":"vapi-abc"}}}`); rr.Code != 200 {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	got, _ := store.GetCall(context.Background(), "call-1")
	if got.Status != types.CallTransferred {
		t.Errorf("call that left for the queue must end transferred, got %s", got.Status)
	}
}

func TestVapiTranscriptAppends(t *testing.T) {
	h, store := newVapiHandler(t, transfer.ModeQueue)
	seedVapiCall(t, store)

	postVapi(t, h, `{"message":{"type":"transcript","transcript":"hello","call":{"id":"vapi-abc"}}}`)
	postVapi(t, h, `{"message":{"type":"transcript","transcript":"world","call":{"id":"vapi-abc"}}}`)

	got, _ := store.GetCall(context.Background(), "call-1")
	if got.Transcript != "hello world" {
		t.Errorf("expected appended transcript, got %q", got.Transcript)
	}
}

func TestVapiAssistantRequestListsAvailableAgents(t *testing.T) {
	h, store := newVapiHandler(t, transfer.ModeQueue)
	seedVapiCall(t, store)
	ctx := context.Background()

	store.PutAgent(ctx, &types.Agent{
		ID: "agent-1", OwnerID: "owner-1", Name: "Alice",
		PhoneNumber: "+15557770001", TransferKey: "1", IsAvailable: true,
	})
	store.PutAgent(ctx, &types.Agent{
		ID: "agent-2", OwnerID: "owner-1", Name: "Bob",
		PhoneNumber: "+15557770002", TransferKey: "2", IsAvailable: false,
	})

	rr := postVapi(t, h, `{"message":{"type":"assistant-request","call":{"id":"vapi-abc"}}}`)
	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var resp struct {
		Assistant struct {
			TransferDestinations []struct {
				Number string `json:"number"`
			} `json:"transferDestinations"`
		} `json:"assistant"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response json: %v", err)
	}
	if len(resp.Assistant.TransferDestinations) != 1 {
		t.Fatalf("expected one destination, got %d", len(resp.Assistant.TransferDestinations))
	}
	if resp.Assistant.TransferDestinations[0].Number != "+15557770001" {
		t.Errorf("expected available agent only, got %+v", resp.Assistant.TransferDestinations)
	}
}

func TestVapiUnknownEventAcknowledged(t *testing.T) {
	h, _ := newVapiHandler(t, transfer.ModeQueue)

	rr := postVapi(t, h, `{"message":{"type":"speech-update","call":{"id":"vapi-missing"}}}`)
	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "received") {
		t.Errorf("expected received ack, got %s", rr.Body.String())
	}
}
