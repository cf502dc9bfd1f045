package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hardw419/ivr-system/internal/notify"
	"github.com/hardw419/ivr-system/internal/storage"
	"github.com/hardw419/ivr-system/internal/types"
	"github.com/rs/zerolog"
)

func newTestService(ceiling time.Duration) (*Service, *storage.MemoryStore) {
	store := storage.NewMemoryStore()
	svc := NewService(store, notify.Noop{}, ceiling, zerolog.Nop())
	return svc, store
}

func TestEnqueueCreatesWaitingEntry(t *testing.T) {
	svc, _ := newTestService(2 * time.Minute)

	entry, err := svc.Enqueue(context.Background(), EnqueueParams{
		OwnerID:       "owner-1",
		CustomerPhone: "+15551234567",
		Source:        types.SourceInbound,
		Priority:      types.PriorityInbound,
	})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if entry.ID == "" {
		t.Error("expected entry ID to be generated")
	}
	if entry.Status != types.QueueWaiting {
		t.Errorf("expected status waiting, got %s", entry.Status)
	}
	if entry.WaitStart.IsZero() {
		t.Error("expected WaitStart to be set")
	}
}

func TestAcceptExactlyOneWinner(t *testing.T) {
	svc, _ := newTestService(2 * time.Minute)

	entry, err := svc.Enqueue(context.Background(), EnqueueParams{
		OwnerID:       "owner-1",
		CustomerPhone: "+15551234567",
		Source:        types.SourceInbound,
		Priority:      types.PriorityInbound,
	})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	const agents = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	conflicts := 0

	for i := 0; i < agents; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := svc.Accept(context.Background(), entry.ID, "agent-"+string(rune('a'+n)))
			mu.Lock()
			defer mu.Unlock()
			switch err {
			case nil:
				winners++
			case storage.ErrAlreadyTaken:
				conflicts++
			default:
				t.Errorf("unexpected accept error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if winners != 1 {
		t.Errorf("expected exactly 1 winner, got %d", winners)
	}
	if conflicts != agents-1 {
		t.Errorf("expected %d conflicts, got %d", agents-1, conflicts)
	}
}

func TestAcceptRecordsAgentAndWait(t *testing.T) {
	svc, _ := newTestService(2 * time.Minute)

	entry, _ := svc.Enqueue(context.Background(), EnqueueParams{
		OwnerID:       "owner-1",
		CustomerPhone: "+15551234567",
		Source:        types.SourceTransfer,
		Priority:      types.PriorityTransfer,
	})

	accepted, err := svc.Accept(context.Background(), entry.ID, "agent-7")
	if err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	if accepted.Status != types.QueueRinging {
		t.Errorf("expected status ringing, got %s", accepted.Status)
	}
	if accepted.AssignedAgent != "agent-7" {
		t.Errorf("expected agent-7, got %s", accepted.AssignedAgent)
	}
	if accepted.AnswerTime == nil {
		t.Error("expected AnswerTime to be set")
	}
}

func TestAcceptUnknownEntry(t *testing.T) {
	svc, _ := newTestService(2 * time.Minute)

	if _, err := svc.Accept(context.Background(), "missing", "agent-1"); err != storage.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListWaitingOrdersByPriorityThenFIFO(t *testing.T) {
	svc, store := newTestService(2 * time.Minute)
	ctx := context.Background()

	now := time.Now()
	// A: inbound, oldest. B: transfer, newer. C: inbound, newest.
	for _, seed := range []struct {
		id       string
		priority int
		start    time.Time
	}{
		{"entry-a", types.PriorityInbound, now.Add(-60 * time.Second)},
		{"entry-b", types.PriorityTransfer, now.Add(-30 * time.Second)},
		{"entry-c", types.PriorityInbound, now.Add(-10 * time.Second)},
	} {
		if err := store.CreateQueueEntry(ctx, &types.QueueEntry{
			ID:        seed.id,
			OwnerID:   "owner-1",
			Status:    types.QueueWaiting,
			Priority:  seed.priority,
			WaitStart: seed.start,
		}); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	entries, err := svc.ListWaiting(ctx, "owner-1")
	if err != nil {
		t.Fatalf("ListWaiting failed: %v", err)
	}

	want := []string{"entry-b", "entry-a", "entry-c"}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(entries))
	}
	for i, id := range want {
		if entries[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, entries[i].ID)
		}
	}
}

func TestListWaitingExpiresStaleEntries(t *testing.T) {
	svc, store := newTestService(2 * time.Minute)
	ctx := context.Background()

	if err := store.CreateQueueEntry(ctx, &types.QueueEntry{
		ID:        "stale",
		OwnerID:   "owner-1",
		Status:    types.QueueWaiting,
		Priority:  types.PriorityInbound,
		WaitStart: time.Now().Add(-3 * time.Minute),
	}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if err := store.CreateQueueEntry(ctx, &types.QueueEntry{
		ID:        "fresh",
		OwnerID:   "owner-1",
		Status:    types.QueueWaiting,
		Priority:  types.PriorityInbound,
		WaitStart: time.Now().Add(-10 * time.Second),
	}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	entries, err := svc.ListWaiting(ctx, "owner-1")
	if err != nil {
		t.Fatalf("ListWaiting failed: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "fresh" {
		t.Fatalf("expected only fresh entry, got %+v", entries)
	}

	expired, err := store.GetQueueEntry(ctx, "stale")
	if err != nil {
		t.Fatalf("GetQueueEntry failed: %v", err)
	}
	if expired.Status != types.QueueTimeout {
		t.Errorf("expected stale entry to be timeout, got %s", expired.Status)
	}
	if expired.EndTime == nil {
		t.Error("expected EndTime to be set on expired entry")
	}
}

func TestExpiredEntryCannotBeAccepted(t *testing.T) {
	svc, store := newTestService(2 * time.Minute)
	ctx := context.Background()

	if err := store.CreateQueueEntry(ctx, &types.QueueEntry{
		ID:        "stale",
		OwnerID:   "owner-1",
		Status:    types.QueueWaiting,
		Priority:  types.PriorityInbound,
		WaitStart: time.Now().Add(-5 * time.Minute),
	}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	if _, err := svc.SweepExpired(ctx); err != nil {
		t.Fatalf("SweepExpired failed: %v", err)
	}

	if _, err := svc.Accept(ctx, "stale", "agent-1"); err != storage.ErrAlreadyTaken {
		t.Errorf("expected ErrAlreadyTaken for expired entry, got %v", err)
	}
}

func TestCompleteIsIdempotent(t *testing.T) {
	svc, _ := newTestService(2 * time.Minute)
	ctx := context.Background()

	entry, _ := svc.Enqueue(ctx, EnqueueParams{
		OwnerID:       "owner-1",
		CustomerPhone: "+15551234567",
		Source:        types.SourceInbound,
		Priority:      types.PriorityInbound,
	})
	if _, err := svc.Accept(ctx, entry.ID, "agent-1"); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}

	first, err := svc.Complete(ctx, entry.ID, "resolved billing issue")
	if err != nil {
		t.Fatalf("first Complete failed: %v", err)
	}
	if first.Status != types.QueueCompleted {
		t.Errorf("expected completed, got %s", first.Status)
	}
	if first.EndTime == nil {
		t.Fatal("expected EndTime to be set")
	}

	second, err := svc.Complete(ctx, entry.ID, "duplicate webhook")
	if err != nil {
		t.Fatalf("second Complete failed: %v", err)
	}
	if !second.EndTime.Equal(*first.EndTime) {
		t.Error("expected EndTime to be unchanged on repeat complete")
	}
	if second.Notes != first.Notes {
		t.Error("expected notes to be unchanged on repeat complete")
	}
}

func TestCleanupAbandonsNonTerminal(t *testing.T) {
	svc, store := newTestService(2 * time.Minute)
	ctx := context.Background()

	waiting, _ := svc.Enqueue(ctx, EnqueueParams{
		OwnerID: "owner-1", CustomerPhone: "+15550001111",
		Source: types.SourceInbound, Priority: types.PriorityInbound,
	})
	ringing, _ := svc.Enqueue(ctx, EnqueueParams{
		OwnerID: "owner-1", CustomerPhone: "+15550002222",
		Source: types.SourceInbound, Priority: types.PriorityInbound,
	})
	if _, err := svc.Accept(ctx, ringing.ID, "agent-1"); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	done, _ := svc.Enqueue(ctx, EnqueueParams{
		OwnerID: "owner-1", CustomerPhone: "+15550003333",
		Source: types.SourceInbound, Priority: types.PriorityInbound,
	})
	if _, err := svc.Accept(ctx, done.ID, "agent-2"); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	if _, err := svc.Complete(ctx, done.ID, ""); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	cleaned, err := svc.Cleanup(ctx, "owner-1")
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if cleaned != 2 {
		t.Errorf("expected 2 cleaned, got %d", cleaned)
	}

	for _, id := range []string{waiting.ID, ringing.ID} {
		got, err := store.GetQueueEntry(ctx, id)
		if err != nil {
			t.Fatalf("GetQueueEntry failed: %v", err)
		}
		if got.Status != types.QueueAbandoned {
			t.Errorf("entry %s: expected abandoned, got %s", id, got.Status)
		}
	}

	completed, _ := store.GetQueueEntry(ctx, done.ID)
	if completed.Status != types.QueueCompleted {
		t.Errorf("completed entry should stay completed, got %s", completed.Status)
	}
}

func TestStats(t *testing.T) {
	svc, store := newTestService(2 * time.Minute)
	ctx := context.Background()

	seeds := []*types.QueueEntry{
		{ID: "w1", OwnerID: "owner-1", Status: types.QueueWaiting, WaitStart: time.Now()},
		{ID: "w2", OwnerID: "owner-1", Status: types.QueueWaiting, WaitStart: time.Now()},
		{ID: "a1", OwnerID: "owner-1", Status: types.QueueAnswered, WaitStart: time.Now(), WaitDuration: 30},
		{ID: "x1", OwnerID: "owner-1", Status: types.QueueAbandoned, WaitStart: time.Now(), WaitDuration: 90},
		{ID: "o1", OwnerID: "owner-2", Status: types.QueueWaiting, WaitStart: time.Now()},
	}
	for _, e := range seeds {
		if err := store.CreateQueueEntry(ctx, e); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	stats, err := svc.Stats(ctx, "owner-1")
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Waiting != 2 {
		t.Errorf("expected 2 waiting, got %d", stats.Waiting)
	}
	if stats.Answered != 1 {
		t.Errorf("expected 1 answered, got %d", stats.Answered)
	}
	if stats.Abandoned != 1 {
		t.Errorf("expected 1 abandoned, got %d", stats.Abandoned)
	}
	if stats.AvgWaitTime != 60 {
		t.Errorf("expected avg wait 60, got %f", stats.AvgWaitTime)
	}
}
