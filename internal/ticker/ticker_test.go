package ticker

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// recordingNotifier counts broadcasts and keeps the last payload
type recordingNotifier struct {
	mu     sync.Mutex
	events []string
	last   any
}

func (n *recordingNotifier) Broadcast(event string, payload any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	n.last = payload
}

func (n *recordingNotifier) BroadcastToOwner(ownerID, event string, payload any) {
	n.Broadcast(event, payload)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

func TestNewTicker(t *testing.T) {
	logger := zerolog.New(&bytes.Buffer{})
	notifier := &recordingNotifier{}
	ticker := NewTicker(notifier, 1*time.Second, logger)

	if ticker == nil {
		t.Fatal("expected ticker to be created")
	}
	if ticker.interval != 1*time.Second {
		t.Errorf("expected interval 1s, got %v", ticker.interval)
	}
}

func TestTickerBroadcastsServerTime(t *testing.T) {
	logger := zerolog.New(&bytes.Buffer{})
	notifier := &recordingNotifier{}
	ticker := NewTicker(notifier, 20*time.Millisecond, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	done := make(chan bool)
	go func() {
		ticker.Start(ctx)
		done <- true
	}()
	<-done

	if notifier.count() == 0 {
		t.Fatal("expected at least one broadcast")
	}

	notifier.mu.Lock()
	event := notifier.events[0]
	msg, ok := notifier.last.(TimeMessage)
	notifier.mu.Unlock()

	if event != "server-time" {
		t.Errorf("expected event server-time, got %s", event)
	}
	if !ok {
		t.Fatalf("expected TimeMessage payload, got %T", notifier.last)
	}
	if msg.ServerTime == 0 {
		t.Error("expected ServerTime to be set")
	}
	if _, err := time.Parse(time.RFC3339, msg.Timestamp); err != nil {
		t.Errorf("expected RFC3339 timestamp, got %q: %v", msg.Timestamp, err)
	}
}

func TestTickerStopsOnContextCancel(t *testing.T) {
	logger := zerolog.New(&bytes.Buffer{})
	ticker := NewTicker(&recordingNotifier{}, 50*time.Millisecond, logger)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan bool)
	go func() {
		ticker.Start(ctx)
		done <- true
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Error("ticker did not stop within timeout after context cancel")
	}
}
