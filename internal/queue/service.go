// Package queue owns the lifecycle of queue entries: admission, race-safe
// agent assignment, completion, and expiry of stale entries.
package queue

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/hardw419/ivr-system/internal/metrics"
	"github.com/hardw419/ivr-system/internal/notify"
	"github.com/hardw419/ivr-system/internal/storage"
	"github.com/hardw419/ivr-system/internal/types"
	"github.com/rs/zerolog"
)

// Service coordinates queue entry state. All mutations funnel through here
// (and the conditional updates in storage) so the invariants stay enforceable
// in one place.
type Service struct {
	store    storage.Store
	notifier notify.Notifier
	ceiling  time.Duration
	logger   zerolog.Logger
}

// NewService creates a queue Service. ceiling is the maximum time an entry
// may wait before the expiry sweep moves it to timeout.
func NewService(store storage.Store, notifier notify.Notifier, ceiling time.Duration, logger zerolog.Logger) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		ceiling:  ceiling,
		logger:   logger,
	}
}

// EnqueueParams describes a caller entering the queue
type EnqueueParams struct {
	OwnerID        string
	CallID         string
	ProviderCallID string
	CallSID        string
	CustomerPhone  string
	CustomerName   string
	KeyPressed     string
	Source         types.QueueSource
	Priority       int
}

// Enqueue inserts a new waiting entry and fans the event out to agent
// consoles. De-duplication is the caller's concern (transfer engine and
// webhook ingress check before enqueueing).
func (s *Service) Enqueue(ctx context.Context, params EnqueueParams) (*types.QueueEntry, error) {
	entry := &types.QueueEntry{
		ID:             uuid.New().String(),
		OwnerID:        params.OwnerID,
		CallID:         params.CallID,
		ProviderCallID: params.ProviderCallID,
		CallSID:        params.CallSID,
		CustomerPhone:  params.CustomerPhone,
		CustomerName:   params.CustomerName,
		Source:         params.Source,
		KeyPressed:     params.KeyPressed,
		Status:         types.QueueWaiting,
		Priority:       params.Priority,
		WaitStart:      time.Now(),
	}

	if err := s.store.CreateQueueEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to enqueue: %w", err)
	}
	metrics.Get().RecordEnqueue()

	s.notifier.BroadcastToOwner(entry.OwnerID, types.EventIncomingCall, types.IncomingCallEvent{
		QueueID:        entry.ID,
		CustomerPhone:  entry.CustomerPhone,
		CustomerName:   entry.CustomerName,
		ProviderCallID: entry.ProviderCallID,
		Source:         entry.Source,
		Priority:       entry.Priority,
		WaitStart:      entry.WaitStart,
	})

	s.logger.Debug().
		Str("entry_id", entry.ID).
		Str("customer", entry.CustomerPhone).
		Str("source", string(entry.Source)).
		Int("priority", entry.Priority).
		Msg("caller enqueued")

	return entry, nil
}

// ListWaiting returns all waiting and ringing entries for an owner, ordered
// by priority descending, then wait start ascending (FIFO within a priority
// band). The expiry sweep runs first; sweep failures are logged and never
// block the read.
func (s *Service) ListWaiting(ctx context.Context, ownerID string) ([]types.QueueEntry, error) {
	if _, err := s.SweepExpired(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("expiry sweep failed, continuing with list")
	}

	entries, err := s.store.ListQueueEntries(ctx, ownerID, types.QueueWaiting, types.QueueRinging)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue: %w", err)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Priority != entries[j].Priority {
			return entries[i].Priority > entries[j].Priority
		}
		return entries[i].WaitStart.Before(entries[j].WaitStart)
	})

	return entries, nil
}

// SweepExpired transitions every waiting/ringing entry older than the wait
// ceiling to timeout. Idempotent and safe to run concurrently with Accept:
// the storage-level condition resolves whoever gets there first.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.ceiling)
	stale, err := s.store.ListStaleEntries(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale entries: %w", err)
	}

	expired := 0
	for _, entry := range stale {
		updated, err := s.store.MarkQueueEntry(ctx, entry.ID, types.QueueTimeout, time.Now())
		if err != nil {
			s.logger.Warn().Err(err).Str("entry_id", entry.ID).Msg("failed to expire entry, skipping")
			continue
		}
		if updated.Status != types.QueueTimeout {
			// Someone else moved it to a terminal state first
			continue
		}
		expired++
		metrics.Get().RecordExpiry()
		s.notifier.BroadcastToOwner(entry.OwnerID, types.EventQueueUpdate, types.QueueUpdateEvent{
			Action:  "expired",
			QueueID: entry.ID,
			Status:  types.QueueTimeout,
		})
		s.logger.Info().
			Str("entry_id", entry.ID).
			Str("customer", entry.CustomerPhone).
			Dur("ceiling", s.ceiling).
			Msg("queue entry expired")
	}
	return expired, nil
}

// Accept assigns the entry to the agent iff it is still waiting. Losing the
// race returns storage.ErrAlreadyTaken; that is a normal outcome under
// concurrent consoles, not a failure.
func (s *Service) Accept(ctx context.Context, entryID, agentID string) (*types.QueueEntry, error) {
	entry, err := s.store.AcceptQueueEntry(ctx, entryID, agentID, time.Now())
	if err != nil {
		if err == storage.ErrAlreadyTaken {
			metrics.Get().RecordAcceptConflict()
		}
		return nil, err
	}
	metrics.Get().RecordAccept()

	// Tell every other console the entry is gone, immediately, not on the
	// next poll.
	s.notifier.BroadcastToOwner(entry.OwnerID, types.EventQueueUpdate, types.QueueUpdateEvent{
		Action:  "accepted",
		QueueID: entry.ID,
		AgentID: agentID,
		Status:  entry.Status,
	})

	s.logger.Info().
		Str("entry_id", entry.ID).
		Str("agent_id", agentID).
		Int("wait_seconds", entry.WaitDuration).
		Msg("queue entry accepted")

	return entry, nil
}

// Complete moves the entry to completed and records notes. Completing an
// already-terminal entry is a no-op success, since webhook retries are
// expected.
func (s *Service) Complete(ctx context.Context, entryID, notes string) (*types.QueueEntry, error) {
	entry, err := s.store.CompleteQueueEntry(ctx, entryID, time.Now(), notes)
	if err != nil {
		return nil, err
	}

	s.notifier.BroadcastToOwner(entry.OwnerID, types.EventQueueUpdate, types.QueueUpdateEvent{
		Action:  "completed",
		QueueID: entry.ID,
		AgentID: entry.AssignedAgent,
		Status:  entry.Status,
	})

	s.logger.Debug().
		Str("entry_id", entry.ID).
		Int("call_seconds", entry.CallDuration).
		Msg("queue entry completed")

	return entry, nil
}

// MarkResult applies a telephony queue-result event: the caller either
// reached an agent (answered) or hung up / was kicked out (abandoned).
func (s *Service) MarkResult(ctx context.Context, entryID string, status types.QueueStatus) (*types.QueueEntry, error) {
	entry, err := s.store.MarkQueueEntry(ctx, entryID, status, time.Now())
	if err != nil {
		return nil, err
	}
	s.notifier.BroadcastToOwner(entry.OwnerID, types.EventQueueUpdate, types.QueueUpdateEvent{
		Action:  string(status),
		QueueID: entry.ID,
		Status:  entry.Status,
	})
	return entry, nil
}

// Cleanup force-abandons every non-terminal entry for an owner. An
// operational escape hatch, not part of normal flow.
func (s *Service) Cleanup(ctx context.Context, ownerID string) (int, error) {
	entries, err := s.store.ListQueueEntries(ctx, ownerID,
		types.QueueWaiting, types.QueueRinging, types.QueueAnswered)
	if err != nil {
		return 0, fmt.Errorf("failed to list entries for cleanup: %w", err)
	}

	cleaned := 0
	for _, entry := range entries {
		if _, err := s.store.MarkQueueEntry(ctx, entry.ID, types.QueueAbandoned, time.Now()); err != nil {
			s.logger.Warn().Err(err).Str("entry_id", entry.ID).Msg("cleanup failed for entry")
			continue
		}
		cleaned++
	}

	if cleaned > 0 {
		s.notifier.BroadcastToOwner(ownerID, types.EventQueueUpdate, types.QueueUpdateEvent{
			Action: "cleanup",
			Status: types.QueueAbandoned,
		})
	}
	s.logger.Info().Int("cleaned", cleaned).Str("owner_id", ownerID).Msg("queue cleanup")
	return cleaned, nil
}

// FindActiveByPhone reports a non-terminal entry for the customer phone
// created after since, used for transfer de-duplication.
func (s *Service) FindActiveByPhone(ctx context.Context, ownerID, phone string, since time.Time) (*types.QueueEntry, error) {
	return s.store.FindActiveEntryByPhone(ctx, ownerID, phone, since)
}

// Stats summarizes queue activity for an owner's dashboard
func (s *Service) Stats(ctx context.Context, ownerID string) (*types.QueueStats, error) {
	entries, err := s.store.ListQueueEntries(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries for stats: %w", err)
	}

	stats := &types.QueueStats{}
	waitTotal, waitCount := 0, 0
	for _, entry := range entries {
		switch entry.Status {
		case types.QueueWaiting:
			stats.Waiting++
		case types.QueueAnswered:
			stats.Answered++
		case types.QueueAbandoned:
			stats.Abandoned++
		}
		if entry.WaitDuration > 0 {
			waitTotal += entry.WaitDuration
			waitCount++
		}
	}
	if waitCount > 0 {
		stats.AvgWaitTime = float64(waitTotal) / float64(waitCount)
	}
	return stats, nil
}
