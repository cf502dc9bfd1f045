package storage

import (
	"context"
	"sync"
	"time"

	"github.com/hardw419/ivr-system/internal/types"
)

// MemoryStore is an in-memory Store used in tests and local development.
// The mutex gives it the same first-writer-wins accept semantics as the
// conditional update in DynamoDB.
type MemoryStore struct {
	mu      sync.Mutex
	calls   map[string]*types.CallRecord
	entries map[string]*types.QueueEntry
	agents  map[string]*types.Agent
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		calls:   make(map[string]*types.CallRecord),
		entries: make(map[string]*types.QueueEntry),
		agents:  make(map[string]*types.Agent),
	}
}

func (s *MemoryStore) CreateCall(_ context.Context, call *types.CallRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *call
	s.calls[call.ID] = &c
	return nil
}

func (s *MemoryStore) GetCall(_ context.Context, id string) (*types.CallRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	call, ok := s.calls[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *call
	return &c, nil
}

func (s *MemoryStore) GetCallByProviderID(_ context.Context, providerCallID string) (*types.CallRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, call := range s.calls {
		if call.ProviderCallID != "" && call.ProviderCallID == providerCallID {
			c := *call
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) GetCallBySID(_ context.Context, callSID string) (*types.CallRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, call := range s.calls {
		if call.CallSID != "" && call.CallSID == callSID {
			c := *call
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) SaveCall(_ context.Context, call *types.CallRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.calls[call.ID]; !ok {
		return ErrNotFound
	}
	c := *call
	s.calls[call.ID] = &c
	return nil
}

func (s *MemoryStore) CreateQueueEntry(_ context.Context, entry *types.QueueEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := *entry
	s.entries[entry.ID] = &e
	return nil
}

func (s *MemoryStore) GetQueueEntry(_ context.Context, id string) (*types.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	e := *entry
	return &e, nil
}

func (s *MemoryStore) GetQueueEntryBySID(_ context.Context, callSID string) (*types.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var terminal *types.QueueEntry
	for _, entry := range s.entries {
		if entry.CallSID == "" || entry.CallSID != callSID {
			continue
		}
		e := *entry
		// Prefer the live entry when a retried leg left a terminal one behind
		if !e.Status.Terminal() {
			return &e, nil
		}
		terminal = &e
	}
	if terminal != nil {
		return terminal, nil
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListQueueEntries(_ context.Context, ownerID string, statuses ...types.QueueStatus) ([]types.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.QueueEntry
	for _, entry := range s.entries {
		if entry.OwnerID != ownerID {
			continue
		}
		if len(statuses) > 0 && !statusIn(entry.Status, statuses) {
			continue
		}
		out = append(out, *entry)
	}
	return out, nil
}

func (s *MemoryStore) ListStaleEntries(_ context.Context, before time.Time) ([]types.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.QueueEntry
	for _, entry := range s.entries {
		if entry.Status != types.QueueWaiting && entry.Status != types.QueueRinging {
			continue
		}
		if entry.WaitStart.Before(before) {
			out = append(out, *entry)
		}
	}
	return out, nil
}

func (s *MemoryStore) FindActiveEntryByPhone(_ context.Context, ownerID, phone string, since time.Time) (*types.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range s.entries {
		if entry.OwnerID != ownerID || entry.CustomerPhone != phone {
			continue
		}
		if entry.Status.Terminal() || entry.WaitStart.Before(since) {
			continue
		}
		e := *entry
		return &e, nil
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) AcceptQueueEntry(_ context.Context, entryID, agentID string, answerTime time.Time) (*types.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[entryID]
	if !ok {
		return nil, ErrNotFound
	}
	if entry.Status != types.QueueWaiting {
		return nil, ErrAlreadyTaken
	}
	entry.Status = types.QueueRinging
	entry.AssignedAgent = agentID
	t := answerTime
	entry.AnswerTime = &t
	entry.WaitDuration = int(answerTime.Sub(entry.WaitStart).Seconds())
	e := *entry
	return &e, nil
}

func (s *MemoryStore) CompleteQueueEntry(_ context.Context, entryID string, endTime time.Time, notes string) (*types.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[entryID]
	if !ok {
		return nil, ErrNotFound
	}
	if entry.Status.Terminal() {
		e := *entry
		return &e, nil
	}
	entry.Status = types.QueueCompleted
	t := endTime
	entry.EndTime = &t
	if notes != "" {
		entry.Notes = notes
	}
	if entry.AnswerTime != nil {
		entry.CallDuration = int(endTime.Sub(*entry.AnswerTime).Seconds())
	}
	e := *entry
	return &e, nil
}

func (s *MemoryStore) MarkQueueEntry(_ context.Context, entryID string, status types.QueueStatus, endTime time.Time) (*types.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[entryID]
	if !ok {
		return nil, ErrNotFound
	}
	if entry.Status.Terminal() {
		e := *entry
		return &e, nil
	}
	entry.Status = status
	if status.Terminal() {
		t := endTime
		entry.EndTime = &t
	}
	e := *entry
	return &e, nil
}

func (s *MemoryStore) PutAgent(_ context.Context, agent *types.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := *agent
	s.agents[agent.ID] = &a
	return nil
}

func (s *MemoryStore) GetAgentByKey(_ context.Context, ownerID, transferKey string) (*types.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, agent := range s.agents {
		if agent.OwnerID == ownerID && agent.TransferKey == transferKey {
			a := *agent
			return &a, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListAgents(_ context.Context, ownerID string) ([]types.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Agent
	for _, agent := range s.agents {
		if agent.OwnerID == ownerID {
			out = append(out, *agent)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListAvailableAgents(_ context.Context, ownerID string) ([]types.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Agent
	for _, agent := range s.agents {
		if agent.OwnerID == ownerID && agent.IsAvailable {
			out = append(out, *agent)
		}
	}
	return out, nil
}

func (s *MemoryStore) DeleteAgent(_ context.Context, ownerID, agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	agent, ok := s.agents[agentID]
	if !ok || agent.OwnerID != ownerID {
		return ErrNotFound
	}
	delete(s.agents, agentID)
	return nil
}

func statusIn(status types.QueueStatus, set []types.QueueStatus) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}
