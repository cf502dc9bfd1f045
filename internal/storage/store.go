package storage

import (
	"context"
	"errors"
	"time"

	"github.com/hardw419/ivr-system/internal/types"
)

var (
	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("storage: not found")

	// ErrAlreadyTaken is returned when a conditional accept loses the race.
	// Expected and frequent under concurrent agent consoles; callers must
	// not treat it as transient.
	ErrAlreadyTaken = errors.New("storage: entry already taken")
)

// Store is the persistence boundary for call records, queue entries and the
// agent directory. Every queue mutation that carries an invariant (single
// assignment, terminal-state immutability) is a conditional update here, not
// a read-then-write pair in the caller.
type Store interface {
	// Call records
	CreateCall(ctx context.Context, call *types.CallRecord) error
	GetCall(ctx context.Context, id string) (*types.CallRecord, error)
	GetCallByProviderID(ctx context.Context, providerCallID string) (*types.CallRecord, error)
	GetCallBySID(ctx context.Context, callSID string) (*types.CallRecord, error)
	SaveCall(ctx context.Context, call *types.CallRecord) error

	// Queue entries
	CreateQueueEntry(ctx context.Context, entry *types.QueueEntry) error
	GetQueueEntry(ctx context.Context, id string) (*types.QueueEntry, error)
	GetQueueEntryBySID(ctx context.Context, callSID string) (*types.QueueEntry, error)
	ListQueueEntries(ctx context.Context, ownerID string, statuses ...types.QueueStatus) ([]types.QueueEntry, error)
	// ListStaleEntries returns waiting/ringing entries across all owners
	// whose wait started before the given instant. Used by the expiry sweep.
	ListStaleEntries(ctx context.Context, before time.Time) ([]types.QueueEntry, error)
	FindActiveEntryByPhone(ctx context.Context, ownerID, phone string, since time.Time) (*types.QueueEntry, error)

	// AcceptQueueEntry flips waiting -> ringing and assigns the agent in a
	// single conditional update. Returns ErrAlreadyTaken if the entry is no
	// longer waiting.
	AcceptQueueEntry(ctx context.Context, entryID, agentID string, answerTime time.Time) (*types.QueueEntry, error)

	// CompleteQueueEntry moves the entry to completed. Completing an entry
	// that is already terminal is a no-op success and returns it unchanged.
	CompleteQueueEntry(ctx context.Context, entryID string, endTime time.Time, notes string) (*types.QueueEntry, error)

	// MarkQueueEntry transitions a non-terminal entry to the given terminal
	// or answered status. Terminal entries are returned unchanged.
	MarkQueueEntry(ctx context.Context, entryID string, status types.QueueStatus, endTime time.Time) (*types.QueueEntry, error)

	// Agent directory
	PutAgent(ctx context.Context, agent *types.Agent) error
	GetAgentByKey(ctx context.Context, ownerID, transferKey string) (*types.Agent, error)
	ListAgents(ctx context.Context, ownerID string) ([]types.Agent, error)
	ListAvailableAgents(ctx context.Context, ownerID string) ([]types.Agent, error)
	DeleteAgent(ctx context.Context, ownerID, agentID string) error
}
