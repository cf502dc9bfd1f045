package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hardw419/ivr-system/internal/storage"
	"github.com/hardw419/ivr-system/internal/types"
	"github.com/rs/zerolog"
)

// ErrKeyTaken is returned when an agent's transfer key collides with another
// agent belonging to the same owner.
var ErrKeyTaken = errors.New("transfer key already assigned to another agent")

// Service manages the agent directory callers are transferred into.
type Service struct {
	store  storage.Store
	logger zerolog.Logger
}

// NewService creates a new agents Service
func NewService(store storage.Store, logger zerolog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// UpsertParams carries the writable fields of an agent record.
type UpsertParams struct {
	ID          string
	Name        string
	PhoneNumber string
	TransferKey string
	Email       string
	Department  string
	IsAvailable bool
}

// Upsert creates or updates an agent. The transfer key must be a single
// DTMF digit and unique among the owner's agents.
func (s *Service) Upsert(ctx context.Context, ownerID string, params UpsertParams) (*types.Agent, error) {
	if params.Name == "" {
		return nil, fmt.Errorf("agent name is required")
	}
	if params.PhoneNumber == "" {
		return nil, fmt.Errorf("agent phone number is required")
	}
	key := strings.TrimSpace(params.TransferKey)
	if len(key) != 1 || !strings.ContainsAny(key, "0123456789*#") {
		return nil, fmt.Errorf("transfer key must be a single DTMF digit")
	}

	agentID := params.ID
	if agentID == "" {
		agentID = uuid.New().String()
	}

	// Reject the key if a different agent of the same owner already holds it.
	holder, err := s.store.GetAgentByKey(ctx, ownerID, key)
	if err != nil && err != storage.ErrNotFound {
		return nil, fmt.Errorf("failed to check transfer key: %w", err)
	}
	if holder != nil && holder.ID != agentID {
		return nil, ErrKeyTaken
	}

	agent := &types.Agent{
		ID:          agentID,
		OwnerID:     ownerID,
		Name:        params.Name,
		PhoneNumber: params.PhoneNumber,
		TransferKey: key,
		Email:       params.Email,
		Department:  params.Department,
		IsAvailable: params.IsAvailable,
		CreatedAt:   time.Now().UTC(),
	}
	if existing, ok := s.findByID(ctx, ownerID, agentID); ok {
		agent.CreatedAt = existing.CreatedAt
	}

	if err := s.store.PutAgent(ctx, agent); err != nil {
		return nil, fmt.Errorf("failed to save agent: %w", err)
	}

	s.logger.Info().
		Str("agent_id", agent.ID).
		Str("owner_id", ownerID).
		Str("transfer_key", agent.TransferKey).
		Msg("Agent saved")

	return agent, nil
}

// SetAvailability toggles whether an agent can receive direct transfers.
func (s *Service) SetAvailability(ctx context.Context, ownerID, agentID string, available bool) (*types.Agent, error) {
	agent, ok := s.findByID(ctx, ownerID, agentID)
	if !ok {
		return nil, storage.ErrNotFound
	}

	agent.IsAvailable = available
	if err := s.store.PutAgent(ctx, agent); err != nil {
		return nil, fmt.Errorf("failed to update agent availability: %w", err)
	}

	s.logger.Info().
		Str("agent_id", agentID).
		Bool("available", available).
		Msg("Agent availability changed")

	return agent, nil
}

// List returns all agents of an owner.
func (s *Service) List(ctx context.Context, ownerID string) ([]types.Agent, error) {
	return s.store.ListAgents(ctx, ownerID)
}

// Delete removes an agent from the directory.
func (s *Service) Delete(ctx context.Context, ownerID, agentID string) error {
	if _, ok := s.findByID(ctx, ownerID, agentID); !ok {
		return storage.ErrNotFound
	}
	return s.store.DeleteAgent(ctx, ownerID, agentID)
}

func (s *Service) findByID(ctx context.Context, ownerID, agentID string) (*types.Agent, bool) {
	all, err := s.store.ListAgents(ctx, ownerID)
	if err != nil {
		return nil, false
	}
	for i := range all {
		if all[i].ID == agentID {
			return &all[i], true
		}
	}
	return nil, false
}
