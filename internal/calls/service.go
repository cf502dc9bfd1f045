// Package calls owns the outbound call lifecycle: starting AI-driven calls
// and reconciling their records after the fact.
package calls

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hardw419/ivr-system/internal/metrics"
	"github.com/hardw419/ivr-system/internal/notify"
	"github.com/hardw419/ivr-system/internal/providers/vapi"
	"github.com/hardw419/ivr-system/internal/storage"
	"github.com/hardw419/ivr-system/internal/types"
	"github.com/rs/zerolog"
)

// Placer is the slice of the AI provider client this service uses
type Placer interface {
	PlaceCall(ctx context.Context, params vapi.PlaceCallParams) (string, error)
	GetCall(ctx context.Context, providerCallID string) (*vapi.Call, error)
}

// Service starts and reconciles AI-driven calls
type Service struct {
	store    storage.Store
	provider Placer
	notifier notify.Notifier
	logger   zerolog.Logger
}

// NewService creates a calls Service
func NewService(store storage.Store, provider Placer, notifier notify.Notifier, logger zerolog.Logger) *Service {
	return &Service{
		store:    store,
		provider: provider,
		notifier: notifier,
		logger:   logger,
	}
}

// StartParams describes an outbound call request
type StartParams struct {
	OwnerID       string
	CustomerPhone string
	CustomerName  string
	Metadata      map[string]string
}

// Start creates the call record and places the call. The record exists
// before the provider is contacted so a webhook arriving immediately after
// placement always finds it.
func (s *Service) Start(ctx context.Context, params StartParams) (*types.CallRecord, error) {
	call := &types.CallRecord{
		ID:            uuid.New().String(),
		OwnerID:       params.OwnerID,
		CustomerPhone: params.CustomerPhone,
		CustomerName:  params.CustomerName,
		Status:        types.CallQueued,
		Metadata:      params.Metadata,
		CreatedAt:     time.Now(),
	}
	if err := s.store.CreateCall(ctx, call); err != nil {
		return nil, fmt.Errorf("failed to create call record: %w", err)
	}

	providerCallID, err := s.provider.PlaceCall(ctx, vapi.PlaceCallParams{
		CustomerNumber: params.CustomerPhone,
		CustomerName:   params.CustomerName,
		Metadata:       params.Metadata,
	})
	if err != nil {
		call.Status = types.CallFailed
		now := time.Now()
		call.EndTime = &now
		if saveErr := s.store.SaveCall(ctx, call); saveErr != nil {
			s.logger.Error().Err(saveErr).Str("call_id", call.ID).Msg("failed to mark call failed")
		}
		return nil, fmt.Errorf("failed to place call: %w", err)
	}
	metrics.Get().RecordCallPlaced()

	// Provider id is set exactly once, here
	call.ProviderCallID = providerCallID
	call.Status = types.CallInitiated
	if err := s.store.SaveCall(ctx, call); err != nil {
		return nil, fmt.Errorf("failed to persist placed call: %w", err)
	}

	s.notifier.BroadcastToOwner(call.OwnerID, types.EventCallStatus, types.CallStatusEvent{
		CallID: call.ID,
		Status: call.Status,
	})

	s.logger.Info().
		Str("call_id", call.ID).
		Str("provider_call_id", providerCallID).
		Str("customer", params.CustomerPhone).
		Msg("outbound call started")

	return call, nil
}

// Finalize backfills transcript, recording, summary, and cost from the
// provider for a call whose end-of-call webhook carried no artifact.
// Idempotent; fields already present are kept.
func (s *Service) Finalize(ctx context.Context, callID string) (*types.CallRecord, error) {
	call, err := s.store.GetCall(ctx, callID)
	if err != nil {
		return nil, err
	}
	if call.ProviderCallID == "" {
		return call, nil
	}

	remote, err := s.provider.GetCall(ctx, call.ProviderCallID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch call from provider: %w", err)
	}

	if call.Transcript == "" && remote.Artifact.Transcript != "" {
		call.Transcript = remote.Artifact.Transcript
	}
	if len(call.TranscriptTurns) == 0 && len(remote.Artifact.Messages) > 0 {
		turns := make([]types.TranscriptTurn, 0, len(remote.Artifact.Messages))
		for _, m := range remote.Artifact.Messages {
			ts := time.Now()
			if m.Time > 0 {
				ts = time.UnixMilli(m.Time)
			}
			turns = append(turns, types.TranscriptTurn{
				Role:      m.Role,
				Message:   m.Message,
				Timestamp: ts,
			})
		}
		call.TranscriptTurns = turns
	}
	if call.Recording == nil && remote.Artifact.RecordingURL != "" {
		call.Recording = &types.Recording{URL: remote.Artifact.RecordingURL}
	}
	if call.Summary == "" {
		call.Summary = remote.Summary
	}
	if call.Cost == 0 {
		call.Cost = remote.Cost
	}

	if err := s.store.SaveCall(ctx, call); err != nil {
		return nil, fmt.Errorf("failed to persist finalized call: %w", err)
	}
	return call, nil
}

// Get returns a single call record
func (s *Service) Get(ctx context.Context, callID string) (*types.CallRecord, error) {
	return s.store.GetCall(ctx, callID)
}
