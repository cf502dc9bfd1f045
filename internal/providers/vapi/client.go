// Package vapi is the outbound REST client for the AI call provider.
package vapi

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// Config for the provider client
type Config struct {
	APIKey        string
	BaseURL       string
	PhoneNumberID string // provider-side number outbound calls originate from
	AssistantID   string
	Timeout       time.Duration
}

// Client talks to the AI call provider's REST API
type Client struct {
	http   *resty.Client
	cfg    Config
	logger zerolog.Logger
}

// NewClient creates a provider client
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.vapi.ai"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	http := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetAuthToken(cfg.APIKey).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")
	return &Client{http: http, cfg: cfg, logger: logger}
}

// Call is the provider's call resource, reduced to the fields we read
type Call struct {
	ID                  string  `json:"id"`
	Status              string  `json:"status"`
	PhoneCallProviderID string  `json:"phoneCallProviderId"`
	Summary             string  `json:"summary"`
	Cost                float64 `json:"cost"`
	Artifact            struct {
		Transcript   string `json:"transcript"`
		RecordingURL string `json:"recordingUrl"`
		Messages     []struct {
			Role    string `json:"role"`
			Message string `json:"message"`
			Time    int64  `json:"time"`
		} `json:"messages"`
	} `json:"artifact"`
}

// PlaceCallParams describes an outbound AI call
type PlaceCallParams struct {
	CustomerNumber string
	CustomerName   string
	AssistantID    string            // overrides the configured default
	Metadata       map[string]string // passed through to the assistant
}

type placeCallRequest struct {
	PhoneNumberID string       `json:"phoneNumberId"`
	AssistantID   string       `json:"assistantId"`
	Customer      customerSpec `json:"customer"`
	Metadata      any          `json:"metadata,omitempty"`
}

type customerSpec struct {
	Number string `json:"number"`
	Name   string `json:"name,omitempty"`
}

// PlaceCall starts an outbound AI call and returns the provider call id
func (c *Client) PlaceCall(ctx context.Context, params PlaceCallParams) (string, error) {
	assistantID := params.AssistantID
	if assistantID == "" {
		assistantID = c.cfg.AssistantID
	}

	var out Call
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(placeCallRequest{
			PhoneNumberID: c.cfg.PhoneNumberID,
			AssistantID:   assistantID,
			Customer: customerSpec{
				Number: params.CustomerNumber,
				Name:   params.CustomerName,
			},
			Metadata: params.Metadata,
		}).
		SetResult(&out).
		Post("/call")
	if err != nil {
		return "", fmt.Errorf("place call: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("place call: provider returned %s: %s", resp.Status(), resp.String())
	}

	c.logger.Debug().
		Str("provider_call_id", out.ID).
		Str("customer", params.CustomerNumber).
		Msg("outbound ai call placed")
	return out.ID, nil
}

// GetCall fetches a call, used to backfill transcript and recording after
// the end-of-call webhook arrived without a full artifact.
func (c *Client) GetCall(ctx context.Context, providerCallID string) (*Call, error) {
	var out Call
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/call/" + providerCallID)
	if err != nil {
		return nil, fmt.Errorf("get call: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("get call: provider returned %s", resp.Status())
	}
	return &out, nil
}

// EndCall asks the provider to hang up the AI leg
func (c *Client) EndCall(ctx context.Context, providerCallID string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"status": "ended"}).
		Patch("/call/" + providerCallID)
	if err != nil {
		return fmt.Errorf("end call: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("end call: provider returned %s", resp.Status())
	}
	return nil
}
