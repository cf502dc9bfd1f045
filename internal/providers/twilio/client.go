// Package twilio wraps the telephony provider SDK behind the narrow surface
// the rest of the service needs: placing calls, redirecting live legs, and
// minting browser voice tokens.
package twilio

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/twilio/twilio-go"
	"github.com/twilio/twilio-go/client/jwt"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

// Config for the telephony client
type Config struct {
	AccountSID  string
	AuthToken   string
	APIKey      string
	APISecret   string
	TwiMLAppSID string
	FromNumber  string
	BaseURL     string // public base for status and recording callbacks
}

// Client wraps the provider REST client
type Client struct {
	rest   *twilio.RestClient
	cfg    Config
	logger zerolog.Logger
}

// NewClient creates a telephony client
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	rest := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &Client{rest: rest, cfg: cfg, logger: logger}
}

// CreateCall dials out to a number and points the leg at the given TwiML
// document, with status and recording callbacks wired back to this service.
func (c *Client) CreateCall(ctx context.Context, to, twimlURL string) (string, error) {
	params := &api.CreateCallParams{}
	params.SetTo(to)
	params.SetFrom(c.cfg.FromNumber)
	params.SetUrl(twimlURL)
	params.SetMethod("POST")
	params.SetStatusCallback(c.cfg.BaseURL + "/webhooks/telephony/status")
	params.SetStatusCallbackMethod("POST")
	params.SetStatusCallbackEvent([]string{"initiated", "ringing", "answered", "completed"})
	params.SetRecord(true)
	params.SetRecordingStatusCallback(c.cfg.BaseURL + "/webhooks/telephony/recording")

	call, err := c.rest.Api.CreateCall(params)
	if err != nil {
		return "", fmt.Errorf("create call: %w", err)
	}
	sid := ""
	if call.Sid != nil {
		sid = *call.Sid
	}
	c.logger.Debug().Str("call_sid", sid).Str("to", to).Msg("telephony call created")
	return sid, nil
}

// RedirectCall moves a live leg to new TwiML instructions. Implements the
// transfer engine's CallRedirector.
func (c *Client) RedirectCall(ctx context.Context, callSID, twimlURL string) error {
	params := &api.UpdateCallParams{}
	params.SetUrl(twimlURL)
	params.SetMethod("POST")

	if _, err := c.rest.Api.UpdateCall(callSID, params); err != nil {
		return fmt.Errorf("redirect call %s: %w", callSID, err)
	}
	c.logger.Debug().Str("call_sid", callSID).Str("url", twimlURL).Msg("telephony leg redirected")
	return nil
}

// IssueBrowserToken mints a short-lived voice token for an agent softphone.
// Implements the queue handler's TokenIssuer.
func (c *Client) IssueBrowserToken(identity string) (string, error) {
	if c.cfg.APIKey == "" || c.cfg.APISecret == "" || c.cfg.TwiMLAppSID == "" {
		return "", fmt.Errorf("browser voice tokens not configured")
	}

	token := jwt.CreateAccessToken(jwt.AccessTokenParams{
		AccountSid:    c.cfg.AccountSID,
		SigningKeySid: c.cfg.APIKey,
		Secret:        c.cfg.APISecret,
		Identity:      identity,
	})
	voiceGrant := &jwt.VoiceGrant{
		Incoming: jwt.Incoming{Allow: true},
		Outgoing: jwt.Outgoing{ApplicationSid: c.cfg.TwiMLAppSID},
	}
	token.AddGrant(voiceGrant)

	signed, err := token.ToJwt()
	if err != nil {
		return "", fmt.Errorf("sign voice token: %w", err)
	}
	return signed, nil
}
