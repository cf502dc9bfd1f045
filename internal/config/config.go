package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Port           string
	AllowedOrigins []string
	LogLevel       string
	PublicBaseURL  string

	// WebSocket timing
	WSReadTimeout  time.Duration
	WSWriteTimeout time.Duration
	PingPeriod     time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64

	// Transfer behavior
	TransferMode  string // direct or queue
	WaitCeiling   time.Duration
	DedupWindow   time.Duration
	SweepInterval time.Duration

	// Telephony provider
	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioAPIKey      string
	TwilioAPISecret   string
	TwilioTwiMLAppSID string
	TwilioPhoneNumber string
	TwilioQueueNumber string

	// AI call provider
	VapiAPIKey        string
	VapiBaseURL       string
	VapiPhoneNumberID string
	VapiAssistantID   string

	// Dialed number to tenant mapping, "number=owner" pairs
	InboundOwners map[string]string

	// Auth
	JWTIssuerURL string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:5173"), ","),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		PublicBaseURL:  strings.TrimSuffix(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),

		TransferMode: getEnv("TRANSFER_MODE", "queue"),

		TwilioAccountSID:  getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:   getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioAPIKey:      getEnv("TWILIO_API_KEY", ""),
		TwilioAPISecret:   getEnv("TWILIO_API_SECRET", ""),
		TwilioTwiMLAppSID: getEnv("TWILIO_TWIML_APP_SID", ""),
		TwilioPhoneNumber: getEnv("TWILIO_PHONE_NUMBER", ""),
		TwilioQueueNumber: getEnv("TWILIO_QUEUE_NUMBER", ""),

		VapiAPIKey:        getEnv("VAPI_API_KEY", ""),
		VapiBaseURL:       getEnv("VAPI_BASE_URL", "https://api.vapi.ai"),
		VapiPhoneNumberID: getEnv("VAPI_PHONE_NUMBER_ID", ""),
		VapiAssistantID:   getEnv("VAPI_ASSISTANT_ID", ""),

		JWTIssuerURL: getEnv("OIDC_ISSUER", ""),
	}

	if config.TransferMode != "direct" && config.TransferMode != "queue" {
		return nil, fmt.Errorf("invalid TRANSFER_MODE %q: must be direct or queue", config.TransferMode)
	}

	// Parse WebSocket timeouts
	wsReadTimeout, err := strconv.Atoi(getEnv("WS_READ_TIMEOUT", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid WS_READ_TIMEOUT: %w", err)
	}
	config.WSReadTimeout = time.Duration(wsReadTimeout) * time.Second

	wsWriteTimeout, err := strconv.Atoi(getEnv("WS_WRITE_TIMEOUT", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid WS_WRITE_TIMEOUT: %w", err)
	}
	config.WSWriteTimeout = time.Duration(wsWriteTimeout) * time.Second

	// Queue timing
	waitCeiling, err := strconv.Atoi(getEnv("QUEUE_WAIT_CEILING", "120"))
	if err != nil {
		return nil, fmt.Errorf("invalid QUEUE_WAIT_CEILING: %w", err)
	}
	config.WaitCeiling = time.Duration(waitCeiling) * time.Second

	dedupWindow, err := strconv.Atoi(getEnv("TRANSFER_DEDUP_WINDOW", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid TRANSFER_DEDUP_WINDOW: %w", err)
	}
	config.DedupWindow = time.Duration(dedupWindow) * time.Second

	sweepInterval, err := strconv.Atoi(getEnv("QUEUE_SWEEP_INTERVAL", "15"))
	if err != nil {
		return nil, fmt.Errorf("invalid QUEUE_SWEEP_INTERVAL: %w", err)
	}
	config.SweepInterval = time.Duration(sweepInterval) * time.Second

	// Calculate WebSocket constants
	config.PongWait = config.WSReadTimeout
	config.PingPeriod = (config.PongWait * 9) / 10 // Must be less than pongWait
	config.WriteWait = config.WSWriteTimeout
	config.MaxMessageSize = 512

	// Trim spaces from allowed origins
	for i, origin := range config.AllowedOrigins {
		config.AllowedOrigins[i] = strings.TrimSpace(origin)
	}

	config.InboundOwners, err = parseOwnerMap(getEnv("INBOUND_OWNERS", ""))
	if err != nil {
		return nil, err
	}

	return config, nil
}

// parseOwnerMap parses "number=owner,number=owner" pairs
func parseOwnerMap(raw string) (map[string]string, error) {
	owners := make(map[string]string)
	if raw == "" {
		return owners, nil
	}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid INBOUND_OWNERS entry %q: want number=owner", pair)
		}
		owners[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return owners, nil
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
