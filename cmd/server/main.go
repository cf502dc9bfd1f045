package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/hardw419/ivr-system/internal/agents"
	"github.com/hardw419/ivr-system/internal/auth"
	"github.com/hardw419/ivr-system/internal/calls"
	"github.com/hardw419/ivr-system/internal/config"
	"github.com/hardw419/ivr-system/internal/metrics"
	"github.com/hardw419/ivr-system/internal/notify"
	"github.com/hardw419/ivr-system/internal/providers/twilio"
	"github.com/hardw419/ivr-system/internal/providers/vapi"
	"github.com/hardw419/ivr-system/internal/queue"
	"github.com/hardw419/ivr-system/internal/storage"
	"github.com/hardw419/ivr-system/internal/ticker"
	"github.com/hardw419/ivr-system/internal/transfer"
	"github.com/hardw419/ivr-system/internal/webhook"
	"github.com/hardw419/ivr-system/internal/websocket"
	"github.com/hardw419/ivr-system/pkg/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Configure logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("port", cfg.Port).
		Str("transfer_mode", cfg.TransferMode).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("log_level", cfg.LogLevel).
		Msg("starting IVR coordination server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	store, err := buildStore(ctx, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize storage")
	}

	// WebSocket hub and console notifier
	hub := websocket.NewHub(log.Logger)
	go hub.Run()
	wsHandler := websocket.NewHandler(hub, cfg, log.Logger)
	notifier := notify.NewHubNotifier(hub, log.Logger)

	// Consoles render live wait timers off the server clock
	clock := ticker.NewTicker(notifier, 1*time.Second, log.Logger)
	go clock.Start(ctx)

	// Provider clients
	twilioClient := twilio.NewClient(twilio.Config{
		AccountSID:  cfg.TwilioAccountSID,
		AuthToken:   cfg.TwilioAuthToken,
		APIKey:      cfg.TwilioAPIKey,
		APISecret:   cfg.TwilioAPISecret,
		TwiMLAppSID: cfg.TwilioTwiMLAppSID,
		FromNumber:  cfg.TwilioPhoneNumber,
		BaseURL:     cfg.PublicBaseURL,
	}, log.Logger)

	vapiClient := vapi.NewClient(vapi.Config{
		APIKey:        cfg.VapiAPIKey,
		BaseURL:       cfg.VapiBaseURL,
		PhoneNumberID: cfg.VapiPhoneNumberID,
		AssistantID:   cfg.VapiAssistantID,
	}, log.Logger)

	// Core services
	queueSvc := queue.NewService(store, notifier, cfg.WaitCeiling, log.Logger)
	sweeper := queue.NewSweeper(queueSvc, cfg.SweepInterval, log.Logger)
	go sweeper.Start(ctx)

	engine := transfer.NewEngine(store, queueSvc, notifier, twilioClient, transfer.Config{
		Mode:            transfer.Mode(cfg.TransferMode),
		QueueNumber:     cfg.TwilioQueueNumber,
		TransferBaseURL: cfg.PublicBaseURL,
		DedupWindow:     cfg.DedupWindow,
	}, log.Logger)

	agentSvc := agents.NewService(store, log.Logger)
	callSvc := calls.NewService(store, vapiClient, notifier, log.Logger)

	// HTTP handlers
	queueHandler := queue.NewHandler(queueSvc, twilioClient, log.Logger)
	agentHandler := agents.NewHandler(agentSvc, log.Logger)
	callHandler := calls.NewHandler(callSvc, log.Logger)
	vapiWebhook := webhook.NewVapiHandler(store, engine, notifier, log.Logger)
	twilioWebhook := webhook.NewTwilioHandler(store, engine, queueSvc,
		webhook.NewStaticOwnerResolver(cfg.InboundOwners), notifier,
		webhook.TwilioConfig{PublicBaseURL: cfg.PublicBaseURL}, log.Logger)

	// Router
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(log.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Public routes
	r.Get("/health", healthHandler)
	r.Get("/metrics", metrics.Get().Handler())

	// Provider webhooks (authenticated by provider signatures, not user JWTs)
	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/vapi", vapiWebhook.Handle)
		r.Route("/telephony", func(r chi.Router) {
			r.Post("/status", twilioWebhook.HandleStatus)
			r.Post("/recording", twilioWebhook.HandleRecording)
			r.Post("/gather", twilioWebhook.HandleGather)
			r.Post("/inbound", twilioWebhook.HandleInbound)
			r.Post("/queue-result", twilioWebhook.HandleQueueResult)
			r.Post("/voice", twilioWebhook.HandleVoice)
			r.Post("/transfer-twiml", twilioWebhook.HandleTransferTwiML)
		})
	})

	// Authenticated console routes
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware)
		r.Mount("/api/queue", queueHandler.Routes())
		r.Mount("/api/agents", agentHandler.Routes())
		r.Mount("/api/calls", callHandler.Routes())
		r.Get("/ws", wsHandler.ServeHTTP)
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Msgf("server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	// Stop the sweeper and hub feeders
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// buildStore picks the storage backend from DYNAMO_MODE
func buildStore(ctx context.Context, logger zerolog.Logger) (storage.Store, error) {
	dynCfg := storage.LoadDynamoConfig()
	if dynCfg.Mode == storage.DynamoModeMemory {
		logger.Info().Msg("using in-memory store")
		return storage.NewMemoryStore(), nil
	}
	return storage.NewDynamoDBStore(ctx, dynCfg, logger)
}

// healthHandler handles health check requests
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","service":"ivr-system"}`)
}
