package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/shreyaskommuri/ClinicAct/internal/config"
	"github.com/shreyaskommuri/ClinicAct/internal/domain/patient"
	"github.com/shreyaskommuri/ClinicAct/internal/domain/practitioner"
	"github.com/shreyaskommuri/ClinicAct/internal/domain/questionnaire"
	"github.com/shreyaskommuri/ClinicAct/internal/domain/session"
	"github.com/shreyaskommuri/ClinicAct/internal/domain/transcription"
	"github.com/shreyaskommuri/ClinicAct/internal/platform/email"
	"github.com/shreyaskommuri/ClinicAct/internal/platform/llm"
	"github.com/shreyaskommuri/ClinicAct/internal/platform/medplum"
	"github.com/shreyaskommuri/ClinicAct/internal/platform/middleware"
	"github.com/shreyaskommuri/ClinicAct/internal/platform/npi"
	"github.com/shreyaskommuri/ClinicAct/internal/platform/transcribe"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinicact-server",
		Short: "Clinical assistant API server",
	}

	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the clinical assistant API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// EMR store
	store := medplum.New(cfg.MedplumBaseURL, cfg.MedplumClientID, cfg.MedplumClientSecret)

	// Extraction model
	extractor := llm.New(cfg.GeminiAPIKey, cfg.GeminiModel)

	// Session store: Redis when configured, in-process memory otherwise
	ttl := time.Duration(cfg.SessionTTLMinutes) * time.Minute
	var sessionStore session.Store
	if cfg.RedisURL != "" {
		redisStore, err := session.NewRedisStore(cfg.RedisURL, ttl)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure redis session store")
		}
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisStore.Ping(pingCtx); err != nil {
			cancel()
			logger.Fatal().Err(err).Msg("failed to reach redis")
		}
		cancel()
		sessionStore = redisStore
		logger.Info().Msg("using redis session store")
	} else {
		memStore := session.NewMemoryStore(ttl)
		defer memStore.Close()
		sessionStore = memStore
		logger.Info().Msg("using in-memory session store")
	}

	// Outbound email
	sender := email.New(cfg.SendGridAPIKey, cfg.FromEmail)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})

	apiV1 := e.Group("/api/v1")

	// Patient domain
	patientSvc := patient.NewService(store)
	patient.NewHandler(patientSvc).RegisterRoutes(apiV1)

	// Questionnaire domain
	questionnaireSvc := questionnaire.NewService(store)
	questionnaire.NewHandler(questionnaireSvc).RegisterRoutes(apiV1)

	// Session domain
	sessionSvc := session.NewService(sessionStore, patientSvc, questionnaireSvc, extractor, store, sender, cfg.AllowReopen, logger)
	session.NewHandler(sessionSvc).RegisterRoutes(apiV1)

	// Practitioner directory
	practitionerSvc := practitioner.NewService(npi.New(cfg.NPIBaseURL))
	practitioner.NewHandler(practitionerSvc).RegisterRoutes(apiV1)

	// Transcription providers are optional; endpoints report missing
	// configuration per-call.
	var deepgram transcription.DeepgramTranscriber
	if cfg.DeepgramAPIKey != "" {
		deepgram = transcribe.NewDeepgram(cfg.DeepgramAPIKey)
	}
	var elevenlabs transcription.ElevenLabsTranscriber
	if cfg.ElevenLabsAPIKey != "" {
		elevenlabs = transcribe.NewElevenLabs(cfg.ElevenLabsAPIKey)
	}
	var heidi transcription.HeidiReader
	if cfg.HeidiAPIKey != "" {
		heidi = transcribe.NewHeidi(cfg.HeidiBaseURL, cfg.HeidiAPIKey)
	}
	transcription.NewHandler(deepgram, elevenlabs, heidi).RegisterRoutes(apiV1)

	// Start server
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
