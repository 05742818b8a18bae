package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"server/internal/http/handlers"
	"server/internal/http/httpapi"
	"server/internal/infra"
	"server/internal/pipeline"
	"server/internal/providers/avatar"
	"server/internal/providers/hosting"
	"server/internal/providers/speech"
	"server/internal/providers/summary"
)

func main() {
	// .env is optional.
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	httpClient := &http.Client{Timeout: 60 * time.Second}

	summarizer := summary.NewGemini(summary.GeminiOptions{
		APIKey:     cfg.GeminiAPIKey,
		Model:      cfg.GeminiModel,
		BaseURL:    cfg.GeminiBaseURL,
		HTTPClient: httpClient,
	})
	speechClient := speech.New(speech.Options{
		APIKey:       cfg.ElevenLabsAPIKey,
		BaseURL:      cfg.ElevenLabsBaseURL,
		DefaultVoice: cfg.ElevenLabsDefaultVoice,
		HTTPClient:   httpClient,
	})
	host := hosting.New(hosting.Options{
		WebhookURL: cfg.AssetWebhookURL,
		HTTPClient: httpClient,
	})

	var avatarClient avatar.Client
	if cfg.HeyGenAPIKey != "" {
		avatarClient = avatar.New(avatar.Options{
			APIKey:        cfg.HeyGenAPIKey,
			APIBaseURL:    cfg.HeyGenAPIBaseURL,
			UploadBaseURL: cfg.HeyGenUploadBaseURL,
			HTTPClient:    httpClient,
		})
	} else {
		logger.Warn().Msg("heygen api key missing, serving audio-only results")
	}

	orchestrator := pipeline.New(pipeline.Options{
		Summarizer:      summarizer,
		Speech:          speechClient,
		Host:            host,
		Avatar:          avatarClient,
		Logger:          logger,
		PollInterval:    cfg.VideoPollInterval,
		PollMaxAttempts: cfg.VideoPollMaxAttempts,
		Background:      cfg.RenderBackground,
		Width:           cfg.RenderWidth,
		Height:          cfg.RenderHeight,
	})

	app := &handlers.App{
		Cfg:          cfg,
		Logger:       logger,
		Summarizer:   summarizer,
		Speech:       speechClient,
		Enroller:     speechClient,
		Host:         host,
		Avatar:       avatarClient,
		Orchestrator: orchestrator,
	}

	router := httpapi.NewRouter(app)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
