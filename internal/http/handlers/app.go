package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/pipeline"
	"server/internal/providers/avatar"
	"server/internal/providers/hosting"
	"server/internal/providers/speech"
	"server/internal/providers/summary"
)

// App is the handler container. Each request-scoped handler reaches the
// external providers through the adapters held here; the websocket generate
// handler drives them through the Orchestrator instead.
type App struct {
	Cfg    *infra.Config
	Logger infra.Logger

	Summarizer   summary.Summarizer
	Speech       speech.Synthesizer
	Enroller     speech.Enroller
	Host         hosting.Host
	Avatar       avatar.Client
	Orchestrator *pipeline.Orchestrator
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, message string) {
	a.json(w, code, map[string]string{"error": message})
}

// fail maps a pipeline or adapter error onto an HTTP response. Configuration
// problems surface as a generic message; the detail stays in the log.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	logger := a.Logger.With().Str("path", r.URL.Path).Logger()
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		a.error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotConfigured):
		logger.Error().Err(err).Msg("provider configuration missing")
		a.error(w, http.StatusInternalServerError, "service configuration error")
	case errors.Is(err, domain.ErrPollTimeout):
		a.error(w, http.StatusGatewayTimeout, err.Error())
	case errors.Is(err, domain.ErrHostingFailed):
		logger.Error().Err(err).Msg("asset hosting failed")
		a.error(w, http.StatusBadGateway, "failed to upload asset to storage")
	default:
		if pe, ok := domain.IsProviderError(err); ok {
			logger.Error().Err(err).Str("provider", pe.Provider).Msg("provider call failed")
			a.error(w, http.StatusBadGateway, pe.Error())
			return
		}
		logger.Error().Err(err).Msg("request failed")
		a.error(w, http.StatusInternalServerError, "internal error")
	}
}
