package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"server/internal/http/handlers"
	"server/internal/middleware"
)

// NewRouter wires the same-origin API consumed by the browser client.
func NewRouter(app *handlers.App) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
		middleware.CORS(app.Cfg.AllowedOrigins),
	)

	r.Get("/v1/healthz", app.Health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/clone-voice", app.CloneVoice)
		r.Get("/proxy/audio", app.ProxyAudio)
		r.Route("/generate", func(r chi.Router) {
			r.Get("/ws", app.Generate)
			r.Post("/summary", app.Summarize)
			r.Post("/audio", app.GenerateAudio)
			r.Post("/video", app.GenerateVideo)
			r.Post("/video/status", app.VideoStatus)
		})
	})

	return r
}
