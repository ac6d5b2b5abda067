package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"imagestudio/internal/http/handlers"
	"imagestudio/internal/middleware"
)

func NewRouter(app *handlers.App, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	// CORS goes first so that preflights, 404s and recovered panics all carry it.
	r.Use(
		middleware.CORS,
		chimw.RealIP,
		middleware.RequestID,
		middleware.Logger(logger),
		chimw.Recoverer,
	)

	r.NotFound(app.NotFound)
	r.MethodNotAllowed(app.NotFound)

	r.Get("/", app.Index)

	// Ops
	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/readyz", app.Ready)
	r.Get("/v1/openapi.json", app.OpenAPIJSON)
	r.Get("/v1/docs", app.OpenAPIDocs)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/generate", app.Generate)
		r.Get("/history", app.HistoryList)
		r.Get("/history/{timestamp}", app.HistoryGet)
		r.Get("/history/{timestamp}/archive", app.HistoryArchive)
		r.Get("/image/*", app.Image)
	})

	return r
}
