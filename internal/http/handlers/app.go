package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"imagestudio/internal/domain"
	"imagestudio/internal/generation"
	"imagestudio/internal/middleware"
	"imagestudio/internal/storage"
)

// Generator runs one validated generation batch.
type Generator interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (*generation.Result, error)
}

// History reads batch records.
type History interface {
	List(ctx context.Context) ([]domain.HistoryRecord, error)
	Get(ctx context.Context, timestamp int64) (domain.HistoryRecord, error)
	Images(ctx context.Context, rec domain.HistoryRecord) ([]*storage.Object, error)
}

// HealthCheck is a named dependency probe reported by the readiness endpoint.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type App struct {
	Generation Generator
	History    History
	Blobs      storage.BlobStore
	Logger     zerolog.Logger
	Checks     []HealthCheck
}

func NewApp(gen Generator, history History, blobs storage.BlobStore, logger zerolog.Logger, checks ...HealthCheck) *App {
	return &App{
		Generation: gen,
		History:    history,
		Blobs:      blobs,
		Logger:     logger.With().Str("component", "http").Logger(),
		Checks:     checks,
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, message, details string) {
	a.json(w, code, errorResponse{Error: message, Details: details})
}

func (a *App) text(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(body))
}

func (a *App) log(r *http.Request) *zerolog.Logger {
	l := a.Logger.With().Str("request_id", middleware.RequestIDFromContext(r.Context())).Logger()
	return &l
}

// NotFound answers every unrouted request, including unsupported methods on
// known paths.
func (a *App) NotFound(w http.ResponseWriter, r *http.Request) {
	a.text(w, http.StatusNotFound, "Not Found")
}
