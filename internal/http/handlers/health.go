package handlers

import (
	"context"
	"net/http"
	"time"
)

const readinessTimeout = 3 * time.Second

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready probes every configured backend and answers 503 when one fails.
func (a *App) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	status := "ok"
	code := http.StatusOK
	checks := make(map[string]string, len(a.Checks))
	for _, c := range a.Checks {
		if err := c.Check(ctx); err != nil {
			a.log(r).Warn().Err(err).Str("check", c.Name).Msg("readiness check failed")
			checks[c.Name] = err.Error()
			status = "unavailable"
			code = http.StatusServiceUnavailable
			continue
		}
		checks[c.Name] = "ok"
	}
	a.json(w, code, map[string]any{"status": status, "checks": checks})
}
