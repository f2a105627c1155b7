package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/modq/queue"
)

// Counter is the slice of the queue the handler needs: per-status record
// counts. *queue.Queue satisfies it.
type Counter interface {
	Counts(ctx context.Context) (map[queue.Status]int, error)
}

// statsResponse is the JSON body of GET /queue/stats.
type statsResponse struct {
	Status string               `json:"status"`
	Counts map[queue.Status]int `json:"counts,omitempty"`
}

// NewHandler returns an http.Handler serving:
//
//	GET /healthz      -> 200 once the store answers, 503 otherwise
//	GET /queue/stats  -> per-status record counts
func NewHandler(counter Counter, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	log := logger.With("component", "health")

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if _, err := counter.Counts(req.Context()); err != nil {
			log.Warn("health check failed, store unavailable", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, statsResponse{Status: "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, statsResponse{Status: "ok"})
	})

	r.Get("/queue/stats", func(w http.ResponseWriter, req *http.Request) {
		counts, err := counter.Counts(req.Context())
		if err != nil {
			log.Warn("failed to collect queue stats", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, statsResponse{Status: "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, statsResponse{Status: "ok", Counts: counts})
	})

	return r
}

func writeJSON(w http.ResponseWriter, code int, body statsResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
