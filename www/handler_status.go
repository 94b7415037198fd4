package www

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/cadsdf/ostromd/coordinator"
)

type statusResponse struct {
	Version     string     `json:"version"`
	Ok          bool       `json:"ok"`
	Initialized bool       `json:"initialized"`
	FetchedAt   *time.Time `json:"fetchedAt,omitempty"`
	LastError   string     `json:"lastError,omitempty"`
	LastErrorAt *time.Time `json:"lastErrorAt,omitempty"`
	Stale       bool       `json:"stale"`
}

func NewStatusHandler(logger *slog.Logger, coord *coordinator.Coordinator, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		now := time.Now()
		snap := coord.Current()
		resp := statusResponse{
			Version:     version,
			Ok:          snap.Status.Ok,
			Initialized: snap.Initialized,
			LastError:   snap.Status.LastError,
			Stale:       snap.Stale(now),
		}
		if !snap.FetchedAt.IsZero() {
			resp.FetchedAt = &snap.FetchedAt
		}
		if !snap.Status.LastErrorAt.IsZero() {
			resp.LastErrorAt = &snap.Status.LastErrorAt
		}

		writeJSON(logger, w, http.StatusOK, resp)
	}
}
