package www

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/cadsdf/ostromd/coordinator"
	"github.com/cadsdf/ostromd/facts"
)

// NewSnapshotHandler serves the full fact set derived from the current
// snapshot. 503 before the first refresh, but still with a body so
// clients can show the uninitialized state.
func NewSnapshotHandler(logger *slog.Logger, coord *coordinator.Coordinator, loc *time.Location) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		snap := coord.Current()
		status := http.StatusOK
		if !snap.Initialized {
			status = http.StatusServiceUnavailable
		}

		writeJSON(logger, w, status, facts.Build(snap, time.Now(), loc))
	}
}

func NewMinimumsHandler(logger *slog.Logger, coord *coordinator.Coordinator, loc *time.Location) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		snap := coord.Current()
		if !snap.Initialized {
			http.Error(w, "no price data yet", http.StatusServiceUnavailable)
			return
		}

		f := facts.Build(snap, time.Now(), loc)
		writeJSON(logger, w, http.StatusOK, f.Minimums)
	}
}
