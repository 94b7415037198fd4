package www

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/cadsdf/ostromd/coordinator"
	"github.com/cadsdf/ostromd/facts"
)

// NewRefreshHandler triggers an out-of-schedule refresh. When a refresh
// is already running the request is rejected instead of queued, the
// caller can simply wait for the push on the websocket.
func NewRefreshHandler(logger *slog.Logger, coord *coordinator.Coordinator, loc *time.Location) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		snap, err := coord.TryRefresh(r.Context())
		if errors.Is(err, coordinator.ErrRefreshInProgress) {
			writeJSON(logger, w, http.StatusConflict, map[string]string{
				"error": err.Error(),
			})
			return
		}

		logger.Info("manual refresh triggered", slog.String("remoteAddr", r.RemoteAddr))
		writeJSON(logger, w, http.StatusOK, facts.Build(snap, time.Now(), loc))
	}
}
