package www

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/cadsdf/ostromd/database"
)

type logEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Attrs     string    `json:"attrs,omitempty"`
}

func NewLogHandler(logger *slog.Logger, db *database.Database) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		page := intOrDefault(r.URL, "page", 1)
		pageSize := intOrDefault(r.URL, "pageSize", 25)

		rows, err := db.GetLogEntries(r.Context(), slog.LevelDebug, page, pageSize)
		if err != nil {
			logger.Error("handling log request", slog.Any("error", err))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		entries := make([]logEntry, 0, len(rows))
		for _, row := range rows {
			entries = append(entries, logEntry{
				Timestamp: row.Timestamp,
				Level:     slog.Level(row.Level).String(),
				Message:   row.Message,
				Attrs:     row.Attrs,
			})
		}

		writeJSON(logger, w, http.StatusOK, struct {
			Page     int        `json:"page"`
			PageSize int        `json:"pageSize"`
			Entries  []logEntry `json:"entries"`
		}{
			Page:     page,
			PageSize: pageSize,
			Entries:  entries,
		})
	}
}
