package task

import (
	"context"
	"log/slog"
	"time"

	"github.com/cadsdf/ostromd/coordinator"
)

// NewRefreshTask runs the scheduled snapshot refresh. When the cached
// data is missing or stale at startup the first refresh runs right away
// instead of waiting for the next cron slot.
func NewRefreshTask(logger *slog.Logger, coord *coordinator.Coordinator) func() {
	if coord.NeedsImmediateRefresh() {
		logger.Info("need an immediate refresh of spot prices")
		runRefreshTask(logger, coord)
	} else {
		logger.Debug("no need for immediate refresh of spot prices")
	}

	return func() { runRefreshTask(logger, coord) }
}

func runRefreshTask(logger *slog.Logger, coord *coordinator.Coordinator) {
	logger.Debug("running refresh task...")
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	snap := coord.Refresh(ctx)
	if !snap.Status.Ok {
		logger.Warn("refresh task finished degraded", slog.String("lastError", snap.Status.LastError))
		return
	}

	logger.Info("refresh task done", slog.Int("noOfHours", snap.Forecast.Len()))
}
