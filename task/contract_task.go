package task

import (
	"context"
	"log/slog"
	"time"

	"github.com/cadsdf/ostromd/coordinator"
)

// NewContractTask keeps the selected contract up to date. Contracts
// rarely change so a daily check is plenty.
func NewContractTask(logger *slog.Logger, coord *coordinator.Coordinator) func() {
	return func() {
		logger.Debug("running contract task...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := coord.RefreshContract(ctx); err != nil {
			logger.Error("error refreshing contract", slog.Any("error", err))
			return
		}

		logger.Info("contract task done")
	}
}
