package task

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/cadsdf/ostromd/config"
	"github.com/cadsdf/ostromd/coordinator"
	"github.com/cadsdf/ostromd/database"
)

type Tasks struct {
	cron            *cron.Cron
	cnfg            *config.AppConfig
	RefreshTask     func()
	ContractTask    func()
	MaintenanceTask func()
}

func NewTasks(db *database.Database, coord *coordinator.Coordinator, cnfg *config.AppConfig) *Tasks {
	logger := slog.Default().With("module", "tasks")
	return &Tasks{
		cron:            cron.New(),
		cnfg:            cnfg,
		RefreshTask:     NewRefreshTask(logger.With(slog.String("task", "refresh")), coord),
		ContractTask:    NewContractTask(logger.With(slog.String("task", "contract")), coord),
		MaintenanceTask: NewMaintenanceTask(logger.With(slog.String("task", "maintenance")), db, cnfg),
	}
}

func (t *Tasks) Run() {
	_, err := t.cron.AddFunc(t.cnfg.Ostrom.GetRunAt(), t.RefreshTask)
	if err != nil {
		panic(err)
	}
	_, err = t.cron.AddFunc("@daily", t.ContractTask)
	if err != nil {
		panic(err)
	}
	_, err = t.cron.AddFunc("30 2 * * *", t.MaintenanceTask)
	if err != nil {
		panic(err)
	}
	t.cron.Start()
}

func (t *Tasks) Stop() context.Context {
	return t.cron.Stop()
}
