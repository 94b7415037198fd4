package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"github.com/cadsdf/ostromd/config"
	"github.com/cadsdf/ostromd/coordinator"
	"github.com/cadsdf/ostromd/database"
	"github.com/cadsdf/ostromd/logging"
	"github.com/cadsdf/ostromd/mqtt"
	"github.com/cadsdf/ostromd/ostrom"
	"github.com/cadsdf/ostromd/task"
	"github.com/cadsdf/ostromd/www"
)

var Version = "?.?.?"

func main() {
	defer func() {
		if err := recover(); err != nil {
			exitWithError(slog.Default(), fmt.Errorf("application panicked: %v", err))
		} else {
			slog.Default().Info("application is shutting down...")
		}
	}()

	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cnfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	loc, err := cnfg.Display.GetLocation()
	if err != nil {
		panic(fmt.Sprintf("failed to load display timezone: %v", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consoleLevel := new(slog.LevelVar)
	consoleLevel.Set(cnfg.Logging.GetConsoleLevel())
	consoleHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      consoleLevel,
		TimeFormat: time.RFC3339,
	})
	slog.New(consoleHandler).Debug("ostromd is starting...", slog.String("version", Version))

	db, err := database.New(ctx, cnfg.Database.Path)
	if err != nil {
		panic(fmt.Sprintf("failed to connect to database: %v", err))
	}
	defer db.Close()

	logger := slog.New(logging.NewMultiHandler(
		consoleHandler,
		logging.NewSQLiteHandler(db, cnfg.Logging.GetDbLevel(), cnfg.Logging.GetDbAttrsFormat())))
	slog.SetDefault(logger)

	// Now we can use the logger to log database operations into the database itself
	db.SetLogger(logger.With("module", "database"))

	// The console log level follows config file edits without a restart
	config.Watch(logger.With("module", "config"), func(updated *config.AppConfig) {
		consoleLevel.Set(updated.Logging.GetConsoleLevel())
	})

	client := ostrom.NewWithEndpoints(
		cnfg.Ostrom.ClientID,
		cnfg.Ostrom.ClientSecret,
		cnfg.Ostrom.Zip,
		cnfg.Ostrom.GetContractID(),
		cnfg.Ostrom.GetAuthUrl(),
		cnfg.Ostrom.GetApiUrl())

	coord := coordinator.New(logger, client, db, loc, cnfg.Ostrom.GetContractID())
	if err := coord.WarmStart(ctx); err != nil {
		logger.Warn("warm start failed, continuing with empty cache", slog.Any("error", err))
	}

	if !isDevMode() {
		startupCtx, startupCancel := context.WithTimeout(ctx, 30*time.Second)
		if user, err := client.GetUser(startupCtx); err != nil {
			logger.Warn("account lookup failed", slog.Any("error", err))
		} else {
			logger.Info("authenticated with Ostrom",
				slog.String("name", user.FirstName+" "+user.LastName),
				slog.String("email", user.Email))
		}
		if err := coord.RefreshContract(startupCtx); err != nil {
			logger.Warn("contract lookup failed, consumption data may be missing", slog.Any("error", err))
		}
		startupCancel()
	}

	if cnfg.Mqtt.Enabled() {
		publisher := mqtt.New(cnfg.Mqtt, loc)
		if err := publisher.Connect(); err != nil {
			logger.Error("mqtt connection failed, continuing without it", slog.Any("error", err))
		} else {
			coord.Subscribe(publisher.Publish)
			defer publisher.Disconnect()
		}
	}

	tasks := task.NewTasks(db, coord, cnfg)
	if isDevMode() {
		logger.Info("dev mode, skipping task scheduling")
	} else {
		tasks.Run()
		defer tasks.Stop()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-ctx.Done():
			logger.Info("main context done")
		case sig := <-sigCh:
			logger.Info("received signal", slog.Any("signal", sig))
			cancel()
		}
	}()

	server := www.StartServer(db, coord, loc, cnfg.Api, Version)
	server.Run(ctx)
}

func isDevMode() bool {
	return strings.EqualFold(os.Getenv("APP_ENV"), "development")
}

func exitWithError(logger *slog.Logger, err error) {
	if err != nil {
		logger.Error("application shutting down with error", slog.Any("error", err))
	}
	if syncer, ok := logger.Handler().(interface{ Sync() error }); ok {
		if syncErr := syncer.Sync(); syncErr != nil {
			logger.Error("failed to flush logger", slog.Any("error", syncErr))
		}
	}

	time.Sleep(2 * time.Second)
	os.Exit(1)
}
