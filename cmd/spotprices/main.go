// One-shot fetch of the current spot price horizon, handy for checking
// credentials and zip before running the daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"github.com/cadsdf/ostromd/config"
	"github.com/cadsdf/ostromd/forecast"
	"github.com/cadsdf/ostromd/hours"
	"github.com/cadsdf/ostromd/ostrom"
)

func main() {
	w := os.Stdout
	logger := slog.New(tint.NewHandler(w, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: time.RFC3339Nano,
	}))
	slog.SetDefault(logger)

	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cnfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	loc, err := cnfg.Display.GetLocation()
	if err != nil {
		logger.Error("failed to load display timezone", slog.Any("error", err))
		os.Exit(1)
	}

	client := ostrom.NewWithEndpoints(
		cnfg.Ostrom.ClientID,
		cnfg.Ostrom.ClientSecret,
		cnfg.Ostrom.Zip,
		cnfg.Ostrom.GetContractID(),
		cnfg.Ostrom.GetAuthUrl(),
		cnfg.Ostrom.GetApiUrl())

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	now := time.Now()
	today := hours.DayStart(now, loc)
	prices, fees, err := client.GetSpotPrices(ctx, today.AddDate(0, 0, -1), today.AddDate(0, 0, 2))
	if err != nil {
		logger.Error("failed to fetch spot prices", slog.Any("error", err))
		os.Exit(1)
	}

	fc, err := forecast.New(prices)
	if err != nil {
		logger.Error("fetched prices failed validation", slog.Any("error", err))
		os.Exit(1)
	}

	fmt.Printf("monthly fees: base %.2f EUR, grid %.2f EUR\n\n", fees.BaseFee, fees.GridFee)
	for _, p := range fc.Points() {
		marker := "  "
		if p.Contains(now) {
			marker = "->"
		}
		fmt.Printf("%s %s  %.4f EUR/kWh (energy %.4f, taxes %.4f)\n",
			marker, p.StartsAt.In(loc).Format("Mon 2006-01-02 15:04"),
			p.Total(), p.EnergyPrice, p.TaxesAndLevies)
	}

	if min := fc.WindowMinimum(now, loc, forecast.WindowAllAvailable); min.IsValid() {
		fmt.Printf("\ncheapest hour: %s at %.4f EUR/kWh\n",
			min.Value().StartsAt.In(loc).Format("Mon 15:04"), min.Value().Total())
	}
}
