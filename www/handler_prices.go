package www

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/cadsdf/ostromd/convert"
	"github.com/cadsdf/ostromd/coordinator"
	"github.com/cadsdf/ostromd/www/chartjs"
)

// NewPricesHandler serves the whole cached price horizon as a chart.js
// config, one point per hour in the display timezone.
func NewPricesHandler(logger *slog.Logger, coord *coordinator.Coordinator, loc *time.Location) http.HandlerFunc {
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

		points := snap.Forecast.Points()
		labels := make([]string, len(points))
		for i, p := range points {
			labels[i] = p.StartsAt.In(loc).Format("Mon 15:04")
		}

		chart := chartjs.NewChart("", labels)
		for i, p := range points {
			chart.Data.Datasets[0].Data[i] = chartjs.FixedFloat64(convert.FourDecimals(p.Total()))
			chart.Data.Datasets[1].Data[i] = chartjs.FixedFloat64(convert.FourDecimals(p.EnergyPrice))
		}
		chart.Options.Scales["YAxis1"] = chart.Options.Scales["YAxis1"].WithTitle("Price (EUR/kWh)")

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(chart); err != nil {
			logger.Error("handling prices request", slog.Any("error", err))
			http.Error(w, "unable to encode data points", http.StatusInternalServerError)
			return
		}
	}
}
