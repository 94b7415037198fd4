package facts

import (
	"math"
	"testing"
	"time"

	"github.com/cadsdf/ostromd/coordinator"
	"github.com/cadsdf/ostromd/forecast"
	"github.com/cadsdf/ostromd/types"
)

func mustForecast(t *testing.T, prices []types.SpotPrice) forecast.Forecast {
	t.Helper()
	fc, err := forecast.New(prices)
	if err != nil {
		t.Fatalf("building forecast: %v", err)
	}
	return fc
}

// hourly builds consecutive hourly points, one per total, taxes fixed at 0.10.
func hourly(start time.Time, totals ...float64) []types.SpotPrice {
	prices := make([]types.SpotPrice, len(totals))
	for i, total := range totals {
		s := start.Add(time.Duration(i) * time.Hour)
		prices[i] = types.SpotPrice{
			StartsAt:       s,
			EndsAt:         s.Add(time.Hour),
			EnergyPrice:    total - 0.10,
			TaxesAndLevies: 0.10,
		}
	}
	return prices
}

func TestBuildUninitializedSnapshot(t *testing.T) {
	now := time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)
	f := Build(coordinator.Snapshot{}, now, time.UTC)

	if f.Status.Initialized {
		t.Error("status should report uninitialized")
	}
	if f.CurrentPrice.IsValid() {
		t.Error("no current price expected without data")
	}
	if f.Minimums.AllAvailable.IsValid() {
		t.Error("no minimums expected without data")
	}
	if f.LowestPriceIsNow {
		t.Error("lowest-price-is-now must be false without data")
	}
}

func TestBuildDerivesPricesAndMinimums(t *testing.T) {
	now := time.Date(2026, 6, 10, 12, 30, 0, 0, time.UTC)
	dayStart := time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC)
	// 36 hours: today's minimum 0.22 at 14:00, tomorrow's 0.18 at 03:00.
	totals := make([]float64, 36)
	for i := range totals {
		totals[i] = 0.30
	}
	totals[14] = 0.22
	totals[12] = 0.28 // current hour
	totals[27] = 0.18

	snap := coordinator.Snapshot{
		Forecast:    mustForecast(t, hourly(dayStart, totals...)),
		Fees:        types.MonthlyFees{BaseFee: 6.0, GridFee: 9.5},
		FetchedAt:   now.Add(-10 * time.Minute),
		Initialized: true,
		Status:      coordinator.Status{Ok: true},
	}

	f := Build(snap, now, time.UTC)

	if !f.Status.Ok || !f.Status.Initialized {
		t.Fatal("status should be ok and initialized")
	}
	if !f.CurrentPrice.IsValid() {
		t.Fatal("expected a current price")
	}
	if got := f.CurrentPrice.Value().Total; math.Abs(got-0.28) > 1e-9 {
		t.Errorf("expected current total 0.28, got %f", got)
	}
	if got := f.Minimums.Today.Value().Total; math.Abs(got-0.22) > 1e-9 {
		t.Errorf("expected today minimum 0.22, got %f", got)
	}
	if got := f.Minimums.Today.Value().StartsAt.Hour(); got != 14 {
		t.Errorf("expected today minimum at hour 14, got %d", got)
	}
	if got := f.Minimums.Tomorrow.Value().Total; math.Abs(got-0.18) > 1e-9 {
		t.Errorf("expected tomorrow minimum 0.18, got %f", got)
	}
	if got := f.Minimums.AllAvailable.Value().Total; math.Abs(got-0.18) > 1e-9 {
		t.Errorf("expected all-available minimum 0.18, got %f", got)
	}
	if f.LowestPriceIsNow {
		t.Error("14:00 is cheaper than now, lowest-price-is-now must be false")
	}
	if f.Fees.BaseFee != 6.0 || f.Fees.GridFee != 9.5 {
		t.Errorf("unexpected fees: %+v", f.Fees)
	}
	if f.HorizonHours != 36 {
		t.Errorf("expected 36 horizon hours, got %d", f.HorizonHours)
	}
	if f.HorizonEnd == nil || !f.HorizonEnd.Equal(dayStart.Add(36*time.Hour)) {
		t.Errorf("unexpected horizon end: %v", f.HorizonEnd)
	}
}

func TestLowestPriceIsNow(t *testing.T) {
	now := time.Date(2026, 6, 10, 12, 30, 0, 0, time.UTC)
	dayStart := time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC)
	totals := make([]float64, 24)
	for i := range totals {
		totals[i] = 0.30
	}
	totals[12] = 0.20 // now is the cheapest remaining hour

	snap := coordinator.Snapshot{
		Forecast:    mustForecast(t, hourly(dayStart, totals...)),
		Initialized: true,
		Status:      coordinator.Status{Ok: true},
	}

	f := Build(snap, now, time.UTC)
	if !f.LowestPriceIsNow {
		t.Error("expected lowest-price-is-now when the current hour is cheapest")
	}
}

func TestLowestPriceFallsBackToAllAvailable(t *testing.T) {
	// Late evening: the current hour is the last of the local day, so the
	// upcoming-today window is empty and the whole horizon is compared.
	now := time.Date(2026, 6, 10, 23, 30, 0, 0, time.UTC)
	start := time.Date(2026, 6, 10, 23, 0, 0, 0, time.UTC)

	snap := coordinator.Snapshot{
		Forecast:    mustForecast(t, hourly(start, 0.20, 0.25, 0.30)),
		Initialized: true,
		Status:      coordinator.Status{Ok: true},
	}

	f := Build(snap, now, time.UTC)
	if f.Minimums.UpcomingToday.IsValid() {
		t.Fatal("upcoming-today should be empty in the last hour of the day")
	}
	if !f.LowestPriceIsNow {
		t.Error("current hour is the horizon minimum, expected lowest-price-is-now")
	}
}

func TestYesterdayConsumptionAndCost(t *testing.T) {
	now := time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)
	yesterday := time.Date(2026, 6, 9, 0, 0, 0, 0, time.UTC)

	// Price horizon covers yesterday so the cost can be matched by hour.
	totals := make([]float64, 48)
	for i := range totals {
		totals[i] = 0.25
	}
	snap := coordinator.Snapshot{
		Forecast: mustForecast(t, hourly(yesterday, totals...)),
		Consumption: []types.Consumption{
			{StartsAt: yesterday.Add(8 * time.Hour), KWh: 1.5},
			{StartsAt: yesterday.Add(19 * time.Hour), KWh: 2.5},
		},
		Initialized: true,
		Status:      coordinator.Status{Ok: true},
	}

	f := Build(snap, now, time.UTC)
	if !f.Yesterday.KWh.IsValid() {
		t.Fatal("expected yesterday consumption")
	}
	if got := f.Yesterday.KWh.Value(); math.Abs(got-4.0) > 1e-9 {
		t.Errorf("expected 4.0 kWh, got %f", got)
	}
	if got := f.Yesterday.Cost.Value(); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("expected cost 1.0, got %f", got)
	}
}

func TestDegradedSnapshotKeepsData(t *testing.T) {
	now := time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)
	dayStart := time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC)
	errorAt := now.Add(-5 * time.Minute)

	snap := coordinator.Snapshot{
		Forecast:    mustForecast(t, hourly(dayStart, 0.20, 0.25, 0.30, 0.22, 0.28, 0.30, 0.31, 0.27, 0.26, 0.29, 0.30, 0.30, 0.24)),
		Initialized: true,
		Status: coordinator.Status{
			Ok:          false,
			LastError:   "fetching spot prices: boom",
			LastErrorAt: errorAt,
		},
	}

	f := Build(snap, now, time.UTC)
	if f.Status.Ok {
		t.Error("status should be degraded")
	}
	if f.Status.LastError == "" || f.Status.LastErrorAt == nil {
		t.Error("degraded status should carry error details")
	}
	if !f.CurrentPrice.IsValid() {
		t.Error("stale data should still be served while degraded")
	}
}
