package coordinator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/cadsdf/ostromd/database"
	"github.com/cadsdf/ostromd/forecast"
	"github.com/cadsdf/ostromd/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeProvider struct {
	mu         sync.Mutex
	priceCalls int
	prices     []types.SpotPrice
	fees       types.MonthlyFees
	priceErr   error
	contracts  []types.Contract
	block      chan struct{} // when set, GetSpotPrices waits on it
}

func (f *fakeProvider) GetSpotPrices(ctx context.Context, from, to time.Time) ([]types.SpotPrice, types.MonthlyFees, error) {
	f.mu.Lock()
	f.priceCalls++
	block := f.block
	prices, fees, err := f.prices, f.fees, f.priceErr
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	return prices, fees, err
}

func (f *fakeProvider) GetConsumption(ctx context.Context, from, to time.Time) ([]types.Consumption, error) {
	return nil, nil
}

func (f *fakeProvider) GetContracts(ctx context.Context) ([]types.Contract, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.contracts, nil
}

func (f *fakeProvider) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.priceCalls
}

func (f *fakeProvider) setError(err error) {
	f.mu.Lock()
	f.priceErr = err
	f.mu.Unlock()
}

func hourlyPrices(start time.Time, count int) []types.SpotPrice {
	prices := make([]types.SpotPrice, count)
	for i := 0; i < count; i++ {
		s := start.Add(time.Duration(i) * time.Hour)
		prices[i] = types.SpotPrice{
			StartsAt:       s,
			EndsAt:         s.Add(time.Hour),
			EnergyPrice:    0.20 + float64(i)*0.01,
			TaxesAndLevies: 0.10,
		}
	}
	return prices
}

func newTestDb(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("creating test database: %v", err)
	}
	t.Cleanup(db.Close)
	return db
}

func newTestCoordinator(t *testing.T, provider *fakeProvider, now time.Time) *Coordinator {
	t.Helper()
	c := New(discardLogger(), provider, newTestDb(t), time.UTC, "")
	c.now = func() time.Time { return now }
	return c
}

func TestCurrentBeforeFirstRefresh(t *testing.T) {
	now := time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)
	c := newTestCoordinator(t, &fakeProvider{}, now)

	snap := c.Current()
	if snap.Initialized {
		t.Error("snapshot should not be initialized before first refresh")
	}
	if !c.NeedsImmediateRefresh() {
		t.Error("uninitialized coordinator should need an immediate refresh")
	}
}

func TestRefreshSwapsSnapshot(t *testing.T) {
	now := time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)
	yesterday := time.Date(2026, 6, 9, 0, 0, 0, 0, time.UTC)
	provider := &fakeProvider{
		prices: hourlyPrices(yesterday, 72),
		fees:   types.MonthlyFees{BaseFee: 6.0, GridFee: 9.5},
	}
	c := newTestCoordinator(t, provider, now)

	snap := c.Refresh(context.Background())
	if !snap.Initialized {
		t.Fatal("snapshot should be initialized after refresh")
	}
	if !snap.Status.Ok {
		t.Fatalf("status should be ok, got error %q", snap.Status.LastError)
	}
	if snap.Forecast.Len() != 72 {
		t.Errorf("expected 72 forecast points, got %d", snap.Forecast.Len())
	}
	if snap.Fees.BaseFee != 6.0 {
		t.Errorf("expected base fee 6.0, got %f", snap.Fees.BaseFee)
	}
	if !snap.Forecast.At(now).IsValid() {
		t.Error("forecast should cover the current hour")
	}
	if c.NeedsImmediateRefresh() {
		t.Error("fresh snapshot should not need an immediate refresh")
	}
}

func TestRefreshIdempotentWithUnchangedUpstream(t *testing.T) {
	now := time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)
	yesterday := time.Date(2026, 6, 9, 0, 0, 0, 0, time.UTC)
	provider := &fakeProvider{
		prices: hourlyPrices(yesterday, 72),
		fees:   types.MonthlyFees{BaseFee: 6.0, GridFee: 9.5},
	}
	c := newTestCoordinator(t, provider, now)

	first := c.Refresh(context.Background())
	second := c.Refresh(context.Background())

	if got := provider.calls(); got != 2 {
		t.Fatalf("expected two provider fetches, got %d", got)
	}
	if !reflect.DeepEqual(first.Forecast.Points(), second.Forecast.Points()) {
		t.Error("forecast points differ between refreshes of unchanged data")
	}
	if first.Fees != second.Fees {
		t.Errorf("fees differ between refreshes: %+v vs %+v", first.Fees, second.Fees)
	}

	windows := []forecast.Window{
		forecast.WindowToday,
		forecast.WindowUpcomingToday,
		forecast.WindowTomorrow,
		forecast.WindowAllAvailable,
	}
	for _, w := range windows {
		m1 := first.Forecast.WindowMinimum(now, time.UTC, w)
		m2 := second.Forecast.WindowMinimum(now, time.UTC, w)
		if !reflect.DeepEqual(m1, m2) {
			t.Errorf("%s minimum differs between refreshes", w)
		}
	}
}

func TestConcurrentRefreshSharesOneFetch(t *testing.T) {
	now := time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)
	yesterday := time.Date(2026, 6, 9, 0, 0, 0, 0, time.UTC)
	block := make(chan struct{})
	provider := &fakeProvider{
		prices: hourlyPrices(yesterday, 48),
		block:  block,
	}
	c := newTestCoordinator(t, provider, now)

	var wg sync.WaitGroup
	snaps := make([]Snapshot, 10)
	for i := range snaps {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			snaps[i] = c.Refresh(context.Background())
		}()
	}

	// Give the callers a moment to pile up on the in-flight fetch.
	time.Sleep(50 * time.Millisecond)
	close(block)
	wg.Wait()

	if got := provider.calls(); got != 1 {
		t.Errorf("expected a single provider fetch, got %d", got)
	}
	for i, snap := range snaps {
		if !snap.Initialized {
			t.Errorf("caller %d got an uninitialized snapshot", i)
		}
	}
}

func TestFailedRefreshKeepsPreviousData(t *testing.T) {
	now := time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)
	yesterday := time.Date(2026, 6, 9, 0, 0, 0, 0, time.UTC)
	provider := &fakeProvider{prices: hourlyPrices(yesterday, 48)}
	c := newTestCoordinator(t, provider, now)

	first := c.Refresh(context.Background())
	if !first.Status.Ok {
		t.Fatalf("first refresh should succeed, got %q", first.Status.LastError)
	}

	provider.setError(errors.New("upstream is down"))
	second := c.Refresh(context.Background())

	if second.Status.Ok {
		t.Error("status should be degraded after a failed refresh")
	}
	if second.Status.LastError == "" {
		t.Error("degraded status should carry the error message")
	}
	if !second.Initialized {
		t.Error("snapshot should stay initialized after a failed refresh")
	}
	if second.Forecast.Len() != first.Forecast.Len() {
		t.Errorf("forecast should be untouched, had %d points, got %d",
			first.Forecast.Len(), second.Forecast.Len())
	}
	if !second.FetchedAt.Equal(first.FetchedAt) {
		t.Error("fetched-at should not advance on a failed refresh")
	}
}

func TestRecoveryClearsDegradedStatus(t *testing.T) {
	now := time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)
	yesterday := time.Date(2026, 6, 9, 0, 0, 0, 0, time.UTC)
	provider := &fakeProvider{priceErr: errors.New("upstream is down")}
	c := newTestCoordinator(t, provider, now)

	degraded := c.Refresh(context.Background())
	if degraded.Initialized {
		t.Error("failed first refresh should leave the snapshot uninitialized")
	}

	provider.setError(nil)
	provider.mu.Lock()
	provider.prices = hourlyPrices(yesterday, 48)
	provider.mu.Unlock()

	recovered := c.Refresh(context.Background())
	if !recovered.Status.Ok {
		t.Errorf("status should recover, got %q", recovered.Status.LastError)
	}
	if !recovered.Initialized {
		t.Error("snapshot should be initialized after recovery")
	}
}

func TestTryRefreshWhileInFlight(t *testing.T) {
	now := time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)
	yesterday := time.Date(2026, 6, 9, 0, 0, 0, 0, time.UTC)
	block := make(chan struct{})
	provider := &fakeProvider{
		prices: hourlyPrices(yesterday, 48),
		block:  block,
	}
	c := newTestCoordinator(t, provider, now)

	done := make(chan Snapshot)
	go func() { done <- c.Refresh(context.Background()) }()

	// Wait for the background refresh to actually hold the slot.
	deadline := time.After(2 * time.Second)
	for !c.inflight.Get() {
		select {
		case <-deadline:
			t.Fatal("refresh never started")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	_, err := c.TryRefresh(context.Background())
	if !errors.Is(err, ErrRefreshInProgress) {
		t.Errorf("expected ErrRefreshInProgress, got %v", err)
	}

	close(block)
	<-done

	if _, err := c.TryRefresh(context.Background()); err != nil {
		t.Errorf("TryRefresh should succeed when idle, got %v", err)
	}
}

func TestWarmStartFromDatabase(t *testing.T) {
	now := time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)
	yesterday := time.Date(2026, 6, 9, 0, 0, 0, 0, time.UTC)
	provider := &fakeProvider{
		prices: hourlyPrices(yesterday, 48),
		fees:   types.MonthlyFees{BaseFee: 6.0, GridFee: 9.5},
	}

	db := newTestDb(t)
	first := New(discardLogger(), provider, db, time.UTC, "")
	first.now = func() time.Time { return now }
	snap := first.Refresh(context.Background())
	if !snap.Status.Ok {
		t.Fatalf("refresh failed: %q", snap.Status.LastError)
	}

	second := New(discardLogger(), &fakeProvider{}, db, time.UTC, "")
	second.now = func() time.Time { return now }
	if err := second.WarmStart(context.Background()); err != nil {
		t.Fatalf("warm start failed: %v", err)
	}

	warmed := second.Current()
	if !warmed.Initialized {
		t.Fatal("warm started snapshot should be initialized")
	}
	if warmed.Forecast.Len() != snap.Forecast.Len() {
		t.Errorf("expected %d cached points, got %d", snap.Forecast.Len(), warmed.Forecast.Len())
	}
	if warmed.Fees.GridFee != 9.5 {
		t.Errorf("expected grid fee 9.5, got %f", warmed.Fees.GridFee)
	}
	if !warmed.FetchedAt.Equal(snap.FetchedAt) {
		t.Errorf("expected fetched-at %v, got %v", snap.FetchedAt, warmed.FetchedAt)
	}
}

func TestWarmStartWithEmptyDatabase(t *testing.T) {
	c := newTestCoordinator(t, &fakeProvider{}, time.Now())
	if err := c.WarmStart(context.Background()); err != nil {
		t.Fatalf("warm start on empty database should not fail: %v", err)
	}
	if c.Current().Initialized {
		t.Error("snapshot should stay uninitialized after an empty warm start")
	}
}

func TestRefreshContractPicksActive(t *testing.T) {
	now := time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)
	provider := &fakeProvider{
		contracts: []types.Contract{
			{ID: "1", Type: "ELECTRICITY", Status: "CANCELLED"},
			{ID: "2", Type: "ELECTRICITY", Status: "ACTIVE"},
		},
	}
	c := newTestCoordinator(t, provider, now)

	if err := c.RefreshContract(context.Background()); err != nil {
		t.Fatalf("refresh contract failed: %v", err)
	}

	snap := c.Current()
	if snap.ContractID != "2" {
		t.Errorf("expected active contract 2, got %s", snap.ContractID)
	}
	if !snap.Contract.IsValid() {
		t.Fatal("contract should be set on the snapshot")
	}
	if snap.Contract.Value().Status != "ACTIVE" {
		t.Errorf("expected active contract, got %s", snap.Contract.Value().Status)
	}
}

func TestRefreshContractHonorsConfiguredId(t *testing.T) {
	now := time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)
	provider := &fakeProvider{
		contracts: []types.Contract{
			{ID: "1", Type: "ELECTRICITY", Status: "ACTIVE"},
			{ID: "2", Type: "ELECTRICITY", Status: "ACTIVE"},
		},
	}
	c := New(discardLogger(), provider, newTestDb(t), time.UTC, "2")
	c.now = func() time.Time { return now }

	if err := c.RefreshContract(context.Background()); err != nil {
		t.Fatalf("refresh contract failed: %v", err)
	}
	if got := c.Current().ContractID; got != "2" {
		t.Errorf("expected configured contract 2, got %s", got)
	}

	missing := New(discardLogger(), provider, newTestDb(t), time.UTC, "99")
	if err := missing.RefreshContract(context.Background()); err == nil {
		t.Error("expected an error for an unknown configured contract")
	}
}
