package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/cadsdf/ostromd/database"
	"github.com/cadsdf/ostromd/forecast"
	"github.com/cadsdf/ostromd/hours"
	"github.com/cadsdf/ostromd/slice"
	"github.com/cadsdf/ostromd/types"
	"github.com/cadsdf/ostromd/types/maybe"
)

// ErrRefreshInProgress is returned by TryRefresh when another refresh
// currently holds the fetch slot.
var ErrRefreshInProgress = errors.New("refresh already in progress")

// Coordinator owns the cached snapshot of tariff data. It refreshes the
// snapshot from the provider, coalesces concurrent refresh requests into
// a single upstream fetch, and keeps serving the previous snapshot when
// a refresh fails.
type Coordinator struct {
	logger   *slog.Logger
	provider types.TariffProvider
	db       *database.Database
	loc      *time.Location
	now      func() time.Time

	contractID string // preferred contract from config, may be empty

	store    snapshotStore
	group    singleflight.Group
	inflight inflightFlag

	subscribers *subscriberList
}

func New(logger *slog.Logger, provider types.TariffProvider, db *database.Database, loc *time.Location, contractID string) *Coordinator {
	if loc == nil {
		loc = time.UTC
	}
	return &Coordinator{
		logger:      logger.With(slog.String("module", "coordinator")),
		provider:    provider,
		db:          db,
		loc:         loc,
		now:         time.Now,
		contractID:  contractID,
		subscribers: newSubscriberList(),
	}
}

// Current returns the snapshot as it stands, without touching the
// provider. Before the first successful refresh or warm start the
// snapshot reports Initialized == false.
func (c *Coordinator) Current() Snapshot {
	return c.store.Load()
}

// Subscribe registers a callback invoked after every snapshot swap,
// including degraded ones. Callbacks run on their own goroutine.
func (c *Coordinator) Subscribe(fn func(Snapshot)) {
	c.subscribers.Add(fn)
}

// Refresh fetches fresh data from the provider and swaps the snapshot.
// Concurrent callers share a single upstream fetch and all receive the
// snapshot that fetch produced. Refresh never returns an error: a failed
// fetch degrades the snapshot status and the previous data stays served.
func (c *Coordinator) Refresh(ctx context.Context) Snapshot {
	v, _, _ := c.group.Do("refresh", func() (any, error) {
		c.inflight.Set(true)
		defer c.inflight.Set(false)
		return c.refresh(ctx), nil
	})
	return v.(Snapshot)
}

// TryRefresh behaves like Refresh but refuses to wait: when a refresh
// is already running it returns the current snapshot together with
// ErrRefreshInProgress.
func (c *Coordinator) TryRefresh(ctx context.Context) (Snapshot, error) {
	if c.inflight.Get() {
		return c.store.Load(), ErrRefreshInProgress
	}
	return c.Refresh(ctx), nil
}

// NeedsImmediateRefresh reports whether the cached data is missing or
// too stale to wait for the next scheduled run.
func (c *Coordinator) NeedsImmediateRefresh() bool {
	snap := c.store.Load()
	if !snap.Initialized {
		return true
	}
	now := c.now()
	if now.Sub(snap.FetchedAt) > time.Hour {
		return true
	}
	return !snap.Forecast.At(now).IsValid()
}

// WarmStart seeds the snapshot from the database so consumers have data
// before the first provider fetch completes. A cache miss is not an
// error, the snapshot simply stays uninitialized.
func (c *Coordinator) WarmStart(ctx context.Context) error {
	meta, err := c.db.GetSnapshotMeta(ctx)
	if err != nil {
		return fmt.Errorf("loading snapshot meta: %w", err)
	}
	if meta.IsZero() {
		c.logger.Debug("no cached snapshot to warm start from")
		return nil
	}

	prices, err := c.db.GetSpotPrices(ctx)
	if err != nil {
		return fmt.Errorf("loading cached spot prices: %w", err)
	}

	fc, err := forecast.New(prices)
	if err != nil {
		c.logger.Warn("cached spot prices unusable, skipping warm start", slog.Any("error", err))
		return nil
	}

	consumption, err := c.db.GetConsumptionFrom(ctx, hours.FromTime(c.now().Add(-48*time.Hour)))
	if err != nil {
		c.logger.Warn("failed to load cached consumption", slog.Any("error", err))
	}

	snap := Snapshot{
		Forecast:    fc,
		Fees:        meta.Fees,
		Consumption: consumption,
		ContractID:  meta.ContractID,
		FetchedAt:   meta.FetchedAt,
		Initialized: true,
		Status: Status{
			Ok:          meta.LastError == "",
			LastError:   meta.LastError,
			LastErrorAt: meta.LastErrorAt,
		},
	}
	c.store.Swap(snap)
	c.logger.Info("warm started from cached snapshot",
		slog.Time("fetchedAt", meta.FetchedAt),
		slog.Int("hours", fc.Len()))
	return nil
}

// RefreshContract resolves which contract consumption is fetched for.
// The configured contract id wins, otherwise the first active contract
// is used. Failures leave the previous selection in place.
func (c *Coordinator) RefreshContract(ctx context.Context) error {
	contracts, err := c.provider.GetContracts(ctx)
	if err != nil {
		return fmt.Errorf("fetching contracts: %w", err)
	}
	if len(contracts) == 0 {
		return errors.New("no contracts on this account")
	}

	var selected types.Contract
	if c.contractID != "" {
		match, found := slice.Find(contracts, func(ct types.Contract) bool {
			return ct.ID == c.contractID
		})
		if !found {
			return fmt.Errorf("configured contract %s not found on this account", c.contractID)
		}
		selected = match
	} else {
		active, found := slice.Find(contracts, func(ct types.Contract) bool {
			return strings.EqualFold(ct.Status, "ACTIVE")
		})
		if !found {
			active = contracts[0]
		}
		selected = active
	}

	if setter, ok := c.provider.(interface{ SetContractID(string) }); ok {
		setter.SetContractID(selected.ID)
	}

	c.store.Update(func(snap *Snapshot) {
		snap.Contract = maybe.Some(selected)
		snap.ContractID = selected.ID
	})
	c.logger.Info("using contract",
		slog.String("contractId", selected.ID),
		slog.String("type", selected.Type),
		slog.String("status", selected.Status))
	return nil
}

func (c *Coordinator) refresh(ctx context.Context) Snapshot {
	now := c.now()
	today := hours.DayStart(now, c.loc)
	from := today.AddDate(0, 0, -1)
	to := today.AddDate(0, 0, 2)

	c.logger.Debug("refreshing snapshot",
		slog.Time("from", from),
		slog.Time("to", to))

	prices, fees, err := c.provider.GetSpotPrices(ctx, from, to)
	if err != nil {
		return c.degrade(ctx, fmt.Errorf("fetching spot prices: %w", err))
	}

	fc, err := forecast.New(prices)
	if err != nil {
		return c.degrade(ctx, fmt.Errorf("validating spot prices: %w", err))
	}

	prev := c.store.Load()

	// Consumption is best effort. Yesterday's numbers are nice to have
	// but must never block fresh prices from landing.
	consumption := prev.Consumption
	records, err := c.provider.GetConsumption(ctx, from, today)
	if err != nil {
		c.logger.Warn("failed to fetch consumption, keeping previous records", slog.Any("error", err))
	} else {
		consumption = records
	}

	snap := Snapshot{
		Forecast:    fc,
		Fees:        fees,
		Contract:    prev.Contract,
		Consumption: consumption,
		ContractID:  prev.ContractID,
		FetchedAt:   now,
		Initialized: true,
		Status:      Status{Ok: true},
	}
	c.store.Swap(snap)
	c.persist(ctx, snap)
	c.subscribers.Notify(snap)

	c.logger.Info("snapshot refreshed",
		slog.Int("hours", fc.Len()),
		slog.Time("horizonEnd", fc.Last().Value().EndsAt))
	return snap
}

// degrade records a failed refresh without touching the cached data.
// Stale but present beats missing.
func (c *Coordinator) degrade(ctx context.Context, err error) Snapshot {
	c.logger.Error("snapshot refresh failed", slog.Any("error", err))

	var snap Snapshot
	c.store.Update(func(s *Snapshot) {
		s.Status = Status{
			Ok:          false,
			LastError:   err.Error(),
			LastErrorAt: c.now(),
		}
		snap = *s
	})

	if snap.Initialized {
		if dbErr := c.db.SaveSnapshotMeta(ctx, c.metaRow(snap)); dbErr != nil {
			c.logger.Warn("failed to persist snapshot meta", slog.Any("error", dbErr))
		}
	}
	c.subscribers.Notify(snap)
	return snap
}

func (c *Coordinator) persist(ctx context.Context, snap Snapshot) {
	if err := c.db.ReplaceSpotPrices(ctx, snap.Forecast.Points()); err != nil {
		c.logger.Warn("failed to persist spot prices", slog.Any("error", err))
	}
	if len(snap.Consumption) > 0 {
		if err := c.db.SaveConsumption(ctx, snap.Consumption); err != nil {
			c.logger.Warn("failed to persist consumption", slog.Any("error", err))
		}
	}
	if err := c.db.SaveSnapshotMeta(ctx, c.metaRow(snap)); err != nil {
		c.logger.Warn("failed to persist snapshot meta", slog.Any("error", err))
	}
}

func (c *Coordinator) metaRow(snap Snapshot) database.SnapshotMetaRow {
	return database.SnapshotMetaRow{
		ContractID:  snap.ContractID,
		FetchedAt:   snap.FetchedAt,
		Fees:        snap.Fees,
		LastError:   snap.Status.LastError,
		LastErrorAt: snap.Status.LastErrorAt,
	}
}
