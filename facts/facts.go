// Package facts turns a coordinator snapshot into the derived values
// the consumers publish: current price, window minimums, yesterday's
// consumption cost and refresh health. It is pure, everything is
// computed from the snapshot at read time.
package facts

import (
	"time"

	"github.com/cadsdf/ostromd/calc"
	"github.com/cadsdf/ostromd/convert"
	"github.com/cadsdf/ostromd/coordinator"
	"github.com/cadsdf/ostromd/forecast"
	"github.com/cadsdf/ostromd/hours"
	"github.com/cadsdf/ostromd/types"
	"github.com/cadsdf/ostromd/types/maybe"
)

type Price struct {
	StartsAt       time.Time `json:"startsAt"`
	EndsAt         time.Time `json:"endsAt"`
	EnergyPrice    float64   `json:"energyPrice"`
	TaxesAndLevies float64   `json:"taxesAndLevies"`
	Total          float64   `json:"total"`
}

type Fees struct {
	BaseFee float64 `json:"baseFee"`
	GridFee float64 `json:"gridFee"`
}

type Minimums struct {
	Today         maybe.Maybe[Price] `json:"today"`
	UpcomingToday maybe.Maybe[Price] `json:"upcomingToday"`
	Tomorrow      maybe.Maybe[Price] `json:"tomorrow"`
	AllAvailable  maybe.Maybe[Price] `json:"allAvailable"`
}

type Status struct {
	Ok          bool       `json:"ok"`
	Initialized bool       `json:"initialized"`
	FetchedAt   *time.Time `json:"fetchedAt,omitempty"`
	LastError   string     `json:"lastError,omitempty"`
	LastErrorAt *time.Time `json:"lastErrorAt,omitempty"`
}

type Yesterday struct {
	KWh  maybe.Maybe[float64] `json:"kwh"`
	Cost maybe.Maybe[float64] `json:"cost"`
}

type Contract struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	ProductCode string `json:"productCode"`
	Status      string `json:"status"`
	Zip         string `json:"zip"`
	City        string `json:"city"`
}

type Facts struct {
	Now              time.Time             `json:"now"`
	Status           Status                `json:"status"`
	CurrentPrice     maybe.Maybe[Price]    `json:"currentPrice"`
	Fees             Fees                  `json:"fees"`
	Minimums         Minimums              `json:"minimums"`
	LowestPriceIsNow bool                  `json:"lowestPriceIsNow"`
	Yesterday        Yesterday             `json:"yesterday"`
	Contract         maybe.Maybe[Contract] `json:"contract"`
	HorizonStart     *time.Time            `json:"horizonStart,omitempty"`
	HorizonEnd       *time.Time            `json:"horizonEnd,omitempty"`
	HorizonHours     int                   `json:"horizonHours"`
}

// Build derives the published facts from a snapshot. The zone decides
// where the day boundaries for the window minimums fall.
func Build(snap coordinator.Snapshot, now time.Time, loc *time.Location) Facts {
	f := Facts{
		Now: now,
		Status: Status{
			Ok:          snap.Status.Ok,
			Initialized: snap.Initialized,
			LastError:   snap.Status.LastError,
		},
		Fees: Fees{
			BaseFee: convert.TwoDecimals(snap.Fees.BaseFee),
			GridFee: convert.TwoDecimals(snap.Fees.GridFee),
		},
	}
	if !snap.FetchedAt.IsZero() {
		fetchedAt := snap.FetchedAt
		f.Status.FetchedAt = &fetchedAt
	}
	if !snap.Status.LastErrorAt.IsZero() {
		lastErrorAt := snap.Status.LastErrorAt
		f.Status.LastErrorAt = &lastErrorAt
	}

	f.Contract = maybe.Map(snap.Contract, func(c types.Contract) Contract {
		return Contract{
			ID:          c.ID,
			Type:        c.Type,
			ProductCode: c.ProductCode,
			Status:      c.Status,
			Zip:         c.Zip,
			City:        c.City,
		}
	})

	if !snap.Initialized {
		return f
	}

	fc := snap.Forecast
	f.CurrentPrice = maybe.Map(fc.At(now), toPrice)
	f.Minimums = Minimums{
		Today:         minimum(fc, now, loc, forecast.WindowToday),
		UpcomingToday: minimum(fc, now, loc, forecast.WindowUpcomingToday),
		Tomorrow:      minimum(fc, now, loc, forecast.WindowTomorrow),
		AllAvailable:  minimum(fc, now, loc, forecast.WindowAllAvailable),
	}
	f.LowestPriceIsNow = lowestPriceIsNow(f.CurrentPrice, f.Minimums)

	if first := fc.First(); first.IsValid() {
		start := first.Value().StartsAt
		f.HorizonStart = &start
	}
	if last := fc.Last(); last.IsValid() {
		end := last.Value().EndsAt
		f.HorizonEnd = &end
	}
	f.HorizonHours = fc.Len()

	f.Yesterday = yesterdayFacts(snap, now, loc)

	return f
}

func toPrice(p types.SpotPrice) Price {
	return Price{
		StartsAt:       p.StartsAt,
		EndsAt:         p.EndsAt,
		EnergyPrice:    convert.FourDecimals(p.EnergyPrice),
		TaxesAndLevies: convert.FourDecimals(p.TaxesAndLevies),
		Total:          convert.FourDecimals(p.Total()),
	}
}

func minimum(fc forecast.Forecast, now time.Time, loc *time.Location, w forecast.Window) maybe.Maybe[Price] {
	return maybe.Map(fc.WindowMinimum(now, loc, w), toPrice)
}

// lowestPriceIsNow compares the current hour against the cheapest
// remaining hour of today, or the whole horizon when today has no
// upcoming hours left.
func lowestPriceIsNow(current maybe.Maybe[Price], m Minimums) bool {
	if !current.IsValid() {
		return false
	}
	reference := m.UpcomingToday
	if !reference.IsValid() {
		reference = m.AllAvailable
	}
	if !reference.IsValid() {
		return false
	}
	return current.Value().Total <= reference.Value().Total
}

func yesterdayFacts(snap coordinator.Snapshot, now time.Time, loc *time.Location) Yesterday {
	dayStart := hours.DayStart(now, loc)
	from := dayStart.AddDate(0, 0, -1)

	kwh := calc.ConsumptionKWh(snap.Consumption, from, dayStart)
	cost := calc.ConsumptionCost(snap.Consumption, snap.Forecast.Points(), from, dayStart)
	return Yesterday{
		KWh:  maybe.Map(kwh, convert.FourDecimals),
		Cost: maybe.Map(cost, convert.FourDecimals),
	}
}
