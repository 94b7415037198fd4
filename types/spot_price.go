package types

import "time"

// SpotPrice is one hour of the day-ahead forecast. The interval is
// half-open [StartsAt, EndsAt). Prices are gross EUR per kWh.
type SpotPrice struct {
	StartsAt       time.Time
	EndsAt         time.Time
	EnergyPrice    float64
	TaxesAndLevies float64
}

// Total is the end-user price: energy plus taxes and levies.
func (p SpotPrice) Total() float64 {
	return p.EnergyPrice + p.TaxesAndLevies
}

// Contains reports whether t falls within the point's interval,
// start inclusive, end exclusive.
func (p SpotPrice) Contains(t time.Time) bool {
	return !t.Before(p.StartsAt) && t.Before(p.EndsAt)
}

// MonthlyFees are contract fees in EUR per month. They ride along on
// every spot price entry from the vendor and change rarely.
type MonthlyFees struct {
	BaseFee float64
	GridFee float64
}
