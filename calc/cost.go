package calc

import (
	"time"

	"github.com/cadsdf/ostromd/types"
	"github.com/cadsdf/ostromd/types/maybe"
)

// ConsumptionKWh sums metered consumption within [from, to). Absent when
// no record falls into the range.
func ConsumptionKWh(records []types.Consumption, from, to time.Time) maybe.Maybe[float64] {
	var total float64
	matched := false
	for _, r := range records {
		if r.StartsAt.Before(from) || !r.StartsAt.Before(to) {
			continue
		}
		total += r.KWh
		matched = true
	}
	if !matched {
		return maybe.None[float64]()
	}
	return maybe.Some(total)
}

// ConsumptionCost prices metered hours within [from, to) against the
// spot prices for the same hours. Hours without a matching price point
// are skipped rather than guessed; absent when nothing matched.
func ConsumptionCost(records []types.Consumption, points []types.SpotPrice, from, to time.Time) maybe.Maybe[float64] {
	priceByHour := make(map[time.Time]types.SpotPrice, len(points))
	for _, p := range points {
		priceByHour[p.StartsAt.UTC()] = p
	}

	var total float64
	matched := false
	for _, r := range records {
		if r.StartsAt.Before(from) || !r.StartsAt.Before(to) {
			continue
		}
		p, ok := priceByHour[r.StartsAt.UTC()]
		if !ok {
			continue
		}
		total += r.KWh * p.Total()
		matched = true
	}
	if !matched {
		return maybe.None[float64]()
	}
	return maybe.Some(total)
}
