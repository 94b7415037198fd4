package types

import "time"

// Consumption is one metered hour. The vendor publishes these with
// roughly a day of lag, so "yesterday" is the freshest complete day.
type Consumption struct {
	StartsAt time.Time
	KWh      float64
}
