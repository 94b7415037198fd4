package types

import (
	"context"
	"time"
)

// TariffProvider is what the coordinator needs from the vendor API.
type TariffProvider interface {
	// GetSpotPrices returns the hourly forecast points within [from, to)
	// together with the monthly fees the vendor reports alongside them.
	GetSpotPrices(ctx context.Context, from, to time.Time) ([]SpotPrice, MonthlyFees, error)
	GetConsumption(ctx context.Context, from, to time.Time) ([]Consumption, error)
	GetContracts(ctx context.Context) ([]Contract, error)
}
