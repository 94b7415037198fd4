package database

import (
	"context"
	"fmt"
	"time"

	"github.com/cadsdf/ostromd/convert"
	"github.com/cadsdf/ostromd/hours"
	"github.com/cadsdf/ostromd/types"
)

type SpotPriceRow struct {
	When           hours.DateHour
	EnergyPrice    float64
	TaxesAndLevies float64
}

func (r SpotPriceRow) ToSpotPrice() types.SpotPrice {
	start := r.When.Time()
	return types.SpotPrice{
		StartsAt:       start,
		EndsAt:         start.Add(time.Hour),
		EnergyPrice:    r.EnergyPrice,
		TaxesAndLevies: r.TaxesAndLevies,
	}
}

// ReplaceSpotPrices swaps the cached price horizon wholesale. Either the
// whole new set lands or the old set stays untouched.
func (d *Database) ReplaceSpotPrices(ctx context.Context, prices []types.SpotPrice) error {
	tx, err := d.write.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting spot price transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM spot_price`); err != nil {
		tx.Rollback()
		return fmt.Errorf("clearing spot prices: %w", err)
	}

	for _, p := range prices {
		dh := hours.FromTime(p.StartsAt)
		_, err := tx.ExecContext(ctx, `
			INSERT INTO spot_price (date, hour, energy_price, taxes_levies)
			VALUES (?, ?, ?, ?)`,
			dh.Date,
			dh.Hour,
			convert.RoundFloat64(p.EnergyPrice, 6),
			convert.RoundFloat64(p.TaxesAndLevies, 6))
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("saving spot price for %s: %w", dh, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing spot prices: %w", err)
	}

	return nil
}

func (d *Database) GetSpotPrices(ctx context.Context) ([]types.SpotPrice, error) {
	rows, err := d.read.QueryContext(ctx, `
		SELECT date, hour, energy_price, taxes_levies
		FROM spot_price
		ORDER BY date, hour ASC`)
	if err != nil {
		return nil, fmt.Errorf("fetching spot prices: %w", err)
	}
	defer rows.Close()

	var prices []types.SpotPrice
	for rows.Next() {
		var r SpotPriceRow
		err := rows.Scan(&r.When.Date, &r.When.Hour, &r.EnergyPrice, &r.TaxesAndLevies)
		if err != nil {
			return nil, fmt.Errorf("scanning spot price row: %w", err)
		}
		prices = append(prices, r.ToSpotPrice())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading spot price rows: %w", err)
	}

	return prices, nil
}

func (d *Database) PurgeSpotPrices(ctx context.Context, retentionDays int) error {
	return d.purgeTable(ctx, "spot_price", retentionDays)
}
