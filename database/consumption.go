package database

import (
	"context"
	"fmt"

	"github.com/cadsdf/ostromd/convert"
	"github.com/cadsdf/ostromd/hours"
	"github.com/cadsdf/ostromd/types"
)

type ConsumptionRow struct {
	When hours.DateHour
	KWh  float64
}

func (d *Database) SaveConsumption(ctx context.Context, records []types.Consumption) error {
	for _, rec := range records {
		dh := hours.FromTime(rec.StartsAt)
		_, err := d.write.ExecContext(ctx, `
			INSERT INTO consumption (date, hour, kwh) VALUES (?, ?, ?)
			ON CONFLICT(date, hour) DO UPDATE SET kwh = excluded.kwh`,
			dh.Date,
			dh.Hour,
			convert.RoundFloat64(rec.KWh, 4))
		if err != nil {
			return fmt.Errorf("saving consumption for %s: %w", dh, err)
		}
	}
	return nil
}

func (d *Database) GetConsumptionFrom(ctx context.Context, dh hours.DateHour) ([]types.Consumption, error) {
	rows, err := d.read.QueryContext(ctx, `
		SELECT date, hour, kwh
		FROM consumption
		WHERE (date = ? AND hour >= ?) OR date > ?
		ORDER BY date, hour ASC`,
		dh.Date, dh.Hour, dh.Date)
	if err != nil {
		return nil, fmt.Errorf("fetching consumption: %w", err)
	}
	defer rows.Close()

	var records []types.Consumption
	for rows.Next() {
		var r ConsumptionRow
		err := rows.Scan(&r.When.Date, &r.When.Hour, &r.KWh)
		if err != nil {
			return nil, fmt.Errorf("scanning consumption row: %w", err)
		}
		records = append(records, types.Consumption{StartsAt: r.When.Time(), KWh: r.KWh})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading consumption rows: %w", err)
	}

	return records, nil
}

func (d *Database) PurgeConsumption(ctx context.Context, retentionDays int) error {
	return d.purgeTable(ctx, "consumption", retentionDays)
}
