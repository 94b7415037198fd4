package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cadsdf/ostromd/types"
)

// SnapshotMetaRow is the single-row bookkeeping that travels with the
// cached price horizon: which contract it belongs to, when it was
// fetched, the monthly fees in force, and the last refresh failure.
type SnapshotMetaRow struct {
	ContractID  string
	FetchedAt   time.Time
	Fees        types.MonthlyFees
	LastError   string
	LastErrorAt time.Time
}

func (r SnapshotMetaRow) IsZero() bool {
	return r.FetchedAt.IsZero()
}

func (d *Database) SaveSnapshotMeta(ctx context.Context, row SnapshotMetaRow) error {
	lastErrorAt := ""
	if !row.LastErrorAt.IsZero() {
		lastErrorAt = row.LastErrorAt.UTC().Format(time.RFC3339)
	}
	_, err := d.write.ExecContext(ctx, `
		INSERT INTO snapshot_meta (id, contract_id, fetched_at, base_fee, grid_fee, last_error, last_error_at)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			contract_id = excluded.contract_id,
			fetched_at = excluded.fetched_at,
			base_fee = excluded.base_fee,
			grid_fee = excluded.grid_fee,
			last_error = excluded.last_error,
			last_error_at = excluded.last_error_at`,
		row.ContractID,
		row.FetchedAt.UTC().Format(time.RFC3339),
		row.Fees.BaseFee,
		row.Fees.GridFee,
		row.LastError,
		lastErrorAt)
	if err != nil {
		return fmt.Errorf("saving snapshot meta: %w", err)
	}
	return nil
}

func (d *Database) GetSnapshotMeta(ctx context.Context) (SnapshotMetaRow, error) {
	row := d.read.QueryRowContext(ctx, `
		SELECT contract_id, fetched_at, base_fee, grid_fee, last_error, last_error_at
		FROM snapshot_meta
		WHERE id = 1`)

	var fetchedAt, lastErrorAt string
	var r SnapshotMetaRow
	err := row.Scan(&r.ContractID, &fetchedAt, &r.Fees.BaseFee, &r.Fees.GridFee, &r.LastError, &lastErrorAt)
	if err == sql.ErrNoRows {
		return SnapshotMetaRow{}, nil
	}
	if err != nil {
		return SnapshotMetaRow{}, fmt.Errorf("fetching snapshot meta: %w", err)
	}

	if fetchedAt != "" {
		r.FetchedAt, err = time.Parse(time.RFC3339, fetchedAt)
		if err != nil {
			return SnapshotMetaRow{}, fmt.Errorf("parsing fetched_at: %w", err)
		}
	}
	if lastErrorAt != "" {
		r.LastErrorAt, err = time.Parse(time.RFC3339, lastErrorAt)
		if err != nil {
			return SnapshotMetaRow{}, fmt.Errorf("parsing last_error_at: %w", err)
		}
	}

	return r, nil
}
