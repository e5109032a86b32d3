package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"heaterctl"
)

type StateSQLite struct {
	db *sql.DB
}

func NewStateSQLite(db *sql.DB) *StateSQLite {
	return &StateSQLite{db: db}
}

var _ StateRepo = (*StateSQLite)(nil)

const (
	upsertStateSQL = `
		INSERT INTO heater_state (heater_id, mode, target_c, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(heater_id) DO UPDATE SET
			mode=excluded.mode,
			target_c=excluded.target_c,
			updated_at=excluded.updated_at
	`

	selectStateSQL = `
		SELECT heater_id, mode, target_c, updated_at
		FROM heater_state WHERE heater_id=?
	`
)

// Save upserts the snapshot row for one heater. Only the fields needed for
// restoration are stored; live readings are never persisted.
func (r *StateSQLite) Save(ctx context.Context, state heaterctl.HeaterState) error {
	tsUTC := state.UpdatedAt
	if tsUTC.IsZero() {
		tsUTC = time.Now().UTC()
	} else {
		tsUTC = tsUTC.UTC()
	}

	_, err := r.db.ExecContext(ctx, upsertStateSQL,
		state.HeaterID,
		string(state.Mode),
		state.TargetTemp,
		tsUTC,
	)
	return err
}

// Load fetches the snapshot of one heater, nil when none was persisted yet.
func (r *StateSQLite) Load(ctx context.Context, heaterID string) (*heaterctl.HeaterState, error) {
	row := r.db.QueryRowContext(ctx, selectStateSQL, heaterID)

	var s heaterctl.HeaterState
	var mode string
	if err := row.Scan(&s.HeaterID, &mode, &s.TargetTemp, &s.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	s.Mode = heaterctl.HVACMode(mode)
	s.UpdatedAt = s.UpdatedAt.UTC()
	return &s, nil
}
