package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iwtcode/diagAdapter/models"
)

// LoadReference возвращает время сервера последней установки RTC или nil.
func (r *Repository) LoadReference(ctx context.Context, serial string) (*time.Time, error) {
	var ns int64
	err := r.db.QueryRowContext(ctx, "SELECT server_time FROM rtc_reference WHERE serial = ?", serial).Scan(&ns)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t := time.Unix(0, ns).UTC()
	return &t, nil
}

func (r *Repository) SaveReference(ctx context.Context, serial string, t time.Time) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO rtc_reference (serial, server_time) VALUES (?, ?)
ON CONFLICT(serial) DO UPDATE SET server_time = excluded.server_time`, serial, t.UnixNano())
	return err
}

// SaveECIDs заменяет записи ECID изделия.
func (r *Repository) SaveECIDs(ctx context.Context, serial string, records []models.ECIDRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM asic_ecid WHERE serial = ?", serial); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO asic_ecid (serial, asic, core, type, version, die_id, core_freq)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(serial, asic, core) DO UPDATE SET die_id = excluded.die_id`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx, serial, rec.ASIC, rec.Core, rec.Type, rec.Version, rec.DieID, rec.CoreFreqMHz); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *Repository) GetECIDs(ctx context.Context, serial string) ([]models.ECIDRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT asic, core, type, version, die_id, core_freq
FROM asic_ecid WHERE serial = ? ORDER BY asic, core`, serial)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ECIDRecord
	for rows.Next() {
		var rec models.ECIDRecord
		var typ, version sql.NullString
		var freq sql.NullInt64
		if err := rows.Scan(&rec.ASIC, &rec.Core, &typ, &version, &rec.DieID, &freq); err != nil {
			return nil, err
		}
		rec.Type, rec.Version, rec.CoreFreqMHz = typ.String, version.String, int(freq.Int64)
		out = append(out, rec)
	}
	return out, rows.Err()
}
