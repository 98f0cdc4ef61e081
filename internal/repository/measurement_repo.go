package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"cobitis_web/internal/models"
)

type MeasurementSQLite struct {
	db *sql.DB
}

func NewMeasurementSQLite(db *sql.DB) *MeasurementSQLite { return &MeasurementSQLite{db: db} }

var _ MeasurementRepo = (*MeasurementSQLite)(nil)

const (
	insertMeasurementSQL = `
		INSERT INTO measurements (sensor_id, measured_at, temp1, temp2, tds)
		VALUES (?, ?, ?, ?, ?)
	`

	selectMeasurementsSQL = `
		SELECT sensor_id, measured_at, temp1, temp2, tds
		FROM measurements
		WHERE NOT is_deleted AND sensor_id = ? AND measured_at >= ?`

	measurementsUpperBoundSQL = ` AND measured_at < ?`
	measurementsOrderSQL      = ` ORDER BY measured_at ASC`
)

// Append inserts a sample. A zero MeasuredAt is replaced with the current time.
func (r *MeasurementSQLite) Append(ctx context.Context, s models.Sample) error {
	if s.MeasuredAt == 0 {
		s.MeasuredAt = time.Now().Unix()
	}
	_, err := r.db.ExecContext(ctx, insertMeasurementSQL,
		s.SensorID,
		s.MeasuredAt,
		s.Temp1,
		s.Temp2,
		s.TDS,
	)
	if err != nil {
		return fmt.Errorf("insert measurement for sensor %d: %w", s.SensorID, err)
	}
	return nil
}

// Range returns non-deleted samples with measured_at in [from, to), oldest first.
func (r *MeasurementSQLite) Range(ctx context.Context, sensorID int64, from, to int64) ([]models.Sample, error) {
	return r.query(ctx, selectMeasurementsSQL+measurementsUpperBoundSQL+measurementsOrderSQL, sensorID, from, to)
}

// Since returns non-deleted samples with measured_at >= from, oldest first.
func (r *MeasurementSQLite) Since(ctx context.Context, sensorID int64, from int64) ([]models.Sample, error) {
	return r.query(ctx, selectMeasurementsSQL+measurementsOrderSQL, sensorID, from)
}

func (r *MeasurementSQLite) query(ctx context.Context, q string, args ...any) ([]models.Sample, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("select measurements: %w", err)
	}
	defer rows.Close()

	out := make([]models.Sample, 0, 64)
	for rows.Next() {
		var s models.Sample
		if err := rows.Scan(&s.SensorID, &s.MeasuredAt, &s.Temp1, &s.Temp2, &s.TDS); err != nil {
			return nil, fmt.Errorf("scan measurement: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate measurements: %w", err)
	}
	return out, nil
}
