package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cobitis_web/internal/models"
)

type SensorSQLite struct {
	db *sql.DB
}

func NewSensorSQLite(db *sql.DB) *SensorSQLite {
	return &SensorSQLite{db: db}
}

var _ SensorRepo = (*SensorSQLite)(nil)

const (
	insertSensorSQL = `INSERT INTO sensors (user_id, description, secret) VALUES (?, ?, ?)`

	selectSensorBySecretSQL = `SELECT sensor_id FROM sensors WHERE secret = ? AND NOT is_deleted`

	selectSensorsByUserSQL = `
		SELECT sensor_id, user_id, description
		FROM sensors
		WHERE user_id = ? AND NOT is_deleted
		ORDER BY sensor_id
	`

	updateSensorDescriptionSQL = `UPDATE sensors SET description = ? WHERE sensor_id = ? AND NOT is_deleted`
)

// Create registers a sensor for a user and returns its ID.
func (r *SensorSQLite) Create(ctx context.Context, userID int, description, secret string) (int64, error) {
	res, err := r.db.ExecContext(ctx, insertSensorSQL, userID, description, secret)
	if err != nil {
		return 0, fmt.Errorf("insert sensor for user %d: %w", userID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id for sensor: %w", err)
	}
	return id, nil
}

// Authenticate resolves a sensor secret. Returns (0, false, nil) for unknown secrets.
func (r *SensorSQLite) Authenticate(ctx context.Context, secret string) (int64, bool, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, selectSensorBySecretSQL, secret).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("select sensor by secret: %w", err)
	}
	return id, true, nil
}

// FindByUserID lists the user's sensors ordered by ID.
func (r *SensorSQLite) FindByUserID(ctx context.Context, userID int) ([]models.Sensor, error) {
	rows, err := r.db.QueryContext(ctx, selectSensorsByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("select sensors for user %d: %w", userID, err)
	}
	defer rows.Close()

	var out []models.Sensor
	for rows.Next() {
		var s models.Sensor
		if err := rows.Scan(&s.SensorID, &s.UserID, &s.Description); err != nil {
			return nil, fmt.Errorf("scan sensor: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sensors: %w", err)
	}
	return out, nil
}

// UpdateDescription reports whether exactly one sensor row was updated.
func (r *SensorSQLite) UpdateDescription(ctx context.Context, sensorID int64, description string) (bool, error) {
	res, err := r.db.ExecContext(ctx, updateSensorDescriptionSQL, description, sensorID)
	if err != nil {
		return false, fmt.Errorf("update sensor %d: %w", sensorID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected for sensor %d: %w", sensorID, err)
	}
	return n == 1, nil
}
