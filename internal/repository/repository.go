package repository

import (
	"context"
	"database/sql"

	"cobitis_web/internal/models"
)

type Authorization interface {
	Create(username, hash string) (int, error)
	GetByUsername(username string) (*models.User, error)
}

// SensorRepo stores sensors and their owners.
type SensorRepo interface {
	Create(ctx context.Context, userID int, description, secret string) (int64, error)
	Authenticate(ctx context.Context, secret string) (int64, bool, error)
	FindByUserID(ctx context.Context, userID int) ([]models.Sensor, error)
	UpdateDescription(ctx context.Context, sensorID int64, description string) (bool, error)
}

// MeasurementRepo stores raw samples. Range bounds are unix seconds, [from, to).
type MeasurementRepo interface {
	Append(ctx context.Context, s models.Sample) error
	Range(ctx context.Context, sensorID int64, from, to int64) ([]models.Sample, error)
	Since(ctx context.Context, sensorID int64, from int64) ([]models.Sample, error)
}

type Repository struct {
	Sensors      SensorRepo
	Measurements MeasurementRepo
	Auth         Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		Sensors:      NewSensorSQLite(db),
		Measurements: NewMeasurementSQLite(db),
		Auth:         NewUserSQLite(db),
	}
}
