package service

import (
	"context"
	"time"

	"cobitis_web/internal/cache"
	"cobitis_web/internal/logger"
	"cobitis_web/internal/models"
	"cobitis_web/internal/repository"
)

type Authorization interface {
	SignUp(username, password string) (int, error)
	GenerateToken(username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Sensors resolves sensor identities and owner-facing sensor metadata.
type Sensors interface {
	Authenticate(ctx context.Context, secret string) (int64, error)
	List(ctx context.Context, userID int) ([]models.Sensor, error)
	Register(ctx context.Context, userID int, description string) (models.Sensor, error)
	UpdateDescription(ctx context.Context, sensorID int64, description string) (bool, error)
}

// Measurements stores raw samples and answers the two aggregate queries.
type Measurements interface {
	Append(ctx context.Context, sensorID int64, values [3]float64) error
	Latest(ctx context.Context, sensorID int64, now time.Time) (models.LatestValues, error)
	Series(ctx context.Context, p SeriesParams) (models.Series, error)
}

// Dashboard creates per-connection web-app sessions.
type Dashboard interface {
	NewSession(userID *int, pusher Pusher) *DashboardSession
}

// Simulator appends synthetic samples until ctx is canceled.
type Simulator interface {
	Run(ctx context.Context, tick time.Duration)
}

type Service struct {
	Authorization
	Sensors
	Measurements
	Dashboard
	Simulator
}

// Options carries the runtime settings services need beyond the repositories.
type Options struct {
	SigningKey      string
	TokenTTL        time.Duration
	PushInterval    time.Duration
	SimulatorSecret string
	Preferences     cache.PreferenceStore
	Log             *logger.Logger
}

func NewService(repos *repository.Repository, opts Options) *Service {
	prefs := opts.Preferences
	if prefs == nil {
		prefs = cache.NewMemoryStore()
	}

	sensors := NewSensorService(repos.Sensors)
	measurements := NewMeasurementService(repos.Measurements)

	return &Service{
		Authorization: NewAuthService(repos.Auth, opts.SigningKey, opts.TokenTTL),
		Sensors:       sensors,
		Measurements:  measurements,
		Dashboard:     NewDashboardService(sensors, measurements, prefs, opts.Log, opts.PushInterval),
		Simulator:     NewSimulatorService(sensors, measurements, opts.SimulatorSecret, opts.Log),
	}
}
