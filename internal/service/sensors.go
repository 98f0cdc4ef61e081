package service

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"cobitis_web/internal/models"
	"cobitis_web/internal/repository"

	"github.com/google/uuid"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrNoSensors       = errors.New("no sensors")
	ErrValidation      = errors.New("validation failure")
)

// SensorService wraps the sensor repository with secret and description rules.
type SensorService struct {
	repo repository.SensorRepo
}

func NewSensorService(repo repository.SensorRepo) *SensorService {
	return &SensorService{repo: repo}
}

// Authenticate returns the sensor owning secret, or ErrUnauthenticated.
func (s *SensorService) Authenticate(ctx context.Context, secret string) (int64, error) {
	if secret == "" {
		return 0, ErrUnauthenticated
	}
	id, ok, err := s.repo.Authenticate(ctx, secret)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrUnauthenticated
	}
	return id, nil
}

func (s *SensorService) List(ctx context.Context, userID int) ([]models.Sensor, error) {
	return s.repo.FindByUserID(ctx, userID)
}

// Register creates a sensor with a fresh random secret. The returned sensor
// carries the secret; it is not retrievable afterwards.
func (s *SensorService) Register(ctx context.Context, userID int, description string) (models.Sensor, error) {
	description = SanitizeDescription(description)
	if description == "" {
		return models.Sensor{}, ErrValidation
	}
	secret := uuid.NewString()
	id, err := s.repo.Create(ctx, userID, description, secret)
	if err != nil {
		return models.Sensor{}, err
	}
	return models.Sensor{SensorID: id, UserID: userID, Description: description, Secret: secret}, nil
}

// UpdateDescription stores a sanitized description. It reports false when the
// description is empty after sanitizing or no row was updated.
func (s *SensorService) UpdateDescription(ctx context.Context, sensorID int64, description string) (bool, error) {
	description = SanitizeDescription(description)
	if description == "" {
		return false, nil
	}
	return s.repo.UpdateDescription(ctx, sensorID, description)
}

// SanitizeDescription removes C0 and C1 control characters (U+0000-U+001F,
// U+007F-U+009F) and trims surrounding whitespace.
func SanitizeDescription(s string) string {
	s = strings.Map(func(r rune) rune {
		if r <= 0x1f || (r >= 0x7f && r <= 0x9f) {
			return -1
		}
		return r
	}, s)
	return strings.TrimFunc(s, unicode.IsSpace)
}
