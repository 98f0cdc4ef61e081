package service

import (
	"context"
	"fmt"
	"time"

	"cobitis_web/internal/aggregate"
	"cobitis_web/internal/metrics"
	"cobitis_web/internal/models"
	"cobitis_web/internal/repository"
)

// LatestWindow is the trailing span used for the instantaneous read.
const LatestWindow = 60 * time.Second

// SeriesParams selects the ticks [MinTick, MaxTick) of one sensor.
type SeriesParams struct {
	SensorID   int64
	MinTick    int64
	MaxTick    int64
	TickLength int64
}

type MeasurementService struct {
	repo repository.MeasurementRepo
	now  func() time.Time
}

func NewMeasurementService(repo repository.MeasurementRepo) *MeasurementService {
	return &MeasurementService{repo: repo, now: time.Now}
}

// Append stores one reading measured now.
func (s *MeasurementService) Append(ctx context.Context, sensorID int64, values [3]float64) error {
	return s.repo.Append(ctx, models.Sample{
		SensorID:   sensorID,
		MeasuredAt: s.now().Unix(),
		Temp1:      values[0],
		Temp2:      values[1],
		TDS:        values[2],
	})
}

// Latest returns the trimmed [temp1, tds] over the trailing minute before now,
// or nil when the sensor posted nothing in that span.
func (s *MeasurementService) Latest(ctx context.Context, sensorID int64, now time.Time) (models.LatestValues, error) {
	start := time.Now()
	defer func() { metrics.QueryDuration.WithLabelValues("latest").Observe(time.Since(start).Seconds()) }()

	samples, err := s.repo.Since(ctx, sensorID, now.Add(-LatestWindow).Unix())
	if err != nil {
		return nil, err
	}
	return aggregate.Latest(samples), nil
}

// Series returns per-tick trimmed means; ticks without samples are nil.
func (s *MeasurementService) Series(ctx context.Context, p SeriesParams) (models.Series, error) {
	if p.TickLength <= 0 || p.MinTick < 0 || p.MaxTick <= p.MinTick {
		return models.Series{}, fmt.Errorf("%w: ticks [%d, %d) length %d", ErrValidation, p.MinTick, p.MaxTick, p.TickLength)
	}

	start := time.Now()
	defer func() { metrics.QueryDuration.WithLabelValues("series").Observe(time.Since(start).Seconds()) }()

	samples, err := s.repo.Range(ctx, p.SensorID, p.MinTick*p.TickLength, p.MaxTick*p.TickLength)
	if err != nil {
		return models.Series{}, err
	}
	return aggregate.Bucket(samples, p.MinTick, p.MaxTick, p.TickLength), nil
}
