package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"cobitis_web/internal/models"
)

type measurementRepoStub struct {
	samples  []models.Sample
	err      error
	appended []models.Sample
	from, to int64
}

func (r *measurementRepoStub) Append(ctx context.Context, s models.Sample) error {
	r.appended = append(r.appended, s)
	return r.err
}

func (r *measurementRepoStub) Range(ctx context.Context, sensorID int64, from, to int64) ([]models.Sample, error) {
	r.from, r.to = from, to
	return r.samples, r.err
}

func (r *measurementRepoStub) Since(ctx context.Context, sensorID int64, from int64) ([]models.Sample, error) {
	r.from = from
	return r.samples, r.err
}

func TestMeasurementService_Append(t *testing.T) {
	repo := &measurementRepoStub{}
	svc := NewMeasurementService(repo)
	svc.now = fixedClock(testNow)

	if err := svc.Append(context.Background(), 5, [3]float64{21.5, 21.7, 430}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	got := repo.appended[0]
	if got.SensorID != 5 || got.MeasuredAt != testNow.Unix() || got.Temp1 != 21.5 || got.Temp2 != 21.7 || got.TDS != 430 {
		t.Fatalf("unexpected sample %+v", got)
	}
}

func TestMeasurementService_LatestSingleSample(t *testing.T) {
	repo := &measurementRepoStub{samples: []models.Sample{
		{SensorID: 5, MeasuredAt: testNow.Unix() - 3, Temp1: 21.5, Temp2: 21.7, TDS: 430},
	}}
	svc := NewMeasurementService(repo)

	v, err := svc.Latest(context.Background(), 5, testNow)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if v == nil || v[0] != 21.5 || v[1] != 430 {
		t.Fatalf("got %v, want [21.5 430]", v)
	}
	if repo.from != testNow.Unix()-60 {
		t.Fatalf("queried from %d, want %d", repo.from, testNow.Unix()-60)
	}
}

func TestMeasurementService_LatestNoData(t *testing.T) {
	svc := NewMeasurementService(&measurementRepoStub{})
	v, err := svc.Latest(context.Background(), 5, testNow)
	if err != nil || v != nil {
		t.Fatalf("got (%v, %v), want (nil, nil)", v, err)
	}
}

func TestMeasurementService_Series(t *testing.T) {
	repo := &measurementRepoStub{samples: []models.Sample{
		{MeasuredAt: 600, Temp1: 1, Temp2: 2, TDS: 3},
		{MeasuredAt: 659, Temp1: 3, Temp2: 4, TDS: 5},
	}}
	svc := NewMeasurementService(repo)

	s, err := svc.Series(context.Background(), SeriesParams{SensorID: 1, MinTick: 10, MaxTick: 13, TickLength: 60})
	if err != nil {
		t.Fatalf("Series: %v", err)
	}
	if repo.from != 600 || repo.to != 780 {
		t.Fatalf("queried [%d, %d)", repo.from, repo.to)
	}
	if s.MinTick != 10 || s.MaxTick != 13 || len(s.Series[0]) != 3 {
		t.Fatalf("unexpected window %+v", s)
	}
	if s.Series[0][0] == nil || *s.Series[0][0] != 2 || s.Series[0][1] != nil || s.Series[2][2] != nil {
		t.Fatalf("unexpected values %v", s.Series)
	}
}

func TestMeasurementService_SeriesValidation(t *testing.T) {
	svc := NewMeasurementService(&measurementRepoStub{})
	bad := []SeriesParams{
		{MinTick: 5, MaxTick: 5, TickLength: 60},
		{MinTick: -1, MaxTick: 5, TickLength: 60},
		{MinTick: 0, MaxTick: 5, TickLength: 0},
	}
	for _, p := range bad {
		if _, err := svc.Series(context.Background(), p); !errors.Is(err, ErrValidation) {
			t.Errorf("%+v: expected ErrValidation, got %v", p, err)
		}
	}
}

func TestMeasurementService_StorageError(t *testing.T) {
	svc := NewMeasurementService(&measurementRepoStub{err: errors.New("db down")})
	if _, err := svc.Latest(context.Background(), 1, time.Now()); err == nil {
		t.Fatalf("expected Latest error")
	}
	if _, err := svc.Series(context.Background(), SeriesParams{MinTick: 0, MaxTick: 1, TickLength: 60}); err == nil {
		t.Fatalf("expected Series error")
	}
}
