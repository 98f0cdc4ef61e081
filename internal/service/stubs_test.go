package service

import (
	"context"
	"sync"
	"time"

	"cobitis_web/internal/models"
)

// ---- Test doubles ----

type stubSensors struct {
	mu sync.Mutex

	list       []models.Sensor
	listErr    error
	authID     int64
	authErr    error
	updateOK   bool
	updateErr  error
	lastUpdate struct {
		sensorID    int64
		description string
	}
	updateCalls int
}

func (s *stubSensors) Authenticate(ctx context.Context, secret string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authID, s.authErr
}

func (s *stubSensors) List(ctx context.Context, userID int) ([]models.Sensor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list, s.listErr
}

func (s *stubSensors) Register(ctx context.Context, userID int, description string) (models.Sensor, error) {
	return models.Sensor{}, nil
}

func (s *stubSensors) UpdateDescription(ctx context.Context, sensorID int64, description string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateCalls++
	s.lastUpdate.sensorID = sensorID
	s.lastUpdate.description = description
	return s.updateOK, s.updateErr
}

type stubMeasurements struct {
	mu sync.Mutex

	latest    models.LatestValues
	latestErr error
	seriesErr error
	appendErr error
	appended  [][3]float64
	seriesReq []SeriesParams
}

func (m *stubMeasurements) Append(ctx context.Context, sensorID int64, values [3]float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	m.appended = append(m.appended, values)
	return nil
}

func (m *stubMeasurements) Latest(ctx context.Context, sensorID int64, now time.Time) (models.LatestValues, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latest, m.latestErr
}

func (m *stubMeasurements) Series(ctx context.Context, p SeriesParams) (models.Series, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seriesReq = append(m.seriesReq, p)
	if m.seriesErr != nil {
		return models.Series{}, m.seriesErr
	}
	s := models.NewSeries(p.MinTick, p.MaxTick)
	s.Series[0][0] = models.V(21.5)
	return s, nil
}

func (m *stubMeasurements) seriesCalls() []SeriesParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SeriesParams(nil), m.seriesReq...)
}

type recordingPusher struct {
	values chan models.LatestValues
	series chan models.Series
}

func newRecordingPusher() *recordingPusher {
	return &recordingPusher{
		values: make(chan models.LatestValues, 256),
		series: make(chan models.Series, 256),
	}
}

func (p *recordingPusher) PushValues(v models.LatestValues) error {
	select {
	case p.values <- v:
	default:
	}
	return nil
}

func (p *recordingPusher) PushSeries(s models.Series) error {
	select {
	case p.series <- s:
	default:
	}
	return nil
}

type memPrefs struct {
	mu    sync.Mutex
	prefs map[int]models.Preferences
	saves int
}

func newMemPrefs() *memPrefs {
	return &memPrefs{prefs: map[int]models.Preferences{}}
}

func (m *memPrefs) Load(ctx context.Context, userID int) (models.Preferences, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prefs[userID]
	return p, ok, nil
}

func (m *memPrefs) Save(ctx context.Context, userID int, p models.Preferences) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.prefs[userID] = p
	return nil
}

func intPtr(i int) *int { return &i }

func strPtr(s string) *string { return &s }

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
