package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cobitis_web/internal/cache"
	"cobitis_web/internal/logger"
	"cobitis_web/internal/metrics"
	"cobitis_web/internal/models"
)

const (
	// ChartTicks is the fixed number of ticks in a chart window.
	ChartTicks = 360
	// DefaultPushInterval is the period of the push loop.
	DefaultPushInterval = 10 * time.Second
)

// DisplayRange is a user-selectable chart span.
type DisplayRange struct {
	Label   string
	Seconds int64
}

// DisplayRanges are the selectable spans in index order. The index doubles as
// the chart's label class.
var DisplayRanges = []DisplayRange{
	{Label: "6時間", Seconds: 6 * 60 * 60},
	{Label: "24時間", Seconds: 24 * 60 * 60},
	{Label: "7日間", Seconds: 7 * 24 * 60 * 60},
	{Label: "30日間", Seconds: 30 * 24 * 60 * 60},
}

// ValidateRanges checks that every range splits into tickCount whole-second ticks.
func ValidateRanges(ranges []DisplayRange, tickCount int) error {
	if len(ranges) == 0 {
		return errors.New("no display ranges configured")
	}
	for i, r := range ranges {
		if r.Seconds <= 0 || r.Seconds%int64(tickCount) != 0 {
			return fmt.Errorf("display range %d (%s): %ds is not divisible by %d ticks", i, r.Label, r.Seconds, tickCount)
		}
	}
	return nil
}

// TickLength returns the tick length in seconds of the range at index i.
func TickLength(i int) int64 {
	return DisplayRanges[i].Seconds / ChartTicks
}

// Pusher delivers server-initiated messages to one web-app connection.
type Pusher interface {
	PushValues(v models.LatestValues) error
	PushSeries(s models.Series) error
}

// InitParams are the optional selection overrides of INIT_SESSION.
type InitParams struct {
	RangeIndex  *int `json:"range_index"`
	SensorIndex *int `json:"sensor_index"`
}

// UpdateSensorParams is the payload of UPDATE_SENSOR.
type UpdateSensorParams struct {
	SensorIndex *int    `json:"sensor_index" binding:"required"`
	Description *string `json:"description" binding:"required"`
}

type DashboardService struct {
	sensors      Sensors
	measurements Measurements
	prefs        cache.PreferenceStore
	log          *logger.Logger
	interval     time.Duration
	now          func() time.Time
}

func NewDashboardService(sensors Sensors, measurements Measurements, prefs cache.PreferenceStore, log *logger.Logger, interval time.Duration) *DashboardService {
	if interval <= 0 {
		interval = DefaultPushInterval
	}
	return &DashboardService{
		sensors:      sensors,
		measurements: measurements,
		prefs:        prefs,
		log:          log,
		interval:     interval,
		now:          time.Now,
	}
}

// NewSession creates an uninitialized session. A nil userID means the
// connection carries no resolved identity.
func (d *DashboardService) NewSession(userID *int, pusher Pusher) *DashboardSession {
	return &DashboardSession{svc: d, userID: userID, pusher: pusher}
}

// DashboardSession is the per-connection state of a web-app channel.
type DashboardSession struct {
	svc    *DashboardService
	userID *int
	pusher Pusher

	// mu guards the fields below and serializes delivery against Init/Close.
	mu          sync.Mutex
	sensors     []models.Sensor
	rangeIndex  int
	sensorIndex int
	selected    bool
	cancel      context.CancelFunc
	start       func()
	closed      bool
}

// Init stops any running push loop, resolves the selection and prepares a new
// loop for Start. It returns ErrUnauthenticated without an identity and
// ErrNoSensors when the user owns no sensor.
func (s *DashboardSession) Init(ctx context.Context, p InitParams) (*models.SessionDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	if s.closed {
		return nil, context.Canceled
	}
	if s.userID == nil {
		return nil, ErrUnauthenticated
	}
	userID := *s.userID

	sensors, err := s.svc.sensors.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sensors for user %d: %w", userID, err)
	}
	if len(sensors) == 0 {
		return nil, ErrNoSensors
	}
	s.sensors = sensors

	prev := models.Preferences{RangeIndex: s.rangeIndex, SensorIndex: s.sensorIndex}
	if !s.selected {
		stored, ok, err := s.svc.prefs.Load(ctx, userID)
		if err != nil {
			s.logw("dashboard_prefs_load_failed", "user_id", userID, "err", err)
		} else if ok {
			prev = stored
		}
	}

	s.rangeIndex = selectIndex(p.RangeIndex, prev.RangeIndex, len(DisplayRanges))
	s.sensorIndex = selectIndex(p.SensorIndex, prev.SensorIndex, len(sensors))
	s.selected = true

	if err := s.svc.prefs.Save(ctx, userID, models.Preferences{RangeIndex: s.rangeIndex, SensorIndex: s.sensorIndex}); err != nil {
		s.logw("dashboard_prefs_save_failed", "user_id", userID, "err", err)
	}

	tickLength := TickLength(s.rangeIndex)
	sensorID := sensors[s.sensorIndex].SensorID

	loopCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	metrics.ActiveSessions.Inc()
	tr := newWindowTracker(ChartTicks, tickLength)
	s.start = func() { go s.run(loopCtx, sensorID, tr) }

	descriptions := make([]string, len(sensors))
	for i, sn := range sensors {
		descriptions[i] = sn.Description
	}
	labels := make([]string, len(DisplayRanges))
	for i, r := range DisplayRanges {
		labels[i] = r.Label
	}

	return &models.SessionDescriptor{
		Ranges:      labels,
		RangeIndex:  s.rangeIndex,
		Sensors:     descriptions,
		SensorIndex: s.sensorIndex,
		ChartTicks:  ChartTicks,
		TickLength:  tickLength,
	}, nil
}

// Start launches the loop prepared by the last successful Init with one
// immediate push. Callers write the INIT reply first so no push precedes it.
// Start is a no-op when no loop is pending.
func (s *DashboardSession) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.start != nil {
		s.start()
		s.start = nil
	}
}

// UpdateSensor renames the sensor at index p.SensorIndex of the session's
// sensor list. It reports false for unknown indices, blank descriptions and
// storage failures.
func (s *DashboardSession) UpdateSensor(ctx context.Context, p UpdateSensorParams) bool {
	if p.SensorIndex == nil || p.Description == nil {
		return false
	}

	s.mu.Lock()
	i := *p.SensorIndex
	if s.sensors == nil || i < 0 || i >= len(s.sensors) {
		s.mu.Unlock()
		return false
	}
	sensorID := s.sensors[i].SensorID
	s.mu.Unlock()

	ok, err := s.svc.sensors.UpdateDescription(ctx, sensorID, *p.Description)
	if err != nil {
		s.logw("dashboard_update_sensor_failed", "sensor_id", sensorID, "err", err)
		return false
	}
	return ok
}

// Close stops the push loop. No push is delivered after Close returns.
func (s *DashboardSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.stopLocked()
}

func (s *DashboardSession) stopLocked() {
	s.start = nil
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
		metrics.ActiveSessions.Dec()
	}
}

func (s *DashboardSession) run(ctx context.Context, sensorID int64, tr *windowTracker) {
	ticker := time.NewTicker(s.svc.interval)
	defer ticker.Stop()

	s.push(ctx, sensorID, tr)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.push(ctx, sensorID, tr)
		}
	}
}

// push runs one cycle: latest values always, the series only when a new tick
// boundary was crossed. Queries outlive a cancelled loop; their results are
// dropped at delivery.
func (s *DashboardSession) push(ctx context.Context, sensorID int64, tr *windowTracker) {
	qctx := context.WithoutCancel(ctx)
	now := s.svc.now()

	latest, err := s.svc.measurements.Latest(qctx, sensorID, now)
	if err != nil {
		metrics.StorageErrors.WithLabelValues("latest").Inc()
		s.logw("dashboard_latest_failed", "sensor_id", sensorID, "err", err)
		latest = nil
	}
	if !s.deliver(ctx, "values", func() error { return s.pusher.PushValues(latest) }) {
		return
	}

	minTick, maxTick, ok := tr.next(now.Unix())
	if !ok {
		return
	}
	series, err := s.svc.measurements.Series(qctx, SeriesParams{
		SensorID:   sensorID,
		MinTick:    minTick,
		MaxTick:    maxTick,
		TickLength: tr.tickLength,
	})
	if err != nil {
		metrics.StorageErrors.WithLabelValues("series").Inc()
		s.logw("dashboard_series_failed", "sensor_id", sensorID, "min_tick", minTick, "max_tick", maxTick, "err", err)
		series = models.NewSeries(minTick, maxTick)
	}
	if s.deliver(ctx, "series", func() error { return s.pusher.PushSeries(series) }) {
		tr.commit(maxTick)
	}
}

// deliver sends under the session lock unless the loop was cancelled. It
// reports whether the message went out.
func (s *DashboardSession) deliver(ctx context.Context, kind string, send func() error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx.Err() != nil {
		return false
	}
	if err := send(); err != nil {
		s.logw("dashboard_push_failed", "kind", kind, "err", err)
		return false
	}
	metrics.PushesTotal.WithLabelValues(kind).Inc()
	return true
}

func (s *DashboardSession) logw(msg string, kv ...any) {
	if s.svc.log != nil {
		s.svc.log.Infow(msg, kv...)
	}
}

// selectIndex applies an override when present, otherwise keeps prev.
// Anything outside [0, n) becomes 0.
func selectIndex(override *int, prev, n int) int {
	i := prev
	if override != nil {
		i = *override
	}
	if i < 0 || i >= n {
		return 0
	}
	return i
}
