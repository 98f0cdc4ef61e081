package service

import (
	"context"
	"math"
	"math/rand"
	"time"

	"cobitis_web/internal/logger"
)

// ----------- Simulation constants -----------
const (
	BaseTempC      = 24.0  // mean water temperature °C
	DailySwingC    = 3.0   // amplitude of the daily temperature cycle
	ProbeOffsetC   = 0.8   // temp2 probe reads lower than temp1
	BaseTDS        = 430.0 // ppm
	DailySwingTDS  = 15.0  // ppm
	NoiseAmplitude = 0.15  // uniform noise added to every reading
	secondsPerDay  = 24 * 60 * 60
)

// SimulatorService posts synthetic readings for the sensor owning a secret,
// so a dashboard can be exercised without hardware.
type SimulatorService struct {
	sensors      Sensors
	measurements Measurements
	secret       string
	log          *logger.Logger
	jitter       func() float64
}

// NewSimulatorService returns a simulator for the sensor identified by secret.
func NewSimulatorService(sensors Sensors, measurements Measurements, secret string, log *logger.Logger) *SimulatorService {
	return &SimulatorService{
		sensors:      sensors,
		measurements: measurements,
		secret:       secret,
		log:          log,
		jitter:       func() float64 { return rand.Float64()*2 - 1 },
	}
}

// Run ticks at the given interval until ctx is canceled. The sensor is
// resolved on the first tick that succeeds.
func (s *SimulatorService) Run(ctx context.Context, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()

	var sensorID int64
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if sensorID == 0 {
				id, err := s.sensors.Authenticate(ctx, s.secret)
				if err != nil {
					continue
				}
				sensorID = id
			}
			if err := s.measurements.Append(ctx, sensorID, s.values(now)); err != nil && s.log != nil {
				s.log.Infow("simulator_append_failed", "sensor_id", sensorID, "err", err)
			}
		}
	}
}

// values returns [temp1, temp2, tds] following a daily sine cycle plus noise.
func (s *SimulatorService) values(now time.Time) [3]float64 {
	phase := 2 * math.Pi * float64(now.Unix()%secondsPerDay) / secondsPerDay
	temp1 := BaseTempC + DailySwingC*math.Sin(phase) + NoiseAmplitude*s.jitter()
	temp2 := temp1 - ProbeOffsetC + NoiseAmplitude*s.jitter()
	tds := BaseTDS + DailySwingTDS*math.Sin(phase) + NoiseAmplitude*s.jitter()
	return [3]float64{temp1, temp2, tds}
}
