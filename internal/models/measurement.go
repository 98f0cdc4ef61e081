package models

// Sample is a single raw reading posted by a sensor.
type Sample struct {
	SensorID   int64   `json:"sensor_id"`
	MeasuredAt int64   `json:"measured_at"` // unix seconds
	Temp1      float64 `json:"temp1"`
	Temp2      float64 `json:"temp2"`
	TDS        float64 `json:"tds"`
	IsDeleted  bool    `json:"is_deleted"`
}

// Value is one slot of a series; nil means "no data".
type Value = *float64

// V returns a Value holding f.
func V(f float64) Value { return &f }

// Series is an aggregated window covering ticks [MinTick, MaxTick).
// Slot i of each series corresponds to tick MinTick+i.
type Series struct {
	MinTick int64      `json:"min_tick"`
	MaxTick int64      `json:"max_tick"`
	Series  [3][]Value `json:"series"` // temp1, temp2, tds
}

// NewSeries returns a window of the given bounds filled with "no data".
func NewSeries(minTick, maxTick int64) Series {
	n := maxTick - minTick
	if n < 0 {
		n = 0
	}
	s := Series{MinTick: minTick, MaxTick: maxTick}
	for i := range s.Series {
		s.Series[i] = make([]Value, n)
	}
	return s
}

// Len returns the number of ticks covered by the window.
func (s Series) Len() int64 { return s.MaxTick - s.MinTick }

// LatestValues holds [temp1, tds] for the live display; nil means "no data".
type LatestValues = *[2]float64
