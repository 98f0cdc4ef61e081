// Package aggregate turns raw sensor samples into fixed-width tick series.
package aggregate

import (
	"math"
	"sort"

	"cobitis_web/internal/models"
)

// TrimFraction is the share of values discarded from each tail before averaging.
const TrimFraction = 0.2

// Decimal places used when rounding aggregates.
const (
	SeriesPrecision = 2
	LatestPrecision = 1
)

// TrimmedMean averages values after discarding floor(n*fraction) values from
// each tail. It reports false when values is empty.
func TrimmedMean(values []float64, fraction float64) (float64, bool) {
	n := len(values)
	if n == 0 {
		return 0, false
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	k := int(math.Floor(float64(n) * fraction))
	if 2*k >= n {
		k = (n - 1) / 2
	}
	kept := sorted[k : n-k]

	sum := 0.0
	for _, v := range kept {
		sum += v
	}
	return sum / float64(len(kept)), true
}

// Round rounds v half away from zero to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// Tick returns floor(measuredAt / tickLength).
func Tick(measuredAt, tickLength int64) int64 {
	t := measuredAt / tickLength
	if measuredAt%tickLength != 0 && (measuredAt < 0) != (tickLength < 0) {
		t--
	}
	return t
}

type bucket struct {
	temp1, temp2, tds []float64
}

// Bucket partitions samples into ticks [minTick, maxTick) and returns the
// trimmed mean of each non-empty bucket. Deleted samples and samples outside
// the window are ignored; empty buckets stay nil.
func Bucket(samples []models.Sample, minTick, maxTick, tickLength int64) models.Series {
	out := models.NewSeries(minTick, maxTick)
	if tickLength <= 0 || maxTick <= minTick {
		return out
	}

	buckets := make(map[int64]*bucket)
	for _, s := range samples {
		if s.IsDeleted {
			continue
		}
		tick := Tick(s.MeasuredAt, tickLength)
		if tick < minTick || tick >= maxTick {
			continue
		}
		b, ok := buckets[tick]
		if !ok {
			b = &bucket{}
			buckets[tick] = b
		}
		b.temp1 = append(b.temp1, s.Temp1)
		b.temp2 = append(b.temp2, s.Temp2)
		b.tds = append(b.tds, s.TDS)
	}

	for tick, b := range buckets {
		i := tick - minTick
		out.Series[0][i] = roundedMean(b.temp1, SeriesPrecision)
		out.Series[1][i] = roundedMean(b.temp2, SeriesPrecision)
		out.Series[2][i] = roundedMean(b.tds, SeriesPrecision)
	}
	return out
}

// Latest aggregates samples into the [temp1, tds] pair shown as live values.
// It returns nil when no usable sample exists.
func Latest(samples []models.Sample) models.LatestValues {
	var temp, tds []float64
	for _, s := range samples {
		if s.IsDeleted {
			continue
		}
		temp = append(temp, s.Temp1)
		tds = append(tds, s.TDS)
	}
	t, ok := TrimmedMean(temp, TrimFraction)
	if !ok {
		return nil
	}
	d, _ := TrimmedMean(tds, TrimFraction)
	return &[2]float64{Round(t, LatestPrecision), Round(d, LatestPrecision)}
}

func roundedMean(values []float64, places int) models.Value {
	m, ok := TrimmedMean(values, TrimFraction)
	if !ok {
		return nil
	}
	return models.V(Round(m, places))
}
