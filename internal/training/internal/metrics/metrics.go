// Package metrics implements the training-load model: exponentially weighted
// chronic and acute loads, Foster's monotony and strain, and the acute:chronic
// workload ratio. All functions are pure and operate on history the caller has
// already fetched.
package metrics

import (
	"math"
	"time"
)

// Time constants for the exponentially weighted moving averages measured in
// days. These are the conventional Banister impulse-response values.
const (
	CTLTimeConstantDays = 42
	ATLTimeConstantDays = 7
)

// LoadSample is one day's total training load.
type LoadSample struct {
	Date time.Time
	Load float64
}

// CTL is the chronic training load: a 42-day exponentially weighted moving
// average of daily load evaluated at the most recent date in history. Days
// without a sample count as zero load.
func CTL(history []LoadSample) float64 {
	return ewma(history, CTLTimeConstantDays)
}

// ATL is the acute training load: same as CTL but with a 7-day time constant.
func ATL(history []LoadSample) float64 {
	return ewma(history, ATLTimeConstantDays)
}

// TSB is the training stress balance, i.e. freshness.
func TSB(ctl, atl float64) float64 {
	return ctl - atl
}

// Monotony is Foster's training monotony: mean daily load divided by the
// standard deviation over the same window. Returns 0 when fewer than two
// samples are given or when the deviation is zero, so callers never see
// Inf or NaN.
func Monotony(loads []float64) float64 {
	if len(loads) < 2 {
		return 0
	}
	mean := 0.0
	for _, load := range loads {
		mean += load
	}
	mean /= float64(len(loads))
	variance := 0.0
	for _, load := range loads {
		diff := load - mean
		variance += diff * diff
	}
	stddev := math.Sqrt(variance / float64(len(loads)))
	if stddev == 0 {
		return 0
	}
	return mean / stddev
}

// Strain is Foster's weekly strain, the product of weekly load and monotony.
func Strain(weeklyLoad, monotony float64) float64 {
	return weeklyLoad * monotony
}

// ACWR is the acute:chronic workload ratio. Returns 0 when the chronic load
// is zero.
func ACWR(atl, ctl float64) float64 {
	if ctl == 0 {
		return 0
	}
	return atl / ctl
}

// ewma walks the calendar day by day from the earliest to the latest sample
// and folds each day's load into an exponentially weighted average with
// smoothing factor 2/(N+1). Gaps in the history decay the average instead of
// interpolating.
func ewma(history []LoadSample, timeConstantDays int) float64 {
	if len(history) == 0 {
		return 0
	}
	loadByDay := make(map[string]float64, len(history))
	var first, last time.Time
	for i, sample := range history {
		day := sample.Date.Truncate(24 * time.Hour)
		loadByDay[day.Format(time.DateOnly)] += sample.Load
		if i == 0 || day.Before(first) {
			first = day
		}
		if i == 0 || day.After(last) {
			last = day
		}
	}
	alpha := 2.0 / (float64(timeConstantDays) + 1)
	value := 0.0
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		value += alpha * (loadByDay[day.Format(time.DateOnly)] - value)
	}
	return value
}
