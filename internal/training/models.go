package training

import (
	"time"

	"github.com/mlahtinen/formcoach/internal/training/internal/metrics"
)

// DailyLoad aggregates one day's training stress for a user.
// TotalStressScore is the TSS for the day and drives the load model;
// TrainingLoad is the session-RPE load (RPE times duration) kept alongside it
// and stands in for days without a TSS.
type DailyLoad struct {
	Date                 time.Time
	TotalStressScore     float64
	TotalDurationMinutes float64
	SessionRPEAvg        *float64
	TrainingLoad         float64
	Zone1Seconds         int
	Zone2Seconds         int
	Zone3Seconds         int
	Zone4Seconds         int
	Zone5Seconds         int
}

// stress is the daily signal the load model averages: the TSS when one was
// logged, otherwise the session-RPE load.
func (l DailyLoad) stress() float64 {
	if l.TotalStressScore > 0 {
		return l.TotalStressScore
	}
	return l.TrainingLoad
}

// TrainingLoadPoint is a snapshot of the load model on a given day. It is
// always recomputed from the DailyLoad history, never stored.
type TrainingLoadPoint struct {
	Date         time.Time
	CTL          float64
	ATL          float64
	TSB          float64
	Monotony     float64
	Strain       float64
	ACWR         float64
	TSBBand      metrics.TSBBand
	ACWRRisk     metrics.ACWRRisk
	MonotonyRisk metrics.MonotonyRisk
}
