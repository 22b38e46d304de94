// Package scoring computes the daily readiness score: a weighted blend of the
// athlete's subjective rating with objective factors compared against their
// personal baselines. Missing factors are dropped and the remaining weights
// renormalized, so sparse data never biases the score toward the middle.
package scoring

import (
	"fmt"
	"math"
)

// Recommendation is the intensity tier derived from a readiness score.
type Recommendation string

const (
	RecommendationReduce   Recommendation = "reduce"
	RecommendationMaintain Recommendation = "maintain"
	RecommendationPush     Recommendation = "push"
)

// Input is a partial assessment. Subjective is required on a 1-10 scale; the
// rest are optional and only contribute when the matching baseline is defined.
type Input struct {
	Subjective   int
	HRV          *float64
	SleepHours   *float64
	GripStrength *float64
	VerticalJump *float64
	TSB          *float64
}

// Baseline is a factor's personal mean and standard deviation. Std is nil
// until at least two samples exist.
type Baseline struct {
	Mean *float64
	Std  *float64
}

// Baselines holds the per-factor baselines for one user.
type Baselines struct {
	HRV          Baseline
	SleepHours   Baseline
	GripStrength Baseline
	VerticalJump Baseline
}

// Factor is the diagnostic breakdown for one scoring component. Contribution
// is on the same 0-100 scale as the final score.
type Factor struct {
	Value        float64
	Weight       float64
	Contribution float64
}

// Factors collects the per-component breakdown. Optional components are nil
// when absent from the input or lacking a baseline.
type Factors struct {
	Subjective   Factor
	HRV          *Factor
	Sleep        *Factor
	TSB          *Factor
	GripStrength *Factor
	VerticalJump *Factor
}

// Result is the scorer output. Score, Recommendation and AdjustmentFactor are
// the load-bearing values; Factors and Suggestions are diagnostic.
type Result struct {
	Score            float64
	Recommendation   Recommendation
	AdjustmentFactor float64
	Factors          Factors
	Suggestions      []string
}

// Config holds the tunable coefficients of the scorer. The weights are the
// pre-renormalization mix of the components.
type Config struct {
	SubjectiveWeight float64
	HRVWeight        float64
	SleepWeight      float64
	TSBWeight        float64
	GripWeight       float64
	JumpWeight       float64

	// ReduceBelow and PushAbove are the recommendation cutoffs. Scores on a
	// boundary map to maintain.
	ReduceBelow float64
	PushAbove   float64

	// FactorFloor and FactorCeiling bound the adjustment factor at scores 0
	// and 100.
	FactorFloor   float64
	FactorCeiling float64

	// ZScoreClamp caps how far a single reading can swing its contribution.
	ZScoreClamp float64

	// TSBFloor and TSBCeiling bound the linear mapping of training stress
	// balance onto the 0-100 scale.
	TSBFloor   float64
	TSBCeiling float64
}

// DefaultConfig returns the standard coefficients.
func DefaultConfig() Config {
	return Config{
		SubjectiveWeight: 0.40,
		HRVWeight:        0.25,
		SleepWeight:      0.15,
		TSBWeight:        0.10,
		GripWeight:       0.05,
		JumpWeight:       0.05,
		ReduceBelow:      40,
		PushAbove:        70,
		FactorFloor:      0.70,
		FactorCeiling:    1.10,
		ZScoreClamp:      3,
		TSBFloor:         -30,
		TSBCeiling:       10,
	}
}

// Thresholds for the human-readable suggestions.
const (
	lowSubjectiveMax = 4
	shortSleepHours  = 6.0
	depressedHRVZ    = -1.0
	veryNegativeTSB  = -20.0
)

// Score computes the readiness result for one assessment. It returns an error
// only for invalid input; degraded data (missing factors, missing baselines)
// reduces to subjective-only scoring instead of failing.
func Score(input Input, baselines *Baselines, cfg Config) (Result, error) {
	if input.Subjective < 1 || input.Subjective > 10 {
		return Result{}, fmt.Errorf("subjective readiness %d out of range [1,10]", input.Subjective)
	}

	subjective := Factor{
		Value:        float64(input.Subjective),
		Weight:       cfg.SubjectiveWeight,
		Contribution: float64(input.Subjective-1) / 9 * 100,
	}

	factors := Factors{Subjective: subjective}
	weightSum := subjective.Weight
	weighted := subjective.Weight * subjective.Contribution

	addFactor := func(value *float64, baseline Baseline, weight float64) *Factor {
		z, ok := zScore(value, baseline)
		if !ok {
			return nil
		}
		factor := &Factor{
			Value:        *value,
			Weight:       weight,
			Contribution: zToContribution(z, cfg.ZScoreClamp),
		}
		weightSum += weight
		weighted += weight * factor.Contribution
		return factor
	}

	var noBaselines Baselines
	if baselines == nil {
		baselines = &noBaselines
	}
	factors.HRV = addFactor(input.HRV, baselines.HRV, cfg.HRVWeight)
	factors.Sleep = addFactor(input.SleepHours, baselines.SleepHours, cfg.SleepWeight)
	factors.GripStrength = addFactor(input.GripStrength, baselines.GripStrength, cfg.GripWeight)
	factors.VerticalJump = addFactor(input.VerticalJump, baselines.VerticalJump, cfg.JumpWeight)

	if input.TSB != nil {
		span := cfg.TSBCeiling - cfg.TSBFloor
		contribution := clamp((*input.TSB-cfg.TSBFloor)/span*100, 0, 100)
		factors.TSB = &Factor{
			Value:        *input.TSB,
			Weight:       cfg.TSBWeight,
			Contribution: contribution,
		}
		weightSum += cfg.TSBWeight
		weighted += cfg.TSBWeight * contribution
	}

	score := weighted / weightSum
	result := Result{
		Score:            score,
		Recommendation:   recommend(score, cfg),
		AdjustmentFactor: adjustmentFactor(score, cfg),
		Factors:          factors,
		Suggestions:      suggestions(input, baselines),
	}
	return result, nil
}

// zToContribution maps a clamped z-score linearly onto [0,100] with 50 at the
// baseline mean.
func zToContribution(z, zClamp float64) float64 {
	z = clamp(z, -zClamp, zClamp)
	return 50 + z/zClamp*50
}

func recommend(score float64, cfg Config) Recommendation {
	switch {
	case score < cfg.ReduceBelow:
		return RecommendationReduce
	case score > cfg.PushAbove:
		return RecommendationPush
	default:
		return RecommendationMaintain
	}
}

// adjustmentFactor maps the score linearly between the floor and ceiling.
func adjustmentFactor(score float64, cfg Config) float64 {
	return cfg.FactorFloor + score/100*(cfg.FactorCeiling-cfg.FactorFloor)
}

func suggestions(input Input, baselines *Baselines) []string {
	var out []string
	if input.Subjective <= lowSubjectiveMax {
		out = append(out, "Low subjective readiness: prioritise recovery and keep intensity easy today.")
	}
	if input.SleepHours != nil && *input.SleepHours < shortSleepHours {
		out = append(out, "Short sleep last night: consider an earlier night and a lighter session.")
	}
	if z, ok := zScore(input.HRV, baselines.HRV); ok && z <= depressedHRVZ {
		out = append(out, "HRV is depressed versus your baseline: your nervous system may still be recovering.")
	}
	if input.TSB != nil && *input.TSB <= veryNegativeTSB {
		out = append(out, "Training stress balance is very negative: accumulated fatigue is high.")
	}
	return out
}

// zScore returns the reading's distance from its baseline in standard
// deviations. The second return is false when the baseline is undefined.
func zScore(value *float64, baseline Baseline) (float64, bool) {
	if value == nil || baseline.Mean == nil || baseline.Std == nil || *baseline.Std == 0 {
		return 0, false
	}
	return (*value - *baseline.Mean) / *baseline.Std, true
}

func clamp(v, low, high float64) float64 {
	return math.Min(math.Max(v, low), high)
}
