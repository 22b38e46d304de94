package readiness

import (
	"time"

	"github.com/mlahtinen/formcoach/internal/readiness/internal/scoring"
)

// Assessment is one day's readiness check-in together with the score computed
// from it. SubjectiveReadiness is the required 1-10 rating; the objective
// readings are optional.
type Assessment struct {
	Date                 time.Time
	SubjectiveReadiness  int
	GripStrength         *float64
	VerticalJump         *float64
	HRVReading           *float64
	RestingHR            *float64
	SleepQuality         *int
	SleepHours           *float64
	TSB                  *float64
	ATL                  *float64
	CTL                  *float64
	CalculatedScore      float64
	RecommendedIntensity scoring.Recommendation
	AdjustmentFactor     float64
	Suggestions          []string
}

// BaselineStat is one factor's rolling aggregate. Std stays nil until at
// least two samples exist in the window.
type BaselineStat struct {
	Mean        *float64
	Std         *float64
	SampleCount int
}

// Baselines is the per-user singleton of rolling 30-day aggregates. Version
// increments on every recompute.
type Baselines struct {
	GripStrength BaselineStat
	VerticalJump BaselineStat
	HRV          BaselineStat
	RestingHR    BaselineStat
	SleepHours   BaselineStat
	Version      int
	LastUpdated  time.Time
}

// Category buckets a suggested workout for adjustment targeting.
type Category string

const (
	CategoryStrength Category = "strength"
	CategoryCardio   Category = "cardio"
	CategoryMobility Category = "mobility"
)

// SuggestedWorkout is a planned workout for a given day.
type SuggestedWorkout struct {
	ID               int
	PlanID           int
	Date             time.Time
	Name             string
	Category         Category
	PlannedIntensity float64
}

// ApplyTo selects which workouts a recommendation targets.
type ApplyTo string

const (
	ApplyToStrength ApplyTo = "strength"
	ApplyToCardio   ApplyTo = "cardio"
	ApplyToAll      ApplyTo = "all"
)

// RecommendationStatus is the lifecycle of an intensity recommendation.
type RecommendationStatus string

const (
	StatusPending   RecommendationStatus = "pending"
	StatusApplied   RecommendationStatus = "applied"
	StatusDismissed RecommendationStatus = "dismissed"
	StatusExpired   RecommendationStatus = "expired"
)

// Recommendation is a stored day-of intensity adjustment. At most one pending
// recommendation exists per user, plan and day.
type Recommendation struct {
	ID               int
	PlanID           int
	TargetWorkoutID  *int
	Date             time.Time
	AdjustmentFactor float64
	ApplyTo          ApplyTo
	Reasoning        string
	ConfidenceScore  float64
	Priority         int
	Status           RecommendationStatus
	ExpiresAt        time.Time
	CreatedAt        time.Time
}

// Settings are the user's auto-adjustment preferences.
type Settings struct {
	AutoAdjustEnabled  bool
	ReadinessThreshold float64
}

// Evaluation is the day-of evaluator outcome. Workouts always carries the
// day's suggested workouts; Recommendation is nil unless one was created or
// an existing pending one was found.
type Evaluation struct {
	HasRecommendation bool
	Recommendation    *Recommendation
	Workouts          []SuggestedWorkout
}
