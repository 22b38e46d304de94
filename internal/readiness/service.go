// Package readiness scores daily readiness check-ins against personal
// baselines, maintains those baselines over a rolling window, and evaluates
// day-of intensity adjustments for the planned workouts.
package readiness

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/mlahtinen/formcoach/internal/contexthelpers"
	"github.com/mlahtinen/formcoach/internal/errors"
	"github.com/mlahtinen/formcoach/internal/readiness/internal/scoring"
	"github.com/mlahtinen/formcoach/internal/sqlite"
	"github.com/mlahtinen/formcoach/internal/training"
)

const (
	// baselineWindowDays is the trailing window the baselines are computed
	// over, inclusive of the assessment just logged.
	baselineWindowDays = 30
	// defaultReadinessThreshold applies until the user saves their own.
	defaultReadinessThreshold = 50
)

// ErrUnauthenticated is returned when no authenticated user is in the context.
var ErrUnauthenticated = errors.NewSentinel("no authenticated user in context")

// ErrInvalidAssessment is returned when a check-in fails validation. Handlers
// match it with errors.Is to answer with a client error instead of a server
// error.
var ErrInvalidAssessment = errors.NewSentinel("invalid assessment")

// LoadMetrics supplies the training-load snapshot for the day being assessed.
type LoadMetrics interface {
	MetricsAt(ctx context.Context, date time.Time) (training.TrainingLoadPoint, error)
}

// AssessmentInput is the user-provided part of a daily check-in.
type AssessmentInput struct {
	Date                time.Time
	SubjectiveReadiness int
	GripStrength        *float64
	VerticalJump        *float64
	HRVReading          *float64
	RestingHR           *float64
	SleepQuality        *int
	SleepHours          *float64
}

// Service handles the business logic for readiness tracking and day-of
// adjustments.
type Service struct {
	repo            *sqliteRepository
	loads           LoadMetrics
	logger          *slog.Logger
	scoringConfig   scoring.Config
	defaultSettings Settings
}

// NewService creates a new readiness service.
func NewService(db *sqlite.Database, logger *slog.Logger, loads LoadMetrics) *Service {
	return &Service{
		repo:          newSQLiteRepository(db, logger),
		loads:         loads,
		logger:        logger,
		scoringConfig: scoring.DefaultConfig(),
		defaultSettings: Settings{
			AutoAdjustEnabled:  true,
			ReadinessThreshold: defaultReadinessThreshold,
		},
	}
}

// WithDefaultThreshold overrides the readiness threshold applied to users
// who have not saved their own settings.
func (s *Service) WithDefaultThreshold(threshold float64) *Service {
	s.defaultSettings.ReadinessThreshold = threshold
	return s
}

// WithFactorBounds overrides the adjustment-factor floor and ceiling.
func (s *Service) WithFactorBounds(floor, ceiling float64) *Service {
	s.scoringConfig.FactorFloor = floor
	s.scoringConfig.FactorCeiling = ceiling
	return s
}

// SubmitAssessment scores and stores a daily check-in, then recomputes the
// user's baselines over the trailing window.
func (s *Service) SubmitAssessment(ctx context.Context, input AssessmentInput) (Assessment, error) {
	userID := contexthelpers.AuthenticatedUserID(ctx)
	if userID == 0 {
		return Assessment{}, ErrUnauthenticated
	}
	if input.Date.IsZero() {
		return Assessment{}, errors.Wrap(ErrInvalidAssessment, "assessment date is required")
	}
	date := input.Date.Truncate(24 * time.Hour)

	point, err := s.loads.MetricsAt(ctx, date)
	if err != nil {
		return Assessment{}, fmt.Errorf("load metrics: %w", err)
	}

	baselines, err := s.repo.getBaselines(ctx, userID)
	scoringBaselines := baselines.scoring()
	if errors.Is(err, ErrNotFound) {
		scoringBaselines = nil
	} else if err != nil {
		return Assessment{}, fmt.Errorf("get baselines: %w", err)
	}

	result, err := scoring.Score(scoring.Input{
		Subjective:   input.SubjectiveReadiness,
		HRV:          input.HRVReading,
		SleepHours:   input.SleepHours,
		GripStrength: input.GripStrength,
		VerticalJump: input.VerticalJump,
		TSB:          &point.TSB,
	}, scoringBaselines, s.scoringConfig)
	if err != nil {
		// Score only fails on bad input, so mark it for the handlers.
		return Assessment{}, fmt.Errorf("score assessment: %w: %w", ErrInvalidAssessment, err)
	}

	assessment := Assessment{
		Date:                 date,
		SubjectiveReadiness:  input.SubjectiveReadiness,
		GripStrength:         input.GripStrength,
		VerticalJump:         input.VerticalJump,
		HRVReading:           input.HRVReading,
		RestingHR:            input.RestingHR,
		SleepQuality:         input.SleepQuality,
		SleepHours:           input.SleepHours,
		TSB:                  &point.TSB,
		ATL:                  &point.ATL,
		CTL:                  &point.CTL,
		CalculatedScore:      result.Score,
		RecommendedIntensity: result.Recommendation,
		AdjustmentFactor:     result.AdjustmentFactor,
		Suggestions:          result.Suggestions,
	}
	if err = s.repo.upsertAssessment(ctx, userID, assessment); err != nil {
		return Assessment{}, fmt.Errorf("upsert assessment: %w", err)
	}

	if err = s.updateBaselines(ctx, userID, date); err != nil {
		return Assessment{}, fmt.Errorf("update baselines: %w", err)
	}

	s.logger.LogAttrs(ctx, slog.LevelInfo, "submitted readiness assessment",
		slog.String("date", date.Format(dateFormat)),
		slog.Float64("score", result.Score),
		slog.String("recommendation", string(result.Recommendation)))
	return assessment, nil
}

// Assessment retrieves the stored assessment for a date.
func (s *Service) Assessment(ctx context.Context, date time.Time) (Assessment, error) {
	userID := contexthelpers.AuthenticatedUserID(ctx)
	if userID == 0 {
		return Assessment{}, ErrUnauthenticated
	}
	assessment, err := s.repo.getAssessment(ctx, userID, date.Truncate(24*time.Hour))
	if err != nil {
		return Assessment{}, fmt.Errorf("get assessment: %w", err)
	}
	return assessment, nil
}

// Baselines retrieves the user's current baselines.
func (s *Service) Baselines(ctx context.Context) (Baselines, error) {
	userID := contexthelpers.AuthenticatedUserID(ctx)
	if userID == 0 {
		return Baselines{}, ErrUnauthenticated
	}
	baselines, err := s.repo.getBaselines(ctx, userID)
	if err != nil {
		return Baselines{}, fmt.Errorf("get baselines: %w", err)
	}
	return baselines, nil
}

// Settings retrieves the user's adjustment settings.
func (s *Service) Settings(ctx context.Context) (Settings, error) {
	userID := contexthelpers.AuthenticatedUserID(ctx)
	if userID == 0 {
		return Settings{}, ErrUnauthenticated
	}
	settings, err := s.repo.getSettings(ctx, userID, s.defaultSettings)
	if err != nil {
		return Settings{}, fmt.Errorf("get settings: %w", err)
	}
	return settings, nil
}

// SaveSettings saves the user's adjustment settings.
func (s *Service) SaveSettings(ctx context.Context, settings Settings) error {
	userID := contexthelpers.AuthenticatedUserID(ctx)
	if userID == 0 {
		return ErrUnauthenticated
	}
	if settings.ReadinessThreshold < 0 || settings.ReadinessThreshold > 100 {
		return errors.New("readiness threshold out of range [0,100]")
	}
	if err := s.repo.saveSettings(ctx, userID, settings); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// AddSuggestedWorkout plans a workout for a day.
func (s *Service) AddSuggestedWorkout(ctx context.Context, workout SuggestedWorkout) (SuggestedWorkout, error) {
	userID := contexthelpers.AuthenticatedUserID(ctx)
	if userID == 0 {
		return SuggestedWorkout{}, ErrUnauthenticated
	}
	switch workout.Category {
	case CategoryStrength, CategoryCardio, CategoryMobility:
	default:
		return SuggestedWorkout{}, fmt.Errorf("unknown workout category %q", workout.Category)
	}
	if workout.PlannedIntensity == 0 {
		workout.PlannedIntensity = 1.0
	}
	workout.Date = workout.Date.Truncate(24 * time.Hour)
	created, err := s.repo.createSuggestedWorkout(ctx, userID, workout)
	if err != nil {
		return SuggestedWorkout{}, fmt.Errorf("create suggested workout: %w", err)
	}
	return created, nil
}

// SuggestedWorkouts retrieves the workouts planned for a plan and day.
func (s *Service) SuggestedWorkouts(ctx context.Context, planID int, date time.Time) ([]SuggestedWorkout, error) {
	userID := contexthelpers.AuthenticatedUserID(ctx)
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	workouts, err := s.repo.listSuggestedWorkouts(ctx, userID, planID, date.Truncate(24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("list suggested workouts: %w", err)
	}
	return workouts, nil
}

// DismissRecommendation marks a pending recommendation as dismissed.
func (s *Service) DismissRecommendation(ctx context.Context, id int) error {
	userID := contexthelpers.AuthenticatedUserID(ctx)
	if userID == 0 {
		return ErrUnauthenticated
	}
	if err := s.repo.setRecommendationStatus(ctx, userID, id, StatusDismissed); err != nil {
		return fmt.Errorf("dismiss recommendation: %w", err)
	}
	return nil
}

// updateBaselines recomputes the rolling aggregates from the trailing window
// ending at asOf and upserts them.
func (s *Service) updateBaselines(ctx context.Context, userID int, asOf time.Time) error {
	since := asOf.AddDate(0, 0, -(baselineWindowDays - 1))
	assessments, err := s.repo.listAssessments(ctx, userID, since, asOf)
	if err != nil {
		return fmt.Errorf("list assessments: %w", err)
	}

	collect := func(pick func(Assessment) *float64) []float64 {
		var values []float64
		for _, a := range assessments {
			if v := pick(a); v != nil {
				values = append(values, *v)
			}
		}
		return values
	}

	baselines := Baselines{
		GripStrength: summarize(collect(func(a Assessment) *float64 { return a.GripStrength })),
		VerticalJump: summarize(collect(func(a Assessment) *float64 { return a.VerticalJump })),
		HRV:          summarize(collect(func(a Assessment) *float64 { return a.HRVReading })),
		RestingHR:    summarize(collect(func(a Assessment) *float64 { return a.RestingHR })),
		SleepHours:   summarize(collect(func(a Assessment) *float64 { return a.SleepHours })),
	}
	if err = s.repo.saveBaselines(ctx, userID, baselines); err != nil {
		return fmt.Errorf("save baselines: %w", err)
	}
	return nil
}

// summarize computes the sample mean and, with at least two samples, the
// Bessel-corrected standard deviation.
func summarize(values []float64) BaselineStat {
	stat := BaselineStat{SampleCount: len(values)}
	if len(values) == 0 {
		return stat
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	stat.Mean = &mean
	if len(values) < 2 {
		return stat
	}
	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	std := math.Sqrt(variance / float64(len(values)-1))
	stat.Std = &std
	return stat
}

// scoring converts the stored baselines into the scorer's shape.
func (b Baselines) scoring() *scoring.Baselines {
	return &scoring.Baselines{
		HRV:          scoring.Baseline{Mean: b.HRV.Mean, Std: b.HRV.Std},
		SleepHours:   scoring.Baseline{Mean: b.SleepHours.Mean, Std: b.SleepHours.Std},
		GripStrength: scoring.Baseline{Mean: b.GripStrength.Mean, Std: b.GripStrength.Std},
		VerticalJump: scoring.Baseline{Mean: b.VerticalJump.Mean, Std: b.VerticalJump.Std},
	}
}
