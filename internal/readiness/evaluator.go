package readiness

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mlahtinen/formcoach/internal/contexthelpers"
	"github.com/mlahtinen/formcoach/internal/errors"
)

// Reasoning and confidence coefficients for the day-of evaluator.
const (
	priorityOneBelow = 30.0
	priorityTwoBelow = 40.0

	confidenceBase      = 0.5
	confidencePerSource = 0.125

	reasoningLowSubjectiveMax = 4
	reasoningShortSleepHours  = 6.0
	reasoningDepressedHRVZ    = -1.0
	reasoningVeryNegativeTSB  = -20.0
)

// EvaluateDayOf runs the day-of adjustment check for a plan and day. It
// returns the day's suggested workouts unchanged plus, when the stored
// readiness score is below the user's threshold, a pending intensity
// recommendation. Re-invoking on the same user, plan and day returns the
// existing pending recommendation instead of inserting a duplicate.
func (s *Service) EvaluateDayOf(ctx context.Context, planID int, date time.Time) (Evaluation, error) {
	userID := contexthelpers.AuthenticatedUserID(ctx)
	if userID == 0 {
		return Evaluation{}, ErrUnauthenticated
	}
	date = date.Truncate(24 * time.Hour)

	workouts, err := s.repo.listSuggestedWorkouts(ctx, userID, planID, date)
	if err != nil {
		return Evaluation{}, fmt.Errorf("list suggested workouts: %w", err)
	}
	evaluation := Evaluation{Workouts: workouts}

	settings, err := s.repo.getSettings(ctx, userID, s.defaultSettings)
	if err != nil {
		return Evaluation{}, fmt.Errorf("get settings: %w", err)
	}
	if !settings.AutoAdjustEnabled {
		return evaluation, nil
	}

	if err = s.repo.expirePendingRecommendations(ctx, userID, time.Now(), date); err != nil {
		return Evaluation{}, fmt.Errorf("expire pending recommendations: %w", err)
	}

	assessment, err := s.repo.getAssessment(ctx, userID, date)
	if errors.Is(err, ErrNotFound) {
		return evaluation, nil
	}
	if err != nil {
		return Evaluation{}, fmt.Errorf("get assessment: %w", err)
	}
	if assessment.CalculatedScore >= settings.ReadinessThreshold {
		return evaluation, nil
	}

	// Idempotency per day: reuse the pending recommendation when one exists.
	existing, err := s.repo.getPendingRecommendation(ctx, userID, planID, date)
	if err == nil {
		evaluation.HasRecommendation = true
		evaluation.Recommendation = &existing
		return evaluation, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Evaluation{}, fmt.Errorf("get pending recommendation: %w", err)
	}

	rec, err := s.buildRecommendation(ctx, userID, planID, date, assessment, settings, workouts)
	if err != nil {
		return Evaluation{}, fmt.Errorf("build recommendation: %w", err)
	}
	created, err := s.repo.createRecommendation(ctx, userID, rec)
	if err != nil {
		return Evaluation{}, fmt.Errorf("create recommendation: %w", err)
	}

	s.logger.LogAttrs(ctx, slog.LevelInfo, "created intensity recommendation",
		slog.Int("recommendation_id", created.ID),
		slog.Float64("score", assessment.CalculatedScore),
		slog.Int("priority", created.Priority))

	evaluation.HasRecommendation = true
	evaluation.Recommendation = &created
	return evaluation, nil
}

// buildRecommendation assembles the stored recommendation for a low-readiness
// day. Strength workouts are the preferred adjustment target when present.
func (s *Service) buildRecommendation(
	ctx context.Context,
	userID int,
	planID int,
	date time.Time,
	assessment Assessment,
	settings Settings,
	workouts []SuggestedWorkout,
) (Recommendation, error) {
	applyTo := ApplyToAll
	var targetWorkoutID *int
	for _, workout := range workouts {
		if workout.Category == CategoryStrength {
			applyTo = ApplyToStrength
			id := workout.ID
			targetWorkoutID = &id
			break
		}
	}

	reasoning, err := s.buildReasoning(ctx, userID, assessment, settings)
	if err != nil {
		return Recommendation{}, fmt.Errorf("build reasoning: %w", err)
	}

	return Recommendation{
		PlanID:           planID,
		TargetWorkoutID:  targetWorkoutID,
		Date:             date,
		AdjustmentFactor: assessment.AdjustmentFactor,
		ApplyTo:          applyTo,
		Reasoning:        reasoning,
		ConfidenceScore:  confidence(assessment),
		Priority:         priority(assessment.CalculatedScore),
		Status:           StatusPending,
		ExpiresAt:        date.AddDate(0, 0, 1),
	}, nil
}

// buildReasoning synthesizes the human-readable explanation, enumerating each
// contributing factor that is present.
func (s *Service) buildReasoning(
	ctx context.Context,
	userID int,
	assessment Assessment,
	settings Settings,
) (string, error) {
	parts := []string{fmt.Sprintf("Readiness score %.0f is below your threshold of %.0f.",
		assessment.CalculatedScore, settings.ReadinessThreshold)}

	if assessment.SubjectiveReadiness <= reasoningLowSubjectiveMax {
		parts = append(parts, fmt.Sprintf("You rated your readiness %d/10.", assessment.SubjectiveReadiness))
	}
	if assessment.SleepHours != nil && *assessment.SleepHours < reasoningShortSleepHours {
		parts = append(parts, fmt.Sprintf("You slept only %.1f hours.", *assessment.SleepHours))
	}
	if assessment.HRVReading != nil {
		baselines, err := s.repo.getBaselines(ctx, userID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return "", fmt.Errorf("get baselines: %w", err)
		}
		hrv := baselines.HRV
		if hrv.Mean != nil && hrv.Std != nil && *hrv.Std != 0 {
			z := (*assessment.HRVReading - *hrv.Mean) / *hrv.Std
			if z <= reasoningDepressedHRVZ {
				parts = append(parts, fmt.Sprintf("HRV %.0f is well below your baseline of %.0f.",
					*assessment.HRVReading, *hrv.Mean))
			}
		}
	}
	if assessment.TSB != nil && *assessment.TSB <= reasoningVeryNegativeTSB {
		parts = append(parts, fmt.Sprintf("Training stress balance is very negative (%.0f).", *assessment.TSB))
	}
	return strings.Join(parts, " "), nil
}

// priority is inversely proportional to the readiness score.
func priority(score float64) int {
	switch {
	case score < priorityOneBelow:
		return 1
	case score < priorityTwoBelow:
		return 2
	default:
		return 3
	}
}

// confidence grows with each data source that informed the score, starting
// from the subjective rating which is always present.
func confidence(assessment Assessment) float64 {
	score := confidenceBase + confidencePerSource
	if assessment.HRVReading != nil {
		score += confidencePerSource
	}
	if assessment.SleepHours != nil {
		score += confidencePerSource
	}
	if assessment.TSB != nil {
		score += confidencePerSource
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}
