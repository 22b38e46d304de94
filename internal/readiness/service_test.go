package readiness

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/mlahtinen/formcoach/internal/contexthelpers"
	"github.com/mlahtinen/formcoach/internal/errors"
	"github.com/mlahtinen/formcoach/internal/ptr"
	"github.com/mlahtinen/formcoach/internal/sqlite"
	"github.com/mlahtinen/formcoach/internal/testhelpers"
	"github.com/mlahtinen/formcoach/internal/training"
)

func newTestService(t *testing.T) (*Service, context.Context) {
	t.Helper()
	ctx := t.Context()
	logger := testhelpers.NewLogger(testhelpers.NewWriter(t))
	db, err := sqlite.NewDatabase(ctx, ":memory:", logger)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("close database: %v", err)
		}
	})
	if _, err = db.ReadWrite.ExecContext(ctx, "INSERT INTO users (id) VALUES (2)"); err != nil {
		t.Fatalf("insert test user: %v", err)
	}
	ctx = context.WithValue(ctx, contexthelpers.AuthenticatedUserIDContextKey, 2)
	return NewService(db, logger, training.NewService(db, logger)), ctx
}

func TestService_SubmitAssessment(t *testing.T) {
	t.Parallel()
	svc, ctx := newTestService(t)
	date := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)

	t.Run("subjective-only check-in scores without baselines", func(t *testing.T) {
		assessment, err := svc.SubmitAssessment(ctx, AssessmentInput{
			Date:                date,
			SubjectiveReadiness: 7,
		})
		if err != nil {
			t.Fatalf("submit assessment: %v", err)
		}
		if assessment.CalculatedScore < 0 || assessment.CalculatedScore > 100 ||
			math.IsNaN(assessment.CalculatedScore) {
			t.Errorf("score %v out of [0,100]", assessment.CalculatedScore)
		}
		if assessment.TSB == nil || assessment.ATL == nil || assessment.CTL == nil {
			t.Error("expected load metrics to be attached to the assessment")
		}

		stored, err := svc.Assessment(ctx, date)
		if err != nil {
			t.Fatalf("get assessment: %v", err)
		}
		if stored.CalculatedScore != assessment.CalculatedScore {
			t.Errorf("stored score %v, want %v", stored.CalculatedScore, assessment.CalculatedScore)
		}
	})

	t.Run("rejects out-of-range subjective rating", func(t *testing.T) {
		_, err := svc.SubmitAssessment(ctx, AssessmentInput{Date: date, SubjectiveReadiness: 11})
		if !errors.Is(err, ErrInvalidAssessment) {
			t.Errorf("error = %v, want ErrInvalidAssessment for subjective rating 11", err)
		}
	})

	t.Run("rejects a missing date", func(t *testing.T) {
		_, err := svc.SubmitAssessment(ctx, AssessmentInput{SubjectiveReadiness: 7})
		if !errors.Is(err, ErrInvalidAssessment) {
			t.Errorf("error = %v, want ErrInvalidAssessment without a date", err)
		}
	})

	t.Run("single HRV sample leaves std undefined", func(t *testing.T) {
		if _, err := svc.SubmitAssessment(ctx, AssessmentInput{
			Date:                date,
			SubjectiveReadiness: 7,
			HRVReading:          ptr.Ref(62.0),
		}); err != nil {
			t.Fatalf("submit assessment: %v", err)
		}
		baselines, err := svc.Baselines(ctx)
		if err != nil {
			t.Fatalf("get baselines: %v", err)
		}
		if baselines.HRV.Mean == nil || *baselines.HRV.Mean != 62.0 {
			t.Errorf("avg HRV = %v, want 62", baselines.HRV.Mean)
		}
		if baselines.HRV.Std != nil {
			t.Errorf("std HRV = %v, want undefined with one sample", *baselines.HRV.Std)
		}
		if baselines.HRV.SampleCount != 1 {
			t.Errorf("HRV sample count = %d, want 1", baselines.HRV.SampleCount)
		}
	})

	t.Run("second sample defines std and bumps version", func(t *testing.T) {
		before, err := svc.Baselines(ctx)
		if err != nil {
			t.Fatalf("get baselines: %v", err)
		}
		if _, err = svc.SubmitAssessment(ctx, AssessmentInput{
			Date:                date.AddDate(0, 0, 1),
			SubjectiveReadiness: 6,
			HRVReading:          ptr.Ref(58.0),
		}); err != nil {
			t.Fatalf("submit assessment: %v", err)
		}
		after, err := svc.Baselines(ctx)
		if err != nil {
			t.Fatalf("get baselines: %v", err)
		}
		if after.Version <= before.Version {
			t.Errorf("version did not bump: before %d, after %d", before.Version, after.Version)
		}
		if after.HRV.SampleCount != 2 {
			t.Errorf("HRV sample count = %d, want 2", after.HRV.SampleCount)
		}
		if after.HRV.Std == nil {
			t.Fatal("expected std HRV to be defined with two samples")
		}
		// Bessel-corrected std of {62, 58} is sqrt(8) with mean 60.
		if math.Abs(*after.HRV.Mean-60) > 1e-9 || math.Abs(*after.HRV.Std-math.Sqrt(8)) > 1e-9 {
			t.Errorf("HRV baseline = mean %v std %v, want mean 60 std %v",
				*after.HRV.Mean, *after.HRV.Std, math.Sqrt(8))
		}
	})
}

func TestService_EvaluateDayOf(t *testing.T) {
	t.Parallel()
	const planID = 1
	// The evaluator expires pending recommendations against the wall clock,
	// so these cases run on today's date.
	date := time.Now().UTC().Truncate(24 * time.Hour)

	plan := func(t *testing.T, svc *Service, ctx context.Context, categories ...Category) []SuggestedWorkout {
		t.Helper()
		var workouts []SuggestedWorkout
		for i, category := range categories {
			workout, err := svc.AddSuggestedWorkout(ctx, SuggestedWorkout{
				PlanID:   planID,
				Date:     date,
				Name:     string(category) + " session",
				Category: category,
			})
			if err != nil {
				t.Fatalf("add workout %d: %v", i, err)
			}
			workouts = append(workouts, workout)
		}
		return workouts
	}

	t.Run("high readiness passes workouts through unchanged", func(t *testing.T) {
		t.Parallel()
		svc, ctx := newTestService(t)
		planned := plan(t, svc, ctx, CategoryStrength, CategoryCardio)
		if _, err := svc.SubmitAssessment(ctx, AssessmentInput{Date: date, SubjectiveReadiness: 10}); err != nil {
			t.Fatalf("submit assessment: %v", err)
		}

		evaluation, err := svc.EvaluateDayOf(ctx, planID, date)
		if err != nil {
			t.Fatalf("evaluate: %v", err)
		}
		if evaluation.HasRecommendation {
			t.Errorf("expected no recommendation, got %+v", evaluation.Recommendation)
		}
		if len(evaluation.Workouts) != len(planned) {
			t.Fatalf("got %d workouts, want %d", len(evaluation.Workouts), len(planned))
		}
		for i, workout := range evaluation.Workouts {
			if workout != planned[i] {
				t.Errorf("workout %d = %+v, want unchanged %+v", i, workout, planned[i])
			}
		}
	})

	t.Run("no readiness data means no recommendation", func(t *testing.T) {
		t.Parallel()
		svc, ctx := newTestService(t)
		plan(t, svc, ctx, CategoryStrength)
		evaluation, err := svc.EvaluateDayOf(ctx, planID, date)
		if err != nil {
			t.Fatalf("evaluate: %v", err)
		}
		if evaluation.HasRecommendation {
			t.Error("expected no recommendation without readiness data")
		}
	})

	t.Run("disabled setting is a passthrough", func(t *testing.T) {
		t.Parallel()
		svc, ctx := newTestService(t)
		plan(t, svc, ctx, CategoryStrength)
		if err := svc.SaveSettings(ctx, Settings{AutoAdjustEnabled: false, ReadinessThreshold: 50}); err != nil {
			t.Fatalf("save settings: %v", err)
		}
		if _, err := svc.SubmitAssessment(ctx, AssessmentInput{Date: date, SubjectiveReadiness: 1}); err != nil {
			t.Fatalf("submit assessment: %v", err)
		}
		evaluation, err := svc.EvaluateDayOf(ctx, planID, date)
		if err != nil {
			t.Fatalf("evaluate: %v", err)
		}
		if evaluation.HasRecommendation {
			t.Error("expected no recommendation with auto-adjust disabled")
		}
	})

	t.Run("low readiness creates an idempotent recommendation", func(t *testing.T) {
		t.Parallel()
		svc, ctx := newTestService(t)
		workouts := plan(t, svc, ctx, CategoryCardio, CategoryStrength)
		assessment, err := svc.SubmitAssessment(ctx, AssessmentInput{
			Date:                date,
			SubjectiveReadiness: 2,
			SleepHours:          ptr.Ref(5.0),
		})
		if err != nil {
			t.Fatalf("submit assessment: %v", err)
		}
		if assessment.CalculatedScore >= 50 {
			t.Fatalf("test premise broken: score %v not below threshold", assessment.CalculatedScore)
		}

		evaluation, err := svc.EvaluateDayOf(ctx, planID, date)
		if err != nil {
			t.Fatalf("evaluate: %v", err)
		}
		if !evaluation.HasRecommendation || evaluation.Recommendation == nil {
			t.Fatal("expected a recommendation for low readiness")
		}
		rec := evaluation.Recommendation
		if rec.Status != StatusPending {
			t.Errorf("status = %v, want pending", rec.Status)
		}
		if rec.ApplyTo != ApplyToStrength {
			t.Errorf("apply_to = %v, want strength target when one is planned", rec.ApplyTo)
		}
		if rec.TargetWorkoutID == nil || *rec.TargetWorkoutID != workouts[1].ID {
			t.Errorf("target workout = %v, want strength workout %d", rec.TargetWorkoutID, workouts[1].ID)
		}
		if rec.AdjustmentFactor != assessment.AdjustmentFactor {
			t.Errorf("adjustment factor = %v, want scorer output %v", rec.AdjustmentFactor, assessment.AdjustmentFactor)
		}
		if rec.Priority != priority(assessment.CalculatedScore) {
			t.Errorf("priority = %d, want %d for score %v",
				rec.Priority, priority(assessment.CalculatedScore), assessment.CalculatedScore)
		}
		// Subjective, sleep and TSB were available: 0.5 + 3*0.125.
		if math.Abs(rec.ConfidenceScore-0.875) > 1e-9 {
			t.Errorf("confidence = %v, want 0.875", rec.ConfidenceScore)
		}
		if !rec.ExpiresAt.Equal(date.AddDate(0, 0, 1)) {
			t.Errorf("expires_at = %v, want end of day %v", rec.ExpiresAt, date.AddDate(0, 0, 1))
		}
		for _, want := range []string{"below your threshold", "2/10", "5.0 hours"} {
			if !strings.Contains(rec.Reasoning, want) {
				t.Errorf("reasoning %q does not mention %q", rec.Reasoning, want)
			}
		}

		again, err := svc.EvaluateDayOf(ctx, planID, date)
		if err != nil {
			t.Fatalf("re-evaluate: %v", err)
		}
		if !again.HasRecommendation || again.Recommendation.ID != rec.ID {
			t.Errorf("re-evaluation returned %+v, want existing recommendation id %d", again.Recommendation, rec.ID)
		}
	})

	t.Run("re-evaluating a past date reuses its recommendation", func(t *testing.T) {
		t.Parallel()
		svc, ctx := newTestService(t)
		yesterday := date.AddDate(0, 0, -1)
		if _, err := svc.AddSuggestedWorkout(ctx, SuggestedWorkout{
			PlanID:   planID,
			Date:     yesterday,
			Name:     "strength session",
			Category: CategoryStrength,
		}); err != nil {
			t.Fatalf("add workout: %v", err)
		}
		if _, err := svc.SubmitAssessment(ctx, AssessmentInput{Date: yesterday, SubjectiveReadiness: 2}); err != nil {
			t.Fatalf("submit assessment: %v", err)
		}

		// Yesterday's recommendation already has its expiry behind the wall
		// clock; the expiry sweep must not cannibalize the date under
		// evaluation, or every re-evaluation would mint a fresh row.
		first, err := svc.EvaluateDayOf(ctx, planID, yesterday)
		if err != nil {
			t.Fatalf("evaluate: %v", err)
		}
		if !first.HasRecommendation || first.Recommendation == nil {
			t.Fatal("expected a recommendation for low readiness")
		}
		second, err := svc.EvaluateDayOf(ctx, planID, yesterday)
		if err != nil {
			t.Fatalf("re-evaluate: %v", err)
		}
		if !second.HasRecommendation || second.Recommendation.ID != first.Recommendation.ID {
			t.Errorf("re-evaluation returned %+v, want existing recommendation id %d",
				second.Recommendation, first.Recommendation.ID)
		}
		if second.Recommendation.Status != StatusPending {
			t.Errorf("status = %v, want pending", second.Recommendation.Status)
		}
	})

	t.Run("dismissing a recommendation clears the pending slot", func(t *testing.T) {
		t.Parallel()
		svc, ctx := newTestService(t)
		plan(t, svc, ctx, CategoryMobility)
		if _, err := svc.SubmitAssessment(ctx, AssessmentInput{Date: date, SubjectiveReadiness: 2}); err != nil {
			t.Fatalf("submit assessment: %v", err)
		}
		evaluation, err := svc.EvaluateDayOf(ctx, planID, date)
		if err != nil {
			t.Fatalf("evaluate: %v", err)
		}
		if evaluation.Recommendation.ApplyTo != ApplyToAll {
			t.Errorf("apply_to = %v, want all without strength workouts", evaluation.Recommendation.ApplyTo)
		}
		if err = svc.DismissRecommendation(ctx, evaluation.Recommendation.ID); err != nil {
			t.Fatalf("dismiss: %v", err)
		}
		if err = svc.DismissRecommendation(ctx, evaluation.Recommendation.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("second dismiss error = %v, want ErrNotFound", err)
		}
	})
}
