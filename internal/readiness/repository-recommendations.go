package readiness

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// createRecommendation inserts a recommendation and returns it with its id
// and creation timestamp.
func (r *sqliteRepository) createRecommendation(
	ctx context.Context,
	userID int,
	rec Recommendation,
) (Recommendation, error) {
	var createdAtStr string
	err := r.db.ReadWrite.QueryRowContext(ctx, `
		INSERT INTO intensity_recommendations (
			user_id, plan_id, target_workout_id, date, adjustment_factor,
			apply_to, reasoning, confidence_score, priority, status, expires_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id, created_at`,
		userID,
		rec.PlanID,
		rec.TargetWorkoutID,
		rec.Date.Format(dateFormat),
		rec.AdjustmentFactor,
		string(rec.ApplyTo),
		rec.Reasoning,
		rec.ConfidenceScore,
		rec.Priority,
		string(rec.Status),
		rec.ExpiresAt.UTC().Format(timestampFormat),
	).Scan(&rec.ID, &createdAtStr)
	if err != nil {
		return Recommendation{}, fmt.Errorf("insert intensity recommendation: %w", err)
	}
	if rec.CreatedAt, err = time.Parse(timestampFormat, createdAtStr); err != nil {
		return Recommendation{}, fmt.Errorf("parse recommendation created_at: %w", err)
	}
	return rec, nil
}

// getPendingRecommendation retrieves the pending recommendation for a user,
// plan and day, if any.
func (r *sqliteRepository) getPendingRecommendation(
	ctx context.Context,
	userID int,
	planID int,
	date time.Time,
) (Recommendation, error) {
	row := r.db.ReadOnly.QueryRowContext(ctx, `
		SELECT id, plan_id, target_workout_id, date, adjustment_factor,
		       apply_to, reasoning, confidence_score, priority, status, expires_at, created_at
		FROM intensity_recommendations
		WHERE user_id = ? AND plan_id = ? AND date = ? AND status = 'pending'`,
		userID, planID, date.Format(dateFormat))
	rec, err := scanRecommendation(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return Recommendation{}, ErrNotFound
	}
	if err != nil {
		return Recommendation{}, fmt.Errorf("query pending recommendation: %w", err)
	}
	return rec, nil
}

// getRecommendation retrieves a recommendation by id, scoped to the user.
func (r *sqliteRepository) getRecommendation(ctx context.Context, userID, id int) (Recommendation, error) {
	row := r.db.ReadOnly.QueryRowContext(ctx, `
		SELECT id, plan_id, target_workout_id, date, adjustment_factor,
		       apply_to, reasoning, confidence_score, priority, status, expires_at, created_at
		FROM intensity_recommendations
		WHERE user_id = ? AND id = ?`,
		userID, id)
	rec, err := scanRecommendation(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return Recommendation{}, ErrNotFound
	}
	if err != nil {
		return Recommendation{}, fmt.Errorf("query recommendation: %w", err)
	}
	return rec, nil
}

// setRecommendationStatus transitions a pending recommendation. Returns
// ErrNotFound when the recommendation does not exist or is not pending.
func (r *sqliteRepository) setRecommendationStatus(
	ctx context.Context,
	userID, id int,
	status RecommendationStatus,
) error {
	result, err := r.db.ReadWrite.ExecContext(ctx, `
		UPDATE intensity_recommendations
		SET status = ?
		WHERE user_id = ? AND id = ? AND status = 'pending'`,
		string(status), userID, id)
	if err != nil {
		return fmt.Errorf("update recommendation status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// expirePendingRecommendations marks pending recommendations whose expiry has
// passed as expired. The day under evaluation is exempt so re-evaluating a
// past date reuses its recommendation instead of replacing it.
func (r *sqliteRepository) expirePendingRecommendations(
	ctx context.Context,
	userID int,
	now time.Time,
	keepDate time.Time,
) error {
	_, err := r.db.ReadWrite.ExecContext(ctx, `
		UPDATE intensity_recommendations
		SET status = 'expired'
		WHERE user_id = ? AND status = 'pending' AND expires_at < ? AND date <> ?`,
		userID, now.UTC().Format(timestampFormat), keepDate.Format(dateFormat))
	if err != nil {
		return fmt.Errorf("expire pending recommendations: %w", err)
	}
	return nil
}

func scanRecommendation(scan func(dest ...any) error) (Recommendation, error) {
	var (
		rec          Recommendation
		target       sql.NullInt64
		dateStr      string
		applyTo      string
		status       string
		expiresAtStr string
		createdAtStr string
	)
	err := scan(
		&rec.ID,
		&rec.PlanID,
		&target,
		&dateStr,
		&rec.AdjustmentFactor,
		&applyTo,
		&rec.Reasoning,
		&rec.ConfidenceScore,
		&rec.Priority,
		&status,
		&expiresAtStr,
		&createdAtStr,
	)
	if err != nil {
		return Recommendation{}, err
	}
	if target.Valid {
		id := int(target.Int64)
		rec.TargetWorkoutID = &id
	}
	if rec.Date, err = time.Parse(dateFormat, dateStr); err != nil {
		return Recommendation{}, fmt.Errorf("parse recommendation date: %w", err)
	}
	if rec.ExpiresAt, err = time.Parse(timestampFormat, expiresAtStr); err != nil {
		return Recommendation{}, fmt.Errorf("parse recommendation expires_at: %w", err)
	}
	if rec.CreatedAt, err = time.Parse(timestampFormat, createdAtStr); err != nil {
		return Recommendation{}, fmt.Errorf("parse recommendation created_at: %w", err)
	}
	rec.ApplyTo = ApplyTo(applyTo)
	rec.Status = RecommendationStatus(status)
	return rec, nil
}
