package readiness

import (
	"context"
	"fmt"
	"time"
)

// createSuggestedWorkout inserts a planned workout and returns it with its id.
func (r *sqliteRepository) createSuggestedWorkout(
	ctx context.Context,
	userID int,
	workout SuggestedWorkout,
) (SuggestedWorkout, error) {
	err := r.db.ReadWrite.QueryRowContext(ctx, `
		INSERT INTO suggested_workouts (user_id, plan_id, date, name, category, planned_intensity)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`,
		userID,
		workout.PlanID,
		workout.Date.Format(dateFormat),
		workout.Name,
		string(workout.Category),
		workout.PlannedIntensity,
	).Scan(&workout.ID)
	if err != nil {
		return SuggestedWorkout{}, fmt.Errorf("insert suggested workout: %w", err)
	}
	return workout, nil
}

// listSuggestedWorkouts retrieves the workouts planned for a user, plan and day.
func (r *sqliteRepository) listSuggestedWorkouts(
	ctx context.Context,
	userID int,
	planID int,
	date time.Time,
) ([]SuggestedWorkout, error) {
	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT id, plan_id, date, name, category, planned_intensity
		FROM suggested_workouts
		WHERE user_id = ? AND plan_id = ? AND date = ?
		ORDER BY id`,
		userID, planID, date.Format(dateFormat))
	if err != nil {
		return nil, fmt.Errorf("query suggested workouts: %w", err)
	}
	defer rows.Close()

	var workouts []SuggestedWorkout
	for rows.Next() {
		var (
			workout  SuggestedWorkout
			dateStr  string
			category string
		)
		if err = rows.Scan(
			&workout.ID,
			&workout.PlanID,
			&dateStr,
			&workout.Name,
			&category,
			&workout.PlannedIntensity,
		); err != nil {
			return nil, fmt.Errorf("scan suggested workout row: %w", err)
		}
		if workout.Date, err = time.Parse(dateFormat, dateStr); err != nil {
			return nil, fmt.Errorf("parse workout date: %w", err)
		}
		workout.Category = Category(category)
		workouts = append(workouts, workout)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate suggested workout rows: %w", err)
	}
	return workouts, nil
}
