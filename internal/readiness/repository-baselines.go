package readiness

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// getBaselines retrieves the user's baselines. Returns ErrNotFound when no
// baselines have been computed yet.
func (r *sqliteRepository) getBaselines(ctx context.Context, userID int) (Baselines, error) {
	var (
		b              Baselines
		lastUpdatedStr string
		grip           = &b.GripStrength
		jump           = &b.VerticalJump
		hrv            = &b.HRV
		restingHR      = &b.RestingHR
		sleep          = &b.SleepHours
	)
	err := r.db.ReadOnly.QueryRowContext(ctx, `
		SELECT avg_grip_strength, std_grip_strength, grip_strength_sample_count,
		       avg_vertical_jump, std_vertical_jump, vertical_jump_sample_count,
		       avg_hrv, std_hrv, hrv_sample_count,
		       avg_resting_hr, std_resting_hr, resting_hr_sample_count,
		       avg_sleep_hours, std_sleep_hours, sleep_hours_sample_count,
		       version, last_updated
		FROM readiness_baselines
		WHERE user_id = ?`, userID).Scan(
		&grip.Mean, &grip.Std, &grip.SampleCount,
		&jump.Mean, &jump.Std, &jump.SampleCount,
		&hrv.Mean, &hrv.Std, &hrv.SampleCount,
		&restingHR.Mean, &restingHR.Std, &restingHR.SampleCount,
		&sleep.Mean, &sleep.Std, &sleep.SampleCount,
		&b.Version, &lastUpdatedStr,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Baselines{}, ErrNotFound
	}
	if err != nil {
		return Baselines{}, fmt.Errorf("query readiness baselines: %w", err)
	}
	if b.LastUpdated, err = time.Parse(timestampFormat, lastUpdatedStr); err != nil {
		return Baselines{}, fmt.Errorf("parse baselines last_updated: %w", err)
	}
	return b, nil
}

// saveBaselines upserts the user's baselines inside a transaction, bumping
// the version so concurrent recomputes cannot silently lose an update.
func (r *sqliteRepository) saveBaselines(ctx context.Context, userID int, b Baselines) error {
	tx, err := r.db.ReadWrite.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func(tx *sql.Tx) {
		err = tx.Rollback()
		if err != nil && !errors.Is(err, sql.ErrTxDone) {
			r.logger.LogAttrs(ctx, slog.LevelError, "rollback transaction", slog.Any("error", err))
		}
	}(tx)

	var currentVersion int
	err = tx.QueryRowContext(ctx,
		"SELECT version FROM readiness_baselines WHERE user_id = ?", userID).Scan(&currentVersion)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("query baselines version: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO readiness_baselines (
			user_id,
			avg_grip_strength, std_grip_strength, grip_strength_sample_count,
			avg_vertical_jump, std_vertical_jump, vertical_jump_sample_count,
			avg_hrv, std_hrv, hrv_sample_count,
			avg_resting_hr, std_resting_hr, resting_hr_sample_count,
			avg_sleep_hours, std_sleep_hours, sleep_hours_sample_count,
			version, last_updated
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			avg_grip_strength = excluded.avg_grip_strength,
			std_grip_strength = excluded.std_grip_strength,
			grip_strength_sample_count = excluded.grip_strength_sample_count,
			avg_vertical_jump = excluded.avg_vertical_jump,
			std_vertical_jump = excluded.std_vertical_jump,
			vertical_jump_sample_count = excluded.vertical_jump_sample_count,
			avg_hrv = excluded.avg_hrv,
			std_hrv = excluded.std_hrv,
			hrv_sample_count = excluded.hrv_sample_count,
			avg_resting_hr = excluded.avg_resting_hr,
			std_resting_hr = excluded.std_resting_hr,
			resting_hr_sample_count = excluded.resting_hr_sample_count,
			avg_sleep_hours = excluded.avg_sleep_hours,
			std_sleep_hours = excluded.std_sleep_hours,
			sleep_hours_sample_count = excluded.sleep_hours_sample_count,
			version = excluded.version,
			last_updated = excluded.last_updated
		WHERE readiness_baselines.version = ?`,
		userID,
		b.GripStrength.Mean, b.GripStrength.Std, b.GripStrength.SampleCount,
		b.VerticalJump.Mean, b.VerticalJump.Std, b.VerticalJump.SampleCount,
		b.HRV.Mean, b.HRV.Std, b.HRV.SampleCount,
		b.RestingHR.Mean, b.RestingHR.Std, b.RestingHR.SampleCount,
		b.SleepHours.Mean, b.SleepHours.Std, b.SleepHours.SampleCount,
		currentVersion+1,
		time.Now().UTC().Format(timestampFormat),
		currentVersion,
	)
	if err != nil {
		return fmt.Errorf("upsert readiness baselines: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
