package readiness

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// getSettings retrieves the user's adjustment settings, falling back to the
// defaults when none have been saved.
func (r *sqliteRepository) getSettings(ctx context.Context, userID int, defaults Settings) (Settings, error) {
	var settings Settings
	err := r.db.ReadOnly.QueryRowContext(ctx, `
		SELECT auto_adjust_enabled, readiness_threshold
		FROM settings
		WHERE user_id = ?`, userID).Scan(
		&settings.AutoAdjustEnabled,
		&settings.ReadinessThreshold,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return defaults, nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("query settings: %w", err)
	}
	return settings, nil
}

// saveSettings saves the user's adjustment settings.
func (r *sqliteRepository) saveSettings(ctx context.Context, userID int, settings Settings) error {
	_, err := r.db.ReadWrite.ExecContext(ctx, `
		INSERT INTO settings (user_id, auto_adjust_enabled, readiness_threshold)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			auto_adjust_enabled = excluded.auto_adjust_enabled,
			readiness_threshold = excluded.readiness_threshold`,
		userID,
		settings.AutoAdjustEnabled,
		settings.ReadinessThreshold,
	)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
