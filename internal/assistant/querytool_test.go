package assistant

import (
	"context"
	"database/sql"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
	_ "github.com/mattn/go-sqlite3"
)

func setupQueryToolDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		if closeErr := db.Close(); closeErr != nil {
			t.Errorf("failed to close database: %v", closeErr)
		}
	})

	schema := `
		CREATE TABLE daily_loads (
			user_id INTEGER NOT NULL,
			date TEXT NOT NULL,
			training_load REAL NOT NULL,
			PRIMARY KEY (user_id, date)
		);

		INSERT INTO daily_loads (user_id, date, training_load) VALUES
			(1, '2026-08-25', 320.0),
			(1, '2026-08-26', 150.0),
			(1, '2026-08-27', 0.0),
			(2, '2026-08-25', 410.0);
	`
	if _, schemaErr := db.Exec(schema); schemaErr != nil {
		t.Fatalf("failed to create test schema: %v", schemaErr)
	}
	return db
}

func TestSecureQueryTool_Execute(t *testing.T) {
	db := setupQueryToolDB(t)
	tool := newSecureQueryTool(db, slog.Default())
	ctx := context.Background()

	result, err := tool.execute(ctx, "SELECT date, training_load FROM daily_loads WHERE user_id = 1 ORDER BY date")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	wantColumns := []string{"date", "training_load"}
	if diff := cmp.Diff(wantColumns, result.Columns); diff != "" {
		t.Errorf("columns mismatch (-want +got):\n%s", diff)
	}
	if result.RowCount != 3 {
		t.Fatalf("expected 3 rows, got %d", result.RowCount)
	}

	wantFirst := []any{"2026-08-25", 320.0}
	if diff := cmp.Diff(wantFirst, result.Rows[0]); diff != "" {
		t.Errorf("first row mismatch (-want +got):\n%s", diff)
	}
}

func TestSecureQueryTool_Execute_CTE(t *testing.T) {
	db := setupQueryToolDB(t)
	tool := newSecureQueryTool(db, slog.Default())
	ctx := context.Background()

	query := `
		WITH totals AS (
			SELECT user_id, SUM(training_load) AS total FROM daily_loads GROUP BY user_id
		)
		SELECT user_id, total FROM totals ORDER BY user_id
	`
	result, err := tool.execute(ctx, query)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.RowCount != 2 {
		t.Errorf("expected 2 rows, got %d", result.RowCount)
	}
}

func TestValidateQuery(t *testing.T) {
	allowed := []string{
		"SELECT * FROM daily_loads",
		"select date from daily_loads where user_id = 1",
		"WITH t AS (SELECT 1 AS n) SELECT n FROM t",
	}
	for _, query := range allowed {
		t.Run(query, func(t *testing.T) {
			if err := validateQuery(query); err != nil {
				t.Errorf("expected query to be allowed, got error: %v", err)
			}
		})
	}

	forbidden := []struct {
		query string
		desc  string
	}{
		{"INSERT INTO daily_loads (user_id, date, training_load) VALUES (1, '2026-01-01', 100)", "INSERT statement"},
		{"UPDATE daily_loads SET training_load = 0", "UPDATE statement"},
		{"DELETE FROM daily_loads", "DELETE statement"},
		{"DROP TABLE daily_loads", "DROP statement"},
		{"ATTACH DATABASE 'other.db' AS other", "ATTACH DATABASE"},
		{"SELECT * FROM daily_loads; PRAGMA journal_mode", "PRAGMA statement"},
		{"SELECT token FROM sessions", "sessions table"},
		{"SELECT sql FROM sqlite_schema", "sqlite_schema"},
		{"SELECT sql FROM sqlite_master", "sqlite_master"},
		{"", "empty query"},
		{"   ", "whitespace only query"},
	}
	for _, tc := range forbidden {
		t.Run(tc.desc, func(t *testing.T) {
			if err := validateQuery(tc.query); err == nil {
				t.Errorf("expected query to be forbidden: %s", tc.query)
			}
		})
	}
}

func TestSecureQueryTool_WriteBlockedAtExecution(t *testing.T) {
	db := setupQueryToolDB(t)
	tool := newSecureQueryTool(db, slog.Default())
	ctx := context.Background()

	// Passes the prefix check but must be rejected by the read-only
	// transaction.
	query := "WITH doomed AS (SELECT 1) DELETE FROM daily_loads"
	if _, err := tool.execute(ctx, query); err == nil {
		t.Fatal("expected write inside CTE to fail")
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM daily_loads").Scan(&count); err != nil {
		t.Fatalf("failed to count rows: %v", err)
	}
	if count != 4 {
		t.Errorf("expected table untouched with 4 rows, got %d", count)
	}
}

func TestSecureQueryTool_RowLimit(t *testing.T) {
	db := setupQueryToolDB(t)
	tool := newSecureQueryTool(db, slog.Default())
	tool.maxRowsReturned = 2
	ctx := context.Background()

	result, err := tool.execute(ctx, "SELECT * FROM daily_loads")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.RowCount != 2 {
		t.Errorf("expected row count limited to 2, got %d", result.RowCount)
	}
	if len(result.Rows) != 2 {
		t.Errorf("expected 2 rows in result, got %d", len(result.Rows))
	}
}
