package assistant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
)

// secureQueryTool executes model-authored SQL against the read-only pool with
// defense in depth: a statement blocklist, a QUERY_ONLY transaction, a row
// cap and an execution timeout.
type secureQueryTool struct {
	db               *sql.DB
	maxExecutionTime time.Duration
	maxRowsReturned  int
	logger           *slog.Logger
}

// queryResult is the JSON shape handed back to the model.
type queryResult struct {
	Columns  []string `json:"columns"`
	Rows     [][]any  `json:"rows"`
	RowCount int      `json:"row_count"`
}

func newSecureQueryTool(db *sql.DB, logger *slog.Logger) *secureQueryTool {
	const defaultTimeout = 5 * time.Second
	const defaultMaxRows = 100

	return &secureQueryTool{
		db:               db,
		maxExecutionTime: defaultTimeout,
		maxRowsReturned:  defaultMaxRows,
		logger:           logger,
	}
}

// dangerousPatterns bypass the QUERY_ONLY pragma or reach data the assistant
// must never see, such as session tokens.
var dangerousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bATTACH\s+DATABASE\b`),
	regexp.MustCompile(`(?i)\bPRAGMA\b`),
	regexp.MustCompile(`(?i)\bsessions\b`),
	regexp.MustCompile(`(?i)\bsqlite_schema\b`),
	regexp.MustCompile(`(?i)\bsqlite_master\b`),
}

// execute runs one query with the security constraints applied.
func (t *secureQueryTool) execute(ctx context.Context, query string) (*queryResult, error) {
	if err := validateQuery(query); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, t.maxExecutionTime)
	defer cancel()

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			t.logger.LogAttrs(ctx, slog.LevelError, "rollback query tool transaction",
				slog.Any("error", rollbackErr))
		}
	}()

	// Belt and braces on top of the read-only pool.
	if _, err = tx.ExecContext(ctx, `PRAGMA QUERY_ONLY = TRUE`); err != nil {
		return nil, fmt.Errorf("enable read-only mode: %w", err)
	}

	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			t.logger.LogAttrs(ctx, slog.LevelError, "close query tool rows", slog.Any("error", closeErr))
		}
	}()

	return t.collect(rows)
}

func (t *secureQueryTool) collect(rows *sql.Rows) (*queryResult, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("get columns: %w", err)
	}

	result := &queryResult{Columns: columns}
	for rows.Next() {
		if result.RowCount >= t.maxRowsReturned {
			break
		}
		row, scanErr := scanRow(rows, len(columns))
		if scanErr != nil {
			return nil, scanErr
		}
		result.Rows = append(result.Rows, row)
		result.RowCount++
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return result, nil
}

// scanRow scans a single row and converts byte slices to strings for JSON
// compatibility.
func scanRow(rows *sql.Rows, columnCount int) ([]any, error) {
	values := make([]any, columnCount)
	valuePtrs := make([]any, columnCount)
	for i := range values {
		valuePtrs[i] = &values[i]
	}
	if err := rows.Scan(valuePtrs...); err != nil {
		return nil, fmt.Errorf("scan row: %w", err)
	}
	for i, val := range values {
		if b, ok := val.([]byte); ok {
			values[i] = string(b)
		}
	}
	return values, nil
}

func validateQuery(query string) error {
	cleanQuery := strings.TrimSpace(query)
	if cleanQuery == "" {
		return errors.New("empty query")
	}
	upper := strings.ToUpper(cleanQuery)
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return errors.New("only SELECT queries are allowed")
	}
	for _, pattern := range dangerousPatterns {
		if pattern.MatchString(cleanQuery) {
			return errors.New("query contains restricted operations")
		}
	}
	return nil
}
