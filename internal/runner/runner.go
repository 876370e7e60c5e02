package runner

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

// Options customises how EXPLAIN is executed.
type Options struct {
	Timeout time.Duration
	// Verbose asks the engine for the more detailed dump variant.
	Verbose bool
	Logger  *zap.Logger
}

// Run executes EXPLAIN for the provided statement against a
// MySQL-protocol engine endpoint and reassembles the multi-row
// "Explain String" result into one dump text, ready for parsing.
func Run(ctx context.Context, dsn, sqlStatement string, opts Options) (string, error) {
	if strings.TrimSpace(dsn) == "" {
		return "", fmt.Errorf("runner: empty DSN")
	}
	query := strings.TrimSpace(sqlStatement)
	if query == "" {
		return "", fmt.Errorf("runner: empty sql statement")
	}
	if _, err := mysql.ParseDSN(dsn); err != nil {
		return "", fmt.Errorf("runner: invalid DSN: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	explainSQL := "EXPLAIN " + query
	if opts.Verbose {
		explainSQL = "EXPLAIN VERBOSE " + query
	}
	if strings.HasPrefix(strings.ToUpper(query), "EXPLAIN") {
		explainSQL = query
	}

	var cancel context.CancelFunc
	if opts.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return "", fmt.Errorf("runner: open: %w", err)
	}
	defer func() {
		_ = db.Close()
	}()

	started := time.Now()
	rows, err := db.QueryContext(ctx, explainSQL)
	if err != nil {
		return "", fmt.Errorf("runner: query: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	columns, err := rows.Columns()
	if err != nil {
		return "", fmt.Errorf("runner: columns: %w", err)
	}

	var b strings.Builder
	lines := 0
	for rows.Next() {
		var line sql.NullString
		dest := make([]any, len(columns))
		dest[0] = &line
		for i := 1; i < len(dest); i++ {
			dest[i] = new(sql.RawBytes)
		}
		if err := rows.Scan(dest...); err != nil {
			return "", fmt.Errorf("runner: scan: %w", err)
		}
		b.WriteString(line.String)
		b.WriteString("\n")
		lines++
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("runner: rows: %w", err)
	}

	logger.Debug("explain fetched",
		zap.Int("lines", lines),
		zap.Duration("elapsed", time.Since(started)))
	return b.String(), nil
}
