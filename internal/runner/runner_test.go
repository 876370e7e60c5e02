package runner_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mizuha/fragplan/internal/runner"
)

func TestRunRejectsEmptyDSN(t *testing.T) {
	_, err := runner.Run(context.Background(), "", "SELECT 1", runner.Options{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "empty DSN")
}

func TestRunRejectsEmptyStatement(t *testing.T) {
	_, err := runner.Run(context.Background(), "root@tcp(127.0.0.1:9030)/db", "  ", runner.Options{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "empty sql statement")
}

func TestRunRejectsMalformedDSN(t *testing.T) {
	_, err := runner.Run(context.Background(), "not a dsn", "SELECT 1", runner.Options{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid DSN")
}
