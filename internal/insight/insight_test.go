package insight_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mizuha/fragplan/internal/config"
	"github.com/mizuha/fragplan/internal/graph"
	"github.com/mizuha/fragplan/internal/insight"
	"github.com/mizuha/fragplan/internal/signal"
	"github.com/mizuha/fragplan/test"
)

func resetConfig(t *testing.T) {
	t.Helper()
	config.Use(config.Default())
	t.Cleanup(func() { config.Use(config.Default()) })
}

func TestBuildMessagesPlanSample(t *testing.T) {
	resetConfig(t)
	result := test.ParseSample(t, "samples/plan_fragments.txt")
	messages := insight.BuildMessages(graph.Build(result), signal.Analyze(result))

	require.Len(t, messages, 2)

	require.Equal(t, insight.SeverityCritical, messages[0].Severity)
	require.NotNil(t, messages[0].FragmentID)
	require.Equal(t, 3, *messages[0].FragmentID)
	require.Contains(t, messages[0].Text, "push predicates")

	require.Equal(t, insight.SeverityInfo, messages[1].Severity)
	require.Equal(t, 3, *messages[1].FragmentID)
	require.Contains(t, messages[1].Text, "every partition")
}

func TestBuildMessagesTreeSample(t *testing.T) {
	resetConfig(t)
	result := test.ParseSample(t, "samples/tree_simple.txt")
	messages := insight.BuildMessages(graph.Build(result), signal.Analyze(result))

	require.Len(t, messages, 2)

	require.Equal(t, insight.SeverityInfo, messages[0].Severity)
	require.Contains(t, messages[0].Text, "rewrite signal")
	require.Equal(t, 1, *messages[0].FragmentID)

	require.Equal(t, insight.SeverityWarning, messages[1].Severity)
	require.Contains(t, messages[1].Text, "sales_sum_mv")
	require.Contains(t, messages[1].Text, "cost too high")
	require.Nil(t, messages[1].FragmentID)
}

func TestBuildMessagesCap(t *testing.T) {
	resetConfig(t)
	cfg := config.Default()
	cfg.Insights.MaxMessages = 1
	config.Use(cfg)

	result := test.ParseSample(t, "samples/plan_fragments.txt")
	messages := insight.BuildMessages(graph.Build(result), signal.Analyze(result))
	require.Len(t, messages, 1)
}

func TestBuildMessagesNilInputs(t *testing.T) {
	require.Nil(t, insight.BuildMessages(nil, nil))
}
