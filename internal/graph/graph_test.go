package graph_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mizuha/fragplan/internal/graph"
	"github.com/mizuha/fragplan/internal/parser"
	"github.com/mizuha/fragplan/test"
)

func TestBuildFromPlanSample(t *testing.T) {
	result := test.ParseSample(t, "samples/plan_fragments.txt")
	g := graph.Build(result)

	require.Len(t, g.Nodes, 4)
	require.Len(t, g.Edges, 3)

	wantEdges := []struct {
		from, to int
		ids      []string
	}{
		{1, 0, []string{"7"}},
		{2, 1, []string{"5"}},
		{3, 2, []string{"1"}},
	}
	for i, want := range wantEdges {
		require.Equal(t, want.from, g.Edges[i].From)
		require.Equal(t, want.to, g.Edges[i].To)
		require.Equal(t, want.ids, g.Edges[i].ExchangeIDs)
	}

	// Leaves sit at level zero; each hop downstream adds one.
	for fragID, level := range map[int]int{3: 0, 2: 1, 1: 2, 0: 3} {
		require.Equal(t, level, g.Node(fragID).Level, "fragment %d", fragID)
	}

	frag2 := g.Node(2)
	require.NotNil(t, frag2)
	require.Equal(t, 4, frag2.NodeCount)
	require.Equal(t, 1, frag2.JoinCount)
	require.Equal(t, 1, frag2.ScanCount)
	require.Equal(t, 2, frag2.RuntimeFilterCount)
	require.Equal(t, []string{"orders(orders)"}, frag2.Tables)
	require.NotNil(t, frag2.MaxCardinality)
	require.EqualValues(t, 1_000_000, *frag2.MaxCardinality)
	require.NotNil(t, frag2.HasColocatePlanNode)
	require.False(t, *frag2.HasColocatePlanNode)
	require.Equal(t, []string{"5"}, frag2.ProducerExchangeIDs)
	require.Equal(t, []string{"1"}, frag2.ConsumerExchangeIDs)

	frag0 := g.Node(0)
	require.Equal(t, "UNPARTITIONED", frag0.Partition)
	require.Nil(t, frag0.HasColocatePlanNode)
	require.Equal(t, 2, frag0.NodeCount)
	require.Equal(t, "RESULT SINK", frag0.RootOperator)

	for _, e := range g.Edges {
		require.NotEqual(t, e.From, e.To)
		require.NotEmpty(t, e.ExchangeIDs)
	}
}

func TestBuildFromTreeSample(t *testing.T) {
	result := test.ParseSample(t, "samples/tree_simple.txt")
	g := graph.Build(result)

	require.Len(t, g.Edges, 1)
	require.Equal(t, 1, g.Edges[0].From)
	require.Equal(t, 0, g.Edges[0].To)
	require.Equal(t, []string{"4"}, g.Edges[0].ExchangeIDs)

	frag1 := g.Node(1)
	require.Equal(t, 3, frag1.NodeCount)
	require.Equal(t, 1, frag1.ScanCount)
	require.Equal(t, "VAGGREGATE", frag1.RootOperator)
	require.NotNil(t, frag1.MaxCardinality)
	require.EqualValues(t, 2874, *frag1.MaxCardinality)

	require.Equal(t, 0, g.Node(1).Level)
	require.Equal(t, 1, g.Node(0).Level)
}

// Exchange identifiers are compared numerically, so "9" sorts before
// "10" and zero-padded ids collapse onto their plain form.
func TestBuildSortsExchangeIDsNumerically(t *testing.T) {
	raw := `[09]:[9: VEXCHANGE]||[Fragment: 0]
[10]:[10: VEXCHANGE]||[Fragment: 0]
--[01]:[1: VAGGREGATE]||[Fragment: 1]||STREAM DATA SINK||EXCHANGE ID: 09
--[02]:[2: VAGGREGATE]||[Fragment: 1]||STREAM DATA SINK||EXCHANGE ID: 10
`
	result, err := parser.Parse(raw)
	require.NoError(t, err)

	g := graph.Build(result)
	require.Len(t, g.Edges, 1)
	require.Equal(t, 1, g.Edges[0].From)
	require.Equal(t, 0, g.Edges[0].To)
	require.Equal(t, []string{"9", "10"}, g.Edges[0].ExchangeIDs)
	require.Equal(t, []string{"9", "10"}, g.Node(1).ProducerExchangeIDs)
}
