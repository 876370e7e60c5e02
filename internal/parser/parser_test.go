package parser_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mizuha/fragplan/internal/model"
	"github.com/mizuha/fragplan/internal/parser"
	"github.com/mizuha/fragplan/test"
)

func TestParseTreeSample(t *testing.T) {
	result := test.ParseSample(t, "samples/tree_simple.txt")

	require.Equal(t, model.FormatTree, result.Format)
	require.Equal(t, []int{0, 1}, result.Fragments)
	require.Empty(t, result.Warnings)
	require.Len(t, result.Nodes, 4)

	root := result.Nodes[0]
	require.Equal(t, "04", root.IDsRaw)
	require.Equal(t, "4", root.NodeID)
	require.Equal(t, "VEXCHANGE", root.Operator)
	require.Equal(t, 0, root.Depth)
	require.NotNil(t, root.FragmentID)
	require.Equal(t, 0, *root.FragmentID)
	require.Equal(t, "2,874", root.Cardinality)

	for i, wantDepth := range []int{0, 1, 2, 3} {
		require.Equal(t, wantDepth, result.Nodes[i].Depth, "node %d", i)
	}

	scan := result.Nodes[3]
	require.Equal(t, "VOlapScanNode", scan.Operator)
	require.Equal(t, 1, *scan.FragmentID)
	require.Equal(t, "sales(sales_agg_mv)", scan.Table)
	require.Equal(t, "`dt` >= '2024-01-01'", scan.Predicates)
	require.Equal(t, "963", scan.Cardinality)

	v, ok := scan.Attrs.Lookup("partitions")
	require.True(t, ok)
	require.Equal(t, "1/3", v)
	v, ok = scan.Attrs.Lookup("partitionList")
	require.True(t, ok)
	require.Equal(t, "p202401", v)
}

func TestParsePlanSample(t *testing.T) {
	result := test.ParseSample(t, "samples/plan_fragments.txt")

	require.Equal(t, model.FormatPlan, result.Format)
	require.Equal(t, []int{0, 1, 2, 3}, result.Fragments)
	require.Len(t, result.Nodes, 15)

	header := result.Nodes[0]
	require.True(t, header.IsFragmentHeader())
	require.Equal(t, "PLAN FRAGMENT 0", header.Operator)
	v, ok := header.Attrs.Lookup("PARTITION")
	require.True(t, ok)
	require.Equal(t, "UNPARTITIONED", v)

	byOperator := func(op string) *model.PlanNode {
		for _, n := range result.Nodes {
			if n.Operator == op {
				return n
			}
		}
		t.Fatalf("no node with operator %q", op)
		return nil
	}

	join := byOperator("VHASH JOIN")
	require.Equal(t, 2, *join.FragmentID)
	require.Equal(t, 1, join.Depth)
	require.Equal(t, "1,000,000", join.Cardinality)
	v, ok = join.Attrs.Lookup("runtime filters")
	require.True(t, ok)
	require.Contains(t, v, "RF000")

	// The broadcast side is indented one pipe plus four dashes deeper.
	var broadcast *model.PlanNode
	for _, n := range result.Nodes {
		if n.NodeID == "1" && n.Operator == "VEXCHANGE" {
			broadcast = n
		}
	}
	require.NotNil(t, broadcast)
	require.Equal(t, 3, broadcast.Depth)

	sink := result.Nodes[1]
	require.Equal(t, "RESULT SINK", sink.Operator)
	require.Equal(t, 1, sink.Depth)
	require.Equal(t, 0, *sink.FragmentID)

	var scan *model.PlanNode
	for _, n := range result.Nodes {
		if n.Table == "orders(orders)" {
			scan = n
		}
	}
	require.NotNil(t, scan)
	require.Equal(t, "`o_orderdate` >= '2024-01-01'", scan.Predicates)
	require.Equal(t, "1000000", scan.Cardinality)
	v, ok = scan.Attrs.Lookup("tabletList")
	require.True(t, ok)
	require.Equal(t, "10031,10033,10035", v)
	v, ok = scan.Attrs.Lookup("tablets")
	require.True(t, ok)
	require.Equal(t, "10/120", v)
}

func TestParseTreeMinimalPair(t *testing.T) {
	raw := "[00]:[0: ResultSink]||[Fragment: 0]||VRESULT SINK||\n--[00]:[0: VUNION]||[Fragment: 0]||\n"
	result, err := parser.Parse(raw)
	require.NoError(t, err)

	require.Equal(t, model.FormatTree, result.Format)
	require.Equal(t, []int{0}, result.Fragments)
	require.Len(t, result.Nodes, 2)
	require.Equal(t, "ResultSink", result.Nodes[0].Operator)
	require.Equal(t, 0, result.Nodes[0].Depth)
	require.Contains(t, result.Nodes[0].Segments, "VRESULT SINK")
	require.Equal(t, "VUNION", result.Nodes[1].Operator)
	require.Equal(t, 1, result.Nodes[1].Depth)
}

func TestParseBoxedSample(t *testing.T) {
	result := test.ParseSample(t, "samples/boxed_tree.txt")

	require.Equal(t, model.FormatTree, result.Format)
	require.Len(t, result.Nodes, 2)
	require.Len(t, result.Warnings, 1)
	require.Contains(t, result.Warnings[0], "boxed")
	require.Equal(t, "VOlapScanNode", result.Nodes[1].Operator)
	require.Equal(t, 1, result.Nodes[1].Depth)
}

func TestParseRejectsNonPlanText(t *testing.T) {
	_, err := parser.Parse("hello")
	require.Error(t, err)
	require.Contains(t, err.Error(), "No EXPLAIN TREE nodes found in input.")
	require.Contains(t, err.Error(), "No EXPLAIN PLAN nodes found in input.")
}

func TestParseIsDeterministic(t *testing.T) {
	raw := test.LoadSample(t, "samples/plan_fragments.txt")
	first, err := parser.Parse(raw)
	require.NoError(t, err)
	second, err := parser.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestSelectNodesByFragment(t *testing.T) {
	result := test.ParseSample(t, "samples/tree_simple.txt")

	require.Same(t, result.Nodes[0], parser.SelectNodesByFragment(result.Nodes, nil)[0])

	one := 1
	selected := parser.SelectNodesByFragment(result.Nodes, &one)
	require.Len(t, selected, 3)
	for i, wantDepth := range []int{0, 1, 2} {
		require.Equal(t, wantDepth, selected[i].Depth)
	}
	// Depth is renormalized on clones; the source nodes keep the
	// whole-document depth.
	require.Equal(t, 3, result.Nodes[3].Depth)

	zero := 0
	selected = parser.SelectNodesByFragment(result.Nodes, &zero)
	require.Len(t, selected, 1)
	require.Equal(t, 0, selected[0].Depth)

	missing := 9
	require.Nil(t, parser.SelectNodesByFragment(result.Nodes, &missing))
}
