package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mizuha/fragplan/internal/model"
)

func TestSplitAttrs(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "comma in grouped number stays intact",
			in:   "cardinality=250,000",
			want: []string{"cardinality=250,000"},
		},
		{
			name: "comma before colon attribute splits",
			in:   "TABLE: orders(orders), PREAGGREGATION: ON",
			want: []string{"TABLE: orders(orders)", "PREAGGREGATION: ON"},
		},
		{
			name: "comma in id list stays intact",
			in:   "tabletList=10031,10033,10035",
			want: []string{"tabletList=10031,10033,10035"},
		},
		{
			name: "comma before eq attribute splits",
			in:   "partitions=3/12, tablets=10/120",
			want: []string{"partitions=3/12", "tablets=10/120"},
		},
		{
			name: "mixed list and attributes",
			in:   "tabletList=10031,10033, cardinality=1,000,000",
			want: []string{"tabletList=10031,10033", "cardinality=1,000,000"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, splitAttrs(tc.in))
		})
	}
}

func TestMergeSegment(t *testing.T) {
	attrs := model.AttrMap{}

	require.True(t, mergeSegment(attrs, "cardinality=963"))
	require.Equal(t, "963", attrs["cardinality"])

	require.True(t, mergeSegment(attrs, "EXCHANGE ID: 04"))
	require.Equal(t, "04", attrs["EXCHANGE_ID"])

	require.True(t, mergeSegment(attrs, "group by: `dt`"))
	require.Equal(t, "`dt`", attrs["GROUP_BY"])

	require.False(t, mergeSegment(attrs, "STREAM DATA SINK"))
	require.False(t, mergeSegment(attrs, "update serialize"))
}

func TestMergeSegmentKeepsDifferingValues(t *testing.T) {
	attrs := model.AttrMap{}
	require.True(t, mergeSegment(attrs, "PREDICATES: a = 1"))
	require.True(t, mergeSegment(attrs, "PREDICATES: a = 1"))
	require.True(t, mergeSegment(attrs, "PREDICATES: b = 2"))
	require.Equal(t, "a = 1; b = 2", attrs["PREDICATES"])
}

func TestStripPlanIndent(t *testing.T) {
	pipes, dashes, body := stripPlanIndent("  |----1:VEXCHANGE")
	require.Equal(t, 1, pipes)
	require.Equal(t, 4, dashes)
	require.Equal(t, "1:VEXCHANGE", body)

	pipes, dashes, body = stripPlanIndent("  2:VOlapScanNode")
	require.Zero(t, pipes)
	require.Zero(t, dashes)
	require.Equal(t, "2:VOlapScanNode", body)
}

func TestNormalizeUnwrapsBoxedRendering(t *testing.T) {
	raw := "+------+\n| a    |\n| b    |\n+------+\n"
	text, warnings := Normalize(raw)
	require.Equal(t, "a\nb\n", text)
	require.Len(t, warnings, 1)
}

func TestNormalizeLineEndings(t *testing.T) {
	text, warnings := Normalize("a\r\nb\rc")
	require.Equal(t, "a\nb\nc", text)
	require.Empty(t, warnings)
}
