package insight

import (
	"fmt"
	"sort"

	"github.com/mizuha/fragplan/internal/config"
	"github.com/mizuha/fragplan/internal/graph"
	"github.com/mizuha/fragplan/internal/signal"
)

// Severity expresses the urgency of an insight message.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Message is one advisory observation about a plan. Signals are
// heuristic, so messages point at things worth checking, never at
// confirmed problems.
type Message struct {
	Severity   Severity `json:"severity"`
	Text       string   `json:"text"`
	FragmentID *int     `json:"fragmentId"`
}

// BuildMessages derives advisory messages from the fragment graph and
// the signal analysis.
func BuildMessages(g *graph.Graph, analysis *signal.Analysis) []Message {
	if g == nil || analysis == nil {
		return nil
	}
	cfg := config.Active().Insights

	var out []Message
	out = append(out, pushdownMessages(analysis, cfg)...)
	out = append(out, pruneMessages(analysis)...)
	out = append(out, rewriteMessages(analysis)...)
	out = append(out, materializationMessages(analysis)...)
	out = append(out, cardinalityMessages(g, cfg)...)
	out = append(out, runtimeFilterMessages(g)...)

	if cfg.MaxMessages > 0 && len(out) > cfg.MaxMessages {
		out = out[:cfg.MaxMessages]
	}
	return out
}

func pushdownMessages(analysis *signal.Analysis, cfg config.InsightConfig) []Message {
	var msgs []Message
	for _, fragID := range sortedFragmentIDs(analysis) {
		fs := analysis.Fragments[fragID]
		if fs.ScanNodes == 0 {
			continue
		}
		ratio := float64(fs.PushdownNodes) / float64(fs.ScanNodes)
		if ratio >= cfg.PushdownWarnRatio {
			continue
		}
		severity := SeverityWarning
		if fs.PushdownNodes == 0 {
			severity = SeverityCritical
		}
		id := fragID
		msgs = append(msgs, Message{
			Severity:   severity,
			Text:       fmt.Sprintf("Fragment %d: only %d of %d scans push predicates to storage; check filter expressions", fragID, fs.PushdownNodes, fs.ScanNodes),
			FragmentID: &id,
		})
	}
	return msgs
}

func pruneMessages(analysis *signal.Analysis) []Message {
	var msgs []Message
	for _, fragID := range sortedFragmentIDs(analysis) {
		fs := analysis.Fragments[fragID]
		if fs.ScanNodes == 0 || fs.PruneNodes > 0 {
			continue
		}
		id := fragID
		msgs = append(msgs, Message{
			Severity:   SeverityInfo,
			Text:       fmt.Sprintf("Fragment %d: scans read every partition and tablet; consider filtering on the partition key", fragID),
			FragmentID: &id,
		})
	}
	return msgs
}

func rewriteMessages(analysis *signal.Analysis) []Message {
	var msgs []Message
	for _, fragID := range sortedFragmentIDs(analysis) {
		fs := analysis.Fragments[fragID]
		if fs.RewriteNodes == 0 {
			continue
		}
		id := fragID
		msgs = append(msgs, Message{
			Severity:   SeverityInfo,
			Text:       fmt.Sprintf("Fragment %d: %d scan(s) carry a materialized-view rewrite signal", fragID, fs.RewriteNodes),
			FragmentID: &id,
		})
	}
	return msgs
}

func materializationMessages(analysis *signal.Analysis) []Message {
	mat := analysis.Materialization
	if mat == nil {
		return nil
	}
	var msgs []Message
	for _, failure := range mat.Failures {
		text := fmt.Sprintf("Materialization %s was rejected", failure.Name)
		if failure.Reason != "" {
			text += ": " + failure.Reason
		}
		msgs = append(msgs, Message{Severity: SeverityWarning, Text: text})
	}
	return msgs
}

func cardinalityMessages(g *graph.Graph, cfg config.InsightConfig) []Message {
	var msgs []Message
	for _, fn := range g.Nodes {
		if fn.MaxCardinality == nil || *fn.MaxCardinality < cfg.HighCardinalityRows {
			continue
		}
		id := fn.FragmentID
		msgs = append(msgs, Message{
			Severity:   SeverityWarning,
			Text:       fmt.Sprintf("Fragment %d: max cardinality %d at %s", fn.FragmentID, *fn.MaxCardinality, fn.RootOperator),
			FragmentID: &id,
		})
	}
	return msgs
}

func runtimeFilterMessages(g *graph.Graph) []Message {
	var msgs []Message
	for _, fn := range g.Nodes {
		if fn.JoinCount == 0 || fn.RuntimeFilterCount > 0 {
			continue
		}
		id := fn.FragmentID
		msgs = append(msgs, Message{
			Severity:   SeverityInfo,
			Text:       fmt.Sprintf("Fragment %d: %d join(s) without runtime filters", fn.FragmentID, fn.JoinCount),
			FragmentID: &id,
		})
	}
	return msgs
}

func sortedFragmentIDs(analysis *signal.Analysis) []int {
	ids := make([]int, 0, len(analysis.Fragments))
	for id := range analysis.Fragments {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
