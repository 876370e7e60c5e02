// Package diff compares two parsed plan dumps at the fragment level:
// which fragments appeared or disappeared, and how per-fragment shape
// and signal coverage moved between the two.
package diff

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/mizuha/fragplan/internal/config"
	"github.com/mizuha/fragplan/internal/graph"
	"github.com/mizuha/fragplan/internal/model"
	"github.com/mizuha/fragplan/internal/signal"
)

// Options configures the diff output size.
type Options struct {
	MaxItems int
}

// Report summarises the delta between two parsed dumps.
type Report struct {
	Summary          SummaryDiff `json:"summary"`
	AddedFragments   []int       `json:"added_fragments"`
	RemovedFragments []int       `json:"removed_fragments"`
	Changes          []Entry     `json:"changes"`
	Options          Options     `json:"-"`
}

// SummaryDiff covers document-level differences.
type SummaryDiff struct {
	BaseFormat      model.Format `json:"base_format"`
	TargetFormat    model.Format `json:"target_format"`
	BaseFragments   int          `json:"base_fragments"`
	TargetFragments int          `json:"target_fragments"`
	BaseNodes       int          `json:"base_nodes"`
	TargetNodes     int          `json:"target_nodes"`
}

// Entry captures the delta for one fragment present on both sides.
type Entry struct {
	FragmentID     int   `json:"fragment_id"`
	BaseNodes      int   `json:"base_nodes"`
	TargetNodes    int   `json:"target_nodes"`
	BaseScans      int   `json:"base_scans"`
	TargetScans    int   `json:"target_scans"`
	BaseJoins      int   `json:"base_joins"`
	TargetJoins    int   `json:"target_joins"`
	BasePushdown   int   `json:"base_pushdown"`
	TargetPushdown int   `json:"target_pushdown"`
	BasePrune      int   `json:"base_prune"`
	TargetPrune    int   `json:"target_prune"`
	BaseMaxCard    int64 `json:"base_max_cardinality"`
	TargetMaxCard  int64 `json:"target_max_cardinality"`
}

func (e Entry) changed() bool {
	return e.BaseNodes != e.TargetNodes ||
		e.BaseScans != e.TargetScans ||
		e.BaseJoins != e.TargetJoins ||
		e.BasePushdown != e.TargetPushdown ||
		e.BasePrune != e.TargetPrune ||
		e.BaseMaxCard != e.TargetMaxCard
}

// Compare builds a diff report for two parsed dumps.
func Compare(base, target *model.ParseResult, opts Options) (*Report, error) {
	if base == nil {
		return nil, fmt.Errorf("diff: base parse result missing")
	}
	if target == nil {
		return nil, fmt.Errorf("diff: target parse result missing")
	}
	if opts.MaxItems <= 0 {
		opts.MaxItems = config.Active().Diff.MaxItems
	}

	baseGraph, baseSignals := graph.Build(base), signal.Analyze(base)
	targetGraph, targetSignals := graph.Build(target), signal.Analyze(target)

	baseSet := toSet(base.Fragments)
	targetSet := toSet(target.Fragments)

	report := &Report{
		Summary: SummaryDiff{
			BaseFormat:      base.Format,
			TargetFormat:    target.Format,
			BaseFragments:   len(base.Fragments),
			TargetFragments: len(target.Fragments),
			BaseNodes:       len(base.Nodes),
			TargetNodes:     len(target.Nodes),
		},
		Options: opts,
	}

	for _, id := range target.Fragments {
		if _, ok := baseSet[id]; !ok {
			report.AddedFragments = append(report.AddedFragments, id)
		}
	}
	for _, id := range base.Fragments {
		if _, ok := targetSet[id]; !ok {
			report.RemovedFragments = append(report.RemovedFragments, id)
		}
	}

	for _, id := range base.Fragments {
		if _, ok := targetSet[id]; !ok {
			continue
		}
		entry := buildEntry(id, baseGraph, targetGraph, baseSignals, targetSignals)
		if entry.changed() {
			report.Changes = append(report.Changes, entry)
		}
	}
	sort.Slice(report.Changes, func(i, j int) bool {
		return report.Changes[i].FragmentID < report.Changes[j].FragmentID
	})
	if len(report.Changes) > opts.MaxItems {
		report.Changes = report.Changes[:opts.MaxItems]
	}

	return report, nil
}

// Markdown renders the report as a Markdown document.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("# fragplan diff\n\n")
	b.WriteString("## Summary\n")
	_, _ = fmt.Fprintf(&b, "- Fragments: %d → %d\n", r.Summary.BaseFragments, r.Summary.TargetFragments)
	_, _ = fmt.Fprintf(&b, "- Nodes: %d → %d\n", r.Summary.BaseNodes, r.Summary.TargetNodes)
	if r.Summary.BaseFormat != r.Summary.TargetFormat {
		_, _ = fmt.Fprintf(&b, "- Format: %s → %s\n", r.Summary.BaseFormat, r.Summary.TargetFormat)
	}
	b.WriteString("\n")

	if len(r.AddedFragments) > 0 {
		_, _ = fmt.Fprintf(&b, "- Added fragments: %s\n", joinInts(r.AddedFragments))
	}
	if len(r.RemovedFragments) > 0 {
		_, _ = fmt.Fprintf(&b, "- Removed fragments: %s\n", joinInts(r.RemovedFragments))
	}
	if len(r.AddedFragments) > 0 || len(r.RemovedFragments) > 0 {
		b.WriteString("\n")
	}

	b.WriteString("## Changed fragments\n")
	if len(r.Changes) == 0 {
		b.WriteString("- None\n")
		return b.String()
	}
	b.WriteString("| Fragment | Nodes | Scans | Joins | Pushdown | Pruned | Max cardinality |\n")
	b.WriteString("|---:|---|---|---|---|---|---|\n")
	for _, e := range r.Changes {
		_, _ = fmt.Fprintf(&b, "| %d | %s | %s | %s | %s | %s | %s |\n",
			e.FragmentID,
			arrow(e.BaseNodes, e.TargetNodes),
			arrow(e.BaseScans, e.TargetScans),
			arrow(e.BaseJoins, e.TargetJoins),
			arrow(e.BasePushdown, e.TargetPushdown),
			arrow(e.BasePrune, e.TargetPrune),
			arrow64(e.BaseMaxCard, e.TargetMaxCard))
	}
	return b.String()
}

// JSON marshals the diff report into an indented JSON document.
func (r *Report) JSON() ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("nil report")
	}
	type alias Report
	return json.MarshalIndent((*alias)(r), "", "  ")
}

func buildEntry(id int, baseGraph, targetGraph *graph.Graph, baseSignals, targetSignals *signal.Analysis) Entry {
	entry := Entry{FragmentID: id}
	if fn := baseGraph.Node(id); fn != nil {
		entry.BaseNodes = fn.NodeCount
		entry.BaseScans = fn.ScanCount
		entry.BaseJoins = fn.JoinCount
		if fn.MaxCardinality != nil {
			entry.BaseMaxCard = *fn.MaxCardinality
		}
	}
	if fn := targetGraph.Node(id); fn != nil {
		entry.TargetNodes = fn.NodeCount
		entry.TargetScans = fn.ScanCount
		entry.TargetJoins = fn.JoinCount
		if fn.MaxCardinality != nil {
			entry.TargetMaxCard = *fn.MaxCardinality
		}
	}
	if fs := baseSignals.Fragments[id]; fs != nil {
		entry.BasePushdown = fs.PushdownNodes
		entry.BasePrune = fs.PruneNodes
	}
	if fs := targetSignals.Fragments[id]; fs != nil {
		entry.TargetPushdown = fs.PushdownNodes
		entry.TargetPrune = fs.PruneNodes
	}
	return entry
}

func toSet(ids []int) map[int]struct{} {
	set := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func joinInts(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, ", ")
}

func arrow(base, target int) string {
	if base == target {
		return fmt.Sprintf("%d", base)
	}
	return fmt.Sprintf("%d → %d", base, target)
}

func arrow64(base, target int64) string {
	if base == target {
		return fmt.Sprintf("%d", base)
	}
	return fmt.Sprintf("%d → %d", base, target)
}
