// Package signal derives heuristic optimization annotations from a
// parsed plan: predicate pushdown, partition/tablet pruning,
// materialized-view rewrite, and runtime-filter evidence. Detection is
// best-effort and advisory; a shape that cannot be parsed degrades to
// an inactive signal with its evidence preserved, never an error.
package signal

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/mizuha/fragplan/internal/config"
	"github.com/mizuha/fragplan/internal/model"
)

// Pushdown flags predicates evaluated at the storage layer.
type Pushdown struct {
	Active   bool   `json:"active"`
	Evidence string `json:"evidence"`
}

// Prune reports a "<selected>/<total>" pruning attribute. Active only
// when both numbers parsed, total > 0 and selected < total; otherwise
// the raw text is still carried for display.
type Prune struct {
	Active   bool    `json:"active"`
	Selected int64   `json:"selected"`
	Total    int64   `json:"total"`
	Ratio    float64 `json:"ratio"`
	Evidence string  `json:"evidence"`
}

// RewriteLevel classifies transparent materialized-view rewrite.
type RewriteLevel string

const (
	RewriteHit       RewriteLevel = "hit"
	RewriteCandidate RewriteLevel = "candidate"
	RewriteNone      RewriteLevel = "none"
)

// Rewrite carries the rewrite level plus whatever names support it.
type Rewrite struct {
	Level          RewriteLevel `json:"level"`
	CandidateIndex string       `json:"candidateIndex"`
	Chosen         []string     `json:"chosen"`
}

// NodeSignals bundles every per-node signal.
type NodeSignals struct {
	Pushdown       Pushdown `json:"pushdown"`
	PartitionPrune Prune    `json:"partitionPrune"`
	TabletPrune    Prune    `json:"tabletPrune"`
	Rewrite        Rewrite  `json:"rewrite"`
	RuntimeFilters string   `json:"runtimeFilters"`
}

// FragmentSignals are per-fragment rollups; each node counts at most
// once per counter no matter how many of its attributes matched.
type FragmentSignals struct {
	PushdownNodes int `json:"pushdownNodes"`
	PruneNodes    int `json:"pruneNodes"`
	RewriteNodes  int `json:"rewriteNodes"`
	ScanNodes     int `json:"scanNodes"`
}

// Analysis maps node keys and fragment ids to their signals.
type Analysis struct {
	Nodes           map[string]*NodeSignals  `json:"nodes"`
	Fragments       map[int]*FragmentSignals `json:"fragments"`
	Materialization *Materialization         `json:"materialization"`
}

var pruneRatioRe = regexp.MustCompile(`(\d+)\s*/\s*(\d+)`)

// Analyze inspects every node of a parse result. The input is not
// modified; thresholds and patterns come from the active config.
func Analyze(result *model.ParseResult) *Analysis {
	cfg := config.Active().Signals
	pattern := compileRewritePattern(cfg.RewriteNamePattern)
	mat := ScanMaterialization(result.RawText)

	analysis := &Analysis{
		Nodes:           map[string]*NodeSignals{},
		Fragments:       map[int]*FragmentSignals{},
		Materialization: mat,
	}
	for _, fragID := range result.Fragments {
		analysis.Fragments[fragID] = &FragmentSignals{}
	}

	for _, n := range result.Nodes {
		sig := analyzeNode(n, mat, cfg, pattern)
		analysis.Nodes[n.Key] = sig

		if n.FragmentID == nil {
			continue
		}
		fs := analysis.Fragments[*n.FragmentID]
		if fs == nil {
			fs = &FragmentSignals{}
			analysis.Fragments[*n.FragmentID] = fs
		}
		if sig.Pushdown.Active {
			fs.PushdownNodes++
		}
		if sig.PartitionPrune.Active || sig.TabletPrune.Active {
			fs.PruneNodes++
		}
		if sig.Rewrite.Level != RewriteNone {
			fs.RewriteNodes++
		}
		if isScanLike(n) {
			fs.ScanNodes++
		}
	}
	return analysis
}

func analyzeNode(n *model.PlanNode, mat *Materialization, cfg config.SignalConfig, pattern *regexp.Regexp) *NodeSignals {
	sig := &NodeSignals{}

	evidence := n.Predicates
	if evidence == "" {
		if v, ok := n.Attrs.Lookup("PREDICATES"); ok {
			evidence = v
		}
	}
	if evidence == "" {
		if v, ok := n.Attrs.Lookup("FRONTEND_PREDICATES"); ok {
			evidence = v
		}
	}
	evidence = strings.TrimSpace(evidence)
	sig.Pushdown = Pushdown{Active: evidence != "", Evidence: evidence}

	sig.PartitionPrune = pruneSignal(n, cfg.PartitionKeys)
	sig.TabletPrune = pruneSignal(n, cfg.TabletKeys)

	if v, ok := n.Attrs.Lookup("RUNTIME_FILTERS"); ok {
		sig.RuntimeFilters = strings.TrimSpace(v)
	}

	sig.Rewrite = rewriteSignal(n, mat, pattern)
	return sig
}

// pruneSignal reads the first present pruning attribute among keys.
func pruneSignal(n *model.PlanNode, keys []string) Prune {
	for _, key := range keys {
		v, ok := n.Attrs.Lookup(key)
		if !ok {
			continue
		}
		p := Prune{Evidence: strings.TrimSpace(v)}
		m := pruneRatioRe.FindStringSubmatch(v)
		if m == nil {
			return p
		}
		selected, selErr := strconv.ParseInt(m[1], 10, 64)
		total, totErr := strconv.ParseInt(m[2], 10, 64)
		if selErr != nil || totErr != nil {
			return p
		}
		p.Selected = selected
		p.Total = total
		if total > 0 {
			p.Ratio = float64(selected) / float64(total)
			p.Active = selected < total
		}
		return p
	}
	return Prune{}
}

func rewriteSignal(n *model.PlanNode, mat *Materialization, pattern *regexp.Regexp) Rewrite {
	if !isScanLike(n) {
		return Rewrite{Level: RewriteNone}
	}
	name := indexNameFromTable(n.Table)
	if mat != nil && len(mat.Chosen) > 0 {
		return Rewrite{Level: RewriteHit, CandidateIndex: name, Chosen: mat.Chosen}
	}
	if name != "" && pattern.MatchString(name) {
		return Rewrite{Level: RewriteCandidate, CandidateIndex: name}
	}
	return Rewrite{Level: RewriteNone}
}

func isScanLike(n *model.PlanNode) bool {
	return strings.Contains(strings.ToUpper(n.Operator), "SCAN")
}

// indexNameFromTable extracts the parenthesized suffix of a table
// attribute, e.g. "orders(orders_agg_mv)" yields "orders_agg_mv".
func indexNameFromTable(table string) string {
	table = strings.TrimSpace(table)
	if !strings.HasSuffix(table, ")") {
		return ""
	}
	open := strings.LastIndex(table, "(")
	if open < 0 {
		return ""
	}
	return strings.TrimSpace(table[open+1 : len(table)-1])
}

func compileRewritePattern(expr string) *regexp.Regexp {
	if expr != "" {
		if re, err := regexp.Compile("(?i)" + expr); err == nil {
			return re
		}
	}
	return regexp.MustCompile("(?i)" + config.Default().Signals.RewriteNamePattern)
}
