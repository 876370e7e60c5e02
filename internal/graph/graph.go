// Package graph reconstructs the fragment-level data-flow graph of a
// parsed plan: fragments become nodes, and matching exchange
// identifiers between stream-data-sink producers and exchange
// consumers become directed edges.
package graph

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/mizuha/fragplan/internal/model"
)

// FragmentNode summarises one execution fragment.
type FragmentNode struct {
	FragmentID int    `json:"fragmentId"`
	Level      int    `json:"level"`
	Partition  string `json:"partition"`
	// HasColocatePlanNode is nil when the fragment header does not
	// declare it.
	HasColocatePlanNode *bool  `json:"hasColocatePlanNode"`
	RootOperator        string `json:"rootOperator"`
	NodeCount           int    `json:"nodeCount"`
	JoinCount           int    `json:"joinCount"`
	ScanCount           int    `json:"scanCount"`
	RuntimeFilterCount  int    `json:"runtimeFilterCount"`
	// MaxCardinality is nil when no node in the fragment carries a
	// parseable cardinality.
	MaxCardinality      *int64   `json:"maxCardinality"`
	Tables              []string `json:"tables"`
	ProducerExchangeIDs []string `json:"producerExchangeIds"`
	ConsumerExchangeIDs []string `json:"consumerExchangeIds"`
}

// FragmentEdge is a directed producer-to-consumer link. All exchanges
// between the same fragment pair collapse into one edge carrying every
// contributing identifier.
type FragmentEdge struct {
	From        int      `json:"fromFragmentId"`
	To          int      `json:"toFragmentId"`
	ExchangeIDs []string `json:"exchangeIds"`
}

// Graph is the fragment-level view of one parse result.
type Graph struct {
	Nodes []*FragmentNode `json:"nodes"`
	Edges []*FragmentEdge `json:"edges"`
}

// Node returns the summary for a fragment id, or nil.
func (g *Graph) Node(fragmentID int) *FragmentNode {
	for _, n := range g.Nodes {
		if n.FragmentID == fragmentID {
			return n
		}
	}
	return nil
}

var exchangeIDTextRe = regexp.MustCompile(`(?i)EXCHANGE ID:\s*(\d+)`)

// Build derives the fragment graph from a parse result. All index
// maps are local to the call; the input is not modified.
func Build(result *model.ParseResult) *Graph {
	byFragment := map[int][]*model.PlanNode{}
	producers := map[string]map[int]struct{}{}
	consumers := map[string]map[int]struct{}{}
	producerIDs := map[int]map[string]struct{}{}
	consumerIDs := map[int]map[string]struct{}{}

	for _, n := range result.Nodes {
		if n.FragmentID == nil {
			continue
		}
		frag := *n.FragmentID
		byFragment[frag] = append(byFragment[frag], n)

		if isStreamDataSink(n) {
			if id, ok := producerExchangeID(n); ok {
				record(producers, id, frag)
				record(producerIDs, frag, id)
			}
			continue
		}
		if isExchangeConsumer(n) {
			if id, ok := consumerExchangeID(n); ok {
				record(consumers, id, frag)
				record(consumerIDs, frag, id)
			}
		}
	}

	type pair struct{ from, to int }
	edgeIDs := map[pair]map[string]struct{}{}
	for id, prodSet := range producers {
		consSet := consumers[id]
		for from := range prodSet {
			for to := range consSet {
				if from == to {
					continue
				}
				key := pair{from, to}
				if edgeIDs[key] == nil {
					edgeIDs[key] = map[string]struct{}{}
				}
				edgeIDs[key][id] = struct{}{}
			}
		}
	}

	edges := make([]*FragmentEdge, 0, len(edgeIDs))
	for key, ids := range edgeIDs {
		edges = append(edges, &FragmentEdge{From: key.from, To: key.to, ExchangeIDs: sortedExchangeIDs(ids)})
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})

	levels := assignLevels(result.Fragments, edges)

	nodes := make([]*FragmentNode, 0, len(result.Fragments))
	for _, fragID := range result.Fragments {
		fn := summarizeFragment(fragID, byFragment[fragID])
		fn.Level = levels[fragID]
		fn.ProducerExchangeIDs = sortedExchangeIDs(producerIDs[fragID])
		fn.ConsumerExchangeIDs = sortedExchangeIDs(consumerIDs[fragID])
		nodes = append(nodes, fn)
	}

	return &Graph{Nodes: nodes, Edges: edges}
}

// summarizeFragment computes the per-fragment statistics over its
// non-header nodes; partition and colocation come from the header.
func summarizeFragment(fragID int, nodes []*model.PlanNode) *FragmentNode {
	fn := &FragmentNode{FragmentID: fragID}
	tables := map[string]struct{}{}

	for _, n := range nodes {
		if n.IsFragmentHeader() {
			if v, ok := n.Attrs.Lookup("PARTITION"); ok {
				fn.Partition = v
			}
			if v, ok := n.Attrs.Lookup("hasColocatePlanNode"); ok {
				b := strings.EqualFold(strings.TrimSpace(v), "true")
				fn.HasColocatePlanNode = &b
			}
			continue
		}

		fn.NodeCount++
		if fn.RootOperator == "" {
			fn.RootOperator = n.Operator
		}
		op := strings.ToUpper(n.Operator)
		if strings.Contains(op, "JOIN") {
			fn.JoinCount++
		}
		if strings.Contains(op, "SCAN") {
			fn.ScanCount++
		}
		if _, ok := n.Attrs.Lookup("RUNTIME_FILTERS"); ok {
			fn.RuntimeFilterCount++
		}
		if card, ok := parseCardinality(n.Cardinality); ok {
			if fn.MaxCardinality == nil || card > *fn.MaxCardinality {
				fn.MaxCardinality = &card
			}
		}
		if n.Table != "" {
			tables[n.Table] = struct{}{}
		}
	}

	fn.Tables = make([]string, 0, len(tables))
	for t := range tables {
		fn.Tables = append(fn.Tables, t)
	}
	sort.Strings(fn.Tables)
	return fn
}

// isStreamDataSink matches exchange producers: the phrase may appear
// as the operator itself, in a segment, or anywhere in the raw line.
func isStreamDataSink(n *model.PlanNode) bool {
	const phrase = "STREAM DATA SINK"
	if strings.Contains(strings.ToUpper(n.Operator), phrase) {
		return true
	}
	for _, seg := range n.Segments {
		if strings.Contains(strings.ToUpper(seg), phrase) {
			return true
		}
	}
	return strings.Contains(strings.ToUpper(n.RawLine), phrase)
}

// isExchangeConsumer matches exchange operators that are not sinks.
func isExchangeConsumer(n *model.PlanNode) bool {
	op := strings.ToUpper(n.Operator)
	return strings.Contains(op, "EXCHANGE") && !strings.Contains(op, "SINK")
}

// producerExchangeID resolves a producer's identifier from its
// EXCHANGE ID attribute or a textual match only; producers never fall
// back to their node id.
func producerExchangeID(n *model.PlanNode) (string, bool) {
	if v, ok := n.Attrs.Lookup("EXCHANGE ID"); ok {
		return normalizeExchangeID(firstToken(v)), true
	}
	if id, ok := textualExchangeID(n); ok {
		return id, true
	}
	return "", false
}

// consumerExchangeID additionally falls back to the node's own id and
// raw id string, in that order.
func consumerExchangeID(n *model.PlanNode) (string, bool) {
	if v, ok := n.Attrs.Lookup("EXCHANGE ID"); ok {
		return normalizeExchangeID(firstToken(v)), true
	}
	if id, ok := textualExchangeID(n); ok {
		return id, true
	}
	if n.NodeID != "" {
		return normalizeExchangeID(n.NodeID), true
	}
	if n.IDsRaw != "" {
		return normalizeExchangeID(n.IDsRaw), true
	}
	return "", false
}

func textualExchangeID(n *model.PlanNode) (string, bool) {
	for _, seg := range n.Segments {
		if m := exchangeIDTextRe.FindStringSubmatch(seg); m != nil {
			return normalizeExchangeID(m[1]), true
		}
	}
	if m := exchangeIDTextRe.FindStringSubmatch(n.RawLine); m != nil {
		return normalizeExchangeID(m[1]), true
	}
	return "", false
}

// normalizeExchangeID round-trips numeric identifiers through an
// integer so "05" and "5" resolve to the same key.
func normalizeExchangeID(s string) string {
	s = strings.TrimSpace(s)
	if i, err := strconv.Atoi(s); err == nil {
		return strconv.Itoa(i)
	}
	return s
}

func firstToken(s string) string {
	s = strings.TrimSpace(s)
	for i, r := range s {
		if r == ' ' || r == ';' {
			return s[:i]
		}
	}
	return s
}

// parseCardinality reads a locale-formatted integer, stripping digit
// grouping characters.
func parseCardinality(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	s = strings.Map(func(r rune) rune {
		switch r {
		case ',', '_', ' ':
			return -1
		}
		return r
	}, s)
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// sortedExchangeIDs sorts numeric-aware: numbers compare as numbers,
// everything else lexicographically.
func sortedExchangeIDs(set map[string]struct{}) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return exchangeIDLess(ids[i], ids[j]) })
	return ids
}

func exchangeIDLess(a, b string) bool {
	ai, aErr := strconv.Atoi(a)
	bi, bErr := strconv.Atoi(b)
	if aErr == nil && bErr == nil {
		return ai < bi
	}
	return a < b
}

func record[K, V comparable](m map[K]map[V]struct{}, key K, member V) {
	if m[key] == nil {
		m[key] = map[V]struct{}{}
	}
	m[key][member] = struct{}{}
}
