package model

import "strings"

// Format identifies which grammar recognized a dump.
type Format string

const (
	FormatTree Format = "tree"
	FormatPlan Format = "plan"
)

// AttrMap is the attribute bag attached to a plan node. The two dump
// syntaxes use different key casing: `key=value` keys are stored
// lower-cased, `key: value` keys upper-cased with spaces replaced by
// underscores. Lookup tries both conventions so callers never need to
// know which syntax produced an attribute.
type AttrMap map[string]string

// Lookup returns the value for key, trying the literal key, the
// lower-cased `=`-style form, and the upper-snake `:`-style form.
func (a AttrMap) Lookup(key string) (string, bool) {
	if a == nil {
		return "", false
	}
	if v, ok := a[key]; ok {
		return v, true
	}
	if v, ok := a[strings.ToLower(key)]; ok {
		return v, true
	}
	snake := strings.ReplaceAll(strings.ToUpper(key), " ", "_")
	if v, ok := a[snake]; ok {
		return v, true
	}
	return "", false
}

// Merge records a key/value pair without overwriting. A differing new
// value is appended with "; "; values already present, exactly or as a
// ";"-joined member, are not duplicated.
func (a AttrMap) Merge(key, value string) {
	existing, ok := a[key]
	if !ok {
		a[key] = value
		return
	}
	if existing == value {
		return
	}
	for _, part := range strings.Split(existing, ";") {
		if strings.TrimSpace(part) == value {
			return
		}
	}
	a[key] = existing + "; " + value
}

// PlanNode captures one operator instance of the dump.
type PlanNode struct {
	// Key is a synthetic identifier unique within one parse result,
	// assigned in emission order ("n0", "n1", ...). Not stable across
	// re-parses of edited text.
	Key string `json:"key"`
	// Depth is the indentation level relative to the fragment (tree
	// format) or the whole document (plan format).
	Depth int `json:"depth"`
	// FragmentID is nil for nodes outside any fragment context.
	FragmentID *int `json:"fragmentId"`
	// IDsRaw and NodeID are the engine's own identifiers as printed.
	IDsRaw string `json:"idsRaw"`
	NodeID string `json:"nodeId"`
	// Operator is the operator name token exactly as printed.
	Operator string `json:"operator"`
	// Segments holds the raw attribute strings in original order.
	Segments []string `json:"segments"`
	Attrs    AttrMap  `json:"kv"`
	// Shortcuts populated from well-known attribute keys.
	Table       string `json:"table"`
	Cardinality string `json:"cardinality"`
	Predicates  string `json:"predicates"`
	// RawLine is the source line (tree format) or the node's own
	// header line (plan format).
	RawLine string `json:"rawLine"`
}

// IsFragmentHeader reports whether the node is a synthetic plan-format
// fragment header rather than an operator.
func (n *PlanNode) IsFragmentHeader() bool {
	return strings.HasPrefix(n.Operator, "PLAN FRAGMENT")
}

// ParseResult is the successful outcome of parsing one dump.
type ParseResult struct {
	Format  Format `json:"format"`
	RawText string `json:"rawText"`
	// Fragments lists the distinct fragment ids seen, sorted ascending.
	Fragments []int       `json:"fragments"`
	Nodes     []*PlanNode `json:"nodes"`
	Warnings  []string    `json:"warnings"`
}
