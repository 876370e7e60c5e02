package parser

import (
	"regexp"
	"strings"

	"github.com/mizuha/fragplan/internal/model"
)

var (
	// key=value, key restricted to identifier characters.
	eqAttrRe = regexp.MustCompile(`^([A-Za-z0-9_]+)=(.*)$`)
	// key: value, key allows identifier characters and spaces.
	colonAttrRe = regexp.MustCompile(`^([A-Za-z0-9_][A-Za-z0-9_ ]*):\s*(.*)$`)
	// attrStartRe recognizes text that begins a new attribute; used by
	// the comma-split heuristic so expression lists stay intact.
	attrStartRe = regexp.MustCompile(`^(?:[A-Za-z0-9_]+=|[A-Za-z0-9_][A-Za-z0-9_ ]*:\s)`)
)

// mergeSegment parses one segment as `key=value` or `key: value` and
// merges it into attrs. `=`-style keys are stored lower-cased,
// `:`-style keys upper-cased with spaces replaced by underscores,
// mirroring the two conventions used by the source dumps. Segments
// matching neither syntax are left alone and false is returned.
func mergeSegment(attrs model.AttrMap, segment string) bool {
	segment = strings.TrimSpace(segment)
	if m := eqAttrRe.FindStringSubmatch(segment); m != nil {
		attrs.Merge(strings.ToLower(m[1]), strings.TrimSpace(m[2]))
		return true
	}
	if m := colonAttrRe.FindStringSubmatch(segment); m != nil {
		key := strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(m[1])), " ", "_")
		attrs.Merge(key, strings.TrimSpace(m[2]))
		return true
	}
	return false
}

// splitAttrs breaks one physical continuation line into logical
// attribute pieces. A comma is only a boundary when the text after it
// itself looks like the start of a `key=` or `key:` attribute, so a
// comma inside an expression or id list does not split.
func splitAttrs(line string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(line); i++ {
		if line[i] != ',' {
			continue
		}
		if !attrStartRe.MatchString(strings.TrimSpace(line[i+1:])) {
			continue
		}
		piece := strings.TrimSpace(line[start:i])
		if piece != "" {
			parts = append(parts, piece)
		}
		start = i + 1
	}
	if piece := strings.TrimSpace(line[start:]); piece != "" {
		parts = append(parts, piece)
	}
	return parts
}

// fillShortcuts backfills the table/cardinality/predicates convenience
// fields the first time the corresponding attribute is seen.
func fillShortcuts(node *model.PlanNode) {
	if node.Table == "" {
		if v, ok := node.Attrs.Lookup("TABLE"); ok {
			node.Table = v
		}
	}
	if node.Cardinality == "" {
		if v, ok := node.Attrs.Lookup("cardinality"); ok {
			node.Cardinality = v
		}
	}
	if node.Predicates == "" {
		if v, ok := node.Attrs.Lookup("PREDICATES"); ok {
			node.Predicates = v
		}
	}
}
