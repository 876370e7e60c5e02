package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mizuha/fragplan/internal/model"
)

var (
	planFragmentRe = regexp.MustCompile(`^PLAN FRAGMENT (\d+)`)
	planNodeRe     = regexp.MustCompile(`^(\d+):(.+)$`)
	sinkLineRe     = regexp.MustCompile(`^[A-Z][A-Z ]*SINK$`)
)

// parsePlan parses the legacy fragment/plan dump: "PLAN FRAGMENT n"
// headers, "id:OPERATOR" node lines indented with pipes and dashes,
// bare "... SINK" lines, and pipe-prefixed continuation lines that
// carry a node's attributes.
func parsePlan(text, raw string) (*model.ParseResult, error) {
	result := &model.ParseResult{Format: model.FormatPlan, RawText: raw}
	fragments := map[int]struct{}{}

	var curFragment *int
	var curNode *model.PlanNode

	emit := func(node *model.PlanNode) *model.PlanNode {
		node.Key = fmt.Sprintf("n%d", len(result.Nodes))
		result.Nodes = append(result.Nodes, node)
		return node
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || isSeparatorRule(trimmed) {
			continue
		}
		if strings.Contains(strings.ToLower(trimmed), "planned with") {
			continue
		}

		if m := planFragmentRe.FindStringSubmatch(trimmed); m != nil {
			id, _ := strconv.Atoi(m[1])
			fragments[id] = struct{}{}
			fragID := id
			curFragment = &fragID
			curNode = emit(&model.PlanNode{
				Operator:   "PLAN FRAGMENT " + m[1],
				FragmentID: &fragID,
				Attrs:      model.AttrMap{},
				RawLine:    line,
			})
			continue
		}

		pipes, dashes, body := stripPlanIndent(line)

		if sinkLineRe.MatchString(body) {
			node := &model.PlanNode{
				Operator: body,
				Attrs:    model.AttrMap{},
				RawLine:  line,
			}
			if curFragment != nil {
				fragID := *curFragment
				node.FragmentID = &fragID
				node.Depth = 1
			}
			curNode = emit(node)
			continue
		}

		if m := planNodeRe.FindStringSubmatch(body); m != nil {
			node := &model.PlanNode{
				NodeID:   m[1],
				Operator: strings.TrimSpace(m[2]),
				Attrs:    model.AttrMap{},
				RawLine:  line,
			}
			// Join subtrees indent with pipes, scan subtrees with
			// dashes; one level per pipe, one per four dashes.
			node.Depth = pipes + dashes/4
			if curFragment != nil {
				fragID := *curFragment
				node.FragmentID = &fragID
				node.Depth++
			}
			curNode = emit(node)
			continue
		}

		if curNode == nil {
			continue
		}
		content := strings.TrimSpace(strings.TrimPrefix(trimmed, "|"))
		if content == "" {
			continue
		}
		curNode.Segments = append(curNode.Segments, content)
		for _, piece := range splitAttrs(content) {
			mergeSegment(curNode.Attrs, piece)
		}
		fillShortcuts(curNode)
	}

	if len(result.Nodes) == 0 {
		return nil, errors.New("No EXPLAIN PLAN nodes found in input.")
	}
	result.Fragments = sortedFragmentIDs(fragments)
	return result, nil
}

// stripPlanIndent removes the leading pipe/dash/space indentation run
// and reports how many pipes and dashes it contained.
func stripPlanIndent(line string) (pipes, dashes int, body string) {
	i := 0
	for ; i < len(line); i++ {
		switch line[i] {
		case '|':
			pipes++
		case '-':
			dashes++
		case ' ':
		default:
			return pipes, dashes, line[i:]
		}
	}
	return pipes, dashes, ""
}

// isSeparatorRule matches decoration lines made only of rule characters.
func isSeparatorRule(s string) bool {
	for _, r := range s {
		switch r {
		case '-', '=', '+':
		default:
			return false
		}
	}
	return s != ""
}
