package parser

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/mizuha/fragplan/internal/model"
)

var (
	treeHeaderRe  = regexp.MustCompile(`^\[([^\]]*)\]:\[(\d+):\s*([^\]]*)\]$`)
	fragmentSegRe = regexp.MustCompile(`^\[Fragment:\s*(\d+)\]$`)
)

// parseTree parses the indentation-by-dash-count dump. A non-blank
// line is a node line iff, after stripping the leading dash run, it
// starts with "[" and contains "]||"; that keeps section banners and
// the trailing statistics block out of the node stream.
func parseTree(text, raw string) (*model.ParseResult, error) {
	result := &model.ParseResult{Format: model.FormatTree, RawText: raw}
	fragments := map[int]struct{}{}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		body := strings.TrimLeft(trimmed, "-")
		if !strings.HasPrefix(body, "[") || !strings.Contains(body, "]||") {
			continue
		}
		dashes := len(trimmed) - len(body)

		var segments []string
		for _, seg := range strings.Split(body, "||") {
			if seg = strings.TrimSpace(seg); seg != "" {
				segments = append(segments, seg)
			}
		}
		if len(segments) == 0 {
			continue
		}

		head := treeHeaderRe.FindStringSubmatch(segments[0])
		if head == nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("unrecognized header: %s", segments[0]))
			continue
		}

		node := &model.PlanNode{
			Key:      fmt.Sprintf("n%d", len(result.Nodes)),
			Depth:    dashes / 2,
			IDsRaw:   head[1],
			NodeID:   head[2],
			Operator: strings.TrimSpace(head[3]),
			Attrs:    model.AttrMap{},
			RawLine:  line,
		}
		for _, seg := range segments[1:] {
			node.Segments = append(node.Segments, seg)
			if m := fragmentSegRe.FindStringSubmatch(seg); m != nil {
				if node.FragmentID == nil {
					id, _ := strconv.Atoi(m[1])
					node.FragmentID = &id
					fragments[id] = struct{}{}
				}
				continue
			}
			mergeSegment(node.Attrs, seg)
		}
		fillShortcuts(node)
		result.Nodes = append(result.Nodes, node)
	}

	if len(result.Nodes) == 0 {
		return nil, errors.New("No EXPLAIN TREE nodes found in input.")
	}
	result.Fragments = sortedFragmentIDs(fragments)
	return result, nil
}

func sortedFragmentIDs(set map[int]struct{}) []int {
	ids := make([]int, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
