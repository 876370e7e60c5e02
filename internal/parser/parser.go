// Package parser turns the textual execution-plan dump of a
// distributed SQL engine into a flat, typed node sequence. Two
// human-readable grammars are supported behind one entry point: the
// indented "tree" dump and the legacy "fragment/plan" dump.
package parser

import (
	"fmt"

	"github.com/mizuha/fragplan/internal/model"
)

// Parse recognizes a dump in either supported grammar. The tree
// grammar is tried first; on failure the plan grammar runs; if both
// fail the returned error carries both diagnostics joined by " | " so
// the caller can see why neither matched. Expected malformed input is
// always an error value, never a panic.
func Parse(raw string) (*model.ParseResult, error) {
	text, warnings := Normalize(raw)

	result, treeErr := parseTree(text, raw)
	if treeErr == nil {
		result.Warnings = append(warnings, result.Warnings...)
		return result, nil
	}

	result, planErr := parsePlan(text, raw)
	if planErr == nil {
		result.Warnings = append(warnings, result.Warnings...)
		return result, nil
	}

	return nil, fmt.Errorf("%s | %s", treeErr, planErr)
}

// SelectNodesByFragment filters nodes to one fragment and renormalizes
// depth so the fragment's shallowest node sits at depth 0, independent
// of how deeply the fragment was nested in the whole-document view. A
// nil fragment id returns the input unchanged; an absent fragment
// yields an empty list. Input nodes are never mutated.
func SelectNodesByFragment(nodes []*model.PlanNode, fragmentID *int) []*model.PlanNode {
	if fragmentID == nil {
		return nodes
	}

	var filtered []*model.PlanNode
	minDepth := 0
	for _, n := range nodes {
		if n.FragmentID == nil || *n.FragmentID != *fragmentID {
			continue
		}
		if len(filtered) == 0 || n.Depth < minDepth {
			minDepth = n.Depth
		}
		filtered = append(filtered, n)
	}
	if len(filtered) == 0 {
		return nil
	}

	out := make([]*model.PlanNode, len(filtered))
	for i, n := range filtered {
		clone := *n
		clone.Depth = n.Depth - minDepth
		if clone.Depth < 0 {
			clone.Depth = 0
		}
		out[i] = &clone
	}
	return out
}
