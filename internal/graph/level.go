package graph

import "sort"

// assignLevels computes a topological layer per fragment: every edge
// a -> b outside a cycle ends up with level(b) >= level(a)+1. The
// queue is kept sorted so ties break on the smallest fragment id and
// the result is deterministic. Cycles and disconnected residuals
// degrade to the last-known level clamped at zero; level is a layout
// hint, not a correctness-bearing value.
func assignLevels(fragmentIDs []int, edges []*FragmentEdge) map[int]int {
	inSet := map[int]struct{}{}
	for _, id := range fragmentIDs {
		inSet[id] = struct{}{}
	}

	indegree := map[int]int{}
	outgoing := map[int][]*FragmentEdge{}
	for _, id := range fragmentIDs {
		indegree[id] = 0
	}
	for _, e := range edges {
		if _, ok := inSet[e.From]; !ok {
			continue
		}
		if _, ok := inSet[e.To]; !ok {
			continue
		}
		indegree[e.To]++
		outgoing[e.From] = append(outgoing[e.From], e)
	}

	levels := map[int]int{}
	for _, id := range fragmentIDs {
		levels[id] = 0
	}

	var queue []int
	for _, id := range fragmentIDs {
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	for len(queue) > 0 {
		sort.Ints(queue)
		id := queue[0]
		queue = queue[1:]
		for _, e := range outgoing[id] {
			if next := levels[id] + 1; next > levels[e.To] {
				levels[e.To] = next
			}
			indegree[e.To]--
			if indegree[e.To] == 0 {
				queue = append(queue, e.To)
			}
		}
	}

	for _, id := range fragmentIDs {
		if levels[id] < 0 {
			levels[id] = 0
		}
	}
	return levels
}
