package workflow

import (
	"fmt"

	"github.com/catalystcommunity/enginecore/internal/errs"
)

// classesConflict implements spec §4.3.3's conflict table: population is
// compatible with itself, view is compatible with itself (unstated in the
// conflict list, so treated as the concurrent-reads-are-safe default);
// every other pairing (including modification-modification) conflicts.
func classesConflict(a, b AccessClass) bool {
	if a == AccessPopulation && b == AccessPopulation {
		return false
	}
	if a == AccessView && b == AccessView {
		return false
	}
	return true
}

func descendantsOf(start string, edges edgeSet) map[string]struct{} {
	visited := make(map[string]struct{})
	var stack []string
	for to := range edges[start] {
		stack = append(stack, to)
	}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := visited[n]; ok {
			continue
		}
		visited[n] = struct{}{}
		for to := range edges[n] {
			if _, ok := visited[to]; !ok {
				stack = append(stack, to)
			}
		}
	}
	return visited
}

// validateAccessClasses enforces that any two nodes which may run
// concurrently (neither reachable from the other) do not have conflicting
// access classes on a shared resource (spec §4.3.3).
func validateAccessClasses(order []string, nodes map[string]*nodeSpec, edges edgeSet) error {
	descendants := make(map[string]map[string]struct{}, len(order))
	for _, n := range order {
		descendants[n] = descendantsOf(n, edges)
	}

	related := func(a, b string) bool {
		if _, ok := descendants[a][b]; ok {
			return true
		}
		if _, ok := descendants[b][a]; ok {
			return true
		}
		return false
	}

	for i, a := range order {
		for _, b := range order[i+1:] {
			if related(a, b) {
				continue
			}
			specA, specB := nodes[a], nodes[b]
			for _, accA := range specA.access {
				for _, accB := range specB.access {
					if accA.Resource != accB.Resource {
						continue
					}
					if classesConflict(accA.Class, accB.Class) {
						return fmt.Errorf(
							"workflow: nodes %q and %q race on resource %q (%s vs %s): %w",
							a, b, accA.Resource, accA.Class, accB.Class, errs.ErrValidation,
						)
					}
				}
			}
		}
	}
	return nil
}
