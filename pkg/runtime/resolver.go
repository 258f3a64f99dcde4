// Package runtime implements pipeline execution: dependency resolution,
// the tick-driven coordinator, node execution tasks, and the built-in
// node types.
package runtime

import (
	"fmt"
	"sort"

	"github.com/pyrex41/reelflow/pkg/models"
)

// ReadyNodes returns the nodes whose execution can be dispatched now: their
// own result is pending and every upstream dependency has completed. Nodes
// with a skipped or failed upstream are never ready. The result is sorted by
// node ID so dispatch order is deterministic.
func ReadyNodes(nodes []models.Node, edges []models.Edge, results map[string]models.NodeResult) []models.Node {
	upstream := make(map[string][]string)
	for _, edge := range edges {
		upstream[edge.TargetNodeID] = append(upstream[edge.TargetNodeID], edge.SourceNodeID)
	}

	var ready []models.Node
	for _, node := range nodes {
		result, ok := results[node.ID]
		if !ok || result.Status != models.NodeResultStatusPending {
			continue
		}

		satisfied := true
		for _, sourceID := range upstream[node.ID] {
			if results[sourceID].Status != models.NodeResultStatusCompleted {
				satisfied = false
				break
			}
		}
		if satisfied {
			ready = append(ready, node)
		}
	}

	sort.Slice(ready, func(i, j int) bool { return ready[i].ID < ready[j].ID })
	return ready
}

// WouldCreateCycle reports whether adding an edge from sourceID to targetID
// would close a cycle in the pipeline's dependency graph. It walks the
// existing edges from the target looking for a path back to the source.
func WouldCreateCycle(edges []models.Edge, sourceID, targetID string) bool {
	if sourceID == targetID {
		return true
	}

	downstream := make(map[string][]string)
	for _, edge := range edges {
		downstream[edge.SourceNodeID] = append(downstream[edge.SourceNodeID], edge.TargetNodeID)
	}

	visited := make(map[string]bool)
	stack := []string{targetID}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if current == sourceID {
			return true
		}
		if visited[current] {
			continue
		}
		visited[current] = true
		stack = append(stack, downstream[current]...)
	}

	return false
}

// ValidateGraph checks a pipeline's full graph for structural problems:
// edges referencing unknown nodes and dependency cycles.
func ValidateGraph(nodes []models.Node, edges []models.Edge) error {
	known := make(map[string]bool, len(nodes))
	for _, node := range nodes {
		known[node.ID] = true
	}

	downstream := make(map[string][]string)
	for _, edge := range edges {
		if !known[edge.SourceNodeID] {
			return fmt.Errorf("edge %s references unknown source node %s", edge.ID, edge.SourceNodeID)
		}
		if !known[edge.TargetNodeID] {
			return fmt.Errorf("edge %s references unknown target node %s", edge.ID, edge.TargetNodeID)
		}
		downstream[edge.SourceNodeID] = append(downstream[edge.SourceNodeID], edge.TargetNodeID)
	}

	// Depth-first search with a recursion stack to detect cycles.
	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)
	state := make(map[string]int, len(nodes))

	var visit func(id string) bool
	visit = func(id string) bool {
		state[id] = inStack
		for _, next := range downstream[id] {
			switch state[next] {
			case inStack:
				return false
			case unvisited:
				if !visit(next) {
					return false
				}
			}
		}
		state[id] = done
		return true
	}

	ids := make([]string, 0, len(nodes))
	for _, node := range nodes {
		ids = append(ids, node.ID)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if state[id] == unvisited && !visit(id) {
			return fmt.Errorf("pipeline graph contains a cycle")
		}
	}

	return nil
}
