package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyrex41/reelflow/pkg/models"
)

func node(id string) models.Node {
	return models.Node{ID: id, PipelineID: "p1", Type: models.NodeTypeText}
}

func edge(source, target string) models.Edge {
	return models.Edge{ID: source + "->" + target, PipelineID: "p1", SourceNodeID: source, TargetNodeID: target}
}

func result(nodeID string, status models.NodeResultStatus) models.NodeResult {
	return models.NodeResult{PipelineRunID: "r1", NodeID: nodeID, Status: status}
}

func TestReadyNodesNoEdges(t *testing.T) {
	nodes := []models.Node{node("b"), node("a")}
	results := map[string]models.NodeResult{
		"a": result("a", models.NodeResultStatusPending),
		"b": result("b", models.NodeResultStatusPending),
	}

	ready := ReadyNodes(nodes, nil, results)
	require.Len(t, ready, 2)
	assert.Equal(t, "a", ready[0].ID)
	assert.Equal(t, "b", ready[1].ID)
}

func TestReadyNodesWaitsForUpstream(t *testing.T) {
	nodes := []models.Node{node("a"), node("b")}
	edges := []models.Edge{edge("a", "b")}

	results := map[string]models.NodeResult{
		"a": result("a", models.NodeResultStatusPending),
		"b": result("b", models.NodeResultStatusPending),
	}
	ready := ReadyNodes(nodes, edges, results)
	require.Len(t, ready, 1)
	assert.Equal(t, "a", ready[0].ID)

	results["a"] = result("a", models.NodeResultStatusCompleted)
	ready = ReadyNodes(nodes, edges, results)
	require.Len(t, ready, 1)
	assert.Equal(t, "b", ready[0].ID)
}

func TestReadyNodesDiamond(t *testing.T) {
	nodes := []models.Node{node("a"), node("b"), node("c"), node("d")}
	edges := []models.Edge{edge("a", "b"), edge("a", "c"), edge("b", "d"), edge("c", "d")}

	results := map[string]models.NodeResult{
		"a": result("a", models.NodeResultStatusCompleted),
		"b": result("b", models.NodeResultStatusCompleted),
		"c": result("c", models.NodeResultStatusRunning),
		"d": result("d", models.NodeResultStatusPending),
	}

	// d needs both b and c; c is still running
	assert.Empty(t, ReadyNodes(nodes, edges, results))

	results["c"] = result("c", models.NodeResultStatusCompleted)
	ready := ReadyNodes(nodes, edges, results)
	require.Len(t, ready, 1)
	assert.Equal(t, "d", ready[0].ID)
}

func TestReadyNodesExcludesNonPending(t *testing.T) {
	nodes := []models.Node{node("a")}
	results := map[string]models.NodeResult{
		"a": result("a", models.NodeResultStatusRunning),
	}
	assert.Empty(t, ReadyNodes(nodes, nil, results))

	results["a"] = result("a", models.NodeResultStatusFailed)
	assert.Empty(t, ReadyNodes(nodes, nil, results))
}

func TestReadyNodesFailedUpstreamBlocks(t *testing.T) {
	nodes := []models.Node{node("a"), node("b")}
	edges := []models.Edge{edge("a", "b")}
	results := map[string]models.NodeResult{
		"a": result("a", models.NodeResultStatusFailed),
		"b": result("b", models.NodeResultStatusPending),
	}
	assert.Empty(t, ReadyNodes(nodes, edges, results))
}

func TestWouldCreateCycle(t *testing.T) {
	edges := []models.Edge{edge("a", "b"), edge("b", "c")}

	assert.True(t, WouldCreateCycle(edges, "a", "a"), "self edge")
	assert.True(t, WouldCreateCycle(edges, "c", "a"), "closing the chain")
	assert.False(t, WouldCreateCycle(edges, "a", "c"), "shortcut along existing direction")
	assert.False(t, WouldCreateCycle(edges, "c", "d"), "extending the chain")
}

func TestValidateGraph(t *testing.T) {
	nodes := []models.Node{node("a"), node("b"), node("c")}

	assert.NoError(t, ValidateGraph(nodes, []models.Edge{edge("a", "b"), edge("b", "c")}))

	err := ValidateGraph(nodes, []models.Edge{edge("a", "b"), edge("b", "a")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")

	err = ValidateGraph(nodes, []models.Edge{edge("a", "ghost")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown target")
}
