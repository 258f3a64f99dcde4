package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyrex41/reelflow/pkg/models"
)

func newTestPipeline(id string) models.Pipeline {
	now := time.Now().UTC()
	return models.Pipeline{
		ID:        id,
		Name:      "test pipeline",
		Status:    models.PipelineStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestMemoryPipelineStoreCRUD(t *testing.T) {
	store := NewMemoryPipelineStore()

	_, err := store.GetPipeline("missing")
	assert.ErrorIs(t, err, ErrPipelineNotFound)

	require.NoError(t, store.SavePipeline(newTestPipeline("p1")))

	pipeline, err := store.GetPipeline("p1")
	require.NoError(t, err)
	assert.Equal(t, models.PipelineStatusActive, pipeline.Status)

	pipelines, err := store.ListPipelines()
	require.NoError(t, err)
	assert.Len(t, pipelines, 1)

	require.NoError(t, store.DeletePipeline("p1"))
	assert.ErrorIs(t, store.DeletePipeline("p1"), ErrPipelineNotFound)
}

func TestMemoryPipelineStoreCascadingDelete(t *testing.T) {
	store := NewMemoryPipelineStore()
	require.NoError(t, store.SavePipeline(newTestPipeline("p1")))

	require.NoError(t, store.SaveNode(models.Node{ID: "a", PipelineID: "p1", Type: models.NodeTypeText}))
	require.NoError(t, store.SaveNode(models.Node{ID: "b", PipelineID: "p1", Type: models.NodeTypeText}))
	require.NoError(t, store.SaveEdge(models.Edge{ID: "e1", PipelineID: "p1", SourceNodeID: "a", TargetNodeID: "b"}))

	require.NoError(t, store.DeletePipeline("p1"))

	_, err := store.GetNode("a")
	assert.ErrorIs(t, err, ErrNodeNotFound)

	edges, err := store.ListEdges("p1")
	require.NoError(t, err)
	assert.Empty(t, edges)
}

func TestMemoryPipelineStoreNodeRequiresPipeline(t *testing.T) {
	store := NewMemoryPipelineStore()
	err := store.SaveNode(models.Node{ID: "a", PipelineID: "nope", Type: models.NodeTypeText})
	assert.ErrorIs(t, err, ErrPipelineNotFound)
}

func TestMemoryPipelineStoreEdgeUniqueness(t *testing.T) {
	store := NewMemoryPipelineStore()
	require.NoError(t, store.SavePipeline(newTestPipeline("p1")))
	require.NoError(t, store.SaveNode(models.Node{ID: "a", PipelineID: "p1", Type: models.NodeTypeText}))
	require.NoError(t, store.SaveNode(models.Node{ID: "b", PipelineID: "p1", Type: models.NodeTypeText}))

	require.NoError(t, store.SaveEdge(models.Edge{ID: "e1", PipelineID: "p1", SourceNodeID: "a", TargetNodeID: "b"}))

	// Same tuple under a new ID is rejected
	err := store.SaveEdge(models.Edge{ID: "e2", PipelineID: "p1", SourceNodeID: "a", TargetNodeID: "b"})
	assert.ErrorIs(t, err, ErrDuplicateEdge)

	// A distinct handle pair is a different dependency
	require.NoError(t, store.SaveEdge(models.Edge{
		ID: "e3", PipelineID: "p1", SourceNodeID: "a", TargetNodeID: "b", SourceHandle: "alt",
	}))

	// Re-saving the same edge ID is an update, not a duplicate
	require.NoError(t, store.SaveEdge(models.Edge{ID: "e1", PipelineID: "p1", SourceNodeID: "a", TargetNodeID: "b"}))
}

func TestMemoryPipelineStoreListEdgesByTarget(t *testing.T) {
	store := NewMemoryPipelineStore()
	require.NoError(t, store.SavePipeline(newTestPipeline("p1")))
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.SaveNode(models.Node{ID: id, PipelineID: "p1", Type: models.NodeTypeText}))
	}
	require.NoError(t, store.SaveEdge(models.Edge{ID: "e1", PipelineID: "p1", SourceNodeID: "a", TargetNodeID: "c"}))
	require.NoError(t, store.SaveEdge(models.Edge{ID: "e2", PipelineID: "p1", SourceNodeID: "b", TargetNodeID: "c"}))

	edges, err := store.ListEdgesByTarget("c")
	require.NoError(t, err)
	assert.Len(t, edges, 2)

	edges, err = store.ListEdgesByTarget("a")
	require.NoError(t, err)
	assert.Empty(t, edges)
}

func TestMemoryPipelineStoreDeleteNodeRemovesEdges(t *testing.T) {
	store := NewMemoryPipelineStore()
	require.NoError(t, store.SavePipeline(newTestPipeline("p1")))
	for _, id := range []string{"a", "b"} {
		require.NoError(t, store.SaveNode(models.Node{ID: id, PipelineID: "p1", Type: models.NodeTypeText}))
	}
	require.NoError(t, store.SaveEdge(models.Edge{ID: "e1", PipelineID: "p1", SourceNodeID: "a", TargetNodeID: "b"}))

	require.NoError(t, store.DeleteNode("a"))

	edges, err := store.ListEdges("p1")
	require.NoError(t, err)
	assert.Empty(t, edges)
}

func TestMemoryRunStoreCRUD(t *testing.T) {
	store := NewMemoryRunStore()

	_, err := store.GetRun("missing")
	assert.ErrorIs(t, err, ErrRunNotFound)

	run := models.PipelineRun{
		ID:         "r1",
		PipelineID: "p1",
		Status:     models.RunStatusPending,
		InputData:  map[string]interface{}{"name": "Ada"},
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, store.SaveRun(run))

	loaded, err := store.GetRun("r1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", loaded.InputData["name"])

	runs, err := store.ListRuns("p1")
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestMemoryRunStoreNodeResults(t *testing.T) {
	store := NewMemoryRunStore()

	_, err := store.GetNodeResult("r1", "a")
	assert.ErrorIs(t, err, ErrNodeResultNotFound)

	require.NoError(t, store.SaveNodeResult(models.NodeResult{
		PipelineRunID: "r1",
		NodeID:        "a",
		Status:        models.NodeResultStatusPending,
	}))
	require.NoError(t, store.SaveNodeResult(models.NodeResult{
		PipelineRunID: "r1",
		NodeID:        "b",
		Status:        models.NodeResultStatusPending,
	}))

	result, err := store.GetNodeResult("r1", "a")
	require.NoError(t, err)
	assert.Equal(t, models.NodeResultStatusPending, result.Status)

	results, err := store.ListNodeResults("r1")
	require.NoError(t, err)
	assert.Len(t, results, 2)

	// Updating one pair must not create a second record
	result.Status = models.NodeResultStatusRunning
	require.NoError(t, store.SaveNodeResult(result))
	results, err = store.ListNodeResults("r1")
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestMemoryRunStoreIsolatesNodeResultMaps(t *testing.T) {
	store := NewMemoryRunStore()

	result := models.NodeResult{
		PipelineRunID: "r1",
		NodeID:        "a",
		Status:        models.NodeResultStatusRunning,
		Metadata:      map[string]interface{}{"retry_count": 1},
	}
	require.NoError(t, store.SaveNodeResult(result))

	// Mutating the caller's map after a save must not change the stored record.
	result.Metadata["tokens"] = 6

	stored, err := store.GetNodeResult("r1", "a")
	require.NoError(t, err)
	assert.NotContains(t, stored.Metadata, "tokens")

	// Mutating a read copy must not change the stored record either.
	stored.Metadata["leak"] = true
	again, err := store.GetNodeResult("r1", "a")
	require.NoError(t, err)
	assert.NotContains(t, again.Metadata, "leak")

	listed, err := store.ListNodeResults("r1")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	listed[0].Metadata["leak"] = true
	final, err := store.GetNodeResult("r1", "a")
	require.NoError(t, err)
	assert.NotContains(t, final.Metadata, "leak")
}

func TestMemoryRunStoreIsolatesRunMaps(t *testing.T) {
	store := NewMemoryRunStore()

	run := models.PipelineRun{
		ID:         "r1",
		PipelineID: "p1",
		Status:     models.RunStatusPending,
		InputData:  map[string]interface{}{"name": "Ada"},
	}
	require.NoError(t, store.SaveRun(run))

	run.InputData["name"] = "Eve"

	loaded, err := store.GetRun("r1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", loaded.InputData["name"])
}

func TestMemoryPipelineStoreIsolatesNodeConfig(t *testing.T) {
	store := NewMemoryPipelineStore()
	require.NoError(t, store.SavePipeline(newTestPipeline("p1")))

	node := models.Node{
		ID:         "a",
		PipelineID: "p1",
		Type:       models.NodeTypeText,
		Config:     map[string]interface{}{"content": "Hi"},
	}
	require.NoError(t, store.SaveNode(node))

	node.Config["content"] = "changed"

	stored, err := store.GetNode("a")
	require.NoError(t, err)
	assert.Equal(t, "Hi", stored.Config["content"])
}
