package loader

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyrex41/reelflow/pkg/config"
	"github.com/pyrex41/reelflow/pkg/logging"
	"github.com/pyrex41/reelflow/pkg/models"
	"github.com/pyrex41/reelflow/pkg/queue"
	"github.com/pyrex41/reelflow/pkg/registry"
	"github.com/pyrex41/reelflow/pkg/runtime"
	"github.com/pyrex41/reelflow/pkg/storage"
)

func newTestLoader(t *testing.T) (*Loader, *runtime.Service) {
	t.Helper()

	cfg := &config.Config{
		Engine: config.EngineConfig{TickInterval: time.Second, NodeMaxAttempts: 3},
		LLM:    config.LLMConfig{DefaultProvider: "openrouter"},
	}

	provider := storage.NewMemoryProvider()
	require.NoError(t, provider.Initialize())

	q := queue.NewMemoryQueue()
	t.Cleanup(func() { q.Close() })

	reg := registry.NewRegistry()
	require.NoError(t, runtime.RegisterCoreNodeTypes(reg, cfg))

	logger := logging.NewNop()
	coord := runtime.NewCoordinator(provider, q, nil, cfg.Engine, logger)
	svc := runtime.NewService(provider, reg, coord, nil, logger)

	return NewLoader(svc), svc
}

const validPipelineYAML = `
name: greeting
nodes:
  greet:
    type: text
    config:
      content: "Hi {{name}}"
    position:
      x: 100
      y: 50
  echo:
    type: text
    config:
      content: "Said: {{text}}"
edges:
  - source: greet
    target: echo
`

func TestLoaderDeploy(t *testing.T) {
	l, svc := newTestLoader(t)

	pipeline, err := l.Deploy(context.Background(), []byte(validPipelineYAML))
	require.NoError(t, err)
	assert.Equal(t, "greeting", pipeline.Name)
	assert.Equal(t, models.PipelineStatusActive, pipeline.Status)

	nodes, err := svc.ListNodes(pipeline.ID)
	require.NoError(t, err)
	require.Len(t, nodes, 2)

	edges, err := svc.ListEdges(pipeline.ID)
	require.NoError(t, err)
	require.Len(t, edges, 1)

	byName := make(map[string]models.Node)
	for _, n := range nodes {
		byName[n.Name] = n
	}
	assert.Equal(t, byName["greet"].ID, edges[0].SourceNodeID)
	assert.Equal(t, byName["echo"].ID, edges[0].TargetNodeID)
	assert.Equal(t, 100.0, byName["greet"].PositionX)
}

func TestLoaderParseRejectsMissingName(t *testing.T) {
	l, _ := newTestLoader(t)

	_, err := l.Parse([]byte("nodes: {}"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name")
}

func TestLoaderParseRejectsUnknownEdgeNode(t *testing.T) {
	l, _ := newTestLoader(t)

	_, err := l.Parse([]byte(`
name: broken
nodes:
  a:
    type: text
    config:
      content: "x"
edges:
  - source: a
    target: ghost
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestLoaderDeployCleansUpOnInvalidConfig(t *testing.T) {
	l, svc := newTestLoader(t)

	_, err := l.Deploy(context.Background(), []byte(`
name: invalid
nodes:
  a:
    type: text
    config: {}
`))
	require.Error(t, err)

	pipelines, err := svc.ListPipelines()
	require.NoError(t, err)
	assert.Empty(t, pipelines)
}

func TestLoaderDeployRejectsCycle(t *testing.T) {
	l, svc := newTestLoader(t)

	_, err := l.Deploy(context.Background(), []byte(`
name: loop
nodes:
  a:
    type: text
    config:
      content: "a"
  b:
    type: text
    config:
      content: "b"
edges:
  - source: a
    target: b
  - source: b
    target: a
`))
	require.Error(t, err)
	assert.ErrorIs(t, err, runtime.ErrCycle)

	pipelines, err := svc.ListPipelines()
	require.NoError(t, err)
	assert.Empty(t, pipelines)
}
