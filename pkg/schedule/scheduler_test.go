package schedule

import (
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

func newTestScheduler(t *testing.T) (*Scheduler, *runtime.Service) {
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

	return NewScheduler(svc, logger), svc
}

func TestSchedulerAddRejectsInvalidCron(t *testing.T) {
	s, _ := newTestScheduler(t)

	_, err := s.Add(config.ScheduleConfig{PipelineID: "p1", Cron: "not a cron"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid cron expression")
}

func TestSchedulerAddRequiresPipeline(t *testing.T) {
	s, _ := newTestScheduler(t)

	_, err := s.Add(config.ScheduleConfig{Cron: "* * * * *"})
	require.Error(t, err)
}

func TestSchedulerAddAndRemove(t *testing.T) {
	s, _ := newTestScheduler(t)

	key, err := s.Add(config.ScheduleConfig{PipelineID: "p1", Cron: "* * * * *"})
	require.NoError(t, err)
	assert.Equal(t, "p1@* * * * *", key)

	// Re-adding the same schedule replaces the entry rather than doubling it.
	key2, err := s.Add(config.ScheduleConfig{PipelineID: "p1", Cron: "* * * * *"})
	require.NoError(t, err)
	assert.Equal(t, key, key2)
	assert.Len(t, s.entries, 1)

	s.Remove(key)
	assert.Empty(t, s.entries)
}

func TestSchedulerTriggerCreatesRun(t *testing.T) {
	s, svc := newTestScheduler(t)

	pipeline, err := svc.CreatePipeline("scheduled")
	require.NoError(t, err)

	s.trigger(config.ScheduleConfig{
		PipelineID: pipeline.ID,
		Cron:       "* * * * *",
		Input:      map[string]interface{}{"source": "cron"},
	})

	runs, err := svc.ListRuns(pipeline.ID)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, models.RunStatusPending, runs[0].Status)
	assert.Equal(t, "cron", runs[0].InputData["source"])
}

func TestSchedulerTriggerOnMissingPipelineIsLoggedNotFatal(t *testing.T) {
	s, _ := newTestScheduler(t)

	// Must not panic.
	s.trigger(config.ScheduleConfig{PipelineID: "ghost", Cron: "* * * * *"})
}

func TestSchedulerAddAllSkipsInvalid(t *testing.T) {
	s, _ := newTestScheduler(t)

	s.AddAll([]config.ScheduleConfig{
		{PipelineID: "p1", Cron: "*/5 * * * *"},
		{PipelineID: "p2", Cron: "bogus"},
	})

	assert.Len(t, s.entries, 1)
}
