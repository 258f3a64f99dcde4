// Package schedule triggers pipeline runs on cron expressions.
package schedule

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/robfig/cron/v3"

	"github.com/pyrex41/reelflow/pkg/config"
	"github.com/pyrex41/reelflow/pkg/runtime"
)

// Scheduler owns a cron runner that creates pipeline runs on schedule.
type Scheduler struct {
	cron    *cron.Cron
	service *runtime.Service
	logger  hclog.Logger

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

// NewScheduler creates a scheduler. Schedules use standard five-field cron
// expressions evaluated in the process's local time zone.
func NewScheduler(service *runtime.Service, logger hclog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		service: service,
		logger:  logger.Named("scheduler"),
		entries: make(map[string]cron.EntryID),
	}
}

// Add registers a schedule. The returned key removes it later.
func (s *Scheduler) Add(schedule config.ScheduleConfig) (string, error) {
	if schedule.PipelineID == "" {
		return "", fmt.Errorf("schedule requires a pipeline_id")
	}

	entryID, err := s.cron.AddFunc(schedule.Cron, func() {
		s.trigger(schedule)
	})
	if err != nil {
		return "", fmt.Errorf("invalid cron expression %q: %w", schedule.Cron, err)
	}

	key := fmt.Sprintf("%s@%s", schedule.PipelineID, schedule.Cron)

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.entries[key]; ok {
		s.cron.Remove(existing)
	}
	s.entries[key] = entryID

	s.logger.Info("schedule added", "pipeline_id", schedule.PipelineID, "cron", schedule.Cron)
	return key, nil
}

// Remove drops a schedule by its key.
func (s *Scheduler) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entryID, ok := s.entries[key]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, key)
	}
}

// AddAll registers every schedule from the configuration, skipping and
// logging invalid entries.
func (s *Scheduler) AddAll(schedules []config.ScheduleConfig) {
	for _, schedule := range schedules {
		if _, err := s.Add(schedule); err != nil {
			s.logger.Error("skipping invalid schedule", "pipeline_id", schedule.PipelineID, "cron", schedule.Cron, "error", err)
		}
	}
}

// Start begins evaluating schedules.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts schedule evaluation and waits for in-flight triggers.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) trigger(schedule config.ScheduleConfig) {
	run, err := s.service.CreateRun(context.Background(), schedule.PipelineID, schedule.Input)
	if err != nil {
		s.logger.Error("scheduled run failed to start", "pipeline_id", schedule.PipelineID, "error", err)
		return
	}
	s.logger.Info("scheduled run created", "pipeline_id", schedule.PipelineID, "run_id", run.ID)
}
