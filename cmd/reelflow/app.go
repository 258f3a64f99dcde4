package main

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/pyrex41/reelflow/pkg/api"
	"github.com/pyrex41/reelflow/pkg/config"
	"github.com/pyrex41/reelflow/pkg/loader"
	"github.com/pyrex41/reelflow/pkg/logging"
	"github.com/pyrex41/reelflow/pkg/queue"
	"github.com/pyrex41/reelflow/pkg/registry"
	"github.com/pyrex41/reelflow/pkg/runtime"
	"github.com/pyrex41/reelflow/pkg/schedule"
	"github.com/pyrex41/reelflow/pkg/storage"
)

// App wires the engine together: storage, queue, workers, the HTTP API,
// and the scheduler.
type App struct {
	cfg       *config.Config
	logger    hclog.Logger
	provider  storage.StorageProvider
	taskQueue queue.Queue
	worker    *queue.Worker
	server    *api.Server
	scheduler *schedule.Scheduler

	workerCancel context.CancelFunc
}

// NewApp builds the application from configuration.
func NewApp(cfg *config.Config) (*App, error) {
	logger := logging.New(cfg.Logging)

	provider, err := storage.NewProvider(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage provider: %w", err)
	}
	if err := provider.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	taskQueue, err := queue.NewQueue(context.Background(), cfg.Queue)
	if err != nil {
		return nil, fmt.Errorf("failed to create task queue: %w", err)
	}

	reg := registry.NewRegistry()
	if err := runtime.RegisterCoreNodeTypes(reg, cfg); err != nil {
		return nil, fmt.Errorf("failed to register node types: %w", err)
	}

	ws := api.NewWebSocketManager(logger)
	sseManager := api.NewSSEManager(logger)
	publisher := api.Fanout{ws, sseManager}

	coordinator := runtime.NewCoordinator(provider, taskQueue, publisher, cfg.Engine, logger)
	executor := runtime.NewExecutor(provider, reg, publisher, logger)
	service := runtime.NewService(provider, reg, coordinator, publisher, logger)

	worker := queue.NewWorker(taskQueue, cfg.Queue.WorkerCount, logger)
	coordinator.Register(worker)
	executor.Register(worker)

	pipelineLoader := loader.NewLoader(service)
	server := api.NewServer(cfg.Server, service, pipelineLoader, ws, sseManager, logger)

	scheduler := schedule.NewScheduler(service, logger)
	scheduler.AddAll(cfg.Schedules)

	return &App{
		cfg:       cfg,
		logger:    logger,
		provider:  provider,
		taskQueue: taskQueue,
		worker:    worker,
		server:    server,
		scheduler: scheduler,
	}, nil
}

// Start runs the workers, the scheduler, and the HTTP server. It blocks
// until the server stops.
func (a *App) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	a.workerCancel = cancel

	a.worker.Start(ctx)
	a.scheduler.Start()

	return a.server.Start()
}

// Stop shuts everything down in dependency order: no new HTTP work, then
// schedules, then workers, then the queue and storage.
func (a *App) Stop(ctx context.Context) error {
	if err := a.server.Stop(ctx); err != nil {
		a.logger.Error("error stopping HTTP server", "error", err)
	}

	a.scheduler.Stop()

	if a.workerCancel != nil {
		a.workerCancel()
	}
	a.worker.Stop()

	if err := a.taskQueue.Close(); err != nil {
		a.logger.Error("error closing task queue", "error", err)
	}

	return a.provider.Close()
}
