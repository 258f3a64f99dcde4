package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"dario.cat/mergo"
	"github.com/hashicorp/go-hclog"

	"github.com/pyrex41/reelflow/pkg/config"
	"github.com/pyrex41/reelflow/pkg/models"
	"github.com/pyrex41/reelflow/pkg/queue"
	"github.com/pyrex41/reelflow/pkg/storage"
)

// Task types delivered through the queue
const (
	// TaskTypeTick drives one coordination pass over a run
	TaskTypeTick = "pipeline.tick"

	// TaskTypeNodeExecute executes one node within a run
	TaskTypeNodeExecute = "node.execute"
)

// TickPayload is the payload of a TaskTypeTick task
type TickPayload struct {
	RunID string `json:"run_id"`
}

// NodeExecutePayload is the payload of a TaskTypeNodeExecute task
type NodeExecutePayload struct {
	RunID  string `json:"run_id"`
	NodeID string `json:"node_id"`
}

// Coordinator advances pipeline runs. Each tick is idempotent: it reloads
// the run, reconciles node results against the graph, dispatches whatever
// became ready, and re-arms itself until the run settles.
type Coordinator struct {
	pipelineStore storage.PipelineStore
	runStore      storage.RunStore
	queue         queue.Queue
	publisher     EventPublisher
	logger        hclog.Logger

	tickInterval    time.Duration
	nodeMaxAttempts int
}

// NewCoordinator creates a coordinator.
func NewCoordinator(provider storage.StorageProvider, q queue.Queue, publisher EventPublisher, engineCfg config.EngineConfig, logger hclog.Logger) *Coordinator {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &Coordinator{
		pipelineStore:   provider.GetPipelineStore(),
		runStore:        provider.GetRunStore(),
		queue:           q,
		publisher:       publisher,
		logger:          logger.Named("coordinator"),
		tickInterval:    engineCfg.TickInterval,
		nodeMaxAttempts: engineCfg.NodeMaxAttempts,
	}
}

// Register wires the coordinator's handler into a worker.
func (c *Coordinator) Register(w *queue.Worker) {
	w.Register(TaskTypeTick, c.HandleTick)
}

// EnqueueTick schedules a coordination pass for a run after the given delay.
func (c *Coordinator) EnqueueTick(ctx context.Context, runID string, delay time.Duration) error {
	_, err := c.queue.Enqueue(ctx, TaskTypeTick, TickPayload{RunID: runID}, &queue.EnqueueOptions{Delay: delay})
	if err != nil {
		return fmt.Errorf("failed to enqueue tick for run %s: %w", runID, err)
	}
	return nil
}

// HandleTick processes one coordination pass.
func (c *Coordinator) HandleTick(ctx context.Context, task *queue.Task) error {
	var payload TickPayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		return queue.Permanent(fmt.Errorf("malformed tick payload: %w", err))
	}

	run, err := c.runStore.GetRun(payload.RunID)
	if err != nil {
		if errors.Is(err, storage.ErrRunNotFound) {
			return queue.Permanent(err)
		}
		return fmt.Errorf("failed to load run %s: %w", payload.RunID, err)
	}

	// A cancelled or otherwise settled run needs no further coordination.
	if run.Status.Terminal() {
		c.logger.Debug("tick on settled run", "run_id", run.ID, "status", run.Status)
		return nil
	}

	if run.Status == models.RunStatusPending {
		if err := run.Start(); err != nil {
			return queue.Permanent(err)
		}
		if err := c.runStore.SaveRun(run); err != nil {
			return fmt.Errorf("failed to save run %s: %w", run.ID, err)
		}
		c.publish(EventRunStarted, run, "", nil)
		c.logger.Info("run started", "run_id", run.ID, "pipeline_id", run.PipelineID)
	}

	nodes, err := c.pipelineStore.ListNodes(run.PipelineID)
	if err != nil {
		return fmt.Errorf("failed to list nodes for pipeline %s: %w", run.PipelineID, err)
	}
	edges, err := c.pipelineStore.ListEdges(run.PipelineID)
	if err != nil {
		return fmt.Errorf("failed to list edges for pipeline %s: %w", run.PipelineID, err)
	}

	results, err := c.ensureNodeResults(run, nodes)
	if err != nil {
		return err
	}

	if failed := firstFailed(nodes, results); failed != nil {
		return c.settleFailed(ctx, run, nodes, results, failed)
	}

	if allTerminal(nodes, results) {
		return c.settleCompleted(ctx, run, nodes, results)
	}

	for _, node := range ReadyNodes(nodes, edges, results) {
		payload := NodeExecutePayload{RunID: run.ID, NodeID: node.ID}
		opts := &queue.EnqueueOptions{MaxAttempts: c.nodeMaxAttempts}
		if _, err := c.queue.Enqueue(ctx, TaskTypeNodeExecute, payload, opts); err != nil {
			return fmt.Errorf("failed to dispatch node %s: %w", node.ID, err)
		}
		c.logger.Debug("node dispatched", "run_id", run.ID, "node_id", node.ID)
	}

	return c.EnqueueTick(ctx, run.ID, c.tickInterval)
}

// ensureNodeResults lazily creates the pending result record for every node
// of the run and returns the full result set keyed by node ID.
func (c *Coordinator) ensureNodeResults(run models.PipelineRun, nodes []models.Node) (map[string]models.NodeResult, error) {
	existing, err := c.runStore.ListNodeResults(run.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list node results for run %s: %w", run.ID, err)
	}

	results := make(map[string]models.NodeResult, len(nodes))
	for _, result := range existing {
		results[result.NodeID] = result
	}

	for _, node := range nodes {
		if _, ok := results[node.ID]; ok {
			continue
		}
		result := models.NodeResult{
			PipelineRunID: run.ID,
			NodeID:        node.ID,
			Status:        models.NodeResultStatusPending,
		}
		if err := c.runStore.SaveNodeResult(result); err != nil {
			return nil, fmt.Errorf("failed to create node result for node %s: %w", node.ID, err)
		}
		results[node.ID] = result
	}

	return results, nil
}

// settleFailed marks the run failed, attributing the failure to the first
// failed node in node ID order, and skips the nodes still pending so every
// result record reaches a terminal state.
func (c *Coordinator) settleFailed(ctx context.Context, run models.PipelineRun, nodes []models.Node, results map[string]models.NodeResult, failed *models.NodeResult) error {
	for _, node := range sortedByID(nodes) {
		result := results[node.ID]
		if result.Status != models.NodeResultStatusPending {
			continue
		}
		if err := result.Skip(); err != nil {
			return queue.Permanent(err)
		}
		if err := c.runStore.SaveNodeResult(result); err != nil {
			return fmt.Errorf("failed to save skipped node result %s: %w", result.NodeID, err)
		}
		results[node.ID] = result
		c.publish(EventNodeSkipped, run, node.ID, nil)
	}

	message := fmt.Sprintf("node %s failed: %s", failed.NodeID, failed.ErrorMessage)
	if err := run.Fail(message); err != nil {
		return queue.Permanent(err)
	}
	if err := c.runStore.SaveRun(run); err != nil {
		return fmt.Errorf("failed to save failed run %s: %w", run.ID, err)
	}

	c.publish(EventRunFailed, run, failed.NodeID, map[string]interface{}{"error": message})
	c.logger.Warn("run failed", "run_id", run.ID, "node_id", failed.NodeID, "error", failed.ErrorMessage)
	return nil
}

// settleCompleted merges the outputs of all completed nodes in node ID order
// and marks the run completed. A run with no nodes completes with empty output.
func (c *Coordinator) settleCompleted(ctx context.Context, run models.PipelineRun, nodes []models.Node, results map[string]models.NodeResult) error {
	merged := make(map[string]interface{})
	for _, node := range sortedByID(nodes) {
		result := results[node.ID]
		if result.Status != models.NodeResultStatusCompleted || result.OutputData == nil {
			continue
		}
		if err := mergo.Merge(&merged, result.OutputData, mergo.WithOverride); err != nil {
			return fmt.Errorf("failed to merge output of node %s: %w", node.ID, err)
		}
	}

	if err := run.Complete(merged); err != nil {
		return queue.Permanent(err)
	}
	if err := c.runStore.SaveRun(run); err != nil {
		return fmt.Errorf("failed to save completed run %s: %w", run.ID, err)
	}

	c.publish(EventRunCompleted, run, "", map[string]interface{}{"output": merged})
	c.logger.Info("run completed", "run_id", run.ID, "pipeline_id", run.PipelineID)
	return nil
}

func (c *Coordinator) publish(eventType EventType, run models.PipelineRun, nodeID string, data map[string]interface{}) {
	c.publisher.Publish(Event{
		Type:       eventType,
		RunID:      run.ID,
		PipelineID: run.PipelineID,
		NodeID:     nodeID,
		Data:       data,
		Timestamp:  time.Now().UTC(),
	})
}

// firstFailed returns the failed result with the lowest node ID, or nil.
func firstFailed(nodes []models.Node, results map[string]models.NodeResult) *models.NodeResult {
	for _, node := range sortedByID(nodes) {
		result := results[node.ID]
		if result.Status == models.NodeResultStatusFailed {
			return &result
		}
	}
	return nil
}

// allTerminal reports whether every node's result reached a terminal state.
func allTerminal(nodes []models.Node, results map[string]models.NodeResult) bool {
	for _, node := range nodes {
		if !results[node.ID].Status.Terminal() {
			return false
		}
	}
	return true
}

func sortedByID(nodes []models.Node) []models.Node {
	sorted := make([]models.Node, len(nodes))
	copy(sorted, nodes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	return sorted
}
