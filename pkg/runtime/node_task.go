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

	"github.com/pyrex41/reelflow/pkg/models"
	"github.com/pyrex41/reelflow/pkg/queue"
	"github.com/pyrex41/reelflow/pkg/registry"
	"github.com/pyrex41/reelflow/pkg/storage"
)

// Executor handles node execution tasks. Each delivery resolves the node's
// inputs from its upstream results, runs the node type, and records the
// outcome. Transient failures are surfaced to the worker for redelivery;
// the final attempt or a permanent failure marks the result failed.
type Executor struct {
	pipelineStore storage.PipelineStore
	runStore      storage.RunStore
	registry      *registry.Registry
	publisher     EventPublisher
	logger        hclog.Logger
}

// NewExecutor creates an executor.
func NewExecutor(provider storage.StorageProvider, reg *registry.Registry, publisher EventPublisher, logger hclog.Logger) *Executor {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &Executor{
		pipelineStore: provider.GetPipelineStore(),
		runStore:      provider.GetRunStore(),
		registry:      reg,
		publisher:     publisher,
		logger:        logger.Named("executor"),
	}
}

// Register wires the executor's handler into a worker.
func (e *Executor) Register(w *queue.Worker) {
	w.Register(TaskTypeNodeExecute, e.HandleNodeExecute)
}

// HandleNodeExecute processes one node execution delivery.
func (e *Executor) HandleNodeExecute(ctx context.Context, task *queue.Task) error {
	var payload NodeExecutePayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		return queue.Permanent(fmt.Errorf("malformed node execute payload: %w", err))
	}

	run, err := e.runStore.GetRun(payload.RunID)
	if err != nil {
		if errors.Is(err, storage.ErrRunNotFound) {
			return queue.Permanent(err)
		}
		return fmt.Errorf("failed to load run %s: %w", payload.RunID, err)
	}

	// A node dispatched before the run settled must not execute afterward.
	if run.Status.Terminal() {
		e.logger.Debug("dropping node task on settled run", "run_id", run.ID, "node_id", payload.NodeID, "status", run.Status)
		return nil
	}

	node, err := e.pipelineStore.GetNode(payload.NodeID)
	if err != nil {
		if errors.Is(err, storage.ErrNodeNotFound) {
			return queue.Permanent(err)
		}
		return fmt.Errorf("failed to load node %s: %w", payload.NodeID, err)
	}

	result, err := e.runStore.GetNodeResult(run.ID, node.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNodeResultNotFound) {
			return queue.Permanent(err)
		}
		return fmt.Errorf("failed to load node result %s: %w", node.ID, err)
	}

	if err := result.Start(task.Attempt); err != nil {
		// Duplicate delivery or already settled result. Drop without retry.
		e.logger.Debug("dropping duplicate node delivery", "run_id", run.ID, "node_id", node.ID, "attempt", task.Attempt, "error", err)
		return nil
	}

	inputs, err := e.resolveInputs(run, node)
	if err != nil {
		return err
	}
	result.InputData = inputs

	if err := e.runStore.SaveNodeResult(result); err != nil {
		return fmt.Errorf("failed to save node result %s: %w", node.ID, err)
	}
	e.publishNode(EventNodeStarted, run, node.ID, nil)

	nodeType, err := e.registry.Get(string(node.Type))
	if err != nil {
		return e.failNode(run, result, fmt.Sprintf("unknown node type %q", node.Type))
	}
	if err := nodeType.ValidateConfig(&node); err != nil {
		return e.failNode(run, result, fmt.Sprintf("invalid configuration: %v", err))
	}

	execCtx := registry.ExecutionContext{
		PipelineID: run.PipelineID,
		RunID:      run.ID,
		Attempt:    task.Attempt,
		Logger:     e.logger.With("run_id", run.ID, "node_id", node.ID),
	}

	startTime := time.Now()
	output, metadata, err := nodeType.Execute(ctx, &node, inputs, execCtx)
	duration := time.Since(startTime)

	if err != nil {
		if queue.IsPermanent(err) || task.Attempt >= task.MaxAttempts {
			return e.failNode(run, result, err.Error())
		}

		// Transient failure with budget left: record it and let the worker
		// redeliver with backoff. The result stays running.
		if result.Metadata == nil {
			result.Metadata = make(map[string]interface{})
		}
		result.Metadata["last_error"] = err.Error()
		if saveErr := e.runStore.SaveNodeResult(result); saveErr != nil {
			return fmt.Errorf("failed to record node error %s: %w", node.ID, saveErr)
		}
		e.logger.Warn("node attempt failed", "run_id", run.ID, "node_id", node.ID, "attempt", task.Attempt, "error", err)
		return err
	}

	if metadata == nil {
		metadata = make(map[string]interface{})
	}
	metadata["duration_ms"] = duration.Milliseconds()

	if err := result.Complete(output, metadata); err != nil {
		return queue.Permanent(err)
	}
	if err := e.runStore.SaveNodeResult(result); err != nil {
		return fmt.Errorf("failed to save completed node result %s: %w", node.ID, err)
	}

	e.publishNode(EventNodeCompleted, run, node.ID, map[string]interface{}{"output": output})
	e.logger.Info("node completed", "run_id", run.ID, "node_id", node.ID, "duration_ms", duration.Milliseconds())
	return nil
}

// resolveInputs builds a node's input map. A node with no incoming edges
// receives the run's input data; otherwise the outputs of its upstream nodes
// are merged in source node ID order, later sources overriding earlier ones.
func (e *Executor) resolveInputs(run models.PipelineRun, node models.Node) (map[string]interface{}, error) {
	edges, err := e.pipelineStore.ListEdgesByTarget(node.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list edges for node %s: %w", node.ID, err)
	}

	inputs := make(map[string]interface{})

	if len(edges) == 0 {
		if err := mergo.Merge(&inputs, run.InputData, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to copy run input: %w", err)
		}
		return inputs, nil
	}

	sourceIDs := make([]string, 0, len(edges))
	seen := make(map[string]bool)
	for _, edge := range edges {
		if !seen[edge.SourceNodeID] {
			seen[edge.SourceNodeID] = true
			sourceIDs = append(sourceIDs, edge.SourceNodeID)
		}
	}
	sort.Strings(sourceIDs)

	for _, sourceID := range sourceIDs {
		upstream, err := e.runStore.GetNodeResult(run.ID, sourceID)
		if err != nil {
			return nil, fmt.Errorf("failed to load upstream result %s: %w", sourceID, err)
		}
		if upstream.Status != models.NodeResultStatusCompleted {
			return nil, fmt.Errorf("upstream node %s has not completed", sourceID)
		}
		if err := mergo.Merge(&inputs, upstream.OutputData, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge upstream output %s: %w", sourceID, err)
		}
	}

	return inputs, nil
}

// failNode terminally fails a node result. The run itself is failed by the
// coordinator on its next tick.
func (e *Executor) failNode(run models.PipelineRun, result models.NodeResult, message string) error {
	if err := result.Fail(message); err != nil {
		return queue.Permanent(err)
	}
	if err := e.runStore.SaveNodeResult(result); err != nil {
		return fmt.Errorf("failed to save failed node result %s: %w", result.NodeID, err)
	}

	e.publishNode(EventNodeFailed, run, result.NodeID, map[string]interface{}{"error": message})
	e.logger.Warn("node failed", "run_id", run.ID, "node_id", result.NodeID, "error", message)
	return nil
}

func (e *Executor) publishNode(eventType EventType, run models.PipelineRun, nodeID string, data map[string]interface{}) {
	e.publisher.Publish(Event{
		Type:       eventType,
		RunID:      run.ID,
		PipelineID: run.PipelineID,
		NodeID:     nodeID,
		Data:       data,
		Timestamp:  time.Now().UTC(),
	})
}
