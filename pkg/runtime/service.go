package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/pyrex41/reelflow/pkg/models"
	"github.com/pyrex41/reelflow/pkg/registry"
	"github.com/pyrex41/reelflow/pkg/storage"
)

// Errors returned by the pipeline service
var (
	// ErrPipelineArchived is returned when mutating or running an archived pipeline
	ErrPipelineArchived = errors.New("pipeline is archived")

	// ErrEdgeCrossesPipelines is returned when an edge's nodes belong to different pipelines
	ErrEdgeCrossesPipelines = errors.New("edge nodes belong to different pipelines")

	// ErrSelfEdge is returned when an edge's source and target are the same node
	ErrSelfEdge = errors.New("edge source and target are the same node")

	// ErrCycle is returned when an edge would close a dependency cycle
	ErrCycle = errors.New("edge would create a cycle")
)

// Service is the entry point for managing pipelines and runs. Mutations are
// validated eagerly so a stored pipeline graph is always acyclic.
type Service struct {
	pipelineStore storage.PipelineStore
	runStore      storage.RunStore
	registry      *registry.Registry
	coordinator   *Coordinator
	publisher     EventPublisher
	logger        hclog.Logger
}

// NewService creates a pipeline service.
func NewService(provider storage.StorageProvider, reg *registry.Registry, coordinator *Coordinator, publisher EventPublisher, logger hclog.Logger) *Service {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &Service{
		pipelineStore: provider.GetPipelineStore(),
		runStore:      provider.GetRunStore(),
		registry:      reg,
		coordinator:   coordinator,
		publisher:     publisher,
		logger:        logger.Named("service"),
	}
}

// CreatePipeline creates a new draft pipeline.
func (s *Service) CreatePipeline(name string) (models.Pipeline, error) {
	if name == "" {
		return models.Pipeline{}, fmt.Errorf("pipeline name must not be empty")
	}

	now := time.Now().UTC()
	pipeline := models.Pipeline{
		ID:        uuid.New().String(),
		Name:      name,
		Status:    models.PipelineStatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.pipelineStore.SavePipeline(pipeline); err != nil {
		return models.Pipeline{}, fmt.Errorf("failed to save pipeline: %w", err)
	}

	s.logger.Info("pipeline created", "pipeline_id", pipeline.ID, "name", name)
	return pipeline, nil
}

// GetPipeline retrieves a pipeline by ID.
func (s *Service) GetPipeline(pipelineID string) (models.Pipeline, error) {
	return s.pipelineStore.GetPipeline(pipelineID)
}

// ListPipelines returns all pipelines.
func (s *Service) ListPipelines() ([]models.Pipeline, error) {
	return s.pipelineStore.ListPipelines()
}

// ActivatePipeline validates a pipeline's graph and node configurations and
// marks it active.
func (s *Service) ActivatePipeline(pipelineID string) (models.Pipeline, error) {
	pipeline, err := s.pipelineStore.GetPipeline(pipelineID)
	if err != nil {
		return models.Pipeline{}, err
	}
	if pipeline.Status == models.PipelineStatusArchived {
		return models.Pipeline{}, ErrPipelineArchived
	}

	if err := s.validatePipeline(pipelineID); err != nil {
		return models.Pipeline{}, err
	}

	pipeline.Status = models.PipelineStatusActive
	pipeline.UpdatedAt = time.Now().UTC()
	if err := s.pipelineStore.SavePipeline(pipeline); err != nil {
		return models.Pipeline{}, fmt.Errorf("failed to save pipeline: %w", err)
	}

	s.logger.Info("pipeline activated", "pipeline_id", pipelineID)
	return pipeline, nil
}

// ArchivePipeline retires a pipeline, keeping its run history.
func (s *Service) ArchivePipeline(pipelineID string) (models.Pipeline, error) {
	pipeline, err := s.pipelineStore.GetPipeline(pipelineID)
	if err != nil {
		return models.Pipeline{}, err
	}

	pipeline.Status = models.PipelineStatusArchived
	pipeline.UpdatedAt = time.Now().UTC()
	if err := s.pipelineStore.SavePipeline(pipeline); err != nil {
		return models.Pipeline{}, fmt.Errorf("failed to save pipeline: %w", err)
	}

	s.logger.Info("pipeline archived", "pipeline_id", pipelineID)
	return pipeline, nil
}

// DeletePipeline removes a pipeline with its nodes and edges. A pipeline
// that already has runs is archived instead so run history stays intact.
func (s *Service) DeletePipeline(pipelineID string) error {
	runs, err := s.runStore.ListRuns(pipelineID)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(runs) > 0 {
		_, err := s.ArchivePipeline(pipelineID)
		return err
	}

	if err := s.pipelineStore.DeletePipeline(pipelineID); err != nil {
		return err
	}

	s.logger.Info("pipeline deleted", "pipeline_id", pipelineID)
	return nil
}

// AddNode adds a node to a pipeline. The node type must be registered.
func (s *Service) AddNode(pipelineID, name string, nodeType models.NodeType, config map[string]interface{}, posX, posY float64) (models.Node, error) {
	pipeline, err := s.pipelineStore.GetPipeline(pipelineID)
	if err != nil {
		return models.Node{}, err
	}
	if pipeline.Status == models.PipelineStatusArchived {
		return models.Node{}, ErrPipelineArchived
	}

	if _, err := s.registry.Get(string(nodeType)); err != nil {
		return models.Node{}, err
	}

	node := models.Node{
		ID:         uuid.New().String(),
		PipelineID: pipelineID,
		Name:       name,
		Type:       nodeType,
		Config:     config,
		PositionX:  posX,
		PositionY:  posY,
	}

	if err := s.pipelineStore.SaveNode(node); err != nil {
		return models.Node{}, fmt.Errorf("failed to save node: %w", err)
	}
	s.touchPipeline(pipeline)

	return node, nil
}

// UpdateNode replaces a node's name, configuration, and position.
func (s *Service) UpdateNode(node models.Node) (models.Node, error) {
	existing, err := s.pipelineStore.GetNode(node.ID)
	if err != nil {
		return models.Node{}, err
	}

	pipeline, err := s.pipelineStore.GetPipeline(existing.PipelineID)
	if err != nil {
		return models.Node{}, err
	}
	if pipeline.Status == models.PipelineStatusArchived {
		return models.Node{}, ErrPipelineArchived
	}

	// Type and pipeline are fixed at creation.
	node.PipelineID = existing.PipelineID
	node.Type = existing.Type

	if err := s.pipelineStore.SaveNode(node); err != nil {
		return models.Node{}, fmt.Errorf("failed to save node: %w", err)
	}
	s.touchPipeline(pipeline)

	return node, nil
}

// RemoveNode deletes a node and every edge touching it.
func (s *Service) RemoveNode(nodeID string) error {
	node, err := s.pipelineStore.GetNode(nodeID)
	if err != nil {
		return err
	}

	pipeline, err := s.pipelineStore.GetPipeline(node.PipelineID)
	if err != nil {
		return err
	}
	if pipeline.Status == models.PipelineStatusArchived {
		return ErrPipelineArchived
	}

	if err := s.pipelineStore.DeleteNode(nodeID); err != nil {
		return err
	}
	s.touchPipeline(pipeline)

	return nil
}

// ListNodes returns all nodes of a pipeline.
func (s *Service) ListNodes(pipelineID string) ([]models.Node, error) {
	return s.pipelineStore.ListNodes(pipelineID)
}

// AddEdge connects two nodes of the same pipeline. Self-edges, duplicate
// edges, and edges that would close a cycle are rejected.
func (s *Service) AddEdge(pipelineID, sourceNodeID, targetNodeID, sourceHandle, targetHandle string) (models.Edge, error) {
	pipeline, err := s.pipelineStore.GetPipeline(pipelineID)
	if err != nil {
		return models.Edge{}, err
	}
	if pipeline.Status == models.PipelineStatusArchived {
		return models.Edge{}, ErrPipelineArchived
	}

	if sourceNodeID == targetNodeID {
		return models.Edge{}, ErrSelfEdge
	}

	source, err := s.pipelineStore.GetNode(sourceNodeID)
	if err != nil {
		return models.Edge{}, fmt.Errorf("source: %w", err)
	}
	target, err := s.pipelineStore.GetNode(targetNodeID)
	if err != nil {
		return models.Edge{}, fmt.Errorf("target: %w", err)
	}
	if source.PipelineID != pipelineID || target.PipelineID != pipelineID {
		return models.Edge{}, ErrEdgeCrossesPipelines
	}

	edges, err := s.pipelineStore.ListEdges(pipelineID)
	if err != nil {
		return models.Edge{}, fmt.Errorf("failed to list edges: %w", err)
	}
	if WouldCreateCycle(edges, sourceNodeID, targetNodeID) {
		return models.Edge{}, ErrCycle
	}

	edge := models.Edge{
		ID:           uuid.New().String(),
		PipelineID:   pipelineID,
		SourceNodeID: sourceNodeID,
		TargetNodeID: targetNodeID,
		SourceHandle: sourceHandle,
		TargetHandle: targetHandle,
	}

	if err := s.pipelineStore.SaveEdge(edge); err != nil {
		return models.Edge{}, err
	}
	s.touchPipeline(pipeline)

	return edge, nil
}

// RemoveEdge deletes an edge.
func (s *Service) RemoveEdge(edgeID string) error {
	return s.pipelineStore.DeleteEdge(edgeID)
}

// ListEdges returns all edges of a pipeline.
func (s *Service) ListEdges(pipelineID string) ([]models.Edge, error) {
	return s.pipelineStore.ListEdges(pipelineID)
}

// CreateRun validates the pipeline and starts a new run. The run is created
// pending and the first coordination tick is enqueued immediately.
func (s *Service) CreateRun(ctx context.Context, pipelineID string, input map[string]interface{}) (models.PipelineRun, error) {
	pipeline, err := s.pipelineStore.GetPipeline(pipelineID)
	if err != nil {
		return models.PipelineRun{}, err
	}
	if pipeline.Status == models.PipelineStatusArchived {
		return models.PipelineRun{}, ErrPipelineArchived
	}

	if err := s.validatePipeline(pipelineID); err != nil {
		return models.PipelineRun{}, err
	}

	run := models.PipelineRun{
		ID:         uuid.New().String(),
		PipelineID: pipelineID,
		Status:     models.RunStatusPending,
		InputData:  input,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.runStore.SaveRun(run); err != nil {
		return models.PipelineRun{}, fmt.Errorf("failed to save run: %w", err)
	}

	if err := s.coordinator.EnqueueTick(ctx, run.ID, 0); err != nil {
		return models.PipelineRun{}, err
	}

	s.logger.Info("run created", "run_id", run.ID, "pipeline_id", pipelineID)
	return run, nil
}

// GetRun retrieves a run by ID.
func (s *Service) GetRun(runID string) (models.PipelineRun, error) {
	return s.runStore.GetRun(runID)
}

// ListRuns returns all runs of a pipeline.
func (s *Service) ListRuns(pipelineID string) ([]models.PipelineRun, error) {
	return s.runStore.ListRuns(pipelineID)
}

// ListNodeResults returns the node results of a run.
func (s *Service) ListNodeResults(runID string) ([]models.NodeResult, error) {
	return s.runStore.ListNodeResults(runID)
}

// CancelRun stops a pending or running run. In-flight node executions finish
// but no further nodes are dispatched.
func (s *Service) CancelRun(runID string) (models.PipelineRun, error) {
	run, err := s.runStore.GetRun(runID)
	if err != nil {
		return models.PipelineRun{}, err
	}

	if err := run.Cancel(); err != nil {
		return models.PipelineRun{}, err
	}
	if err := s.runStore.SaveRun(run); err != nil {
		return models.PipelineRun{}, fmt.Errorf("failed to save run: %w", err)
	}

	s.publisher.Publish(Event{
		Type:       EventRunCancelled,
		RunID:      run.ID,
		PipelineID: run.PipelineID,
		Timestamp:  time.Now().UTC(),
	})
	s.logger.Info("run cancelled", "run_id", runID)

	return run, nil
}

// validatePipeline checks the pipeline graph and every node's configuration.
func (s *Service) validatePipeline(pipelineID string) error {
	nodes, err := s.pipelineStore.ListNodes(pipelineID)
	if err != nil {
		return fmt.Errorf("failed to list nodes: %w", err)
	}
	edges, err := s.pipelineStore.ListEdges(pipelineID)
	if err != nil {
		return fmt.Errorf("failed to list edges: %w", err)
	}

	if err := ValidateGraph(nodes, edges); err != nil {
		return err
	}

	for _, node := range nodes {
		nodeType, err := s.registry.Get(string(node.Type))
		if err != nil {
			return fmt.Errorf("node %s: %w", node.ID, err)
		}
		if err := nodeType.ValidateConfig(&node); err != nil {
			return fmt.Errorf("node %s: %w", node.ID, err)
		}
	}

	return nil
}

func (s *Service) touchPipeline(pipeline models.Pipeline) {
	pipeline.UpdatedAt = time.Now().UTC()
	if err := s.pipelineStore.SavePipeline(pipeline); err != nil {
		s.logger.Warn("failed to touch pipeline", "pipeline_id", pipeline.ID, "error", err)
	}
}
