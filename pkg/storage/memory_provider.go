package storage

import (
	"sync"

	"github.com/pyrex41/reelflow/pkg/models"
)

// Records are cloned on save and on read so that callers mutating a record's
// maps after a Save (or before the next one) cannot change what the store
// holds. Only an explicit Save updates a stored record.
func cloneMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for key, value := range m {
		out[key] = cloneValue(value)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return cloneMap(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

func cloneNode(node models.Node) models.Node {
	node.Config = cloneMap(node.Config)
	return node
}

func cloneRun(run models.PipelineRun) models.PipelineRun {
	run.InputData = cloneMap(run.InputData)
	run.OutputData = cloneMap(run.OutputData)
	return run
}

func cloneNodeResult(result models.NodeResult) models.NodeResult {
	result.InputData = cloneMap(result.InputData)
	result.OutputData = cloneMap(result.OutputData)
	result.Metadata = cloneMap(result.Metadata)
	return result
}

// MemoryProvider implements the StorageProvider interface using in-memory storage
type MemoryProvider struct {
	pipelineStore *MemoryPipelineStore
	runStore      *MemoryRunStore
}

// NewMemoryProvider creates a new in-memory storage provider
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		pipelineStore: NewMemoryPipelineStore(),
		runStore:      NewMemoryRunStore(),
	}
}

// Initialize sets up the storage backend
func (p *MemoryProvider) Initialize() error {
	// Nothing to initialize for in-memory storage
	return nil
}

// Close cleans up resources
func (p *MemoryProvider) Close() error {
	// Nothing to close for in-memory storage
	return nil
}

// GetPipelineStore returns a store for pipeline definitions
func (p *MemoryProvider) GetPipelineStore() PipelineStore {
	return p.pipelineStore
}

// GetRunStore returns a store for runs and node results
func (p *MemoryProvider) GetRunStore() RunStore {
	return p.runStore
}

// MemoryPipelineStore implements the PipelineStore interface using in-memory storage
type MemoryPipelineStore struct {
	pipelines map[string]models.Pipeline
	nodes     map[string]models.Node
	edges     map[string]models.Edge
	mu        sync.RWMutex
}

// NewMemoryPipelineStore creates a new in-memory pipeline store
func NewMemoryPipelineStore() *MemoryPipelineStore {
	return &MemoryPipelineStore{
		pipelines: make(map[string]models.Pipeline),
		nodes:     make(map[string]models.Node),
		edges:     make(map[string]models.Edge),
	}
}

// SavePipeline creates or updates a pipeline
func (s *MemoryPipelineStore) SavePipeline(pipeline models.Pipeline) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pipelines[pipeline.ID] = pipeline

	return nil
}

// GetPipeline retrieves a pipeline by ID
func (s *MemoryPipelineStore) GetPipeline(pipelineID string) (models.Pipeline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pipeline, ok := s.pipelines[pipelineID]
	if !ok {
		return models.Pipeline{}, ErrPipelineNotFound
	}

	return pipeline, nil
}

// ListPipelines returns all pipelines
func (s *MemoryPipelineStore) ListPipelines() ([]models.Pipeline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pipelines := make([]models.Pipeline, 0, len(s.pipelines))
	for _, pipeline := range s.pipelines {
		pipelines = append(pipelines, pipeline)
	}

	return pipelines, nil
}

// DeletePipeline removes a pipeline with its nodes and edges
func (s *MemoryPipelineStore) DeletePipeline(pipelineID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pipelines[pipelineID]; !ok {
		return ErrPipelineNotFound
	}

	delete(s.pipelines, pipelineID)

	// Cascade to owned nodes and edges
	for id, node := range s.nodes {
		if node.PipelineID == pipelineID {
			delete(s.nodes, id)
		}
	}
	for id, edge := range s.edges {
		if edge.PipelineID == pipelineID {
			delete(s.edges, id)
		}
	}

	return nil
}

// SaveNode creates or updates a node
func (s *MemoryPipelineStore) SaveNode(node models.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pipelines[node.PipelineID]; !ok {
		return ErrPipelineNotFound
	}

	s.nodes[node.ID] = cloneNode(node)

	return nil
}

// GetNode retrieves a node by ID
func (s *MemoryPipelineStore) GetNode(nodeID string) (models.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	node, ok := s.nodes[nodeID]
	if !ok {
		return models.Node{}, ErrNodeNotFound
	}

	return cloneNode(node), nil
}

// ListNodes returns all nodes of a pipeline
func (s *MemoryPipelineStore) ListNodes(pipelineID string) ([]models.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nodes := make([]models.Node, 0)
	for _, node := range s.nodes {
		if node.PipelineID == pipelineID {
			nodes = append(nodes, cloneNode(node))
		}
	}

	return nodes, nil
}

// DeleteNode removes a node and every edge touching it
func (s *MemoryPipelineStore) DeleteNode(nodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[nodeID]; !ok {
		return ErrNodeNotFound
	}

	delete(s.nodes, nodeID)

	for id, edge := range s.edges {
		if edge.SourceNodeID == nodeID || edge.TargetNodeID == nodeID {
			delete(s.edges, id)
		}
	}

	return nil
}

// SaveEdge creates an edge, enforcing the uniqueness of the
// (source, target, source_handle, target_handle) tuple
func (s *MemoryPipelineStore) SaveEdge(edge models.Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.edges {
		if existing.ID == edge.ID {
			continue
		}
		if existing.SourceNodeID == edge.SourceNodeID &&
			existing.TargetNodeID == edge.TargetNodeID &&
			existing.SourceHandle == edge.SourceHandle &&
			existing.TargetHandle == edge.TargetHandle {
			return ErrDuplicateEdge
		}
	}

	s.edges[edge.ID] = edge

	return nil
}

// ListEdges returns all edges of a pipeline
func (s *MemoryPipelineStore) ListEdges(pipelineID string) ([]models.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	edges := make([]models.Edge, 0)
	for _, edge := range s.edges {
		if edge.PipelineID == pipelineID {
			edges = append(edges, edge)
		}
	}

	return edges, nil
}

// ListEdgesByTarget returns all edges pointing at a node
func (s *MemoryPipelineStore) ListEdgesByTarget(targetNodeID string) ([]models.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	edges := make([]models.Edge, 0)
	for _, edge := range s.edges {
		if edge.TargetNodeID == targetNodeID {
			edges = append(edges, edge)
		}
	}

	return edges, nil
}

// DeleteEdge removes an edge
func (s *MemoryPipelineStore) DeleteEdge(edgeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.edges[edgeID]; !ok {
		return ErrEdgeNotFound
	}

	delete(s.edges, edgeID)

	return nil
}

// MemoryRunStore implements the RunStore interface using in-memory storage
type MemoryRunStore struct {
	runs    map[string]models.PipelineRun
	results map[string]map[string]models.NodeResult
	mu      sync.RWMutex
}

// NewMemoryRunStore creates a new in-memory run store
func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{
		runs:    make(map[string]models.PipelineRun),
		results: make(map[string]map[string]models.NodeResult),
	}
}

// SaveRun creates or updates a pipeline run
func (s *MemoryRunStore) SaveRun(run models.PipelineRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[run.ID] = cloneRun(run)

	return nil
}

// GetRun retrieves a run by ID
func (s *MemoryRunStore) GetRun(runID string) (models.PipelineRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[runID]
	if !ok {
		return models.PipelineRun{}, ErrRunNotFound
	}

	return cloneRun(run), nil
}

// ListRuns returns all runs of a pipeline
func (s *MemoryRunStore) ListRuns(pipelineID string) ([]models.PipelineRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]models.PipelineRun, 0)
	for _, run := range s.runs {
		if run.PipelineID == pipelineID {
			runs = append(runs, cloneRun(run))
		}
	}

	return runs, nil
}

// SaveNodeResult creates or updates the result record of one (run, node) pair
func (s *MemoryRunStore) SaveNodeResult(result models.NodeResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.results[result.PipelineRunID]; !ok {
		s.results[result.PipelineRunID] = make(map[string]models.NodeResult)
	}

	s.results[result.PipelineRunID][result.NodeID] = cloneNodeResult(result)

	return nil
}

// GetNodeResult retrieves the result record of one (run, node) pair
func (s *MemoryRunStore) GetNodeResult(runID, nodeID string) (models.NodeResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runResults, ok := s.results[runID]
	if !ok {
		return models.NodeResult{}, ErrNodeResultNotFound
	}

	result, ok := runResults[nodeID]
	if !ok {
		return models.NodeResult{}, ErrNodeResultNotFound
	}

	return cloneNodeResult(result), nil
}

// ListNodeResults returns all node results of a run
func (s *MemoryRunStore) ListNodeResults(runID string) ([]models.NodeResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runResults, ok := s.results[runID]
	if !ok {
		return []models.NodeResult{}, nil
	}

	results := make([]models.NodeResult, 0, len(runResults))
	for _, result := range runResults {
		results = append(results, cloneNodeResult(result))
	}

	return results, nil
}
