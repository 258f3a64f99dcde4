// Package storage provides interfaces for persistent storage.
package storage

import (
	"errors"

	"github.com/pyrex41/reelflow/pkg/models"
)

// Errors returned by storage providers
var (
	ErrPipelineNotFound   = errors.New("pipeline not found")
	ErrNodeNotFound       = errors.New("node not found")
	ErrEdgeNotFound       = errors.New("edge not found")
	ErrRunNotFound        = errors.New("pipeline run not found")
	ErrNodeResultNotFound = errors.New("node result not found")
	ErrDuplicateEdge      = errors.New("edge already exists")
)

// StorageProvider defines the interface for persistence backends
type StorageProvider interface {
	// Initialize sets up the storage backend
	Initialize() error

	// Close cleans up resources
	Close() error

	// GetPipelineStore returns a store for pipeline definitions
	GetPipelineStore() PipelineStore

	// GetRunStore returns a store for runs and node results
	GetRunStore() RunStore
}

// PipelineStore manages pipeline, node, and edge persistence
type PipelineStore interface {
	// SavePipeline creates or updates a pipeline
	SavePipeline(pipeline models.Pipeline) error

	// GetPipeline retrieves a pipeline by ID
	GetPipeline(pipelineID string) (models.Pipeline, error)

	// ListPipelines returns all pipelines
	ListPipelines() ([]models.Pipeline, error)

	// DeletePipeline removes a pipeline with its nodes and edges
	DeletePipeline(pipelineID string) error

	// SaveNode creates or updates a node
	SaveNode(node models.Node) error

	// GetNode retrieves a node by ID
	GetNode(nodeID string) (models.Node, error)

	// ListNodes returns all nodes of a pipeline
	ListNodes(pipelineID string) ([]models.Node, error)

	// DeleteNode removes a node and every edge touching it
	DeleteNode(nodeID string) error

	// SaveEdge creates an edge. It fails with ErrDuplicateEdge when an edge
	// with the same (source, target, source_handle, target_handle) exists.
	SaveEdge(edge models.Edge) error

	// ListEdges returns all edges of a pipeline
	ListEdges(pipelineID string) ([]models.Edge, error)

	// ListEdgesByTarget returns all edges pointing at a node
	ListEdgesByTarget(targetNodeID string) ([]models.Edge, error)

	// DeleteEdge removes an edge
	DeleteEdge(edgeID string) error
}

// RunStore manages run and node result persistence
type RunStore interface {
	// SaveRun creates or updates a pipeline run
	SaveRun(run models.PipelineRun) error

	// GetRun retrieves a run by ID
	GetRun(runID string) (models.PipelineRun, error)

	// ListRuns returns all runs of a pipeline
	ListRuns(pipelineID string) ([]models.PipelineRun, error)

	// SaveNodeResult creates or updates the result record of one (run, node) pair
	SaveNodeResult(result models.NodeResult) error

	// GetNodeResult retrieves the result record of one (run, node) pair
	GetNodeResult(runID, nodeID string) (models.NodeResult, error)

	// ListNodeResults returns all node results of a run
	ListNodeResults(runID string) ([]models.NodeResult, error)
}
