// Package registry provides the node type registry for reelflow.
package registry

import (
	"context"

	"github.com/hashicorp/go-hclog"

	"github.com/pyrex41/reelflow/pkg/models"
)

// ExecutionContext carries run-level information into a node execution.
type ExecutionContext struct {
	// PipelineID is the pipeline the executing node belongs to
	PipelineID string
	// RunID is the pipeline run the execution belongs to
	RunID string
	// Attempt is the 1-based delivery attempt for this execution
	Attempt int
	// Logger is scoped to the run
	Logger hclog.Logger
}

// NodeType defines the behavior of a node type. Implementations must be
// safe for concurrent use: a single instance serves every node of its type.
type NodeType interface {
	// Type returns the type name nodes reference in their definition
	Type() string

	// ValidateConfig checks a node's configuration without executing it.
	// It is called at pipeline deploy time and again before execution.
	ValidateConfig(node *models.Node) error

	// Execute runs the node with the given merged inputs and returns its
	// output data plus execution metadata (timings, provider details).
	Execute(ctx context.Context, node *models.Node, inputs map[string]interface{}, execCtx ExecutionContext) (map[string]interface{}, map[string]interface{}, error)
}
