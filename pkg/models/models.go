// Package models defines the core entities of the pipeline engine.
package models

import "time"

// PipelineStatus represents the lifecycle state of a pipeline definition
type PipelineStatus string

const (
	// PipelineStatusDraft is a pipeline still being assembled
	PipelineStatusDraft PipelineStatus = "draft"

	// PipelineStatusActive is a pipeline ready to be executed
	PipelineStatusActive PipelineStatus = "active"

	// PipelineStatusArchived is a retired pipeline kept for its run history
	PipelineStatusArchived PipelineStatus = "archived"
)

// NodeType identifies the behavior of a node
type NodeType string

const (
	// NodeTypeText renders a template against the node's inputs
	NodeTypeText NodeType = "text"

	// NodeTypeHTTPRequest issues an outbound HTTP request
	NodeTypeHTTPRequest NodeType = "http_request"

	// NodeTypeLLM calls a chat-completion provider
	NodeTypeLLM NodeType = "llm"

	// NodeTypeCondition is a declared extension point, not yet implemented
	NodeTypeCondition NodeType = "condition"

	// NodeTypeTransform is a declared extension point, not yet implemented
	NodeTypeTransform NodeType = "transform"
)

// Pipeline is a named, versioned container of nodes and edges
type Pipeline struct {
	// ID of the pipeline
	ID string `json:"id"`

	// Name of the pipeline
	Name string `json:"name"`

	// Status is the lifecycle state
	Status PipelineStatus `json:"status"`

	// CreatedAt is when the pipeline was created
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the pipeline was last modified
	UpdatedAt time.Time `json:"updated_at"`
}

// Node is a single typed step within a pipeline
type Node struct {
	// ID of the node
	ID string `json:"id"`

	// PipelineID is the owning pipeline
	PipelineID string `json:"pipeline_id"`

	// Name is the display name
	Name string `json:"name"`

	// Type selects the node's execution behavior
	Type NodeType `json:"type"`

	// Config is the type-specific configuration map
	Config map[string]interface{} `json:"config"`

	// PositionX is the UI canvas position, opaque to execution
	PositionX float64 `json:"position_x"`

	// PositionY is the UI canvas position, opaque to execution
	PositionY float64 `json:"position_y"`
}

// Edge is a directed data dependency between two nodes of one pipeline
type Edge struct {
	// ID of the edge
	ID string `json:"id"`

	// PipelineID is the owning pipeline
	PipelineID string `json:"pipeline_id"`

	// SourceNodeID is the producer node
	SourceNodeID string `json:"source_node_id"`

	// TargetNodeID is the consumer node
	TargetNodeID string `json:"target_node_id"`

	// SourceHandle optionally names the source output
	SourceHandle string `json:"source_handle,omitempty"`

	// TargetHandle optionally names the target input
	TargetHandle string `json:"target_handle,omitempty"`
}

// PipelineRun is one execution attempt of a pipeline
type PipelineRun struct {
	// ID of the run
	ID string `json:"id"`

	// PipelineID is the pipeline being executed
	PipelineID string `json:"pipeline_id"`

	// Status of the run
	Status RunStatus `json:"status"`

	// StartedAt is when the run left pending
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the run reached a terminal state
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// InputData holds the caller-supplied variables
	InputData map[string]interface{} `json:"input_data,omitempty"`

	// OutputData is the merged output of all completed nodes, set on success
	OutputData map[string]interface{} `json:"output_data,omitempty"`

	// ErrorMessage is set when the run fails
	ErrorMessage string `json:"error_message,omitempty"`

	// CreatedAt is when the run was created
	CreatedAt time.Time `json:"created_at"`
}

// NodeResult is the execution record of one node within one run.
// Exactly one exists per (run, node) pair, created lazily by the coordinator.
type NodeResult struct {
	// PipelineRunID is the owning run
	PipelineRunID string `json:"pipeline_run_id"`

	// NodeID is the node this result belongs to
	NodeID string `json:"node_id"`

	// Status of the node execution
	Status NodeResultStatus `json:"status"`

	// StartedAt is when execution began
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the result reached a terminal state
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// InputData holds the inputs resolved at dispatch time
	InputData map[string]interface{} `json:"input_data,omitempty"`

	// OutputData holds the node's output on success
	OutputData map[string]interface{} `json:"output_data,omitempty"`

	// ErrorMessage is set when execution fails
	ErrorMessage string `json:"error_message,omitempty"`

	// Metadata holds free-form execution details (duration, retries, tokens)
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}
