package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTransition is returned when a state change violates a state machine
var ErrInvalidTransition = errors.New("invalid status transition")

// RunStatus represents the state of a pipeline run
type RunStatus string

const (
	// RunStatusPending is a run that has not been picked up yet
	RunStatusPending RunStatus = "pending"

	// RunStatusRunning is a run making progress
	RunStatusRunning RunStatus = "running"

	// RunStatusCompleted is a run whose every node completed or was skipped
	RunStatusCompleted RunStatus = "completed"

	// RunStatusFailed is a run aborted by a failed node or fatal error
	RunStatusFailed RunStatus = "failed"

	// RunStatusCancelled is a run stopped by the caller
	RunStatusCancelled RunStatus = "cancelled"
)

// Terminal reports whether the run status is final
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusCancelled
}

// NodeResultStatus represents the state of one node execution record
type NodeResultStatus string

const (
	// NodeResultStatusPending is a node waiting on its dependencies
	NodeResultStatusPending NodeResultStatus = "pending"

	// NodeResultStatusRunning is a node currently executing
	NodeResultStatusRunning NodeResultStatus = "running"

	// NodeResultStatusCompleted is a node that produced output
	NodeResultStatusCompleted NodeResultStatus = "completed"

	// NodeResultStatusFailed is a node that terminally failed
	NodeResultStatusFailed NodeResultStatus = "failed"

	// NodeResultStatusSkipped is a node that was bypassed
	NodeResultStatusSkipped NodeResultStatus = "skipped"
)

// Terminal reports whether the node result status is final
func (s NodeResultStatus) Terminal() bool {
	return s == NodeResultStatusCompleted || s == NodeResultStatusFailed || s == NodeResultStatusSkipped
}

// Start moves a run from pending to running
func (r *PipelineRun) Start() error {
	if r.Status != RunStatusPending {
		return fmt.Errorf("%w: run %s cannot start from %s", ErrInvalidTransition, r.ID, r.Status)
	}

	now := time.Now().UTC()
	r.Status = RunStatusRunning
	r.StartedAt = &now

	return nil
}

// Complete moves a run from running to completed and stores the merged output
func (r *PipelineRun) Complete(output map[string]interface{}) error {
	if r.Status != RunStatusRunning {
		return fmt.Errorf("%w: run %s cannot complete from %s", ErrInvalidTransition, r.ID, r.Status)
	}

	now := time.Now().UTC()
	r.Status = RunStatusCompleted
	r.OutputData = output
	r.CompletedAt = &now

	return nil
}

// Fail moves a run from pending or running to failed.
// A failed run never carries output data.
func (r *PipelineRun) Fail(message string) error {
	if r.Status != RunStatusPending && r.Status != RunStatusRunning {
		return fmt.Errorf("%w: run %s cannot fail from %s", ErrInvalidTransition, r.ID, r.Status)
	}

	now := time.Now().UTC()
	r.Status = RunStatusFailed
	r.ErrorMessage = message
	r.OutputData = nil
	r.CompletedAt = &now

	return nil
}

// Cancel moves a run from pending or running to cancelled
func (r *PipelineRun) Cancel() error {
	if r.Status != RunStatusPending && r.Status != RunStatusRunning {
		return fmt.Errorf("%w: run %s cannot be cancelled from %s", ErrInvalidTransition, r.ID, r.Status)
	}

	now := time.Now().UTC()
	r.Status = RunStatusCancelled
	r.CompletedAt = &now

	return nil
}

// Start moves a node result into running, recording the attempt number in
// metadata. A fresh dispatch is only legal from pending. A redelivered task
// with a higher attempt number may re-enter a result stuck in running; a
// duplicate delivery of the same attempt is rejected.
func (n *NodeResult) Start(attempt int) error {
	switch n.Status {
	case NodeResultStatusPending:
		now := time.Now().UTC()
		n.Status = NodeResultStatusRunning
		n.StartedAt = &now
	case NodeResultStatusRunning:
		if prev, ok := retryCount(n.Metadata); ok && attempt <= prev {
			return fmt.Errorf("%w: node %s attempt %d already in flight", ErrInvalidTransition, n.NodeID, attempt)
		}
	default:
		return fmt.Errorf("%w: node %s cannot start from %s", ErrInvalidTransition, n.NodeID, n.Status)
	}

	n.setMetadata("retry_count", attempt)

	return nil
}

// Complete moves a node result from running to completed
func (n *NodeResult) Complete(output, metadata map[string]interface{}) error {
	if n.Status != NodeResultStatusRunning {
		return fmt.Errorf("%w: node %s cannot complete from %s", ErrInvalidTransition, n.NodeID, n.Status)
	}

	now := time.Now().UTC()
	n.Status = NodeResultStatusCompleted
	n.OutputData = output
	n.CompletedAt = &now

	for key, value := range metadata {
		n.setMetadata(key, value)
	}

	return nil
}

// Fail moves a node result from pending or running to failed and records
// the error in both the error message and metadata
func (n *NodeResult) Fail(message string) error {
	if n.Status != NodeResultStatusPending && n.Status != NodeResultStatusRunning {
		return fmt.Errorf("%w: node %s cannot fail from %s", ErrInvalidTransition, n.NodeID, n.Status)
	}

	now := time.Now().UTC()
	n.Status = NodeResultStatusFailed
	n.ErrorMessage = message
	n.CompletedAt = &now
	n.setMetadata("last_error", message)

	return nil
}

// Skip moves a node result from pending to skipped
func (n *NodeResult) Skip() error {
	if n.Status != NodeResultStatusPending {
		return fmt.Errorf("%w: node %s cannot be skipped from %s", ErrInvalidTransition, n.NodeID, n.Status)
	}

	now := time.Now().UTC()
	n.Status = NodeResultStatusSkipped
	n.CompletedAt = &now

	return nil
}

func (n *NodeResult) setMetadata(key string, value interface{}) {
	if n.Metadata == nil {
		n.Metadata = make(map[string]interface{})
	}
	n.Metadata[key] = value
}

func retryCount(metadata map[string]interface{}) (int, bool) {
	if metadata == nil {
		return 0, false
	}

	switch v := metadata["retry_count"].(type) {
	case int:
		return v, true
	case float64:
		// JSON round-trips numbers as float64
		return int(v), true
	default:
		return 0, false
	}
}
