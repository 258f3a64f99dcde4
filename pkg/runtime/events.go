package runtime

import "time"

// EventType identifies a run lifecycle event
type EventType string

const (
	// EventRunStarted fires when a run leaves pending
	EventRunStarted EventType = "run.started"

	// EventRunCompleted fires when a run completes successfully
	EventRunCompleted EventType = "run.completed"

	// EventRunFailed fires when a run fails
	EventRunFailed EventType = "run.failed"

	// EventRunCancelled fires when a run is cancelled
	EventRunCancelled EventType = "run.cancelled"

	// EventNodeStarted fires when a node execution begins
	EventNodeStarted EventType = "node.started"

	// EventNodeCompleted fires when a node produces output
	EventNodeCompleted EventType = "node.completed"

	// EventNodeFailed fires when a node terminally fails
	EventNodeFailed EventType = "node.failed"

	// EventNodeSkipped fires when a node is bypassed
	EventNodeSkipped EventType = "node.skipped"
)

// Event is one run lifecycle notification, fanned out to API subscribers.
type Event struct {
	Type       EventType              `json:"type"`
	RunID      string                 `json:"run_id"`
	PipelineID string                 `json:"pipeline_id"`
	NodeID     string                 `json:"node_id,omitempty"`
	Message    string                 `json:"message,omitempty"`
	Data       map[string]interface{} `json:"data,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

// EventPublisher receives run lifecycle events. Implementations must not
// block: publishing happens on the execution path.
type EventPublisher interface {
	Publish(event Event)
}

// NopPublisher discards all events.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(event Event) {}
