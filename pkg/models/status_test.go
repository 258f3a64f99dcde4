package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineRunLifecycle(t *testing.T) {
	run := &PipelineRun{ID: "run-1", Status: RunStatusPending}

	require.NoError(t, run.Start())
	assert.Equal(t, RunStatusRunning, run.Status)
	assert.NotNil(t, run.StartedAt)

	require.NoError(t, run.Complete(map[string]interface{}{"text": "done"}))
	assert.Equal(t, RunStatusCompleted, run.Status)
	assert.NotNil(t, run.CompletedAt)
	assert.Equal(t, "done", run.OutputData["text"])
}

func TestPipelineRunFailClearsOutput(t *testing.T) {
	run := &PipelineRun{ID: "run-1", Status: RunStatusRunning, OutputData: map[string]interface{}{"stale": true}}

	require.NoError(t, run.Fail("node a exploded"))
	assert.Equal(t, RunStatusFailed, run.Status)
	assert.Equal(t, "node a exploded", run.ErrorMessage)
	assert.Nil(t, run.OutputData)
}

func TestPipelineRunInvalidTransitions(t *testing.T) {
	tests := []struct {
		name string
		from RunStatus
		op   func(r *PipelineRun) error
	}{
		{"start from running", RunStatusRunning, func(r *PipelineRun) error { return r.Start() }},
		{"start from completed", RunStatusCompleted, func(r *PipelineRun) error { return r.Start() }},
		{"complete from pending", RunStatusPending, func(r *PipelineRun) error { return r.Complete(nil) }},
		{"fail from completed", RunStatusCompleted, func(r *PipelineRun) error { return r.Fail("x") }},
		{"cancel from failed", RunStatusFailed, func(r *PipelineRun) error { return r.Cancel() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := &PipelineRun{ID: "run-1", Status: tt.from}
			err := tt.op(run)
			assert.ErrorIs(t, err, ErrInvalidTransition)
			assert.Equal(t, tt.from, run.Status, "status must not change on a rejected transition")
		})
	}
}

func TestPipelineRunCancelFromPending(t *testing.T) {
	run := &PipelineRun{ID: "run-1", Status: RunStatusPending}

	require.NoError(t, run.Cancel())
	assert.Equal(t, RunStatusCancelled, run.Status)
	assert.True(t, run.Status.Terminal())
}

func TestNodeResultStartRecordsAttempt(t *testing.T) {
	result := &NodeResult{PipelineRunID: "run-1", NodeID: "node-a", Status: NodeResultStatusPending}

	require.NoError(t, result.Start(1))
	assert.Equal(t, NodeResultStatusRunning, result.Status)
	assert.Equal(t, 1, result.Metadata["retry_count"])
	assert.NotNil(t, result.StartedAt)
}

func TestNodeResultDuplicateAttemptRejected(t *testing.T) {
	result := &NodeResult{PipelineRunID: "run-1", NodeID: "node-a", Status: NodeResultStatusPending}

	require.NoError(t, result.Start(1))

	// Same attempt delivered twice must be rejected
	err := result.Start(1)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// A later queue retry may re-enter the running result
	require.NoError(t, result.Start(2))
	assert.Equal(t, 2, result.Metadata["retry_count"])
}

func TestNodeResultStartFromTerminalRejected(t *testing.T) {
	for _, status := range []NodeResultStatus{NodeResultStatusCompleted, NodeResultStatusFailed, NodeResultStatusSkipped} {
		result := &NodeResult{PipelineRunID: "run-1", NodeID: "node-a", Status: status}
		assert.ErrorIs(t, result.Start(2), ErrInvalidTransition)
	}
}

func TestNodeResultCompleteStoresOutputAndMetadata(t *testing.T) {
	result := &NodeResult{PipelineRunID: "run-1", NodeID: "node-a", Status: NodeResultStatusPending}
	require.NoError(t, result.Start(1))

	output := map[string]interface{}{"text": "hello"}
	metadata := map[string]interface{}{"duration_ms": int64(12)}
	require.NoError(t, result.Complete(output, metadata))

	assert.Equal(t, NodeResultStatusCompleted, result.Status)
	assert.Equal(t, "hello", result.OutputData["text"])
	assert.Equal(t, int64(12), result.Metadata["duration_ms"])
	assert.Equal(t, 1, result.Metadata["retry_count"], "complete must preserve the attempt counter")
}

func TestNodeResultFailRecordsLastError(t *testing.T) {
	result := &NodeResult{PipelineRunID: "run-1", NodeID: "node-a", Status: NodeResultStatusRunning}

	require.NoError(t, result.Fail("connection refused"))
	assert.Equal(t, NodeResultStatusFailed, result.Status)
	assert.Equal(t, "connection refused", result.ErrorMessage)
	assert.Equal(t, "connection refused", result.Metadata["last_error"])
	assert.True(t, result.Status.Terminal())
}

func TestNodeResultSkipOnlyFromPending(t *testing.T) {
	result := &NodeResult{PipelineRunID: "run-1", NodeID: "node-a", Status: NodeResultStatusPending}
	require.NoError(t, result.Skip())
	assert.Equal(t, NodeResultStatusSkipped, result.Status)

	running := &NodeResult{PipelineRunID: "run-1", NodeID: "node-b", Status: NodeResultStatusRunning}
	assert.ErrorIs(t, running.Skip(), ErrInvalidTransition)
}

func TestRetryCountSurvivesJSONNumbers(t *testing.T) {
	// A result loaded from a JSON-backed store carries float64 numbers
	result := &NodeResult{
		PipelineRunID: "run-1",
		NodeID:        "node-a",
		Status:        NodeResultStatusRunning,
		Metadata:      map[string]interface{}{"retry_count": float64(2)},
	}

	assert.ErrorIs(t, result.Start(2), ErrInvalidTransition)
	require.NoError(t, result.Start(3))
}
