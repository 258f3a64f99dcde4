// Package api exposes the pipeline engine over HTTP: a JSON REST surface
// plus WebSocket and SSE event streams.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/hashicorp/go-hclog"
	"github.com/r3labs/sse/v2"

	"github.com/pyrex41/reelflow/pkg/runtime"
)

// globalStream is the SSE stream carrying every run event.
const globalStream = "runs"

// Fanout publishes each event to several publishers in order.
type Fanout []runtime.EventPublisher

// Publish implements runtime.EventPublisher.
func (f Fanout) Publish(event runtime.Event) {
	for _, publisher := range f {
		publisher.Publish(event)
	}
}

// SSEManager streams run events over server-sent events. Clients subscribe
// to the "runs" stream for everything or to a run ID for one run.
type SSEManager struct {
	server *sse.Server
	logger hclog.Logger
}

// NewSSEManager creates an SSE manager.
func NewSSEManager(logger hclog.Logger) *SSEManager {
	server := sse.New()
	server.AutoReplay = false
	server.AutoStream = true
	server.CreateStream(globalStream)

	return &SSEManager{
		server: server,
		logger: logger.Named("sse"),
	}
}

// Publish implements runtime.EventPublisher.
func (m *SSEManager) Publish(event runtime.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		m.logger.Error("failed to encode event", "error", err)
		return
	}

	sseEvent := &sse.Event{Event: []byte(event.Type), Data: data}
	m.server.Publish(globalStream, sseEvent)

	if m.server.StreamExists(event.RunID) {
		m.server.Publish(event.RunID, sseEvent)
	}
}

// Handler returns the HTTP handler. Clients select a stream with the
// "stream" query parameter.
func (m *SSEManager) Handler() http.Handler {
	return m.server
}

// Close shuts down all streams.
func (m *SSEManager) Close() {
	m.server.Close()
}
