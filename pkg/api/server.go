package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/hashicorp/go-hclog"

	"github.com/pyrex41/reelflow/pkg/config"
	"github.com/pyrex41/reelflow/pkg/loader"
	"github.com/pyrex41/reelflow/pkg/models"
	"github.com/pyrex41/reelflow/pkg/registry"
	"github.com/pyrex41/reelflow/pkg/runtime"
	"github.com/pyrex41/reelflow/pkg/storage"
)

// Server represents the HTTP API server
type Server struct {
	config  config.ServerConfig
	router  *mux.Router
	server  *http.Server
	service *runtime.Service
	loader  *loader.Loader
	ws      *WebSocketManager
	sse     *SSEManager
	logger  hclog.Logger
}

// NewServer creates a new API server. Pass the WebSocket and SSE managers
// that are wired into the engine's event fanout so their streams serve the
// same events the engine publishes.
func NewServer(cfg config.ServerConfig, service *runtime.Service, pipelineLoader *loader.Loader, ws *WebSocketManager, sseManager *SSEManager, logger hclog.Logger) *Server {
	s := &Server{
		config:  cfg,
		router:  mux.NewRouter(),
		service: service,
		loader:  pipelineLoader,
		ws:      ws,
		sse:     sseManager,
		logger:  logger.Named("api"),
	}

	s.setupRoutes()
	return s
}

// Publisher returns the event publisher feeding this server's WebSocket and
// SSE streams.
func (s *Server) Publisher() runtime.EventPublisher {
	return Fanout{s.ws, s.sse}
}

// Router exposes the configured router, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // streaming endpoints hold the connection open
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", addr)

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the HTTP server gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.sse.Close()
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api.HandleFunc("/pipelines", s.handleListPipelines).Methods(http.MethodGet)
	api.HandleFunc("/pipelines", s.handleCreatePipeline).Methods(http.MethodPost)
	api.HandleFunc("/pipelines/deploy", s.handleDeployPipeline).Methods(http.MethodPost)
	api.HandleFunc("/pipelines/{id}", s.handleGetPipeline).Methods(http.MethodGet)
	api.HandleFunc("/pipelines/{id}", s.handleDeletePipeline).Methods(http.MethodDelete)
	api.HandleFunc("/pipelines/{id}/activate", s.handleActivatePipeline).Methods(http.MethodPost)
	api.HandleFunc("/pipelines/{id}/archive", s.handleArchivePipeline).Methods(http.MethodPost)

	api.HandleFunc("/pipelines/{id}/nodes", s.handleListNodes).Methods(http.MethodGet)
	api.HandleFunc("/pipelines/{id}/nodes", s.handleAddNode).Methods(http.MethodPost)
	api.HandleFunc("/nodes/{id}", s.handleUpdateNode).Methods(http.MethodPut)
	api.HandleFunc("/nodes/{id}", s.handleRemoveNode).Methods(http.MethodDelete)

	api.HandleFunc("/pipelines/{id}/edges", s.handleListEdges).Methods(http.MethodGet)
	api.HandleFunc("/pipelines/{id}/edges", s.handleAddEdge).Methods(http.MethodPost)
	api.HandleFunc("/edges/{id}", s.handleRemoveEdge).Methods(http.MethodDelete)

	api.HandleFunc("/pipelines/{id}/runs", s.handleListRuns).Methods(http.MethodGet)
	api.HandleFunc("/pipelines/{id}/runs", s.handleCreateRun).Methods(http.MethodPost)
	api.HandleFunc("/runs/{id}", s.handleGetRun).Methods(http.MethodGet)
	api.HandleFunc("/runs/{id}/cancel", s.handleCancelRun).Methods(http.MethodPost)
	api.HandleFunc("/runs/{id}/results", s.handleListNodeResults).Methods(http.MethodGet)

	api.HandleFunc("/ws", s.ws.HandleWebSocket).Methods(http.MethodGet)
	api.Handle("/events", s.sse.Handler()).Methods(http.MethodGet)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// writeError maps a service error to an HTTP status and writes it.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, storage.ErrPipelineNotFound),
		errors.Is(err, storage.ErrNodeNotFound),
		errors.Is(err, storage.ErrEdgeNotFound),
		errors.Is(err, storage.ErrRunNotFound),
		errors.Is(err, storage.ErrNodeResultNotFound):
		status = http.StatusNotFound
	case errors.Is(err, storage.ErrDuplicateEdge),
		errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, runtime.ErrPipelineArchived):
		status = http.StatusConflict
	case errors.Is(err, runtime.ErrCycle),
		errors.Is(err, runtime.ErrSelfEdge),
		errors.Is(err, runtime.ErrEdgeCrossesPipelines),
		errors.Is(err, registry.ErrNodeTypeNotFound):
		status = http.StatusBadRequest
	}

	writeJSON(w, status, map[string]string{"error": err.Error()})
}
