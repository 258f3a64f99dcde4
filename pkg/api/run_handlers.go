package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/pyrex41/reelflow/pkg/runtime"
	"github.com/pyrex41/reelflow/pkg/storage"
)

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.service.ListRuns(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Input map[string]interface{} `json:"input"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
	}

	run, err := s.service.CreateRun(r.Context(), mux.Vars(r)["id"], req.Input)
	if err != nil {
		// A missing pipeline keeps its 404; anything else at run creation
		// is a validation problem with the pipeline or its nodes.
		if errors.Is(err, storage.ErrPipelineNotFound) || errors.Is(err, runtime.ErrPipelineArchived) {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, run)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.service.GetRun(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.service.CancelRun(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleListNodeResults(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["id"]

	// Listing results of an unknown run is a 404, not an empty list.
	if _, err := s.service.GetRun(runID); err != nil {
		writeError(w, err)
		return
	}

	results, err := s.service.ListNodeResults(runID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}
