package apiserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/SolracHQ/rivet/internal/domain"
)

// createPipelineRequest is the spec's bit-exact create contract: the
// script is the only input, and is the sole source of truth for the
// pipeline's name, description, and runner tags.
type createPipelineRequest struct {
	Script string `json:"script"`
}

// handleCreatePipeline parses the submitted script in metadata mode to
// reject a malformed pipeline at creation time rather than at launch,
// and records the name/description/tags the script itself declares
// (§4.5) rather than anything supplied alongside the script.
func (s *Server) handleCreatePipeline(w http.ResponseWriter, r *http.Request) {
	var req createPipelineRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, domain.NewError(domain.KindBadFieldType, "malformed request body: %v", err))
		return
	}
	def, err := parseMetadata(req.Script)
	if err != nil {
		writeError(w, s.log, err)
		return
	}

	p := s.store.CreatePipeline(def.Name, def.Description, req.Script, def.RunnerTags)
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleListPipelines(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.ListPipelines())
}

func (s *Server) handleGetPipeline(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "pipelineID")
	p, err := s.store.GetPipeline(id)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeletePipeline(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "pipelineID")
	if err := s.store.DeletePipeline(id); err != nil {
		writeError(w, s.log, err)
		return
	}
	s.pipelineCache.Remove(id)
	w.WriteHeader(http.StatusNoContent)
}

type launchJobRequest struct {
	PipelineID string                 `json:"pipeline_id"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// handleLaunchJob re-parses the pipeline's script in metadata mode and
// validates the submitted parameters against its declared inputs before
// queuing a job, so a bad launch request never reaches a runner.
func (s *Server) handleLaunchJob(w http.ResponseWriter, r *http.Request) {
	var req launchJobRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, domain.NewError(domain.KindBadFieldType, "malformed request body: %v", err))
		return
	}

	p, err := s.store.GetPipeline(req.PipelineID)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	def, err := parseMetadata(p.Script)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	params, err := s.validateParams(def, req.Parameters)
	if err != nil {
		writeError(w, s.log, err)
		return
	}

	j, err := s.store.CreateJob(p.ID, params)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, j)
}
