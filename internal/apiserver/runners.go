package apiserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/SolracHQ/rivet/internal/domain"
)

type registerRunnerRequest struct {
	RunnerID     string   `json:"runner_id"`
	Capabilities []string `json:"capabilities"`
}

func (s *Server) handleRegisterRunner(w http.ResponseWriter, r *http.Request) {
	var req registerRunnerRequest
	if err := decodeJSON(r, &req); err != nil || req.RunnerID == "" {
		writeError(w, s.log, domain.NewError(domain.KindMissingField, "runner_id is required"))
		return
	}
	run := s.reg.Register(req.RunnerID, req.Capabilities)
	writeJSON(w, http.StatusCreated, run)
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "runnerID")
	run, err := s.reg.Heartbeat(id)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleListRunners(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.reg.List())
}

func (s *Server) handleGetRunner(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "runnerID")
	run, err := s.reg.Get(id)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleDeleteRunner(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "runnerID")
	if err := s.reg.Delete(id); err != nil {
		writeError(w, s.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
