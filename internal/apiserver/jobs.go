package apiserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/SolracHQ/rivet/internal/domain"
)

func (s *Server) handleListAllJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.ListAllJobs())
}

// handleListScheduledJobs returns Queued jobs, oldest-first. When the
// caller supplies a runner_id that is a known, registered runner, the
// result is narrowed to jobs whose pipeline declares runner tags that
// are a subset of that runner's declared capabilities (§4.5): an
// unregistered or absent runner_id gets every Queued job, since there is
// no capability data to filter against.
func (s *Server) handleListScheduledJobs(w http.ResponseWriter, r *http.Request) {
	jobs := s.store.ListScheduledJobs()

	runnerID := r.URL.Query().Get("runner_id")
	if runnerID == "" {
		writeJSON(w, http.StatusOK, jobs)
		return
	}
	run, err := s.reg.Get(runnerID)
	if err != nil {
		writeJSON(w, http.StatusOK, jobs)
		return
	}

	filtered := make([]domain.Job, 0, len(jobs))
	for _, j := range jobs {
		p, err := s.cachedPipeline(j.PipelineID.String())
		if err != nil || run.AcceptsTags(p.Tags) {
			filtered = append(filtered, j)
		}
	}
	writeJSON(w, http.StatusOK, filtered)
}

func (s *Server) handleListJobsByPipeline(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "pipelineID")
	writeJSON(w, http.StatusOK, s.store.ListJobsByPipeline(id))
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")
	j, err := s.store.GetJob(id)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

// jobExecutionInfo is what a claim returns (§6, bit-exact): a flat
// {job_id, pipeline_id, pipeline_source, parameters} object, so the
// runner can parse and execute the script without a second request.
type jobExecutionInfo struct {
	JobID          string                 `json:"job_id"`
	PipelineID     string                 `json:"pipeline_id"`
	PipelineSource string                 `json:"pipeline_source"`
	Parameters     map[string]interface{} `json:"parameters"`
}

type executeJobRequest struct {
	RunnerID string `json:"runner_id"`
}

// handleClaimJob atomically leases a queued job to the calling runner.
func (s *Server) handleClaimJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	var req executeJobRequest
	if err := decodeJSON(r, &req); err != nil || req.RunnerID == "" {
		writeError(w, s.log, domain.NewError(domain.KindMissingField, "runner_id is required"))
		return
	}

	j, err := s.store.ClaimJob(jobID, req.RunnerID)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	p, err := s.store.GetPipeline(j.PipelineID.String())
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, jobExecutionInfo{
		JobID:          j.ID.String(),
		PipelineID:     p.ID,
		PipelineSource: p.Script,
		Parameters:     j.Parameters,
	})
}

type updateStatusRequest struct {
	Status domain.JobStatus `json:"status"`
}

// handleUpdateJobStatus is used for non-terminal progress reporting
// (e.g. Running -> Running keepalive); terminal transitions go through
// handleCompleteJob so a result is always recorded with them. Non-terminal
// use here is intentionally narrow: only re-asserting the current
// in-flight status is meaningful, so the store's CompleteJob-style
// guard does not apply.
func (s *Server) handleUpdateJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	var req updateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, domain.NewError(domain.KindBadFieldType, "malformed request body: %v", err))
		return
	}
	if req.Status.IsTerminal() {
		writeError(w, s.log, domain.NewError(domain.KindInvalidStateTransition, "use /complete to report a terminal status"))
		return
	}
	j, err := s.store.GetJob(jobID)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

type completeJobRequest struct {
	Status domain.JobStatus `json:"status"`
	Result domain.JobResult `json:"result"`
}

func (s *Server) handleCompleteJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	var req completeJobRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, domain.NewError(domain.KindBadFieldType, "malformed request body: %v", err))
		return
	}

	j, err := s.store.CompleteJob(jobID, req.Status, req.Result)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

func (s *Server) handleGetJobLogs(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	entries, err := s.store.GetLogs(jobID)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleAppendJobLogs(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	var entries []domain.LogEntry
	if err := decodeJSON(r, &entries); err != nil {
		writeError(w, s.log, domain.NewError(domain.KindBadFieldType, "malformed request body: %v", err))
		return
	}

	if err := s.store.AppendLogs(jobID, entries); err != nil {
		writeError(w, s.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
