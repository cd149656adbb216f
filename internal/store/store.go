// Package store is the in-memory persistence layer (C4): pipelines,
// jobs, and their logs, held in mutex-guarded maps. The spec permits an
// in-memory store, and the teacher's own go.mod, while it carries SQL
// drivers (pgx, modernc.org/sqlite) and a migration runner (goose), has
// no schema or migration files wired to a job/pipeline/log shape this
// system could reuse — see DESIGN.md for why those were left unwired
// rather than bent to this domain.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/SolracHQ/rivet/internal/domain"
)

// Store holds every pipeline, job, and job log line known to the
// orchestrator process. The zero value is not usable; use New.
type Store struct {
	mu sync.RWMutex

	pipelines map[string]domain.Pipeline
	jobs      map[string]domain.Job
	logs      map[string][]domain.LogEntry
}

func New() *Store {
	return &Store{
		pipelines: make(map[string]domain.Pipeline),
		jobs:      make(map[string]domain.Job),
		logs:      make(map[string][]domain.LogEntry),
	}
}

// --- Pipelines ---------------------------------------------------------

func (s *Store) CreatePipeline(name, description, script string, tags []domain.Tag) domain.Pipeline {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	p := domain.Pipeline{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		Script:      script,
		Tags:        tags,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.pipelines[p.ID] = p
	return p
}

func (s *Store) GetPipeline(id string) (domain.Pipeline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.pipelines[id]
	if !ok {
		return domain.Pipeline{}, domain.NewError(domain.KindPipelineNotFound, "pipeline %q not found", id)
	}
	return p, nil
}

// ListPipelines returns every pipeline summary, newest first.
func (s *Store) ListPipelines() []domain.Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Summary, 0, len(s.pipelines))
	for _, p := range s.pipelines {
		out = append(out, p.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *Store) DeletePipeline(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pipelines[id]; !ok {
		return domain.NewError(domain.KindPipelineNotFound, "pipeline %q not found", id)
	}
	delete(s.pipelines, id)
	return nil
}

// --- Jobs ----------------------------------------------------------------

func (s *Store) CreateJob(pipelineID string, parameters map[string]interface{}) (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pipelines[pipelineID]; !ok {
		return domain.Job{}, domain.NewError(domain.KindPipelineNotFound, "pipeline %q not found", pipelineID)
	}
	pid, err := uuid.Parse(pipelineID)
	if err != nil {
		return domain.Job{}, domain.Wrap(domain.KindPipelineNotFound, err, "pipeline id %q is not a valid identifier", pipelineID)
	}

	j := domain.Job{
		ID:          uuid.New(),
		PipelineID:  pid,
		Status:      domain.JobQueued,
		RequestedAt: time.Now().UTC(),
		Parameters:  parameters,
	}
	s.jobs[j.ID.String()] = j
	return j.Clone(), nil
}

func (s *Store) GetJob(id string) (domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return domain.Job{}, domain.NewError(domain.KindJobNotFound, "job %q not found", id)
	}
	return j.Clone(), nil
}

// ListAllJobs returns every job, newest-requested first.
func (s *Store) ListAllJobs() []domain.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedJobs(s.jobs, func(a, b domain.Job) bool { return a.RequestedAt.After(b.RequestedAt) })
}

// ListJobsByPipeline returns a pipeline's jobs, newest-requested first.
func (s *Store) ListJobsByPipeline(pipelineID string) []domain.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	filtered := make(map[string]domain.Job)
	for id, j := range s.jobs {
		if j.PipelineID.String() == pipelineID {
			filtered[id] = j
		}
	}
	return sortedJobs(filtered, func(a, b domain.Job) bool { return a.RequestedAt.After(b.RequestedAt) })
}

// ListScheduledJobs returns queued jobs in FIFO order (oldest first), the
// order a poller claims work in.
func (s *Store) ListScheduledJobs() []domain.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	filtered := make(map[string]domain.Job)
	for id, j := range s.jobs {
		if j.Status == domain.JobQueued {
			filtered[id] = j
		}
	}
	return sortedJobs(filtered, func(a, b domain.Job) bool { return a.RequestedAt.Before(b.RequestedAt) })
}

func sortedJobs(m map[string]domain.Job, less func(a, b domain.Job) bool) []domain.Job {
	out := make([]domain.Job, 0, len(m))
	for _, j := range m {
		out = append(out, j.Clone())
	}
	sort.Slice(out, func(i, k int) bool { return less(out[i], out[k]) })
	return out
}

// ClaimJob atomically transitions a single Queued job to Running and
// assigns it to runnerID, using a compare-and-swap on the in-memory
// entry rather than the original's read-then-write sequence (see
// DESIGN.md: this closes a race the original Rust implementation had
// between two runners polling the same job concurrently).
func (s *Store) ClaimJob(jobID, runnerID string) (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return domain.Job{}, domain.NewError(domain.KindJobNotFound, "job %q not found", jobID)
	}
	if j.Status != domain.JobQueued {
		return domain.Job{}, domain.NewError(domain.KindInvalidStateTransition, "job %q is %s, not queued", jobID, j.Status)
	}

	now := time.Now().UTC()
	j.Status = domain.JobRunning
	j.StartedAt = &now
	runner := runnerID
	j.RunnerID = &runner
	s.jobs[jobID] = j
	return j.Clone(), nil
}

// CompleteJob transitions a Running job to its terminal state and
// records its result.
func (s *Store) CompleteJob(jobID string, status domain.JobStatus, result domain.JobResult) (domain.Job, error) {
	if !status.IsTerminal() {
		return domain.Job{}, domain.NewError(domain.KindInvalidStateTransition, "status %s is not a terminal job status", status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return domain.Job{}, domain.NewError(domain.KindJobNotFound, "job %q not found", jobID)
	}
	if j.Status != domain.JobRunning {
		return domain.Job{}, domain.NewError(domain.KindInvalidStateTransition, "job %q is %s, not running", jobID, j.Status)
	}

	now := time.Now().UTC()
	j.Status = status
	j.CompletedAt = &now
	r := result
	j.Result = &r
	s.jobs[jobID] = j
	return j.Clone(), nil
}

// CancelJob transitions a Queued or Running job to Cancelled.
func (s *Store) CancelJob(jobID string) (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return domain.Job{}, domain.NewError(domain.KindJobNotFound, "job %q not found", jobID)
	}
	if j.Status != domain.JobQueued && j.Status != domain.JobRunning {
		return domain.Job{}, domain.NewError(domain.KindInvalidStateTransition, "job %q is %s, cannot cancel", jobID, j.Status)
	}

	now := time.Now().UTC()
	j.Status = domain.JobCancelled
	j.CompletedAt = &now
	s.jobs[jobID] = j
	return j.Clone(), nil
}

// --- Logs ----------------------------------------------------------------

// AppendLogs appends entries to jobID's log, rejecting the whole batch
// if it exceeds MaxLogBatchSize or any entry's message exceeds
// MaxLogMessageLength, per the spec's log ingestion limits: a caller
// that oversteps sees an error rather than having its log data silently
// cut short.
func (s *Store) AppendLogs(jobID string, entries []domain.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[jobID]; !ok {
		return domain.NewError(domain.KindJobNotFound, "job %q not found", jobID)
	}

	if len(entries) > domain.MaxLogBatchSize {
		return domain.NewError(domain.KindBadFieldType, "log batch of %d entries exceeds the %d-entry limit", len(entries), domain.MaxLogBatchSize)
	}
	for _, e := range entries {
		if err := domain.ValidateMessage(e.Message); err != nil {
			return domain.Wrap(domain.KindBadFieldType, err, "log entry rejected")
		}
	}
	s.logs[jobID] = append(s.logs[jobID], entries...)
	return nil
}

// GetLogs returns jobID's log lines in the order they were appended.
func (s *Store) GetLogs(jobID string) ([]domain.LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.jobs[jobID]; !ok {
		return nil, domain.NewError(domain.KindJobNotFound, "job %q not found", jobID)
	}
	out := make([]domain.LogEntry, len(s.logs[jobID]))
	copy(out, s.logs[jobID])
	return out, nil
}
