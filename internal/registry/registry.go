// Package registry is the runner registry (C10): runner
// registration/heartbeat/lookup, plus a periodic liveness sweep that
// marks runners offline once their heartbeat goes stale.
package registry

import (
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/SolracHQ/rivet/internal/domain"
)

// Registry holds every known runner. The zero value is not usable; use
// New.
type Registry struct {
	mu      sync.RWMutex
	runners map[string]domain.Runner
	timeout time.Duration

	cron *cron.Cron
	log  *slog.Logger
}

// New builds a Registry that considers a runner offline once its last
// heartbeat is older than timeout.
func New(timeout time.Duration, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		runners: make(map[string]domain.Runner),
		timeout: timeout,
		log:     log,
	}
}

// Register creates or re-registers a runner, setting its heartbeat to
// now and its status to Online. Re-registration (the runner process
// restarting with the same ID) is treated the same as a fresh
// registration, matching the original's upsert-on-register semantics.
func (r *Registry) Register(id string, capabilities []string) domain.Runner {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	run := domain.Runner{
		ID:            id,
		Capabilities:  capabilities,
		RegisteredAt:  now,
		LastHeartbeat: now,
		Status:        domain.RunnerOnline,
	}
	r.runners[id] = run
	r.log.Info("runner registered", "runner_id", id, "capabilities", capabilities)
	return run
}

// Heartbeat refreshes a runner's LastHeartbeat and marks it Online.
func (r *Registry) Heartbeat(id string) (domain.Runner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.runners[id]
	if !ok {
		return domain.Runner{}, domain.NewError(domain.KindRunnerNotFound, "runner %q not found", id)
	}
	run.LastHeartbeat = time.Now().UTC()
	run.Status = domain.RunnerOnline
	r.runners[id] = run
	return run, nil
}

func (r *Registry) Get(id string) (domain.Runner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.runners[id]
	if !ok {
		return domain.Runner{}, domain.NewError(domain.KindRunnerNotFound, "runner %q not found", id)
	}
	return run, nil
}

func (r *Registry) List() []domain.Runner {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Runner, 0, len(r.runners))
	for _, run := range r.runners {
		out = append(out, run)
	}
	return out
}

func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.runners[id]; !ok {
		return domain.NewError(domain.KindRunnerNotFound, "runner %q not found", id)
	}
	delete(r.runners, id)
	return nil
}

// Online returns the subset of registered runners whose tags satisfy
// required and whose status is Online, for scheduling purposes.
func (r *Registry) Online(required []domain.Tag) []domain.Runner {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.Runner
	for _, run := range r.runners {
		if run.Status == domain.RunnerOnline && run.AcceptsTags(required) {
			out = append(out, run)
		}
	}
	return out
}

// sweep marks every runner whose heartbeat is older than the configured
// timeout as Offline. Runners already Offline are left alone (no log
// spam on every tick).
func (r *Registry) sweep() {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().UTC().Add(-r.timeout)
	marked := 0
	for id, run := range r.runners {
		if run.Status != domain.RunnerOffline && run.LastHeartbeat.Before(cutoff) {
			run.Status = domain.RunnerOffline
			r.runners[id] = run
			marked++
		}
	}
	if marked > 0 {
		r.log.Info("liveness sweep marked runners offline", "count", marked)
	}
}

// StartSweep schedules the liveness sweep to run every interval, using
// this codebase's robfig/cron scheduler (the same library the
// orchestrator's other periodic jobs use) rather than a bare
// time.Ticker goroutine.
func (r *Registry) StartSweep(interval time.Duration) error {
	r.cron = cron.New(cron.WithSeconds())
	spec := cronEverySpec(interval)
	_, err := r.cron.AddFunc(spec, r.sweep)
	if err != nil {
		return err
	}
	r.cron.Start()
	return nil
}

func (r *Registry) StopSweep() {
	if r.cron != nil {
		r.cron.Stop()
	}
}

// cronEverySpec renders interval as an "@every <duration>" descriptor
// (e.g. "@every 1m0s" for one minute); robfig/cron's "@every" descriptor
// accepts any valid time.Duration string directly.
func cronEverySpec(interval time.Duration) string {
	return "@every " + interval.String()
}
