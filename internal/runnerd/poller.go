// Package runnerd is the runner daemon (C6/C7): it polls the
// orchestrator for scheduled jobs, claims them under a bounded
// concurrency limit, and executes each one's pipeline script inside a
// container, shipping logs back as it goes.
//
// This mirrors the original runner's JobPoller: one polling loop with a
// semaphore-bounded pool of job tasks, a background heartbeat loop, and
// a per-job background log sender — rebuilt here on goroutines, a
// buffered channel as the semaphore, and robfig/cron for the heartbeat
// tick (the same scheduler this codebase's runner registry uses for its
// liveness sweep).
package runnerd

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/SolracHQ/rivet/internal/client"
	"github.com/SolracHQ/rivet/internal/config"
	"github.com/SolracHQ/rivet/internal/domain"
)

// Poller continuously polls for scheduled jobs and executes them under a
// bounded concurrency limit.
type Poller struct {
	cfg    config.Runner
	client *client.OrchestratorClient
	log    *slog.Logger

	permits chan struct{}
	cron    *cron.Cron
	wg      sync.WaitGroup
}

// New builds a Poller. log may be nil, in which case slog.Default is used.
func New(cfg config.Runner, c *client.OrchestratorClient, log *slog.Logger) *Poller {
	if log == nil {
		log = slog.Default()
	}
	max := cfg.MaxParallelJobs
	if max <= 0 {
		max = 1
	}
	return &Poller{
		cfg:     cfg,
		client:  c,
		log:     log,
		permits: make(chan struct{}, max),
	}
}

// Run starts the heartbeat loop and blocks polling for scheduled jobs
// until ctx is cancelled. It then waits for in-flight job tasks to
// finish, for at most the configured grace period, before returning.
func (p *Poller) Run(ctx context.Context) error {
	p.log.Info("starting job poller", "poll_interval", p.cfg.PollInterval, "max_parallel_jobs", p.cfg.MaxParallelJobs)

	if err := p.startHeartbeatLoop(); err != nil {
		return err
	}
	defer p.cron.Stop()

	if _, err := p.client.RegisterRunner(ctx, p.cfg.RunnerID, p.cfg.Capabilities); err != nil {
		p.log.Error("failed to register runner", "error", err)
		return err
	}

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.awaitShutdown()
			return nil
		case <-ticker.C:
			p.pollOnce(ctx)
		}
	}
}

// awaitShutdown waits for in-flight job tasks to finish, but no longer
// than the runner's configured grace period (§5): a task still running
// once the grace period elapses is abandoned rather than blocking
// shutdown forever.
func (p *Poller) awaitShutdown() {
	grace := p.cfg.GracePeriod
	if grace <= 0 {
		grace = 30 * time.Second
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(grace):
		p.log.Warn("grace period elapsed with jobs still in flight, shutting down anyway", "grace_period", grace)
	}
}

func (p *Poller) pollOnce(ctx context.Context) {
	jobs, err := p.client.ListScheduledJobsForRunner(ctx, p.cfg.RunnerID)
	if err != nil {
		p.log.Error("failed to fetch scheduled jobs", "error", err)
		return
	}
	if len(jobs) == 0 {
		return
	}
	p.log.Info("found scheduled jobs", "count", len(jobs))

	for _, j := range jobs {
		select {
		case p.permits <- struct{}{}:
			p.wg.Add(1)
			go func(job domain.Job) {
				defer p.wg.Done()
				defer func() { <-p.permits }()
				defer p.recoverJobPanic(ctx, job.ID.String())
				p.executeJob(ctx, job.ID.String())
			}(j)
		default:
			p.log.Debug("max parallel jobs reached, skipping for now", "job_id", j.ID)
		}
	}
}

// recoverJobPanic catches a panic from an in-flight job task (§4.6): it
// logs the panic and reports the job Failed instead of letting the
// runner process crash and silently abandon every other in-flight job.
func (p *Poller) recoverJobPanic(ctx context.Context, jobID string) {
	r := recover()
	if r == nil {
		return
	}
	p.log.Error("recovered panic in job task", "job_id", jobID, "panic", r)
	msg := fmt.Sprintf("job task panicked: %v", r)
	if err := p.client.CompleteJobWithStatus(ctx, jobID, domain.JobFailed, domain.ResultFailed(msg)); err != nil {
		p.log.Error("failed to report job failure after panic", "job_id", jobID, "error", err)
	}
}

func (p *Poller) startHeartbeatLoop() error {
	p.cron = cron.New(cron.WithSeconds())
	interval := p.cfg.HeartbeatInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	_, err := p.cron.AddFunc("@every "+interval.String(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), interval)
		defer cancel()
		if err := p.client.SendHeartbeat(ctx, p.cfg.RunnerID); err != nil {
			p.log.Warn("failed to send heartbeat", "error", err)
		}
	})
	if err != nil {
		return err
	}
	p.cron.Start()
	return nil
}
