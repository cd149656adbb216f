package runnerd

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/SolracHQ/rivet/internal/client"
	"github.com/SolracHQ/rivet/internal/container"
	"github.com/SolracHQ/rivet/internal/domain"
	"github.com/SolracHQ/rivet/internal/logbuf"
	"github.com/SolracHQ/rivet/internal/sandbox"
)

// executeJob claims jobID, runs its pipeline, and reports the result.
// Mirrors the original JobPoller.execute_job: claim, start the default
// container, parse+walk the pipeline with a background log sender
// running alongside, then clean up and report completion regardless of
// outcome.
func (p *Poller) executeJob(ctx context.Context, jobID string) {
	log := p.log.With("job_id", jobID)
	log.Info("starting execution of job")

	info, err := p.client.ClaimJob(ctx, jobID, p.cfg.RunnerID)
	if err != nil {
		if strings.Contains(err.Error(), string(domain.KindInvalidStateTransition)) {
			log.Debug("job already claimed by another runner")
			return
		}
		log.Error("failed to claim job", "error", err)
		return
	}
	log.Info("claimed job", "pipeline_id", info.PipelineID)

	buf := logbuf.New(p.cfg.LogBufferSize)
	sink := logbuf.NewSink(buf)

	workspace := filepath.Join(p.cfg.WorkspaceBase, jobID)
	runtime := p.cfg.ContainerRuntime
	if runtime == "" {
		runtime = "docker"
	}
	mgr := container.New(jobID, workspace, runtime, p.log)

	stopSender := p.startLogSender(ctx, jobID, buf)
	defer stopSender()

	result := p.runPipeline(ctx, info, mgr, sink, log)

	remaining := buf.Drain()
	if len(remaining) > 0 {
		if err := p.client.SendLogs(ctx, jobID, remaining); err != nil {
			log.Warn("failed to send final logs", "error", err)
		}
	}

	sink.Info("cleaning up container")
	mgr.Cleanup()

	if err := p.client.CompleteJobWithStatus(ctx, jobID, statusForResult(result), result); err != nil {
		log.Error("failed to report job completion", "error", err)
	}
	log.Info("job finished", "success", result.Success)
}

func statusForResult(result domain.JobResult) domain.JobStatus {
	if result.Success {
		return domain.JobSucceeded
	}
	if result.ExitCode == domain.ExitTimedOut {
		return domain.JobTimedOut
	}
	return domain.JobFailed
}

// runPipeline bounds walkPipeline by the runner's configured per-job
// timeout (§5 "Cancellation & timeouts"): the walk runs in its own
// goroutine so a stage blocked in a container exec can be abandoned once
// the deadline passes, reporting TimedOut (exit code 124) rather than
// blocking executeJob forever. executeJob drains logs and cleans up the
// job's containers as soon as runPipeline returns; it does not wait for
// an abandoned walk goroutine to finish.
func (p *Poller) runPipeline(ctx context.Context, info client.JobExecutionInfo, mgr *container.Manager, sink *logbuf.Sink, log *slog.Logger) domain.JobResult {
	timeout := p.cfg.JobTimeout
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	deadline := time.After(timeout)

	resultCh := make(chan domain.JobResult, 1)
	go func() { resultCh <- p.walkPipeline(info, mgr, sink, log) }()

	select {
	case result := <-resultCh:
		return result
	case <-deadline:
		msg := fmt.Sprintf("job exceeded its %s timeout", timeout)
		sink.Error(msg)
		log.Error("job timed out", "timeout", timeout)
		return domain.ResultError(msg, domain.ExitTimedOut)
	case <-ctx.Done():
		msg := "job aborted: " + ctx.Err().Error()
		sink.Error(msg)
		return domain.ResultFailed(msg)
	}
}

// walkPipeline parses the pipeline's script once in execution mode,
// starts its declared default container, then walks stages sequentially,
// matching the original LuaExecutor's execute_pipeline: a failing
// condition aborts the run, a stage override container is pushed/popped
// around that stage only, and any stage error stops the walk immediately.
func (p *Poller) walkPipeline(info client.JobExecutionInfo, mgr *container.Manager, sink *logbuf.Sink, log *slog.Logger) domain.JobResult {
	def, err := sandbox.Parse(info.PipelineID+".star", info.PipelineSource, sandbox.ExecutionMode, &sandbox.Primitives{
		Log:       sink,
		Process:   mgr,
		Container: mgr,
		Inputs:    info.Parameters,
	})
	if err != nil {
		msg := fmt.Sprintf("failed to parse pipeline definition: %v", err)
		sink.Error(msg)
		return domain.ResultFailed(msg)
	}

	sink.Info("starting default container")
	image := def.DefaultContainer
	if image == "" {
		image = "alpine:latest"
	}
	if err := mgr.StartDefault(image); err != nil {
		msg := fmt.Sprintf("failed to start default container: %v", err)
		sink.Error(msg)
		log.Error("failed to start default container", "error", err)
		return domain.ResultFailed(msg)
	}
	sink.Info("default container started")

	sink.Info(fmt.Sprintf("starting pipeline: %s", def.Name))
	for _, stage := range def.Stages {
		sink.Info(fmt.Sprintf("starting stage: %s", stage.Name))

		if stage.Condition != nil {
			ok, err := stage.Condition.Call(true)
			if err != nil {
				msg := fmt.Sprintf("stage %q condition failed: %v", stage.Name, err)
				sink.Error(msg)
				return domain.ResultFailed(msg)
			}
			if !ok {
				sink.Info(fmt.Sprintf("stage %q skipped (condition not met)", stage.Name))
				continue
			}
		}

		if err := runStage(mgr, stage); err != nil {
			msg := fmt.Sprintf("stage %q failed: %v", stage.Name, err)
			sink.Error(msg)
			return domain.ResultFailed(msg)
		}

		sink.Info(fmt.Sprintf("stage %q completed", stage.Name))
	}

	sink.Info("pipeline completed successfully")
	return domain.ResultSuccess()
}

// runStage invokes stage's script. A stage reaching here with a nil
// Script would mean an ExecutionMode definition slipped past parse-time
// validation: toStageDef rejects a stage missing "script" with
// KindMissingField, so this is never the case in practice.
func runStage(mgr *container.Manager, stage domain.StageDef) error {
	if stage.Container != "" {
		if err := mgr.Push(stage.Container); err != nil {
			return err
		}
		defer mgr.Pop()
	}
	_, err := stage.Script.Call(false)
	return err
}

// startLogSender starts a background ticker that periodically drains buf
// and ships entries to the orchestrator, mirroring the original's
// spawn_log_sender. The returned function stops the ticker.
func (p *Poller) startLogSender(ctx context.Context, jobID string, buf *logbuf.Buffer) func() {
	interval := p.cfg.LogSendInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				entries := buf.Drain()
				if len(entries) == 0 {
					continue
				}
				if err := p.client.SendLogs(ctx, jobID, entries); err != nil {
					p.log.Error("failed to send logs", "job_id", jobID, "error", err)
				}
			}
		}
	}()
	return func() { close(done) }
}
