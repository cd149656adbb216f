// Package client is the orchestrator HTTP client (C11): a typed wrapper
// used by both the CLI and the runner to talk to the orchestrator's
// REST API, built on go-resty/resty/v2 (this codebase's own HTTP client
// library, already used for its outbound webhook/notification calls).
package client

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/SolracHQ/rivet/internal/domain"
)

// OrchestratorClient talks to one orchestrator's REST API.
type OrchestratorClient struct {
	baseURL string
	http    *resty.Client
}

// New builds a client against baseURL, trimming any trailing slash.
func New(baseURL string) *OrchestratorClient {
	return WithHTTPClient(baseURL, resty.New())
}

// WithHTTPClient builds a client using a caller-configured resty.Client
// (for custom timeouts, retries, or TLS settings).
func WithHTTPClient(baseURL string, http *resty.Client) *OrchestratorClient {
	return &OrchestratorClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    http,
	}
}

func (c *OrchestratorClient) BaseURL() string { return c.baseURL }

func (c *OrchestratorClient) url(format string, args ...interface{}) string {
	return c.baseURL + fmt.Sprintf(format, args...)
}

// --- Pipelines -------------------------------------------------------

// createPipelineRequest is the spec's bit-exact create contract:
// {script} only — name, description, and tags are derived orchestrator-
// side from the script's own declared metadata.
type createPipelineRequest struct {
	Script string `json:"script"`
}

func (c *OrchestratorClient) CreatePipeline(ctx context.Context, script string) (domain.Pipeline, error) {
	var out domain.Pipeline
	resp, err := c.http.R().SetContext(ctx).
		SetBody(createPipelineRequest{Script: script}).
		SetResult(&out).
		Post(c.url("/api/pipeline/create"))
	if err != nil {
		return domain.Pipeline{}, requestFailed(err)
	}
	if resp.IsError() {
		return domain.Pipeline{}, apiError(resp.StatusCode(), string(resp.Body()))
	}
	return out, nil
}

func (c *OrchestratorClient) ListPipelines(ctx context.Context) ([]domain.Summary, error) {
	var out []domain.Summary
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get(c.url("/api/pipeline/list"))
	if err != nil {
		return nil, requestFailed(err)
	}
	if resp.IsError() {
		return nil, apiError(resp.StatusCode(), string(resp.Body()))
	}
	return out, nil
}

func (c *OrchestratorClient) GetPipeline(ctx context.Context, id string) (domain.Pipeline, error) {
	var out domain.Pipeline
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get(c.url("/api/pipeline/%s", id))
	if err != nil {
		return domain.Pipeline{}, requestFailed(err)
	}
	if resp.IsError() {
		return domain.Pipeline{}, apiError(resp.StatusCode(), string(resp.Body()))
	}
	return out, nil
}

func (c *OrchestratorClient) DeletePipeline(ctx context.Context, id string) error {
	resp, err := c.http.R().SetContext(ctx).Delete(c.url("/api/pipeline/%s", id))
	if err != nil {
		return requestFailed(err)
	}
	if resp.IsError() {
		return apiError(resp.StatusCode(), string(resp.Body()))
	}
	return nil
}

// --- Jobs --------------------------------------------------------------

type launchJobRequest struct {
	PipelineID string                 `json:"pipeline_id"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// LaunchJob posts to /api/pipeline/launch, the original's endpoint name
// for job creation (jobs are always created "from" a pipeline).
func (c *OrchestratorClient) LaunchJob(ctx context.Context, pipelineID string, parameters map[string]interface{}) (domain.Job, error) {
	var out domain.Job
	resp, err := c.http.R().SetContext(ctx).
		SetBody(launchJobRequest{PipelineID: pipelineID, Parameters: parameters}).
		SetResult(&out).
		Post(c.url("/api/pipeline/launch"))
	if err != nil {
		return domain.Job{}, requestFailed(err)
	}
	if resp.IsError() {
		return domain.Job{}, apiError(resp.StatusCode(), string(resp.Body()))
	}
	return out, nil
}

func (c *OrchestratorClient) GetJob(ctx context.Context, id string) (domain.Job, error) {
	var out domain.Job
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get(c.url("/api/jobs/%s", id))
	if err != nil {
		return domain.Job{}, requestFailed(err)
	}
	if resp.IsError() {
		return domain.Job{}, apiError(resp.StatusCode(), string(resp.Body()))
	}
	return out, nil
}

func (c *OrchestratorClient) ListAllJobs(ctx context.Context) ([]domain.Job, error) {
	return c.getJobList(ctx, "/api/jobs")
}

func (c *OrchestratorClient) ListScheduledJobs(ctx context.Context) ([]domain.Job, error) {
	return c.getJobList(ctx, "/api/jobs/scheduled")
}

// ListScheduledJobsForRunner is the poller's entry point (§4.5): the
// orchestrator narrows the result to jobs whose pipeline's runner tags
// are satisfied by runnerID's registered capabilities, when it knows
// them.
func (c *OrchestratorClient) ListScheduledJobsForRunner(ctx context.Context, runnerID string) ([]domain.Job, error) {
	var out []domain.Job
	resp, err := c.http.R().SetContext(ctx).
		SetQueryParam("runner_id", runnerID).
		SetResult(&out).
		Get(c.baseURL + "/api/jobs/scheduled")
	if err != nil {
		return nil, requestFailed(err)
	}
	if resp.IsError() {
		return nil, apiError(resp.StatusCode(), string(resp.Body()))
	}
	return out, nil
}

func (c *OrchestratorClient) ListJobsByPipeline(ctx context.Context, pipelineID string) ([]domain.Job, error) {
	return c.getJobList(ctx, fmt.Sprintf("/api/jobs/pipeline/%s", pipelineID))
}

func (c *OrchestratorClient) getJobList(ctx context.Context, path string) ([]domain.Job, error) {
	var out []domain.Job
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get(c.baseURL + path)
	if err != nil {
		return nil, requestFailed(err)
	}
	if resp.IsError() {
		return nil, apiError(resp.StatusCode(), string(resp.Body()))
	}
	return out, nil
}

// JobExecutionInfo is what claiming a job returns (§6, bit-exact): enough
// for the runner to parse and execute the pipeline without a second round
// trip, flattened rather than nested under job/pipeline keys.
type JobExecutionInfo struct {
	JobID          string                 `json:"job_id"`
	PipelineID     string                 `json:"pipeline_id"`
	PipelineSource string                 `json:"pipeline_source"`
	Parameters     map[string]interface{} `json:"parameters"`
}

type executeJobRequest struct {
	RunnerID string `json:"runner_id"`
}

// ClaimJob leases a job for execution by runnerID.
func (c *OrchestratorClient) ClaimJob(ctx context.Context, jobID, runnerID string) (JobExecutionInfo, error) {
	var out JobExecutionInfo
	resp, err := c.http.R().SetContext(ctx).
		SetBody(executeJobRequest{RunnerID: runnerID}).
		SetResult(&out).
		Post(c.url("/api/jobs/execute/%s", jobID))
	if err != nil {
		return JobExecutionInfo{}, requestFailed(err)
	}
	if resp.IsError() {
		return JobExecutionInfo{}, apiError(resp.StatusCode(), string(resp.Body()))
	}
	return out, nil
}

type updateStatusRequest struct {
	Status domain.JobStatus `json:"status"`
}

func (c *OrchestratorClient) UpdateJobStatus(ctx context.Context, jobID string, status domain.JobStatus) error {
	resp, err := c.http.R().SetContext(ctx).
		SetBody(updateStatusRequest{Status: status}).
		Put(c.url("/api/jobs/%s/status", jobID))
	if err != nil {
		return requestFailed(err)
	}
	if resp.IsError() {
		return apiError(resp.StatusCode(), string(resp.Body()))
	}
	return nil
}

type completeJobRequest struct {
	Status domain.JobStatus `json:"status"`
	Result domain.JobResult `json:"result"`
}

// CompleteJob reports a finished job's result; the terminal status is
// derived from result.Success, mirroring the original (success ->
// Succeeded, failure -> Failed — a timeout is reported by the caller
// completing with JobTimedOut directly via CompleteJobWithStatus).
func (c *OrchestratorClient) CompleteJob(ctx context.Context, jobID string, result domain.JobResult) error {
	status := domain.JobSucceeded
	if !result.Success {
		status = domain.JobFailed
	}
	return c.CompleteJobWithStatus(ctx, jobID, status, result)
}

func (c *OrchestratorClient) CompleteJobWithStatus(ctx context.Context, jobID string, status domain.JobStatus, result domain.JobResult) error {
	resp, err := c.http.R().SetContext(ctx).
		SetBody(completeJobRequest{Status: status, Result: result}).
		Post(c.url("/api/jobs/%s/complete", jobID))
	if err != nil {
		return requestFailed(err)
	}
	if resp.IsError() {
		return apiError(resp.StatusCode(), string(resp.Body()))
	}
	return nil
}

func (c *OrchestratorClient) GetJobLogs(ctx context.Context, jobID string) ([]domain.LogEntry, error) {
	var out []domain.LogEntry
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get(c.url("/api/jobs/%s/logs", jobID))
	if err != nil {
		return nil, requestFailed(err)
	}
	if resp.IsError() {
		return nil, apiError(resp.StatusCode(), string(resp.Body()))
	}
	return out, nil
}

// SendLogs ships entries for jobID. A no-op when entries is empty, so
// callers can call it unconditionally on every log-send tick.
func (c *OrchestratorClient) SendLogs(ctx context.Context, jobID string, entries []domain.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	resp, err := c.http.R().SetContext(ctx).SetBody(entries).Post(c.url("/api/jobs/%s/logs", jobID))
	if err != nil {
		return requestFailed(err)
	}
	if resp.IsError() {
		return apiError(resp.StatusCode(), string(resp.Body()))
	}
	return nil
}

// --- Runners -------------------------------------------------------------

type registerRunnerRequest struct {
	RunnerID     string   `json:"runner_id"`
	Capabilities []string `json:"capabilities"`
}

func (c *OrchestratorClient) RegisterRunner(ctx context.Context, runnerID string, capabilities []string) (domain.Runner, error) {
	var out domain.Runner
	resp, err := c.http.R().SetContext(ctx).
		SetBody(registerRunnerRequest{RunnerID: runnerID, Capabilities: capabilities}).
		SetResult(&out).
		Post(c.url("/api/runners/register"))
	if err != nil {
		return domain.Runner{}, requestFailed(err)
	}
	if resp.IsError() {
		return domain.Runner{}, apiError(resp.StatusCode(), string(resp.Body()))
	}
	return out, nil
}

func (c *OrchestratorClient) SendHeartbeat(ctx context.Context, runnerID string) error {
	resp, err := c.http.R().SetContext(ctx).Post(c.url("/api/runners/%s/heartbeat", runnerID))
	if err != nil {
		return requestFailed(err)
	}
	if resp.IsError() {
		return apiError(resp.StatusCode(), string(resp.Body()))
	}
	return nil
}

func (c *OrchestratorClient) ListRunners(ctx context.Context) ([]domain.Runner, error) {
	var out []domain.Runner
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get(c.url("/api/runners"))
	if err != nil {
		return nil, requestFailed(err)
	}
	if resp.IsError() {
		return nil, apiError(resp.StatusCode(), string(resp.Body()))
	}
	return out, nil
}

func (c *OrchestratorClient) GetRunner(ctx context.Context, runnerID string) (domain.Runner, error) {
	var out domain.Runner
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get(c.url("/api/runners/%s", runnerID))
	if err != nil {
		return domain.Runner{}, requestFailed(err)
	}
	if resp.IsError() {
		return domain.Runner{}, apiError(resp.StatusCode(), string(resp.Body()))
	}
	return out, nil
}

func (c *OrchestratorClient) DeleteRunner(ctx context.Context, runnerID string) error {
	resp, err := c.http.R().SetContext(ctx).Delete(c.url("/api/runners/%s", runnerID))
	if err != nil {
		return requestFailed(err)
	}
	if resp.IsError() {
		return apiError(resp.StatusCode(), string(resp.Body()))
	}
	return nil
}
