package runnerd

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/SolracHQ/rivet/internal/client"
	"github.com/SolracHQ/rivet/internal/config"
	"github.com/SolracHQ/rivet/internal/domain"
)

// TestExecuteJobReportsFailureWhenContainerRuntimeMissing exercises the claim ->
// parse -> (fail to start container) -> complete path against a fake
// orchestrator, without requiring a real docker/podman binary: the
// configured "runtime" is a nonexistent binary, so StartDefault fails
// and the job is reported Failed rather than hanging.
func TestExecuteJobReportsFailureWhenContainerRuntimeMissing(t *testing.T) {
	var completeBody map[string]interface{}
	var completed int32

	pipelineScript := `
def run_build():
    log.info("hi")

pipeline.define({
    "name": "demo",
    "container": "alpine:latest",
    "stages": [pipeline.stage({"name": "build", "script": run_build})],
})
`
	jobID := "11111111-1111-1111-1111-111111111111"
	pipelineID := "22222222-2222-2222-2222-222222222222"

	mux := http.NewServeMux()
	mux.HandleFunc("/api/runners/register", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(domain.Runner{ID: "runner-1"})
	})
	mux.HandleFunc("/api/jobs/execute/"+jobID, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(client.JobExecutionInfo{
			PipelineID:     pipelineID,
			PipelineSource: pipelineScript,
			Parameters:     map[string]interface{}{},
		})
	})
	mux.HandleFunc("/api/jobs/"+jobID+"/complete", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&completeBody)
		atomic.StoreInt32(&completed, 1)
	})
	mux.HandleFunc("/api/jobs/"+jobID+"/logs", func(w http.ResponseWriter, r *http.Request) {})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := client.New(srv.URL)
	cfg := config.Runner{
		RunnerID:         "runner-1",
		ContainerRuntime: "rivet-test-nonexistent-runtime",
		WorkspaceBase:    t.TempDir(),
		LogSendInterval:  time.Hour,
		MaxParallelJobs:  1,
	}
	p := New(cfg, c, nil)

	p.executeJob(context.Background(), jobID)

	require.Equal(t, int32(1), atomic.LoadInt32(&completed))
	require.Equal(t, string(domain.JobFailed), completeBody["status"])
}
