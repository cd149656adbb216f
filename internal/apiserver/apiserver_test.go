package apiserver

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/SolracHQ/rivet/internal/registry"
	"github.com/SolracHQ/rivet/internal/store"
)

func newTestServer() *httptest.Server {
	st := store.New()
	reg := registry.New(time.Minute, nil)
	return httptest.NewServer(New(st, reg, nil).Router())
}

const validScript = `
def noop():
    return None

pipeline.define({
    "name": "demo",
    "stages": [
        pipeline.stage({"name": "build", "script": noop}),
    ],
})
`

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(buf))
	require.NoError(t, err)
	return resp
}

func TestHealthCheck(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "OK", string(body))
}

func TestCreatePipelineRejectsBadScript(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/pipeline/create", map[string]interface{}{
		"script": "this is not valid starlark (((",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body["error"])
}

func TestCreatePipelineThenListThenGet(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/pipeline/create", map[string]interface{}{
		"script": validScript,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()
	id, _ := created["id"].(string)
	require.NotEmpty(t, id)

	listResp, err := http.Get(srv.URL + "/api/pipeline/list")
	require.NoError(t, err)
	defer listResp.Body.Close()
	var list []map[string]interface{}
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&list))
	require.Len(t, list, 1)

	getResp, err := http.Get(srv.URL + "/api/pipeline/" + id)
	require.NoError(t, err)
	defer getResp.Body.Close()
	require.Equal(t, http.StatusOK, getResp.StatusCode)
}

func TestGetUnknownPipelineReturnsNotFound(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/pipeline/does-not-exist")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLaunchJobValidatesParameters(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	createResp := postJSON(t, srv.URL+"/api/pipeline/create", map[string]interface{}{
		"script": validScript,
	})
	var created map[string]interface{}
	require.NoError(t, json.NewDecoder(createResp.Body).Decode(&created))
	createResp.Body.Close()
	pipelineID := created["id"].(string)

	launchResp := postJSON(t, srv.URL+"/api/pipeline/launch", map[string]interface{}{
		"pipeline_id": pipelineID,
	})
	defer launchResp.Body.Close()
	require.Equal(t, http.StatusCreated, launchResp.StatusCode)

	var job map[string]interface{}
	require.NoError(t, json.NewDecoder(launchResp.Body).Decode(&job))
	require.Equal(t, "Queued", job["status"])
}

func TestRunnerRegisterHeartbeatLifecycle(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/runners/register", map[string]interface{}{
		"runner_id":    "runner-1",
		"capabilities": []string{"os=linux"},
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	hbResp, err := http.Post(srv.URL+"/api/runners/runner-1/heartbeat", "application/json", nil)
	require.NoError(t, err)
	defer hbResp.Body.Close()
	require.Equal(t, http.StatusOK, hbResp.StatusCode)

	listResp, err := http.Get(srv.URL + "/api/runners")
	require.NoError(t, err)
	defer listResp.Body.Close()
	var runners []map[string]interface{}
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&runners))
	require.Len(t, runners, 1)
}
