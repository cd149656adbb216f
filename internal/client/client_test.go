package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/SolracHQ/rivet/internal/domain"
)

func TestBaseURLTrimsTrailingSlash(t *testing.T) {
	c := New("http://localhost:8080/")
	require.Equal(t, "http://localhost:8080", c.BaseURL())
}

func TestCreatePipelineRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/pipeline/create", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(domain.Pipeline{ID: "p-1", Name: "demo"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	p, err := c.CreatePipeline(context.Background(), "pipeline.define({})")
	require.NoError(t, err)
	require.Equal(t, "p-1", p.ID)
}

func TestGetJobNotFoundIsClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"job not found"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.GetJob(context.Background(), "missing")
	require.Error(t, err)
	require.True(t, IsNotFound(err))
	require.True(t, IsClientError(err))
	require.False(t, IsServerError(err))
}

func TestSendLogsNoopOnEmpty(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := New(srv.URL)
	err := c.SendLogs(context.Background(), "job-1", nil)
	require.NoError(t, err)
	require.False(t, called)
}

func TestCompleteJobDerivesStatusFromResult(t *testing.T) {
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/jobs/job-1/complete", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
	}))
	defer srv.Close()

	c := New(srv.URL)
	err := c.CompleteJob(context.Background(), "job-1", domain.ResultFailed("boom"))
	require.NoError(t, err)
	require.Equal(t, string(domain.JobFailed), gotBody["status"])
}
