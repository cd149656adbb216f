package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/SolracHQ/rivet/internal/domain"
)

func TestPipelineLifecycle(t *testing.T) {
	s := New()
	p := s.CreatePipeline("demo", "a demo pipeline", "pipeline.define({})", nil)
	require.NotEmpty(t, p.ID)

	got, err := s.GetPipeline(p.ID)
	require.NoError(t, err)
	require.Equal(t, p.Script, got.Script)

	require.Len(t, s.ListPipelines(), 1)

	require.NoError(t, s.DeletePipeline(p.ID))
	_, err = s.GetPipeline(p.ID)
	require.Error(t, err)
	require.Equal(t, domain.KindPipelineNotFound, domain.KindOf(err))
}

func TestJobClaimAndCompleteLifecycle(t *testing.T) {
	s := New()
	p := s.CreatePipeline("demo", "", "pipeline.define({})", nil)

	j, err := s.CreateJob(p.ID, map[string]interface{}{"x": 1.0})
	require.NoError(t, err)
	require.Equal(t, domain.JobQueued, j.Status)

	claimed, err := s.ClaimJob(j.ID.String(), "runner-1")
	require.NoError(t, err)
	require.Equal(t, domain.JobRunning, claimed.Status)
	require.NotNil(t, claimed.RunnerID)
	require.Equal(t, "runner-1", *claimed.RunnerID)

	_, err = s.ClaimJob(j.ID.String(), "runner-2")
	require.Error(t, err)
	require.Equal(t, domain.KindInvalidStateTransition, domain.KindOf(err))

	done, err := s.CompleteJob(j.ID.String(), domain.JobSucceeded, domain.ResultSuccess())
	require.NoError(t, err)
	require.True(t, done.Status.IsTerminal())
	require.NotNil(t, done.Result)
	require.True(t, done.Result.Success)
}

func TestScheduledJobsAreFIFO(t *testing.T) {
	s := New()
	p := s.CreatePipeline("demo", "", "pipeline.define({})", nil)

	first, err := s.CreateJob(p.ID, nil)
	require.NoError(t, err)
	second, err := s.CreateJob(p.ID, nil)
	require.NoError(t, err)

	scheduled := s.ListScheduledJobs()
	require.Len(t, scheduled, 2)
	require.Equal(t, first.ID, scheduled[0].ID)
	require.Equal(t, second.ID, scheduled[1].ID)
}

func TestAppendLogsRejectsOversizedMessage(t *testing.T) {
	s := New()
	p := s.CreatePipeline("demo", "", "pipeline.define({})", nil)
	j, err := s.CreateJob(p.ID, nil)
	require.NoError(t, err)

	long := make([]byte, domain.MaxLogMessageLength+100)
	for i := range long {
		long[i] = 'a'
	}
	err = s.AppendLogs(j.ID.String(), []domain.LogEntry{{Level: domain.LogInfo, Message: string(long)}})
	require.Error(t, err)
	require.Equal(t, domain.KindBadFieldType, domain.KindOf(err))

	logs, err := s.GetLogs(j.ID.String())
	require.NoError(t, err)
	require.Empty(t, logs)
}

func TestAppendLogsRejectsOversizedBatch(t *testing.T) {
	s := New()
	p := s.CreatePipeline("demo", "", "pipeline.define({})", nil)
	j, err := s.CreateJob(p.ID, nil)
	require.NoError(t, err)

	entries := make([]domain.LogEntry, domain.MaxLogBatchSize+1)
	for i := range entries {
		entries[i] = domain.LogEntry{Level: domain.LogInfo, Message: "line"}
	}
	err = s.AppendLogs(j.ID.String(), entries)
	require.Error(t, err)
	require.Equal(t, domain.KindBadFieldType, domain.KindOf(err))
}
