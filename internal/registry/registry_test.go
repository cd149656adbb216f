package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/SolracHQ/rivet/internal/domain"
)

func TestRegisterAndHeartbeat(t *testing.T) {
	r := New(time.Minute, nil)

	run := r.Register("runner-1", []string{"arch=amd64"})
	require.Equal(t, domain.RunnerOnline, run.Status)

	_, err := r.Heartbeat("runner-1")
	require.NoError(t, err)

	_, err = r.Heartbeat("unknown")
	require.Error(t, err)
	require.Equal(t, domain.KindRunnerNotFound, domain.KindOf(err))
}

func TestOnlineFiltersByTags(t *testing.T) {
	r := New(time.Minute, nil)
	r.Register("amd64-runner", []string{"arch=amd64"})
	r.Register("arm64-runner", []string{"arch=arm64"})

	matches := r.Online([]domain.Tag{{Key: "arch", Value: "amd64"}})
	require.Len(t, matches, 1)
	require.Equal(t, "amd64-runner", matches[0].ID)
}

func TestSweepMarksStaleRunnersOffline(t *testing.T) {
	r := New(10*time.Millisecond, nil)
	r.Register("stale-runner", nil)

	time.Sleep(20 * time.Millisecond)
	r.sweep()

	run, err := r.Get("stale-runner")
	require.NoError(t, err)
	require.Equal(t, domain.RunnerOffline, run.Status)
}

func TestDeleteRunner(t *testing.T) {
	r := New(time.Minute, nil)
	r.Register("to-delete", nil)
	require.NoError(t, r.Delete("to-delete"))

	err := r.Delete("to-delete")
	require.Error(t, err)
	require.Equal(t, domain.KindRunnerNotFound, domain.KindOf(err))
}
