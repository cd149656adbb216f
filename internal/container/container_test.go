package container

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/SolracHQ/rivet/internal/sandbox"
)

// fakeRuntime writes a shell script standing in for docker/podman: it
// understands just enough of "run -d ...", "exec -w DIR NAME CMD...",
// "stop NAME" and "rm -f NAME" to exercise Manager without a real
// container engine on the test host.
func fakeRuntime(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fake-runtime")
	script := `#!/bin/sh
case "$1" in
  run) echo "fakecontainerid" ;;
  exec)
    shift
    # exec -w DIR NAME CMD [ARGS...]
    shift; shift; shift
    echo "ran: $*"
    ;;
  stop) exit 0 ;;
  rm) exit 0 ;;
esac
`
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestPushEnsuresContainerAndPop(t *testing.T) {
	runtime := fakeRuntime(t)
	m := New("job-1", t.TempDir(), runtime, nil)

	require.NoError(t, m.Push("alpine:latest"))
	name, ok := m.current()
	require.True(t, ok)
	require.Contains(t, name, "job-1")

	require.NoError(t, m.Pop())
	_, ok = m.current()
	require.False(t, ok)
}

func TestPopWithEmptyStackErrors(t *testing.T) {
	m := New("job-1", t.TempDir(), fakeRuntime(t), nil)
	require.Error(t, m.Pop())
}

func TestRunWithoutActiveContainerErrors(t *testing.T) {
	m := New("job-1", t.TempDir(), fakeRuntime(t), nil)
	_, err := m.Run(sandbox.ProcessOptions{Cmd: "echo", Args: []string{"hi"}})
	require.Error(t, err)
}

func TestRunExecutesInCurrentContainer(t *testing.T) {
	m := New("job-1", t.TempDir(), fakeRuntime(t), nil)
	require.NoError(t, m.Push("alpine:latest"))

	res, err := m.Run(sandbox.ProcessOptions{Cmd: "echo", Args: []string{"hi"}})
	require.NoError(t, err)
	require.Equal(t, 0, res.ExitCode)
	require.Contains(t, res.Stdout, "ran: echo hi")
}

func TestEnsureRunningReusesContainerForSameImage(t *testing.T) {
	m := New("job-1", t.TempDir(), fakeRuntime(t), nil)
	first, err := m.ensureRunning("alpine:latest")
	require.NoError(t, err)
	second, err := m.ensureRunning("alpine:latest")
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestCleanupDoesNotPanicWithNoContainers(t *testing.T) {
	m := New("job-1", t.TempDir(), fakeRuntime(t), nil)
	m.Cleanup()
}
