// Package container is the container manager (C8): it runs and tears
// down job containers via a CLI container runtime (docker or podman),
// shelling out with os/exec exactly as the runner's original
// implementation did, rather than linking a client library against the
// container engine's API.
//
// A worker creates one Manager per job. Manager implements both
// sandbox.ContainerRunner (container.run push/pop) and
// sandbox.ProcessRunner (process.run, executed inside whichever
// container is current), so a job's Primitives can be wired directly
// from a single Manager value.
package container

import (
	"fmt"
	"hash/fnv"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/SolracHQ/rivet/internal/domain"
	"github.com/SolracHQ/rivet/internal/sandbox"
)

// Manager tracks every container started for one job, plus a stack of
// "current" containers so nested container.run(...) blocks restore the
// previous context on exit.
type Manager struct {
	jobID         string
	workspacePath string
	runtime       string // "docker" or "podman"
	log           *slog.Logger

	mu         sync.Mutex
	containers map[string]string // image -> container name
	stack      []string
}

var _ sandbox.ContainerRunner = (*Manager)(nil)
var _ sandbox.ProcessRunner = (*Manager)(nil)

// New builds a Manager for one job. runtime selects the CLI binary
// invoked ("docker" or "podman"); workspacePath is mounted at
// /workspace in every container this manager starts.
func New(jobID, workspacePath, runtime string, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		jobID:         jobID,
		workspacePath: workspacePath,
		runtime:       runtime,
		log:           log,
		containers:    make(map[string]string),
	}
}

// StartDefault starts (or reuses) image and pushes it as the job's
// initial current container, before any stage runs.
func (m *Manager) StartDefault(image string) error {
	return m.Push(image)
}

// Push implements sandbox.ContainerRunner: ensures image's container is
// running and makes it current.
func (m *Manager) Push(image string) error {
	name, err := m.ensureRunning(image)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.stack = append(m.stack, name)
	depth := len(m.stack)
	m.mu.Unlock()
	m.log.Debug("pushed container onto stack", "container", name, "depth", depth)
	return nil
}

// Pop implements sandbox.ContainerRunner: restores whatever container
// was current before the most recent Push. The container itself is not
// torn down here — all containers for a job are stopped together by
// Cleanup once the job finishes, since a later stage's container.run on
// the same image should find it already running.
func (m *Manager) Pop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.stack) == 0 {
		return domain.NewError(domain.KindNoActiveContainer, "container stack is empty")
	}
	m.stack = m.stack[:len(m.stack)-1]
	return nil
}

func (m *Manager) current() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.stack) == 0 {
		return "", false
	}
	return m.stack[len(m.stack)-1], true
}

// ensureRunning returns the container name for image, starting a fresh
// one (entrypoint overridden to /bin/sh, sleeping forever, workspace
// mounted) if none exists yet.
func (m *Manager) ensureRunning(image string) (string, error) {
	m.mu.Lock()
	if name, ok := m.containers[image]; ok {
		m.mu.Unlock()
		return name, nil
	}
	m.mu.Unlock()

	if err := os.MkdirAll(m.workspacePath, 0o755); err != nil {
		return "", domain.Wrap(domain.KindContainerStartFailed, err, "failed to create workspace directory")
	}

	name := m.containerName(image)
	cmd := exec.Command(m.runtime,
		"run", "-d",
		"--name", name,
		"--entrypoint", "/bin/sh",
		"-v", m.workspacePath+":/workspace",
		"-w", "/workspace",
		image,
		"-c", "sleep infinity",
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", domain.Wrap(domain.KindContainerStartFailed, err,
			"failed to start container for image %q: %s", image, strings.TrimSpace(string(out)))
	}

	m.mu.Lock()
	m.containers[image] = name
	m.mu.Unlock()

	m.log.Info("container started", "container", name, "image", image)
	return name, nil
}

// Run implements sandbox.ProcessRunner: executes cmd inside whatever
// container is current.
func (m *Manager) Run(opts sandbox.ProcessOptions) (sandbox.ProcessResult, error) {
	container, ok := m.current()
	if !ok {
		return sandbox.ProcessResult{}, domain.NewError(domain.KindNoActiveContainer, "no active container in stack")
	}

	workdir := "/workspace"
	if opts.Cwd != "" {
		if strings.HasPrefix(opts.Cwd, "/") {
			workdir = opts.Cwd
		} else {
			workdir = "/workspace/" + opts.Cwd
		}
	}

	args := append([]string{"exec", "-w", workdir, container, opts.Cmd}, opts.Args...)
	cmd := exec.Command(m.runtime, args...)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	exitCode := 0
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return sandbox.ProcessResult{}, domain.Wrap(domain.KindCommandInvocationFailed, runErr,
				"failed to invoke %q in container %q", opts.Cmd, container)
		}
	}

	return sandbox.ProcessResult{ExitCode: exitCode, Stdout: stdout.String(), Stderr: stderr.String()}, nil
}

// Cleanup stops and force-removes every container this manager started.
// Errors stopping/removing individual containers are logged, not
// returned, so that one stuck container doesn't prevent cleanup of the
// rest.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	containers := make(map[string]string, len(m.containers))
	for image, name := range m.containers {
		containers[image] = name
	}
	m.mu.Unlock()

	m.log.Info("cleaning up job containers", "job_id", m.jobID, "count", len(containers))
	for image, name := range containers {
		if out, err := exec.Command(m.runtime, "stop", name).CombinedOutput(); err != nil {
			m.log.Warn("failed to stop container", "container", name, "image", image, "error", string(out))
		}
		if out, err := exec.Command(m.runtime, "rm", "-f", name).CombinedOutput(); err != nil {
			m.log.Warn("failed to remove container", "container", name, "image", image, "error", string(out))
		}
	}
}

// containerName derives a deterministic name from the job ID and a hash
// of the image, matching the original's naming scheme.
func (m *Manager) containerName(image string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(image))
	return fmt.Sprintf("rivet-%s-%x", m.jobID, h.Sum64())
}
