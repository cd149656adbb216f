// Package config implements the layered configuration (defaults -> YAML
// file -> environment -> CLI flags) shared by the orchestrator and
// runner commands, following this codebase's own cobra+viper wiring in
// cmd/commands.go (flags bound into a single viper instance, read back
// through a typed struct after cmd.Execute's PreRun).
package config

import (
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/spf13/viper"
)

// Orchestrator holds the orchestrator process's resolved configuration.
type Orchestrator struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`

	// RunnerHeartbeatTimeout marks a runner Offline once its last
	// heartbeat is older than this.
	RunnerHeartbeatTimeout time.Duration `mapstructure:"runner_heartbeat_timeout"`
	// SweepInterval is how often the liveness sweep runs.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// Runner holds a runner process's resolved configuration. Its fields are
// read from the RIVET_-prefixed environment (RIVET_RUNNER_ID,
// RIVET_ORCHESTRATOR_URL, RIVET_POLL_INTERVAL, RIVET_LOG_SEND_INTERVAL,
// RIVET_LOG_BUFFER_SIZE, RIVET_JOB_TIMEOUT, RIVET_MAX_PARALLEL_JOBS, ...);
// the unprefixed names are not read, and intervals are Go duration
// strings such as "5s".
type Runner struct {
	RunnerID         string        `mapstructure:"runner_id"`
	OrchestratorURL  string        `mapstructure:"orchestrator_url"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	LogSendInterval  time.Duration `mapstructure:"log_send_interval"`
	LogBufferSize    int           `mapstructure:"log_buffer_size"`
	JobTimeout       time.Duration `mapstructure:"job_timeout"`
	MaxParallelJobs  int           `mapstructure:"max_parallel_jobs"`
	ContainerRuntime string        `mapstructure:"container_runtime"`
	WorkspaceBase    string        `mapstructure:"workspace_base"`
	Capabilities     []string      `mapstructure:"capabilities"`
	GracePeriod      time.Duration `mapstructure:"grace_period"`
}

// NewViper returns a viper instance pre-seeded with defaults and bound to
// the RIVET_ environment namespace, ready for a cobra command to bind its
// own flags on top.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("rivet")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("host", "127.0.0.1")
	v.SetDefault("port", "8080")
	v.SetDefault("runner_heartbeat_timeout", 90*time.Second)
	v.SetDefault("sweep_interval", 1*time.Minute)

	v.SetDefault("runner_id", "")
	v.SetDefault("orchestrator_url", "http://localhost:8080")
	v.SetDefault("poll_interval", 5*time.Second)
	v.SetDefault("heartbeat_interval", 30*time.Second)
	v.SetDefault("log_send_interval", 30*time.Second)
	v.SetDefault("log_buffer_size", 0)
	v.SetDefault("job_timeout", 300*time.Second)
	v.SetDefault("max_parallel_jobs", 2)
	v.SetDefault("container_runtime", "docker")
	v.SetDefault("workspace_base", "/tmp/rivet-workspaces")
	v.SetDefault("grace_period", 30*time.Second)

	return v
}

// LoadFile merges a YAML config file into v, if path is non-empty and the
// file exists. The file is decoded by viper's own YAML support;
// ParseYAMLBytes below is the goccy/go-yaml entry point.
func LoadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return err
	}
	return nil
}

// ParseYAMLBytes is a small helper exposed for tests and for the CLI's
// local pipeline-script scaffolding; not otherwise on the orchestrator's
// hot path (pipeline scripts are Starlark, not YAML).
func ParseYAMLBytes(b []byte, out interface{}) error {
	return yaml.Unmarshal(b, out)
}

func OrchestratorFromViper(v *viper.Viper) (Orchestrator, error) {
	var c Orchestrator
	err := v.Unmarshal(&c)
	return c, err
}

func RunnerFromViper(v *viper.Viper) (Runner, error) {
	var c Runner
	err := v.Unmarshal(&c)
	return c, err
}
