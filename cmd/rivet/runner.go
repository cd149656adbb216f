package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/SolracHQ/rivet/internal/client"
	"github.com/SolracHQ/rivet/internal/config"
	"github.com/SolracHQ/rivet/internal/domain"
	"github.com/SolracHQ/rivet/internal/logger"
	"github.com/SolracHQ/rivet/internal/runnerd"
)

// runnerProcess adapts a signal to a context cancellation, the shape
// runnerd.Poller.Run expects to stop by.
type runnerProcess struct {
	cancel context.CancelFunc
	log    *slog.Logger
}

func (p *runnerProcess) Signal(sig os.Signal) {
	p.log.Info("received signal, stopping runner", "signal", sig)
	p.cancel()
}

func newRunnerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runner",
		Short: "Start a runner process (polls the orchestrator, executes pipeline jobs)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRunner(cmd)
		},
	}
	cmd.Flags().String("runner-id", "", "this runner's identifier (default: a generated uuid)")
	cmd.Flags().Duration("poll-interval", 0, "how often to poll for scheduled jobs")
	cmd.Flags().Duration("heartbeat-interval", 0, "how often to send a liveness heartbeat")
	cmd.Flags().Duration("log-send-interval", 0, "how often to ship buffered logs to the orchestrator")
	cmd.Flags().Int("log-buffer-size", 0, "maximum log lines buffered per job; once full, the oldest line is dropped (0 = unbounded)")
	cmd.Flags().Duration("job-timeout", 0, "per-job execution timeout")
	cmd.Flags().Int("max-parallel-jobs", 0, "maximum number of jobs this runner executes concurrently")
	cmd.Flags().String("container-runtime", "", "container CLI to shell out to (docker, podman, ...)")
	cmd.Flags().String("workspace-base", "", "base directory for per-job workspaces")
	cmd.Flags().StringSlice("capabilities", nil, "capability tags this runner accepts, as key=value")
	cmd.Flags().Bool("json-logs", true, "emit JSON logs instead of text (default on, for process-supervisor consumption)")
	cmd.Flags().String("log-file", "", "additionally write JSON logs to this file")

	// Management subcommands hang off the same "runner" verb as the
	// daemon starter: `rivet runner` with no subcommand starts a runner
	// process, `rivet runner list|get|delete` instead manages runner
	// registrations against a running orchestrator, matching the
	// dependency table's "rivet runner ... [list]" entry.
	cmd.AddCommand(newRunnerListCmd(), newRunnerGetCmd(), newRunnerDeleteCmd())
	return cmd
}

func newRunnerListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered runners",
		RunE: func(cmd *cobra.Command, args []string) error {
			runners, err := apiClient(cmd).ListRunners(cmd.Context())
			if err != nil {
				return err
			}
			if len(runners) == 0 {
				color.Yellow("No runners registered.")
				return nil
			}
			fmt.Printf("Found %d runner(s):\n\n", len(runners))
			for _, r := range runners {
				fmt.Printf("  %s %s\n", color.CyanString("▸"), r.ID)
				fmt.Printf("    Status:        %s\n", runnerStatusColor(r.Status))
				fmt.Printf("    Last heartbeat: %s\n", color.New(color.Faint).Sprint(r.LastHeartbeat.Format("2006-01-02 15:04:05")))
				if len(r.Capabilities) > 0 {
					fmt.Printf("    Capabilities:  %s\n", color.New(color.Faint).Sprint(strings.Join(r.Capabilities, ", ")))
				}
				fmt.Println()
			}
			return nil
		},
	}
}

func runnerStatusColor(status domain.RunnerStatus) string {
	switch status {
	case domain.RunnerOnline:
		return color.GreenString(string(status))
	case domain.RunnerBusy:
		return color.YellowString(string(status))
	case domain.RunnerOffline:
		return color.RedString(string(status))
	default:
		return string(status)
	}
}

func newRunnerGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <runner-id>",
		Short: "Get runner details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := apiClient(cmd).GetRunner(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Println(color.New(color.Bold).Sprint("Runner Details:"))
			fmt.Printf("  ID:             %s\n", color.CyanString(r.ID))
			fmt.Printf("  Status:         %s\n", runnerStatusColor(r.Status))
			fmt.Printf("  Registered:     %s\n", r.RegisteredAt.Format("2006-01-02 15:04:05"))
			fmt.Printf("  Last heartbeat: %s\n", r.LastHeartbeat.Format("2006-01-02 15:04:05"))
			if len(r.Capabilities) > 0 {
				fmt.Printf("  Capabilities:   %s\n", strings.Join(r.Capabilities, ", "))
			}
			return nil
		},
	}
}

func newRunnerDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <runner-id>",
		Short: "Delete a runner registration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := apiClient(cmd).DeleteRunner(cmd.Context(), args[0]); err != nil {
				return err
			}
			color.Green("✓ Runner deleted successfully!")
			return nil
		},
	}
}

func runRunner(cmd *cobra.Command) error {
	v := config.NewViper()
	configFile, _ := cmd.Flags().GetString("config")
	if err := config.LoadFile(v, configFile); err != nil {
		return fmt.Errorf("loading config file: %w", err)
	}
	v.Set("orchestrator_url", orchestratorURL(cmd))
	bindChangedFlags(v, cmd.Flags())

	cfg, err := config.RunnerFromViper(v)
	if err != nil {
		return fmt.Errorf("parsing runner config: %w", err)
	}
	if cfg.RunnerID == "" {
		cfg.RunnerID = uuid.NewString()
	}

	jsonLogs, _ := cmd.Flags().GetBool("json-logs")
	logFile, _ := cmd.Flags().GetString("log-file")
	log, closeLog, err := logger.Build(logger.Options{Level: slog.LevelInfo, JSON: jsonLogs, FilePath: logFile})
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer closeLog()

	c := client.New(cfg.OrchestratorURL)
	poller := runnerd.New(cfg, c, log)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	listenSignals(ctx, &runnerProcess{cancel: cancel, log: log})

	log.Info("runner starting", "runner_id", cfg.RunnerID, "orchestrator_url", cfg.OrchestratorURL)
	return poller.Run(ctx)
}
