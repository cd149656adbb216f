package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/SolracHQ/rivet/internal/domain"
)

func newJobCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Manage jobs",
	}
	cmd.AddCommand(
		newJobListCmd(),
		newJobScheduledCmd(),
		newJobGetCmd(),
		newJobLogsCmd(),
		newJobPipelineCmd(),
	)
	return cmd
}

// newJobListCmd is a supplemented verb: the original CLI never exposed
// "list all jobs", even though the orchestrator's /api/jobs endpoint
// (and this client's ListAllJobs) always supported it.
func newJobListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every job known to the orchestrator",
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs, err := apiClient(cmd).ListAllJobs(cmd.Context())
			if err != nil {
				return err
			}
			printJobList(jobs, fmt.Sprintf("Found %d job(s):", len(jobs)), "No jobs found.")
			return nil
		},
	}
}

func newJobScheduledCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scheduled",
		Short: "List scheduled jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs, err := apiClient(cmd).ListScheduledJobs(cmd.Context())
			if err != nil {
				return err
			}
			printJobList(jobs, fmt.Sprintf("Found %d scheduled job(s):", len(jobs)), "No scheduled jobs found.")
			return nil
		},
	}
}

func newJobPipelineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pipeline <pipeline-id>",
		Short: "List jobs for a pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs, err := apiClient(cmd).ListJobsByPipeline(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printJobList(jobs, fmt.Sprintf("Found %d job(s) for pipeline %s:", len(jobs), args[0]), "No jobs found for this pipeline.")
			return nil
		},
	}
}

func printJobList(jobs []domain.Job, header, empty string) {
	if len(jobs) == 0 {
		color.Yellow(empty)
		return
	}
	fmt.Println(header)
	fmt.Println()
	for _, j := range jobs {
		fmt.Printf("  %s Job %s\n", color.CyanString("▸"), color.New(color.Faint).Sprint(j.ID.String()))
		fmt.Printf("    Status:   %s\n", statusColor(j.Status))
		fmt.Printf("    Created:  %s\n", color.New(color.Faint).Sprint(j.RequestedAt.Format("2006-01-02 15:04:05")))
		if j.RunnerID != nil {
			fmt.Printf("    Runner:   %s\n", color.New(color.Faint).Sprint(*j.RunnerID))
		}
		fmt.Println()
	}
}

func statusColor(status domain.JobStatus) string {
	switch status {
	case domain.JobQueued:
		return color.YellowString(string(status))
	case domain.JobRunning:
		return color.CyanString(string(status))
	case domain.JobSucceeded:
		return color.GreenString(string(status))
	case domain.JobFailed, domain.JobTimedOut:
		return color.RedString(string(status))
	case domain.JobCancelled:
		return color.New(color.Faint).Sprint(string(status))
	default:
		return string(status)
	}
}

func newJobGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <job-id>",
		Short: "Get job details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := apiClient(cmd).GetJob(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Println(color.New(color.Bold).Sprint("Job Details:"))
			fmt.Printf("  ID:          %s\n", color.CyanString(j.ID.String()))
			fmt.Printf("  Pipeline ID: %s\n", color.New(color.Faint).Sprint(j.PipelineID.String()))
			fmt.Printf("  Status:      %s\n", statusColor(j.Status))
			fmt.Printf("  Requested:   %s\n", j.RequestedAt.Format("2006-01-02 15:04:05"))
			if j.StartedAt != nil {
				fmt.Printf("  Started:     %s\n", j.StartedAt.Format("2006-01-02 15:04:05"))
			}
			if j.CompletedAt != nil {
				fmt.Printf("  Completed:   %s\n", j.CompletedAt.Format("2006-01-02 15:04:05"))
			}
			if j.RunnerID != nil {
				fmt.Printf("  Runner:      %s\n", *j.RunnerID)
			}
			if len(j.Parameters) > 0 {
				b, _ := json.MarshalIndent(j.Parameters, "", "  ")
				fmt.Printf("  Parameters:  %s\n", string(b))
			}
			if j.Result != nil {
				fmt.Println("\n" + color.New(color.Bold).Sprint("Result:"))
				if j.Result.Success {
					fmt.Printf("  Success:    %s\n", color.GreenString("✓"))
				} else {
					fmt.Printf("  Success:    %s\n", color.RedString("✗"))
				}
				fmt.Printf("  Exit Code:  %d\n", j.Result.ExitCode)
				if j.Result.Output != nil {
					fmt.Printf("  Output:     %s\n", *j.Result.Output)
				}
				if j.Result.ErrorMessage != nil {
					fmt.Printf("  Error:      %s\n", color.RedString(*j.Result.ErrorMessage))
				}
			}
			return nil
		},
	}
}

func newJobLogsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logs <job-id>",
		Short: "Get job logs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logs, err := apiClient(cmd).GetJobLogs(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(logs) == 0 {
				color.Yellow("No logs found for this job.")
				return nil
			}
			fmt.Printf("Logs for job %s:\n", args[0])
			fmt.Println(strings.Repeat("─", 80))
			for _, l := range logs {
				fmt.Printf("%s [%s] %s\n",
					color.New(color.Faint).Sprint(l.Timestamp.Format("15:04:05")),
					logLevelColor(l.Level),
					l.Message)
			}
			fmt.Println(strings.Repeat("─", 80))
			return nil
		},
	}
}

func logLevelColor(level domain.LogLevel) string {
	upper := strings.ToUpper(string(level))
	switch level {
	case domain.LogDebug:
		return color.New(color.Faint).Sprint(upper)
	case domain.LogInfo:
		return color.CyanString(upper)
	case domain.LogWarning:
		return color.YellowString(upper)
	case domain.LogError:
		return color.RedString(upper)
	default:
		return upper
	}
}
