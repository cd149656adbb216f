package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/SolracHQ/rivet/internal/client"
)

// newRootCmd builds the rivet command tree: orchestrator/runner start
// the two long-running processes, pipeline/job/runner manage state
// against a running orchestrator, init scaffolds a starter script.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "rivet",
		Short:         "Rivet CI/CD orchestration platform",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().String("orchestrator-url", "http://localhost:8080", "orchestrator base URL")
	root.PersistentFlags().String("config", "", "path to a YAML config file")
	_ = viper.BindPFlag("orchestrator_url", root.PersistentFlags().Lookup("orchestrator-url"))
	viper.SetEnvPrefix("rivet")
	viper.AutomaticEnv()

	root.AddCommand(newOrchestratorCmd())
	root.AddCommand(newRunnerCmd())
	root.AddCommand(newPipelineCmd())
	root.AddCommand(newJobCmd())
	root.AddCommand(newInitCmd())

	return root
}

// orchestratorURL resolves the --orchestrator-url flag, falling back to
// RIVET_ORCHESTRATOR_URL and then the viper default bound in newRootCmd.
func orchestratorURL(cmd *cobra.Command) string {
	v, _ := cmd.Flags().GetString("orchestrator-url")
	if v != "" && cmd.Flags().Changed("orchestrator-url") {
		return v
	}
	if env := viper.GetString("orchestrator_url"); env != "" {
		return env
	}
	return v
}

func apiClient(cmd *cobra.Command) *client.OrchestratorClient {
	return client.New(orchestratorURL(cmd))
}
