package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/SolracHQ/rivet/internal/apiserver"
	"github.com/SolracHQ/rivet/internal/config"
	"github.com/SolracHQ/rivet/internal/logger"
	"github.com/SolracHQ/rivet/internal/registry"
	"github.com/SolracHQ/rivet/internal/store"
)

// orchestratorProcess adapts an *http.Server plus the registry's sweep
// loop to signalListener: either triggers a graceful shutdown of both.
type orchestratorProcess struct {
	httpServer *http.Server
	reg        *registry.Registry
	log        *slog.Logger
}

func (p *orchestratorProcess) Signal(sig os.Signal) {
	p.log.Info("received signal, shutting down", "signal", sig)
	p.reg.StopSweep()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.httpServer.Shutdown(ctx); err != nil {
		p.log.Error("error during http server shutdown", "error", err)
	}
}

func newOrchestratorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orchestrator",
		Short: "Start the orchestrator process (HTTP API, job store, runner registry)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrchestrator(cmd)
		},
	}
	cmd.Flags().String("host", "", "listen host (default 127.0.0.1)")
	cmd.Flags().String("port", "", "listen port (default 8080)")
	cmd.Flags().Duration("runner-heartbeat-timeout", 0, "mark a runner offline once its heartbeat is older than this")
	cmd.Flags().Duration("sweep-interval", 0, "how often the runner liveness sweep runs")
	cmd.Flags().Bool("json-logs", false, "emit JSON logs instead of text")
	cmd.Flags().String("log-file", "", "additionally write JSON logs to this file")
	return cmd
}

func runOrchestrator(cmd *cobra.Command) error {
	v := config.NewViper()
	configFile, _ := cmd.Flags().GetString("config")
	if err := config.LoadFile(v, configFile); err != nil {
		return fmt.Errorf("loading config file: %w", err)
	}
	bindChangedFlags(v, cmd.Flags())

	cfg, err := config.OrchestratorFromViper(v)
	if err != nil {
		return fmt.Errorf("parsing orchestrator config: %w", err)
	}

	jsonLogs, _ := cmd.Flags().GetBool("json-logs")
	logFile, _ := cmd.Flags().GetString("log-file")
	log, closeLog, err := logger.Build(logger.Options{Level: slog.LevelInfo, JSON: jsonLogs, FilePath: logFile})
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer closeLog()

	st := store.New()
	reg := registry.New(cfg.RunnerHeartbeatTimeout, log)
	if err := reg.StartSweep(cfg.SweepInterval); err != nil {
		return fmt.Errorf("starting runner liveness sweep: %w", err)
	}

	srv := apiserver.New(st, reg, log)
	addr := fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)
	httpServer := &http.Server{Addr: addr, Handler: srv.Router()}

	proc := &orchestratorProcess{httpServer: httpServer, reg: reg, log: log}
	listenSignals(cmd.Context(), proc)

	log.Info("orchestrator listening", "addr", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("orchestrator http server: %w", err)
	}
	return nil
}

// bindChangedFlags layers only the flags the operator actually set on
// top of the file/env-resolved viper instance, so an unset CLI flag
// never shadows a value already supplied by config file or environment.
func bindChangedFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.Visit(func(f *pflag.Flag) {
		v.Set(underscored(f.Name), f.Value.String())
	})
}

func underscored(name string) string {
	out := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		if name[i] == '-' {
			out[i] = '_'
		} else {
			out[i] = name[i]
		}
	}
	return string(out)
}
