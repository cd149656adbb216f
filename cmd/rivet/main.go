// Command rivet is the operator-facing binary: it starts the
// orchestrator process, starts a runner process, and drives both from
// the command line (pipeline/job/runner management, local script
// scaffolding), following this codebase's own cobra root-command layout
// (cmd/root.go, cmd/commands.go) adapted to the rivet command surface.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
