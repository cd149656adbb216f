package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// exampleScript is the starting point `rivet init lua` writes out. The
// name of the verb is inherited from the original CLI (its pipelines
// were Lua); this codebase's sandbox evaluator is Starlark (see
// internal/sandbox), so the scaffold is a `.star` file with the same
// pipeline.define/input/stage shape a script author would otherwise
// have to discover by reading internal/sandbox/builtins.go.
const exampleScript = `# Example rivet pipeline. Run "rivet pipeline check pipeline.star"
# to validate it locally before "rivet pipeline create".

def greet():
    log.info(input.get("greeting", "hello") + ", rivet!")

def build():
    process.run(cmd = "uname", args = ["-a"])

pipeline.define({
    "name": "hello-world",
    "description": "A minimal two-stage pipeline",
    "inputs": {
        "greeting": pipeline.input({"type": "string", "default": "hello"}),
    },
    "runner_tags": [],
    "stages": [
        pipeline.stage({"name": "greet", "script": greet}),
        pipeline.stage({"name": "build", "container": "alpine:latest", "script": build}),
    ],
})
`

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold local pipeline-authoring files",
	}
	cmd.AddCommand(newInitLuaCmd())
	return cmd
}

// newInitLuaCmd keeps the "lua" verb name from the spec's CLI surface
// (`init lua`) even though the scaffold it writes is a Starlark script;
// renaming the verb would break operators following the spec's
// documented command table.
func newInitLuaCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "lua",
		Short: "Write an example pipeline script to the current directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := os.MkdirAll(output, 0o755); err != nil {
				return fmt.Errorf("creating output directory %s: %w", output, err)
			}
			path := filepath.Join(output, "pipeline.star")
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists, refusing to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(exampleScript), 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", path, err)
			}
			color.Green("✓ Wrote %s", path)
			fmt.Println("Edit it, then run:")
			fmt.Printf("  rivet pipeline check %s\n", path)
			fmt.Printf("  rivet pipeline create --name hello-world --script %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", ".", "output directory for the scaffolded script")
	return cmd
}
