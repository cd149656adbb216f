package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/SolracHQ/rivet/internal/domain"
	"github.com/SolracHQ/rivet/internal/sandbox"
)

func newPipelineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Manage pipelines",
	}
	cmd.AddCommand(
		newPipelineCreateCmd(),
		newPipelineListCmd(),
		newPipelineGetCmd(),
		newPipelineDeleteCmd(),
		newPipelineLaunchCmd(),
		newPipelineCheckCmd(),
	)
	return cmd
}

// newPipelineCreateCmd mirrors the original CLI's Create variant: --name
// and --description are overrides, not requirements — unset, they fall
// back to whatever the script itself declares via pipeline.define(...).
// The orchestrator's create endpoint takes the script alone and always
// derives the stored name/description/tags from it (§4.5/§6), so the
// overrides here only affect what this command prints locally; pass one
// when the script's own declared name isn't the one you want to see.
func newPipelineCreateCmd() *cobra.Command {
	var name, description, scriptPath string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			script, err := os.ReadFile(scriptPath)
			if err != nil {
				return fmt.Errorf("reading script file %s: %w", scriptPath, err)
			}
			def, err := sandbox.Parse(scriptPath, string(script), sandbox.MetadataMode, nil)
			if err != nil {
				return fmt.Errorf("parsing pipeline script: %w", err)
			}
			if name == "" {
				name = def.Name
			}
			if description == "" {
				description = def.Description
			}

			pipeline, err := apiClient(cmd).CreatePipeline(cmd.Context(), string(script))
			if err != nil {
				return err
			}
			color.Green("✓ Pipeline created successfully!")
			fmt.Printf("  ID:     %s\n", color.CyanString(pipeline.ID))
			fmt.Printf("  Name:   %s\n", name)
			if description != "" {
				fmt.Printf("  Desc:   %s\n", description)
			}
			fmt.Printf("  Stages: %s\n", strings.Join(stageNames(def), ", "))
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "override the pipeline name shown locally (defaults to the script's declared name)")
	cmd.Flags().StringVarP(&description, "description", "d", "", "override the description shown locally (defaults to the script's declared description)")
	cmd.Flags().StringVarP(&scriptPath, "script", "s", "", "path to the pipeline's Starlark script file")
	_ = cmd.MarkFlagRequired("script")
	return cmd
}

func stageNames(def *domain.Definition) []string {
	names := make([]string, len(def.Stages))
	for i, s := range def.Stages {
		names[i] = s.Name
	}
	return names
}

func newPipelineListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all pipelines",
		RunE: func(cmd *cobra.Command, args []string) error {
			pipelines, err := apiClient(cmd).ListPipelines(cmd.Context())
			if err != nil {
				return err
			}
			if len(pipelines) == 0 {
				color.Yellow("No pipelines found.")
				return nil
			}
			fmt.Printf("Found %d pipeline(s):\n\n", len(pipelines))
			for _, p := range pipelines {
				fmt.Printf("  %s %s\n", color.CyanString("▸"), p.Name)
				fmt.Printf("    ID:      %s\n", color.New(color.Faint).Sprint(p.ID))
				fmt.Printf("    Created: %s\n", color.New(color.Faint).Sprint(p.CreatedAt.Format("2006-01-02 15:04:05")))
				if p.Description != "" {
					fmt.Printf("    Desc:    %s\n", color.New(color.Faint).Sprint(p.Description))
				}
				if len(p.Tags) > 0 {
					fmt.Printf("    Tags:    %s\n", color.New(color.Faint).Sprint(tagsString(p.Tags)))
				}
				fmt.Println()
			}
			return nil
		},
	}
}

func tagsString(tags []domain.Tag) string {
	parts := make([]string, len(tags))
	for i, t := range tags {
		parts[i] = t.Key + "=" + t.Value
	}
	return strings.Join(parts, ", ")
}

func newPipelineGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <pipeline-id>",
		Short: "Get pipeline details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := apiClient(cmd).GetPipeline(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Println(color.New(color.Bold).Sprint("Pipeline Details:"))
			fmt.Printf("  ID:          %s\n", color.CyanString(p.ID))
			fmt.Printf("  Name:        %s\n", p.Name)
			if p.Description != "" {
				fmt.Printf("  Description: %s\n", p.Description)
			}
			fmt.Printf("  Created:     %s\n", p.CreatedAt.Format("2006-01-02 15:04:05"))
			fmt.Printf("  Updated:     %s\n", p.UpdatedAt.Format("2006-01-02 15:04:05"))
			if len(p.Tags) > 0 {
				fmt.Printf("  Tags:        %s\n", tagsString(p.Tags))
			}
			fmt.Println("\n" + color.New(color.Bold).Sprint("Script:"))
			fmt.Println(strings.Repeat("─", 80))
			fmt.Println(p.Script)
			fmt.Println(strings.Repeat("─", 80))
			return nil
		},
	}
}

func newPipelineDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <pipeline-id>",
		Short: "Delete a pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := apiClient(cmd).DeletePipeline(cmd.Context(), args[0]); err != nil {
				return err
			}
			color.Green("✓ Pipeline deleted successfully!")
			return nil
		},
	}
}

func newPipelineLaunchCmd() *cobra.Command {
	var paramsJSON string
	var noInteractive bool

	cmd := &cobra.Command{
		Use:   "launch <pipeline-id>",
		Short: "Launch a job from a pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := apiClient(cmd)

			parameters := map[string]interface{}{}
			if paramsJSON != "" {
				if err := json.Unmarshal([]byte(paramsJSON), &parameters); err != nil {
					return fmt.Errorf("parsing --params JSON: %w", err)
				}
			}

			if !noInteractive {
				p, err := c.GetPipeline(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				def, err := sandbox.Parse("pipeline.star", p.Script, sandbox.MetadataMode, nil)
				if err != nil {
					return fmt.Errorf("parsing pipeline script: %w", err)
				}
				if err := promptMissingInputs(def, parameters); err != nil {
					return err
				}
			}

			job, err := c.LaunchJob(cmd.Context(), args[0], parameters)
			if err != nil {
				return err
			}
			color.Green("✓ Job launched successfully!")
			fmt.Printf("  Job ID:      %s\n", color.CyanString(job.ID.String()))
			fmt.Printf("  Pipeline ID: %s\n", color.New(color.Faint).Sprint(job.PipelineID.String()))
			fmt.Printf("  Status:      %s\n", color.YellowString(string(job.Status)))
			fmt.Printf("  Requested:   %s\n", job.RequestedAt.Format("2006-01-02 15:04:05"))
			return nil
		},
	}
	cmd.Flags().StringVarP(&paramsJSON, "params", "p", "", `parameters as a JSON object, e.g. '{"key": "value"}'`)
	cmd.Flags().BoolVar(&noInteractive, "no-interactive", false, "never prompt for missing inputs; launch with exactly the supplied parameters")
	return cmd
}

// promptMissingInputs asks on stdin for every declared input not already
// present in params, in declaration order, matching the core spec's
// "prompts interactively for missing inputs unless --no-interactive" —
// every declared input is prompted for, not only required ones, so an
// operator sees (and can accept the default for) the full input surface.
func promptMissingInputs(def *domain.Definition, params map[string]interface{}) error {
	for _, name := range def.InputOrder {
		if _, ok := params[name]; ok {
			continue
		}
		schema := def.Inputs[name]
		prompt := fmt.Sprintf("%s (%s)", name, schema.Type)
		if schema.Default != nil {
			prompt += fmt.Sprintf(" [default: %v]", schema.Default)
		}
		if schema.Required {
			prompt += " (required)"
		}
		fmt.Printf("%s: ", prompt)

		var raw string
		_, _ = fmt.Scanln(&raw)
		if raw == "" {
			continue
		}
		params[name] = raw
	}
	return nil
}

func newPipelineCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <script-file>",
		Short: "Validate a pipeline script locally without contacting the orchestrator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			script, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading script file %s: %w", args[0], err)
			}
			def, err := sandbox.Parse(args[0], string(script), sandbox.MetadataMode, nil)
			if err != nil {
				color.Red("✗ %v", err)
				return err
			}
			color.Green("✓ Script is valid.")
			fmt.Printf("  Name:   %s\n", def.Name)
			fmt.Printf("  Stages: %d\n", len(def.Stages))
			if len(def.Inputs) > 0 {
				fmt.Printf("  Inputs: %s\n", strings.Join(def.InputOrder, ", "))
			}
			return nil
		},
	}
}
