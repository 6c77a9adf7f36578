// Package cli — plan.go implements the "metis-wizard plan" command.
//
// A plan file batches several partitioning jobs — typically one mesh for
// a ladder of core counts, or several meshes prepared in one session.
// The jobs execute sequentially in file order, and the final report
// aggregates every (mesh, nparts) failure across the whole plan.
package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/FESOM/metis-wizard/internal/config"
	"github.com/FESOM/metis-wizard/internal/model"
	"github.com/FESOM/metis-wizard/internal/partitioner"
	"github.com/FESOM/metis-wizard/internal/plan"
)

// planFlags holds the flag values for the plan command.
type planFlags struct {
	dryRun bool // --dry-run: print invocations without executing
}

// NewPlanCommand creates the "plan" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewPlanCommand() *cobra.Command {
	flags := &planFlags{}

	cmd := &cobra.Command{
		Use:   "plan <plan-file>",
		Short: "Run a batch of partitioning jobs from a JSONC plan file",
		Long: `Run partitioning jobs described in a plan file. Plans are JSONC, so
they can be annotated with comments:

  {
    // core2 production ladder
    "runs": [
      {"mesh": "/work/meshes/core2", "parts": [144, 288]},
      {"mesh": "/work/meshes/pi", "parts": [4]}
    ]
  }

Top-level "binary", "namelist", and "image" entries override the
configured defaults for every run in the plan.`,

		Args: cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(cmd.Context(), args[0], flags)
		},
	}

	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false,
		"Print the invocations without executing them")

	return cmd
}

// runPlan is the main logic function for the plan command.
func runPlan(ctx context.Context, planPath string, flags *planFlags) error {
	// Step 1: Load and validate the plan before touching anything.
	p, err := plan.Load(planPath)
	if err != nil {
		return err
	}
	VerboseLog("Plan: %d run(s), %d invocation(s)", len(p.Runs), p.TotalInvocations())

	// Step 2: Resolve defaults — plan overrides beat config values.
	cfg, err := config.LoadDefault()
	if err != nil {
		return err
	}
	bin := firstNonEmpty(p.Binary, cfg.Binary)
	namelistPath := firstNonEmpty(p.Namelist, cfg.Namelist)
	image := p.Image

	runner := partitioner.NewRunner(
		partitioner.WithBinary(bin),
		partitioner.WithNamelist(namelistPath),
	)

	if flags.dryRun {
		for _, run := range p.Runs {
			mesh := model.NewMesh(run.Mesh)
			for _, n := range run.Parts {
				fmt.Println(runner.CommandLine(mesh, n))
			}
		}
		return nil
	}

	// Step 3: Fail fast once for the whole plan when running locally.
	if image == "" {
		if _, err := runner.Resolve(); err != nil {
			return err
		}
	}

	// Step 4: Execute every run; a failed mesh or count does not stop
	// the plan, it is recorded and the remaining jobs continue.
	total := &model.Report{}
	for _, run := range p.Runs {
		mesh := model.NewMesh(run.Mesh)
		VerboseLog("Mesh: %s, counts: %v", mesh, run.Parts)

		if meshErr := partitioner.CheckMesh(mesh); meshErr != nil {
			// The mesh is gone — every count of this run fails at once.
			for _, n := range run.Parts {
				total.Add(model.RunResult{Mesh: mesh, Nparts: n, Err: meshErr})
			}
			continue
		}

		if image != "" {
			report, dockerErr := partitionInDocker(ctx, image, mesh, run.Parts, false)
			if dockerErr != nil {
				// Docker itself is unavailable; no point continuing the plan.
				return dockerErr
			}
			total.Results = append(total.Results, report.Results...)
			continue
		}

		report := runner.PartitionAll(ctx, mesh, run.Parts)
		total.Results = append(total.Results, report.Results...)
	}

	// Step 5: Aggregate report across all meshes.
	printPlanReport(total)
	if !total.AllSucceeded() {
		return model.NewCLIError(model.ExitPartitionFailed,
			fmt.Sprintf("%d of %d invocation(s) failed", len(total.Failed()), len(total.Results)))
	}
	return nil
}

// printPlanReport outputs the aggregated plan results in text or JSON.
func printPlanReport(report *model.Report) {
	if IsJSONOutput() {
		printPlanReportJSON(report)
	} else {
		printPlanReportText(report)
	}
}

// printPlanReportJSON outputs the plan report as structured JSON,
// grouping nothing — one entry per invocation, in execution order.
func printPlanReportJSON(report *model.Report) {
	type planRunJSON struct {
		Mesh string `json:"mesh"`
		runJSON
	}
	type planReportJSON struct {
		Success bool          `json:"success"`
		Runs    []planRunJSON `json:"runs"`
	}

	result := planReportJSON{
		Success: report.AllSucceeded(),
		Runs:    make([]planRunJSON, 0, len(report.Results)),
	}
	for _, res := range report.Results {
		entry := planRunJSON{
			Mesh: res.Mesh.Path,
			runJSON: runJSON{
				Nparts:  res.Nparts,
				Success: res.Succeeded(),
			},
		}
		if res.Duration > 0 {
			entry.Duration = res.Duration.String()
		}
		if res.Err != nil {
			entry.Error = res.Err.Error()
		}
		result.Runs = append(result.Runs, entry)
	}

	data, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(data))
}

// printPlanReportText outputs the plan report as human-readable text.
func printPlanReportText(report *model.Report) {
	for _, res := range report.Results {
		status := "ok"
		if !res.Succeeded() {
			status = "FAILED"
		}
		fmt.Printf("  %-40s %6d  %s\n", res.Mesh.Path, res.Nparts, status)
	}
	failed := report.Failed()
	if len(failed) > 0 {
		fmt.Printf("%d of %d invocation(s) failed:\n", len(failed), len(report.Results))
		for _, res := range failed {
			fmt.Printf("  %s nparts=%d: %v\n", res.Mesh.Path, res.Nparts, res.Err)
		}
	} else {
		fmt.Printf("All %d invocation(s) succeeded\n", len(report.Results))
	}
}
