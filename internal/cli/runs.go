// Package cli — runs.go implements the "metis-wizard runs" command.
//
// The runs command displays partitioner containers started by the wizard
// via --image, discovered purely from the "metis.managed-by" Docker label.
// The wizard keeps no state file, so the labels are the entire record.
// An optional --status flag filters by run outcome.
package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/FESOM/metis-wizard/internal/docker"
	"github.com/FESOM/metis-wizard/internal/model"
)

// runsFlags holds the flag values for the runs command.
type runsFlags struct {
	// status filters runs by outcome.
	// Valid values: "running", "succeeded", "failed", "all" (default).
	status string
}

// NewRunsCommand creates the "runs" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewRunsCommand() *cobra.Command {
	flags := &runsFlags{}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List containerized partitioner runs",
		Long: `List partitioner containers started with --image, with the mesh,
partition count, and outcome of each run.

Examples:
  metis-wizard runs
  metis-wizard runs --status failed
  metis-wizard runs --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.status, "status", "all",
		"Filter by status: running, succeeded, failed, all (default: all)")

	return cmd
}

// runRuns is the main logic function for the runs command.
func runRuns(ctx context.Context, flags *runsFlags) error {
	// Step 1: Validate the --status flag value.
	statusFilter := flags.status
	if statusFilter != "all" {
		if _, err := model.ParseRunStatus(statusFilter); err != nil {
			return model.NewCLIError(model.ExitGeneralError,
				fmt.Sprintf("invalid status filter %q: valid values are running, succeeded, failed, all", statusFilter))
		}
	}

	// Step 2: Connect to Docker and discover labeled containers.
	cli, err := docker.NewClient()
	if err != nil {
		return err // NewClient already returns CLIError with ExitDockerNotRunning
	}
	defer func() { _ = cli.Close() }()

	runs, err := docker.ListRuns(ctx, cli)
	if err != nil {
		return err
	}
	VerboseLog("Found %d partitioner container(s)", len(runs))

	// Step 3: Apply the --status filter if specified.
	if statusFilter != "all" {
		filtered := make([]model.ContainerRun, 0, len(runs))
		for _, run := range runs {
			if run.Status.String() == statusFilter {
				filtered = append(filtered, run)
			}
		}
		runs = filtered
	}

	// Step 4: Output results in the appropriate format.
	printRunsResult(runs)
	return nil
}

// printRunsResult outputs the run list in text or JSON format,
// depending on the global --json flag.
func printRunsResult(runs []model.ContainerRun) {
	if IsJSONOutput() {
		printRunsResultJSON(runs)
	} else {
		printRunsResultText(runs)
	}
}

// printRunsResultJSON outputs the run list as structured JSON.
// The top-level key is "runs" containing one entry per container.
func printRunsResultJSON(runs []model.ContainerRun) {
	type resultJSON struct {
		Runs []model.ContainerRun `json:"runs"`
	}

	result := resultJSON{
		// Empty slice instead of nil so JSON output shows [] rather
		// than null when no runs exist.
		Runs: make([]model.ContainerRun, 0, len(runs)),
	}
	result.Runs = append(result.Runs, runs...)

	data, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(data))
}

// printRunsResultText outputs the run list as a human-readable table.
func printRunsResultText(runs []model.ContainerRun) {
	if len(runs) == 0 {
		fmt.Println("No partitioner runs found")
		return
	}

	fmt.Printf("%-30s %8s  %-10s %s\n", "MESH", "NPARTS", "STATUS", "CREATED")
	for _, run := range runs {
		fmt.Printf("%-30s %8d  %-10s %s\n",
			run.Mesh, run.Nparts, run.Status, run.CreatedAt.Format("2006-01-02 15:04"))
	}
}
