// Package cli — partition.go implements the "metis-wizard partition"
// command, the primary operation of the wizard.
//
// Orchestration steps:
//  1. Load user config and apply flag overrides
//  2. Validate the mesh path
//  3. Resolve partition counts (arguments, interactive selection, or the
//     default scheme)
//  4. Fail fast if the partitioner cannot be resolved
//  5. Invoke fesom_ini once per count, in order, locally or in Docker
//  6. Report per-count results (text or JSON) and name the failing counts
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/FESOM/metis-wizard/internal/config"
	"github.com/FESOM/metis-wizard/internal/docker"
	"github.com/FESOM/metis-wizard/internal/model"
	"github.com/FESOM/metis-wizard/internal/partitioner"
)

// timePrecision is the rounding applied to durations in text output.
// METIS runs take seconds to minutes; sub-10ms precision is noise.
const timePrecision = 10 * time.Millisecond

// partitionFlags holds the flag values for the partition command.
// These are bound to cobra flags in NewPartitionCommand.
type partitionFlags struct {
	interactive bool   // --interactive: select counts from the curated menu
	bin         string // --bin: partitioner binary override
	namelist    string // --namelist: namelist.config template override
	image       string // --image: run inside this Docker image
	local       bool   // --local: force local execution despite a configured image
	workdir     string // --workdir: directory the partitioner runs in
	dryRun      bool   // --dry-run: print invocations without executing
	rmContainer bool   // --rm: remove run containers after completion
}

// NewPartitionCommand creates the "partition" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewPartitionCommand() *cobra.Command {
	flags := &partitionFlags{}

	cmd := &cobra.Command{
		Use:   "partition <mesh-path> [nparts...]",
		Short: "Partition a FESOM mesh for one or more core counts",
		Long: fmt.Sprintf(`Partition a FESOM mesh by invoking fesom_ini once per requested
partition count, in the order given. With no counts and no --interactive,
a single partitioning for %d cores is produced.

The mesh path must exist; whether it is a valid mesh is fesom_ini's
concern. Partition files are written by fesom_ini itself, into its
working directory and next to the mesh.

Examples:
  metis-wizard partition /work/meshes/core2 288
  metis-wizard partition mesh.nc 4 8
  metis-wizard partition --interactive /work/meshes/core2
  metis-wizard partition --image ghcr.io/fesom/fesom-ini:latest mesh.nc 144`,
			partitioner.DefaultPartitionCount),

		// At least the mesh path; counts are optional.
		Args: cobra.MinimumNArgs(1),

		// RunE is used instead of Run so we can return errors. Cobra will
		// pass them to the Execute error handler in root.go.
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPartition(cmd.Context(), args[0], args[1:], flags)
		},
	}

	cmd.Flags().BoolVarP(&flags.interactive, "interactive", "i", false,
		"Select partition counts interactively")
	cmd.Flags().StringVar(&flags.bin, "bin", "",
		"Partitioner binary (default: fesom_ini, or config value)")
	cmd.Flags().StringVar(&flags.namelist, "namelist", "",
		"Namelist template to patch before each run (default: namelist.config if present)")
	cmd.Flags().StringVar(&flags.image, "image", "",
		"Run the partitioner inside this Docker image instead of a local binary")
	cmd.Flags().BoolVar(&flags.local, "local", false,
		"Force local execution even when the config file sets an image")
	cmd.Flags().StringVar(&flags.workdir, "workdir", "",
		"Working directory for the partitioner (default: current directory)")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false,
		"Print the invocations without executing them")
	cmd.Flags().BoolVar(&flags.rmContainer, "rm", false,
		"Remove run containers after completion (--image only)")

	return cmd
}

// runPartition is the main orchestration function for the partition command.
func runPartition(ctx context.Context, meshPath string, countArgs []string, flags *partitionFlags) error {
	// Step 1: Load user config; flags win over config, config over defaults.
	cfg, err := config.LoadDefault()
	if err != nil {
		return err
	}
	bin := firstNonEmpty(flags.bin, cfg.Binary)
	namelistPath := firstNonEmpty(flags.namelist, cfg.Namelist)

	// A config-level image makes Docker the default execution mode;
	// --local forces the binary path regardless.
	image := firstNonEmpty(flags.image, cfg.Image)
	if flags.local {
		image = ""
	}

	// Step 2: Validate the mesh path before anything is invoked.
	mesh := model.NewMesh(meshPath)
	if err := partitioner.CheckMesh(mesh); err != nil {
		return err
	}
	VerboseLog("Mesh path: %s", mesh)

	// Step 3: Resolve partition counts.
	counts, err := resolveCounts(countArgs, flags.interactive, cfg.InteractiveChoices)
	if err != nil {
		return err
	}
	VerboseLog("Partition schemes: %d (%v)", len(counts), counts)

	runner := partitioner.NewRunner(
		partitioner.WithBinary(bin),
		partitioner.WithNamelist(namelistPath),
		partitioner.WithWorkdir(flags.workdir),
	)

	// Step 4: Fail fast on a missing partitioner — before the first
	// invocation, not during it. The Docker path defers this to the
	// daemon, which fails on a missing image the same way.
	if image == "" && !flags.dryRun {
		binPath, err := runner.Resolve()
		if err != nil {
			return err
		}
		VerboseLog("Partitioner: %s", binPath)
	}

	// Step 5: Dry run stops here.
	if flags.dryRun {
		for _, n := range counts {
			fmt.Println(runner.CommandLine(mesh, n))
		}
		return nil
	}

	// Step 6: Invoke once per count, in order, collecting all results.
	var report *model.Report
	if image != "" {
		report, err = partitionInDocker(ctx, image, mesh, counts, flags.rmContainer)
		if err != nil {
			return err
		}
	} else {
		report = runner.PartitionAll(ctx, mesh, counts)
	}

	// Step 7: Report, naming every failing count.
	printPartitionReport(mesh, report)
	if !report.AllSucceeded() {
		return model.NewCLIError(model.ExitPartitionFailed,
			fmt.Sprintf("partitioning failed for nparts %v", report.FailedCounts()))
	}
	return nil
}

// resolveCounts turns command-line tokens, an interactive session, or the
// built-in default into the list of partition counts to run.
//
// Interactive selection feeds the exact same execution path as explicit
// arguments: choosing {4, 8, 16} from the menu and passing "4 8 16" on
// the command line produce identical invocations.
func resolveCounts(countArgs []string, interactive bool, choices []int) ([]int, error) {
	if len(countArgs) > 0 {
		counts, err := model.ParsePartitionCounts(countArgs)
		if err != nil {
			return nil, model.WrapCLIError(model.ExitGeneralError, "invalid partition counts", err)
		}
		return counts, nil
	}

	if interactive {
		// Prompts go to stderr so piped stdout stays clean even when the
		// dialogue runs.
		selector := NewSelector(os.Stdin, os.Stderr)
		return selector.SelectCounts(choices)
	}

	return []int{partitioner.DefaultPartitionCount}, nil
}

// partitionInDocker runs one container per count against the given image,
// mirroring the sequential local execution exactly.
func partitionInDocker(ctx context.Context, image string, mesh model.Mesh, counts []int, remove bool) (*model.Report, error) {
	cli, err := docker.NewClient()
	if err != nil {
		return nil, err
	}
	// defer releases the client's HTTP connection when we return.
	defer func() { _ = cli.Close() }()

	if err := cli.Ping(ctx); err != nil {
		return nil, err
	}
	VerboseLog("Connected to Docker daemon, image: %s", image)

	report := &model.Report{}
	for _, nparts := range counts {
		VerboseLog("Partition scheme: %d", nparts)
		runErr := docker.RunPartition(ctx, cli, docker.RunOptions{
			Image:  image,
			Mesh:   mesh,
			Nparts: nparts,
			Remove: remove,
		})
		report.Add(model.RunResult{Mesh: mesh, Nparts: nparts, Err: runErr})
	}
	return report, nil
}

// printPartitionReport outputs the per-count results in text or JSON
// format, depending on the global --json flag.
func printPartitionReport(mesh model.Mesh, report *model.Report) {
	if IsJSONOutput() {
		printPartitionReportJSON(mesh, report)
	} else {
		printPartitionReportText(mesh, report)
	}
}

// runJSON is the JSON output structure for a single invocation result.
type runJSON struct {
	Nparts   int    `json:"nparts"`
	Success  bool   `json:"success"`
	Duration string `json:"duration,omitempty"`
	Error    string `json:"error,omitempty"`
}

// printPartitionReportJSON outputs the report as structured JSON.
func printPartitionReportJSON(mesh model.Mesh, report *model.Report) {
	type reportJSON struct {
		Mesh    string    `json:"mesh"`
		Success bool      `json:"success"`
		Failed  []int     `json:"failedCounts"`
		Runs    []runJSON `json:"runs"`
	}

	result := reportJSON{
		Mesh:    mesh.Path,
		Success: report.AllSucceeded(),
		// Empty slice instead of nil so JSON shows [] rather than null.
		Failed: append([]int{}, report.FailedCounts()...),
		Runs:   make([]runJSON, 0, len(report.Results)),
	}
	for _, res := range report.Results {
		entry := runJSON{
			Nparts:  res.Nparts,
			Success: res.Succeeded(),
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

// printPartitionReportText outputs the report as human-readable text.
func printPartitionReportText(mesh model.Mesh, report *model.Report) {
	fmt.Printf("Partitioned mesh %q\n", mesh.Path)
	for _, res := range report.Results {
		if res.Succeeded() {
			if res.Duration > 0 {
				fmt.Printf("  %6d  ok      (%s)\n", res.Nparts, res.Duration.Round(timePrecision))
			} else {
				fmt.Printf("  %6d  ok\n", res.Nparts)
			}
		} else {
			fmt.Printf("  %6d  FAILED  %v\n", res.Nparts, res.Err)
		}
	}
	if failed := report.FailedCounts(); len(failed) > 0 {
		fmt.Printf("Failed partition counts: %v\n", failed)
	}
}

// firstNonEmpty returns the first non-empty string, used for
// flag-over-config precedence.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
