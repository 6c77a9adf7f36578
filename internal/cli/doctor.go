// Package cli — doctor.go implements the "metis-wizard doctor" command.
//
// Doctor diagnoses the execution environment before a partitioning
// session: is fesom_ini resolvable, is there a namelist template, is a
// Docker daemon reachable for --image runs. Only a missing partitioner
// is fatal — Docker and the namelist are optional.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/FESOM/metis-wizard/internal/config"
	"github.com/FESOM/metis-wizard/internal/docker"
	"github.com/FESOM/metis-wizard/internal/model"
	"github.com/FESOM/metis-wizard/internal/partitioner"
)

// doctorCheck is one diagnosis line: what was probed, whether it is
// usable, and a human-readable detail.
type doctorCheck struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail"`
}

// NewDoctorCommand creates the "doctor" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewDoctorCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose the partitioning environment",
		Long: `Check that the pieces a partitioning session needs are in place:
the fesom_ini binary on PATH, the namelist template, and (optionally)
a reachable Docker daemon for --image runs.

The command exits non-zero only when the partitioner binary is missing,
since everything else has a fallback.`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd.Context())
		},
	}

	return cmd
}

// runDoctor performs the environment checks and prints the results.
func runDoctor(ctx context.Context) error {
	cfg, err := config.LoadDefault()
	if err != nil {
		return err
	}

	checks := []doctorCheck{
		checkBinary(cfg.Binary),
		checkNamelist(cfg.Namelist),
		checkDocker(ctx),
	}

	printDoctorResult(checks)

	// The binary check is the only fatal one: without fesom_ini (and
	// without Docker as a stand-in) nothing can be partitioned.
	if !checks[0].OK && !checks[2].OK {
		return model.NewCLIError(model.ExitPartitionerNotFound,
			fmt.Sprintf("partitioner %q not found on PATH and no Docker daemon available", cfg.Binary))
	}
	if !checks[0].OK {
		return model.NewCLIError(model.ExitPartitionerNotFound,
			fmt.Sprintf("partitioner %q not found on PATH (Docker runs via --image still work)", cfg.Binary))
	}
	return nil
}

// checkBinary probes partitioner resolution on PATH.
func checkBinary(bin string) doctorCheck {
	runner := partitioner.NewRunner(partitioner.WithBinary(bin))
	path, err := runner.Resolve()
	if err != nil {
		return doctorCheck{Name: "partitioner", OK: false,
			Detail: fmt.Sprintf("%q not found on PATH", bin)}
	}
	return doctorCheck{Name: "partitioner", OK: true, Detail: path}
}

// checkNamelist probes the namelist template. A missing template is
// informational, not an error — fesom_ini builds reading argv alone run
// without one.
func checkNamelist(path string) doctorCheck {
	if path == "" {
		return doctorCheck{Name: "namelist", OK: true, Detail: "namelist preparation disabled"}
	}
	if _, err := os.Stat(path); err != nil {
		return doctorCheck{Name: "namelist", OK: true,
			Detail: fmt.Sprintf("%q not present (runs proceed without namelist patching)", path)}
	}
	return doctorCheck{Name: "namelist", OK: true, Detail: path}
}

// checkDocker probes daemon reachability for --image runs.
func checkDocker(ctx context.Context) doctorCheck {
	cli, err := docker.NewClient()
	if err != nil {
		return doctorCheck{Name: "docker", OK: false, Detail: err.Error()}
	}
	defer func() { _ = cli.Close() }()

	if err := cli.Ping(ctx); err != nil {
		return doctorCheck{Name: "docker", OK: false, Detail: err.Error()}
	}
	return doctorCheck{Name: "docker", OK: true, Detail: "daemon reachable"}
}

// printDoctorResult outputs the checks in text or JSON format.
func printDoctorResult(checks []doctorCheck) {
	if IsJSONOutput() {
		result := map[string]interface{}{"checks": checks}
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
		return
	}

	for _, c := range checks {
		mark := "ok"
		if !c.OK {
			mark = "--"
		}
		fmt.Printf("  [%s] %-12s %s\n", mark, c.Name, c.Detail)
	}
}
