// Package plan loads batch partitioning plans.
//
// A plan file describes several partitioning jobs to run sequentially —
// typically one mesh partitioned for a ladder of core counts, or several
// meshes prepared in one go. Plan files are JSONC (JSON with comments),
// so setups can be annotated; comments are stripped with
// github.com/tidwall/jsonc before parsing with encoding/json.
//
// Example:
//
//	{
//	  // produced for the ollie and levante setups
//	  "runs": [
//	    {"mesh": "/work/meshes/core2", "parts": [144, 288]},
//	    {"mesh": "/work/meshes/pi", "parts": [4]}
//	  ]
//	}
package plan

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"

	"github.com/FESOM/metis-wizard/internal/model"
)

// Run is a single partitioning job within a plan: one mesh and the
// partition counts to produce for it, in order.
type Run struct {
	// Mesh is the mesh path handed to fesom_ini.
	Mesh string `json:"mesh"`

	// Parts are the partition counts, invoked in order.
	Parts []int `json:"parts"`
}

// Plan is a parsed plan file. The optional top-level fields override the
// wizard's configured defaults for every run in the file.
type Plan struct {
	// Binary overrides the partitioner executable for this plan.
	Binary string `json:"binary,omitempty"`

	// Namelist overrides the namelist template for this plan.
	Namelist string `json:"namelist,omitempty"`

	// Image, when set, runs the plan inside the given Docker image
	// instead of a local binary.
	Image string `json:"image,omitempty"`

	// Runs are the partitioning jobs, executed sequentially in file order.
	Runs []Run `json:"runs"`
}

// Load reads, comment-strips, parses, and validates a plan file.
// All failure modes map to ExitInvalidPlan.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitInvalidPlan,
			fmt.Sprintf("failed to read plan %q", path), err)
	}

	var p Plan
	if err := json.Unmarshal(jsonc.ToJSON(data), &p); err != nil {
		return nil, model.WrapCLIError(model.ExitInvalidPlan,
			fmt.Sprintf("failed to parse plan %q", path), err)
	}

	if err := p.Validate(); err != nil {
		return nil, model.WrapCLIError(model.ExitInvalidPlan,
			fmt.Sprintf("invalid plan %q", path), err)
	}
	return &p, nil
}

// Validate checks the plan for structural problems before anything is
// invoked: a plan with no runs, a run with no mesh, or an out-of-range
// partition count is rejected as a whole.
func (p *Plan) Validate() error {
	if len(p.Runs) == 0 {
		return fmt.Errorf("plan defines no runs")
	}
	for i, run := range p.Runs {
		if run.Mesh == "" {
			return fmt.Errorf("run %d: mesh path is empty", i+1)
		}
		if len(run.Parts) == 0 {
			return fmt.Errorf("run %d (%s): no partition counts", i+1, run.Mesh)
		}
		for _, n := range run.Parts {
			if n < 1 || n > model.MaxPartitionCount {
				return fmt.Errorf("run %d (%s): partition count %d out of range [1, %d]",
					i+1, run.Mesh, n, model.MaxPartitionCount)
			}
		}
	}
	return nil
}

// TotalInvocations returns the number of fesom_ini invocations the plan
// will perform, for progress reporting.
func (p *Plan) TotalInvocations() int {
	total := 0
	for _, run := range p.Runs {
		total += len(run.Parts)
	}
	return total
}
