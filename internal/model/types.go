package model

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Mesh is a reference to a FESOM mesh on disk. The wizard never opens the
// mesh itself — mesh validity is entirely the partitioner's concern — so
// this type only carries the path handed to fesom_ini.
type Mesh struct {
	// Path is the filesystem path to the mesh, as given by the user.
	// It may point to a single file (e.g. mesh.nc) or to a mesh directory
	// containing nod2d.out / elem2d.out; fesom_ini accepts both layouts.
	Path string
}

// NewMesh normalizes a user-supplied mesh path into a Mesh value.
// The path is cleaned but intentionally NOT resolved to an absolute path:
// fesom_ini resolves paths relative to its own working directory, so the
// argument is forwarded as the user gave it.
func NewMesh(path string) Mesh {
	return Mesh{Path: filepath.Clean(path)}
}

// String returns the mesh path for display in logs and reports.
func (m Mesh) String() string {
	return m.Path
}

// MaxPartitionCount caps the accepted partition counts. FESOM scales to a
// few hundred cores; anything beyond this bound is almost certainly a typo
// and would make METIS churn for a very long time.
const MaxPartitionCount = 65536

// ParsePartitionCount converts a single command-line token into a
// partition count. Valid counts are integers in [1, MaxPartitionCount].
func ParsePartitionCount(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid partition count %q: not an integer", s)
	}
	if n < 1 {
		return 0, fmt.Errorf("invalid partition count %d: must be positive", n)
	}
	if n > MaxPartitionCount {
		return 0, fmt.Errorf("invalid partition count %d: exceeds maximum of %d", n, MaxPartitionCount)
	}
	return n, nil
}

// ParsePartitionCounts converts command-line tokens into partition counts,
// preserving the order given. Duplicates are kept: requesting the same
// count twice is harmless (partitioning is deterministic and idempotent)
// and second-guessing the user here would complicate the one-invocation-
// per-count contract.
func ParsePartitionCounts(args []string) ([]int, error) {
	counts := make([]int, 0, len(args))
	for _, arg := range args {
		n, err := ParsePartitionCount(arg)
		if err != nil {
			return nil, err
		}
		counts = append(counts, n)
	}
	return counts, nil
}

// RunResult records the outcome of a single fesom_ini invocation for one
// partition count.
type RunResult struct {
	// Mesh is the mesh the invocation partitioned.
	Mesh Mesh `json:"mesh"`

	// Nparts is the partition count passed to fesom_ini.
	Nparts int `json:"nparts"`

	// Duration is the wall-clock time of the invocation.
	Duration time.Duration `json:"-"`

	// Err is the invocation error, nil on success. Not serialized directly;
	// the JSON view exposes it via the report printers in internal/cli.
	Err error `json:"-"`
}

// Succeeded reports whether the invocation exited cleanly.
func (r RunResult) Succeeded() bool {
	return r.Err == nil
}

// Report aggregates the results of a sequence of partitioner invocations.
// The partition command runs every requested count even when an earlier
// one fails, so the report is how failing counts get named at the end.
type Report struct {
	Results []RunResult
}

// Add appends a result to the report.
func (rep *Report) Add(res RunResult) {
	rep.Results = append(rep.Results, res)
}

// Failed returns the results of all failed invocations, in run order.
func (rep *Report) Failed() []RunResult {
	var failed []RunResult
	for _, res := range rep.Results {
		if !res.Succeeded() {
			failed = append(failed, res)
		}
	}
	return failed
}

// FailedCounts returns the distinct partition counts that failed, sorted
// ascending. This feeds the "failing N values are named in output"
// contract of the partition command.
func (rep *Report) FailedCounts() []int {
	seen := make(map[int]bool)
	var counts []int
	for _, res := range rep.Failed() {
		if !seen[res.Nparts] {
			seen[res.Nparts] = true
			counts = append(counts, res.Nparts)
		}
	}
	sort.Ints(counts)
	return counts
}

// AllSucceeded reports whether every invocation in the report succeeded.
// An empty report counts as success — nothing was asked for, nothing failed.
func (rep *Report) AllSucceeded() bool {
	return len(rep.Failed()) == 0
}

// RunStatus represents the lifecycle state of a containerized partitioner
// run, as reconstructed from Docker container state by the "runs" command.
type RunStatus string

const (
	// StatusRunning indicates the partitioner container is still executing.
	StatusRunning RunStatus = "running"

	// StatusSucceeded indicates the container exited with code 0.
	StatusSucceeded RunStatus = "succeeded"

	// StatusFailed indicates the container exited with a non-zero code.
	StatusFailed RunStatus = "failed"
)

// String returns the string representation of RunStatus.
func (s RunStatus) String() string {
	return string(s)
}

// IsValid checks whether the RunStatus value is one of the predefined
// valid states.
func (s RunStatus) IsValid() bool {
	switch s {
	case StatusRunning, StatusSucceeded, StatusFailed:
		return true
	default:
		return false
	}
}

// ParseRunStatus converts a string to a RunStatus.
// Returns an error if the string does not match any valid status.
func ParseRunStatus(s string) (RunStatus, error) {
	status := RunStatus(strings.ToLower(s))
	if !status.IsValid() {
		return "", fmt.Errorf("invalid run status: %q (valid: running, succeeded, failed)", s)
	}
	return status, nil
}

// ContainerRun describes one containerized partitioner invocation,
// reconstructed from Docker labels and container state. This is the
// domain view behind the "runs" command; nothing is persisted by the
// wizard itself — the labels on the container are the only record.
type ContainerRun struct {
	// ContainerID is the Docker container identifier.
	ContainerID string `json:"containerId"`

	// ContainerName is the human-readable Docker container name.
	ContainerName string `json:"containerName"`

	// Mesh is the host-side mesh path the run partitioned.
	Mesh string `json:"mesh"`

	// Nparts is the partition count of the run.
	Nparts int `json:"nparts"`

	// Image is the Docker image the partitioner ran in.
	Image string `json:"image"`

	// Status is the run's lifecycle state derived from container state.
	Status RunStatus `json:"status"`

	// ExitCode is the container's exit code; meaningful only when the
	// run has finished.
	ExitCode int `json:"exitCode"`

	// CreatedAt is when the wizard started the run.
	CreatedAt time.Time `json:"createdAt"`
}

// ExitCode defines the CLI exit codes. These codes allow scripts and CI
// systems to programmatically determine the outcome of a command.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitMeshNotFound indicates the mesh path does not exist on disk.
	ExitMeshNotFound ExitCode = 2

	// ExitPartitionerNotFound indicates the fesom_ini binary could not be
	// resolved on PATH (or at the explicitly configured location).
	ExitPartitionerNotFound ExitCode = 3

	// ExitPartitionFailed indicates one or more fesom_ini invocations
	// exited non-zero.
	ExitPartitionFailed ExitCode = 4

	// ExitDockerNotRunning indicates the Docker daemon is not accessible.
	// Only relevant for --image runs and the "runs" command.
	ExitDockerNotRunning ExitCode = 5

	// ExitInvalidPlan indicates a plan file could not be parsed or failed
	// validation.
	ExitInvalidPlan ExitCode = 6

	// ExitUserCancelled indicates the user cancelled an interactive prompt.
	ExitUserCancelled ExitCode = 7
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
// This follows Go's error wrapping convention introduced in Go 1.13.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
