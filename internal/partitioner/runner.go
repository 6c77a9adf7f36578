package partitioner

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/FESOM/metis-wizard/internal/model"
	"github.com/FESOM/metis-wizard/internal/namelist"
)

// DefaultBinary is the partitioner executable resolved on PATH when no
// override is configured.
const DefaultBinary = "fesom_ini"

// DefaultPartitionCount is the partition count used when the user gives
// neither counts nor --interactive. 288 cores is the scheme FESOM
// production setups most commonly run with.
const DefaultPartitionCount = 288

// NamelistFileName is the configuration file name fesom_ini reads from its
// working directory. When a template is configured, the patched copy is
// written under this name into the working directory; a template kept
// elsewhere is left untouched.
const NamelistFileName = "namelist.config"

// Runner invokes fesom_ini once per partition count. It is safe to reuse
// across invocations; nothing is cached between runs.
type Runner struct {
	bin          string
	namelistPath string
	workdir      string
	stdout       io.Writer
	stderr       io.Writer
}

// Option configures a Runner.
type Option func(*Runner)

// WithBinary overrides the partitioner binary. The value may be a bare
// name (resolved on PATH) or a path to the executable.
func WithBinary(bin string) Option {
	return func(r *Runner) {
		if bin != "" {
			r.bin = bin
		}
	}
}

// WithNamelist sets the namelist.config template that is patched with the
// mesh path and partition count before each invocation. An empty path
// disables namelist preparation.
func WithNamelist(path string) Option {
	return func(r *Runner) { r.namelistPath = path }
}

// WithWorkdir sets the directory fesom_ini runs in. The patched namelist
// is written here, and fesom_ini writes its partition files relative to
// it. Defaults to the current directory.
func WithWorkdir(dir string) Option {
	return func(r *Runner) {
		if dir != "" {
			r.workdir = dir
		}
	}
}

// WithOutput redirects the partitioner's stdout and stderr. Defaults to
// the wizard's own stdout/stderr so METIS progress output stays visible.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(r *Runner) {
		r.stdout = stdout
		r.stderr = stderr
	}
}

// NewRunner creates a Runner with the given options applied over defaults.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		bin:    DefaultBinary,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Binary returns the configured partitioner binary name or path.
func (r *Runner) Binary() string {
	return r.bin
}

// Resolve locates the partitioner executable and returns its path.
//
// A bare name is resolved on PATH via exec.LookPath; a name containing a
// path separator is checked directly. This is the fail-fast check the
// partition command performs before attempting any invocation, so a
// missing binary is reported once, up front, instead of once per count.
func (r *Runner) Resolve() (string, error) {
	path, err := exec.LookPath(r.bin)
	if err != nil {
		return "", model.WrapCLIError(
			model.ExitPartitionerNotFound,
			fmt.Sprintf("partitioner %q not found on PATH", r.bin),
			err,
		)
	}
	return path, nil
}

// CheckMesh verifies the mesh path exists on disk. Whether the contents
// are a valid mesh is fesom_ini's concern, not the wizard's.
func CheckMesh(mesh model.Mesh) error {
	if _, err := os.Stat(mesh.Path); err != nil {
		return model.WrapCLIError(
			model.ExitMeshNotFound,
			fmt.Sprintf("mesh path %q does not exist", mesh.Path),
			err,
		)
	}
	return nil
}

// Args returns the argv (excluding the binary) for one invocation.
// The contract is fixed by fesom_ini: <mesh> <nparts>, verbatim.
func (r *Runner) Args(mesh model.Mesh, nparts int) []string {
	return []string{mesh.Path, strconv.Itoa(nparts)}
}

// CommandLine renders one invocation for display (--dry-run, verbose logs).
func (r *Runner) CommandLine(mesh model.Mesh, nparts int) string {
	return strings.Join(append([]string{r.bin}, r.Args(mesh, nparts)...), " ")
}

// Partition runs fesom_ini for a single partition count and blocks until
// it exits. The returned RunResult carries the invocation error, wrapped
// as a model.CLIError with ExitPartitionFailed on non-zero exit.
func (r *Runner) Partition(ctx context.Context, mesh model.Mesh, nparts int) model.RunResult {
	start := time.Now()
	err := r.partition(ctx, mesh, nparts)
	return model.RunResult{
		Mesh:     mesh,
		Nparts:   nparts,
		Duration: time.Since(start),
		Err:      err,
	}
}

func (r *Runner) partition(ctx context.Context, mesh model.Mesh, nparts int) error {
	binPath, err := r.Resolve()
	if err != nil {
		return err
	}

	if err := r.prepareNamelist(mesh, nparts); err != nil {
		return err
	}

	// #nosec G204 — the binary is operator-configured and the arguments
	// are a validated path plus an integer
	cmd := exec.CommandContext(ctx, binPath, r.Args(mesh, nparts)...)
	cmd.Dir = r.workdir
	cmd.Stdout = r.stdout

	// Keep the tail of stderr for the error message while still streaming
	// it live. METIS is chatty on stdout; actual failures surface on stderr.
	tail := newTailBuffer(2048)
	cmd.Stderr = io.MultiWriter(r.stderr, tail)

	if err := cmd.Run(); err != nil {
		message := fmt.Sprintf("%s %s failed", r.bin, strings.Join(r.Args(mesh, nparts), " "))
		if s := tail.String(); s != "" {
			message = fmt.Sprintf("%s: %s", message, s)
		}
		return model.WrapCLIError(model.ExitPartitionFailed, message, err)
	}
	return nil
}

// PartitionAll runs fesom_ini once per count, in the order given. A failed
// count does not stop the sequence: partitioning is deterministic and the
// remaining schemes are independent, so all failures are collected and
// named in the report instead.
//
// Context cancellation is the exception — once ctx is done, the remaining
// counts are recorded as failed without being attempted.
func (r *Runner) PartitionAll(ctx context.Context, mesh model.Mesh, counts []int) *model.Report {
	report := &model.Report{}
	for _, nparts := range counts {
		if ctxErr := ctx.Err(); ctxErr != nil {
			report.Add(model.RunResult{
				Mesh:   mesh,
				Nparts: nparts,
				Err:    model.WrapCLIError(model.ExitPartitionFailed, "cancelled before invocation", ctxErr),
			})
			continue
		}
		report.Add(r.Partition(ctx, mesh, nparts))
	}
	return report
}

// NamelistPath returns the configured namelist template path, empty when
// namelist preparation is disabled.
func (r *Runner) NamelistPath() string {
	return r.namelistPath
}

// prepareNamelist patches the configured namelist template with the mesh
// path and partition scheme and writes the result to the working
// directory as namelist.config.
//
// A missing template is not an error: fesom_ini builds that read the mesh
// from argv alone run fine without one, and the partition command only
// defaults the template path rather than requiring it.
func (r *Runner) prepareNamelist(mesh model.Mesh, nparts int) error {
	if r.namelistPath == "" {
		return nil
	}

	nl, err := namelist.ParseFile(r.namelistPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return model.WrapCLIError(
			model.ExitGeneralError,
			fmt.Sprintf("failed to read namelist template %q", r.namelistPath),
			err,
		)
	}

	nl.SetMesh(mesh.Path)
	nl.SetPartitioning(nparts)

	dest := filepath.Join(r.workdir, NamelistFileName)
	if err := nl.WriteFile(dest); err != nil {
		return model.WrapCLIError(
			model.ExitGeneralError,
			fmt.Sprintf("failed to write %s", dest),
			err,
		)
	}
	return nil
}

// tailBuffer keeps the last max bytes written to it. Used to carry the
// end of the partitioner's stderr into error messages without buffering
// unbounded output.
type tailBuffer struct {
	max int
	buf []byte
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

// Write satisfies io.Writer.
func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if len(t.buf) > t.max {
		t.buf = t.buf[len(t.buf)-t.max:]
	}
	return len(p), nil
}

// String returns the retained tail, trimmed for inclusion in one-line
// error messages.
func (t *tailBuffer) String() string {
	return strings.TrimSpace(string(t.buf))
}
