package partitioner

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FESOM/metis-wizard/internal/model"
	"github.com/FESOM/metis-wizard/internal/namelist"
)

// writeFakePartitioner installs a shell script standing in for fesom_ini
// and returns its path. The script appends its argv to logPath so tests
// can assert on invocation order and argument forwarding.
func writeFakePartitioner(t *testing.T, dir, logPath, body string) string {
	t.Helper()
	script := "#!/bin/sh\necho \"$@\" >> \"" + logPath + "\"\n" + body
	binPath := filepath.Join(dir, "fesom_ini")
	require.NoError(t, os.WriteFile(binPath, []byte(script), 0o755))
	return binPath
}

// invocations reads back the argv log written by the fake partitioner.
func invocations(t *testing.T, logPath string) []string {
	t.Helper()
	data, err := os.ReadFile(logPath)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

// TestResolve_Missing verifies the fail-fast path: an unresolvable binary
// yields ExitPartitionerNotFound before anything runs.
func TestResolve_Missing(t *testing.T) {
	r := NewRunner(WithBinary("definitely-not-fesom-ini-0b7e"))

	_, err := r.Resolve()
	require.Error(t, err)

	var cliErr *model.CLIError
	require.ErrorAs(t, err, &cliErr)
	assert.Equal(t, model.ExitPartitionerNotFound, cliErr.Code)
}

// TestResolve_OnPath verifies PATH resolution of a bare binary name.
func TestResolve_OnPath(t *testing.T) {
	dir := t.TempDir()
	writeFakePartitioner(t, dir, filepath.Join(dir, "argv.log"), "exit 0\n")
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))

	r := NewRunner()
	path, err := r.Resolve()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "fesom_ini"), path)
}

// TestPartition_ForwardsArgs verifies the fixed argv contract: the mesh
// path and the decimal partition count, verbatim, in that order.
func TestPartition_ForwardsArgs(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "argv.log")
	bin := writeFakePartitioner(t, dir, logPath, "exit 0\n")

	mesh := model.NewMesh(filepath.Join(dir, "mesh.nc"))
	require.NoError(t, os.WriteFile(mesh.Path, []byte("mesh"), 0o644))

	r := NewRunner(WithBinary(bin), WithOutput(&bytes.Buffer{}, &bytes.Buffer{}))
	res := r.Partition(context.Background(), mesh, 4)
	require.True(t, res.Succeeded(), "fake partitioner should succeed: %v", res.Err)

	assert.Equal(t, []string{mesh.Path + " 4"}, invocations(t, logPath))
	assert.Equal(t, 4, res.Nparts)
}

// TestPartitionAll_OrderAndAggregation verifies one invocation per count
// in the order given, with failures collected rather than aborting the
// sequence, and the failing counts named by the report.
func TestPartitionAll_OrderAndAggregation(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "argv.log")
	// Fail only for nparts == 8.
	bin := writeFakePartitioner(t, dir, logPath,
		"if [ \"$2\" = \"8\" ]; then echo 'METIS error' >&2; exit 3; fi\nexit 0\n")

	mesh := model.NewMesh(filepath.Join(dir, "mesh.nc"))
	require.NoError(t, os.WriteFile(mesh.Path, []byte("mesh"), 0o644))

	r := NewRunner(WithBinary(bin), WithOutput(&bytes.Buffer{}, &bytes.Buffer{}))
	report := r.PartitionAll(context.Background(), mesh, []int{4, 8, 16})

	require.Len(t, report.Results, 3)
	assert.Equal(t, []string{
		mesh.Path + " 4",
		mesh.Path + " 8",
		mesh.Path + " 16",
	}, invocations(t, logPath), "all counts should be invoked in order despite the failure")

	assert.False(t, report.AllSucceeded())
	assert.Equal(t, []int{8}, report.FailedCounts())
}

// TestPartition_StderrInError verifies the tail of the partitioner's
// stderr is carried into the failure message for diagnostics.
func TestPartition_StderrInError(t *testing.T) {
	dir := t.TempDir()
	bin := writeFakePartitioner(t, dir, filepath.Join(dir, "argv.log"),
		"echo 'graph has disconnected components' >&2\nexit 1\n")

	mesh := model.NewMesh(filepath.Join(dir, "mesh.nc"))
	require.NoError(t, os.WriteFile(mesh.Path, []byte("mesh"), 0o644))

	r := NewRunner(WithBinary(bin), WithOutput(&bytes.Buffer{}, &bytes.Buffer{}))
	res := r.Partition(context.Background(), mesh, 4)
	require.False(t, res.Succeeded())

	var cliErr *model.CLIError
	require.ErrorAs(t, res.Err, &cliErr)
	assert.Equal(t, model.ExitPartitionFailed, cliErr.Code)
	assert.Contains(t, cliErr.Message, "disconnected components")
}

// TestPartitionAll_Cancelled verifies remaining counts are not attempted
// after context cancellation.
func TestPartitionAll_Cancelled(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "argv.log")
	bin := writeFakePartitioner(t, dir, logPath, "exit 0\n")

	mesh := model.NewMesh(filepath.Join(dir, "mesh.nc"))
	require.NoError(t, os.WriteFile(mesh.Path, []byte("mesh"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRunner(WithBinary(bin), WithOutput(&bytes.Buffer{}, &bytes.Buffer{}))
	report := r.PartitionAll(ctx, mesh, []int{4, 8})

	assert.Empty(t, invocations(t, logPath), "no invocation should happen after cancellation")
	assert.Equal(t, []int{4, 8}, report.FailedCounts())
}

// TestPrepareNamelist verifies the template is patched with the mesh path
// and partition scheme and written into the working directory, leaving
// the template itself untouched.
func TestPrepareNamelist(t *testing.T) {
	dir := t.TempDir()
	workdir := t.TempDir()
	bin := writeFakePartitioner(t, dir, filepath.Join(dir, "argv.log"), "exit 0\n")

	template := filepath.Join(dir, "namelist.config")
	templateBody := "&paths\nmeshpath='/old/'\n/\n&machine\nn_levels=2\nn_part=2\n/\n"
	require.NoError(t, os.WriteFile(template, []byte(templateBody), 0o644))

	mesh := model.NewMesh(filepath.Join(dir, "mesh.nc"))
	require.NoError(t, os.WriteFile(mesh.Path, []byte("mesh"), 0o644))

	r := NewRunner(
		WithBinary(bin),
		WithNamelist(template),
		WithWorkdir(workdir),
		WithOutput(&bytes.Buffer{}, &bytes.Buffer{}),
	)
	res := r.Partition(context.Background(), mesh, 144)
	require.True(t, res.Succeeded(), "%v", res.Err)

	nl, err := namelist.ParseFile(filepath.Join(workdir, NamelistFileName))
	require.NoError(t, err)

	meshpath, _ := nl.String("paths", "meshpath")
	assert.Equal(t, mesh.Path, meshpath)
	levels, _ := nl.Int("machine", "n_levels")
	assert.Equal(t, 1, levels)
	nparts, _ := nl.Int("machine", "n_part")
	assert.Equal(t, 144, nparts)

	// The template must not have been rewritten.
	data, err := os.ReadFile(template)
	require.NoError(t, err)
	assert.Equal(t, templateBody, string(data))
}

// TestPrepareNamelist_MissingTemplate verifies a configured-but-absent
// template is skipped rather than failing the run.
func TestPrepareNamelist_MissingTemplate(t *testing.T) {
	dir := t.TempDir()
	bin := writeFakePartitioner(t, dir, filepath.Join(dir, "argv.log"), "exit 0\n")

	mesh := model.NewMesh(filepath.Join(dir, "mesh.nc"))
	require.NoError(t, os.WriteFile(mesh.Path, []byte("mesh"), 0o644))

	r := NewRunner(
		WithBinary(bin),
		WithNamelist(filepath.Join(dir, "no-such-namelist.config")),
		WithOutput(&bytes.Buffer{}, &bytes.Buffer{}),
	)
	res := r.Partition(context.Background(), mesh, 4)
	assert.True(t, res.Succeeded(), "%v", res.Err)
}

// TestCheckMesh verifies mesh existence checking for both layouts the
// partitioner accepts (file and directory) and the missing case.
func TestCheckMesh(t *testing.T) {
	dir := t.TempDir()

	meshFile := filepath.Join(dir, "mesh.nc")
	require.NoError(t, os.WriteFile(meshFile, []byte("mesh"), 0o644))
	assert.NoError(t, CheckMesh(model.NewMesh(meshFile)))
	assert.NoError(t, CheckMesh(model.NewMesh(dir)), "mesh directories are valid too")

	err := CheckMesh(model.NewMesh(filepath.Join(dir, "absent")))
	require.Error(t, err)
	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitMeshNotFound, cliErr.Code)
}

// TestCommandLine verifies the dry-run rendering of an invocation.
func TestCommandLine(t *testing.T) {
	r := NewRunner()
	assert.Equal(t, "fesom_ini mesh.nc 288", r.CommandLine(model.NewMesh("mesh.nc"), 288))
}
