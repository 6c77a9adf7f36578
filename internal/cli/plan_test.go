package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FESOM/metis-wizard/internal/model"
)

// TestPlan_RunsInOrder verifies a plan executes every (mesh, count) pair
// sequentially in file order.
func TestPlan_RunsInOrder(t *testing.T) {
	logPath := setupFakePartitioner(t, "exit 0\n")
	meshA := makeMesh(t)
	meshB := makeMesh(t)

	planPath := filepath.Join(t.TempDir(), "plan.jsonc")
	body := `{
		// two meshes, three schemes
		"runs": [
			{"mesh": "` + meshA + `", "parts": [4, 8]},
			{"mesh": "` + meshB + `", "parts": [16]}
		]
	}`
	require.NoError(t, os.WriteFile(planPath, []byte(body), 0o644))

	err := execRoot(t, "plan", planPath)
	require.NoError(t, err)

	assert.Equal(t, []string{
		meshA + " 4",
		meshA + " 8",
		meshB + " 16",
	}, readLog(t, logPath))
}

// TestPlan_MissingMeshRecorded verifies a vanished mesh fails its counts
// but does not stop the rest of the plan.
func TestPlan_MissingMeshRecorded(t *testing.T) {
	logPath := setupFakePartitioner(t, "exit 0\n")
	goodMesh := makeMesh(t)
	badMesh := filepath.Join(t.TempDir(), "gone.nc")

	planPath := filepath.Join(t.TempDir(), "plan.jsonc")
	body := `{"runs": [
		{"mesh": "` + badMesh + `", "parts": [4]},
		{"mesh": "` + goodMesh + `", "parts": [8]}
	]}`
	require.NoError(t, os.WriteFile(planPath, []byte(body), 0o644))

	err := execRoot(t, "plan", planPath)
	require.Error(t, err)

	var cliErr *model.CLIError
	require.ErrorAs(t, err, &cliErr)
	assert.Equal(t, model.ExitPartitionFailed, cliErr.Code)

	assert.Equal(t, []string{goodMesh + " 8"}, readLog(t, logPath),
		"the good mesh should still have been partitioned")
}

// TestPlan_InvalidFile verifies plan validation failures map to
// ExitInvalidPlan before anything is invoked.
func TestPlan_InvalidFile(t *testing.T) {
	logPath := setupFakePartitioner(t, "exit 0\n")

	planPath := filepath.Join(t.TempDir(), "plan.jsonc")
	require.NoError(t, os.WriteFile(planPath, []byte(`{"runs": []}`), 0o644))

	err := execRoot(t, "plan", planPath)
	require.Error(t, err)

	var cliErr *model.CLIError
	require.ErrorAs(t, err, &cliErr)
	assert.Equal(t, model.ExitInvalidPlan, cliErr.Code)
	assert.Empty(t, readLog(t, logPath))
}

// TestPlan_DryRun verifies --dry-run touches nothing.
func TestPlan_DryRun(t *testing.T) {
	logPath := setupFakePartitioner(t, "exit 0\n")
	mesh := makeMesh(t)

	planPath := filepath.Join(t.TempDir(), "plan.jsonc")
	require.NoError(t, os.WriteFile(planPath,
		[]byte(`{"runs": [{"mesh": "`+mesh+`", "parts": [4]}]}`), 0o644))

	err := execRoot(t, "plan", "--dry-run", planPath)
	require.NoError(t, err)
	assert.Empty(t, readLog(t, logPath))
}
