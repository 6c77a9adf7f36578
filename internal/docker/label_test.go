package docker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FESOM/metis-wizard/internal/model"
)

// makeRunLabels builds a complete, valid label set for tests.
func makeRunLabels() map[string]string {
	return map[string]string{
		LabelManagedBy: ManagedByValue,
		LabelMesh:      "/work/meshes/core2",
		LabelNparts:    "288",
		LabelImage:     "ghcr.io/fesom/fesom-ini:latest",
		LabelCreatedAt: "2026-08-24T10:00:00Z",
	}
}

// TestBuildRunLabels verifies the label schema written onto partitioner
// containers, including the metis. namespace prefix and UTC timestamps.
func TestBuildRunLabels(t *testing.T) {
	createdAt := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	labels := BuildRunLabels(model.NewMesh("/work/meshes/core2"), 288, "ghcr.io/fesom/fesom-ini:latest", createdAt)

	assert.Equal(t, ManagedByValue, labels[LabelManagedBy])
	assert.Equal(t, "/work/meshes/core2", labels[LabelMesh])
	assert.Equal(t, "288", labels[LabelNparts])
	assert.Equal(t, "ghcr.io/fesom/fesom-ini:latest", labels[LabelImage])
	assert.Equal(t, "2026-08-24T10:00:00Z", labels[LabelCreatedAt])

	for key := range labels {
		assert.Contains(t, key, LabelPrefix, "all labels should be namespaced")
	}
}

// TestParseRunLabels verifies the inverse mapping back to a ContainerRun.
func TestParseRunLabels(t *testing.T) {
	run, err := ParseRunLabels(makeRunLabels())
	require.NoError(t, err)

	assert.Equal(t, "/work/meshes/core2", run.Mesh)
	assert.Equal(t, 288, run.Nparts)
	assert.Equal(t, "ghcr.io/fesom/fesom-ini:latest", run.Image)
	assert.Equal(t, time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC), run.CreatedAt)
}

// TestParseRunLabels_MissingRequired verifies every missing required
// label is named in the error at once.
func TestParseRunLabels_MissingRequired(t *testing.T) {
	labels := makeRunLabels()
	delete(labels, LabelMesh)
	delete(labels, LabelNparts)

	_, err := ParseRunLabels(labels)
	require.Error(t, err)
	assert.Contains(t, err.Error(), LabelMesh)
	assert.Contains(t, err.Error(), LabelNparts)
}

// TestParseRunLabels_ForeignContainer verifies a container claiming a
// different manager is rejected.
func TestParseRunLabels_ForeignContainer(t *testing.T) {
	labels := makeRunLabels()
	labels[LabelManagedBy] = "someone-else"

	_, err := ParseRunLabels(labels)
	assert.Error(t, err)
}

// TestParseRunLabels_InvalidValues verifies malformed nparts and
// timestamps are rejected rather than defaulted.
func TestParseRunLabels_InvalidValues(t *testing.T) {
	labels := makeRunLabels()
	labels[LabelNparts] = "-1"
	_, err := ParseRunLabels(labels)
	assert.Error(t, err, "negative nparts should be rejected")

	labels = makeRunLabels()
	labels[LabelCreatedAt] = "yesterday"
	_, err = ParseRunLabels(labels)
	assert.Error(t, err, "non-RFC3339 timestamp should be rejected")
}

// TestBuildAndParseRoundTrip verifies labels written by BuildRunLabels
// parse back to the same run metadata.
func TestBuildAndParseRoundTrip(t *testing.T) {
	createdAt := time.Date(2026, 8, 24, 12, 30, 0, 0, time.UTC)
	mesh := model.NewMesh("/scratch/meshes/pi")

	labels := BuildRunLabels(mesh, 72, "fesom-ini:dev", createdAt)
	run, err := ParseRunLabels(labels)
	require.NoError(t, err)

	assert.Equal(t, mesh.Path, run.Mesh)
	assert.Equal(t, 72, run.Nparts)
	assert.Equal(t, "fesom-ini:dev", run.Image)
	assert.Equal(t, createdAt, run.CreatedAt)
}

// TestRunStatusFromState verifies the container state to run status
// mapping used by the runs listing.
func TestRunStatusFromState(t *testing.T) {
	assert.Equal(t, model.StatusRunning, RunStatusFromState("running", 0))
	assert.Equal(t, model.StatusSucceeded, RunStatusFromState("exited", 0))
	assert.Equal(t, model.StatusFailed, RunStatusFromState("exited", 2))
	assert.Equal(t, model.StatusFailed, RunStatusFromState("dead", 137))
}

// TestContainerName verifies run containers get distinct, recognizable
// names embedding the partition count.
func TestContainerName(t *testing.T) {
	at := time.Unix(1756031400, 0)
	name := containerName(288, at)
	assert.Equal(t, "metis-wizard-288-1756031400", name)
}
