package docker

import (
	"fmt"
	"strconv"
	"time"

	"github.com/FESOM/metis-wizard/internal/model"
)

// Label key constants define the Docker labels applied to every
// partitioner container the wizard starts. The labels are the only
// record kept of a run — there is no state file — so the "runs" command
// reconstructs its entire view from them.
//
// All keys share the "metis." prefix to avoid collisions with labels set
// by other tools on the same host.
const (
	// LabelPrefix is the common prefix for all metis-wizard labels.
	LabelPrefix = "metis."

	// LabelManagedBy identifies containers started by metis-wizard.
	// This is the primary label used for filtering and discovery.
	LabelManagedBy = LabelPrefix + "managed-by"

	// LabelMesh stores the host-side mesh path the run partitioned.
	LabelMesh = LabelPrefix + "mesh"

	// LabelNparts stores the partition count as a decimal string.
	LabelNparts = LabelPrefix + "nparts"

	// LabelImage stores the image the partitioner ran in. The container
	// itself also knows its image, but recording it in our own namespace
	// keeps ParseRunLabels independent of inspect calls.
	LabelImage = LabelPrefix + "image"

	// LabelCreatedAt stores the RFC3339 timestamp of run creation.
	LabelCreatedAt = LabelPrefix + "created-at"
)

// ManagedByValue is the constant value for the LabelManagedBy label.
const ManagedByValue = "metis-wizard"

// BuildRunLabels constructs the label map for one containerized
// invocation. ParseRunLabels is its inverse.
func BuildRunLabels(mesh model.Mesh, nparts int, image string, createdAt time.Time) map[string]string {
	return map[string]string{
		LabelManagedBy: ManagedByValue,
		LabelMesh:      mesh.Path,
		LabelNparts:    strconv.Itoa(nparts),
		LabelImage:     image,
		// UTC keeps the recorded timestamp independent of whichever
		// machine later lists the runs.
		LabelCreatedAt: createdAt.UTC().Format(time.RFC3339),
	}
}

// ParseRunLabels reconstructs a ContainerRun's metadata from Docker
// labels. Status, exit code, and container identity are filled in by the
// caller from container state — labels only carry what was requested,
// not what happened.
//
// All missing required labels are reported at once for easier debugging
// of hand-tampered containers.
func ParseRunLabels(labels map[string]string) (model.ContainerRun, error) {
	var missing []string
	for _, key := range []string{LabelManagedBy, LabelMesh, LabelNparts, LabelCreatedAt} {
		if _, ok := labels[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return model.ContainerRun{}, fmt.Errorf("missing required Docker labels: %v", missing)
	}

	if labels[LabelManagedBy] != ManagedByValue {
		return model.ContainerRun{}, fmt.Errorf(
			"label %s has unexpected value %q (expected %q)",
			LabelManagedBy, labels[LabelManagedBy], ManagedByValue,
		)
	}

	nparts, err := model.ParsePartitionCount(labels[LabelNparts])
	if err != nil {
		return model.ContainerRun{}, fmt.Errorf("invalid label %s: %w", LabelNparts, err)
	}

	createdAt, err := time.Parse(time.RFC3339, labels[LabelCreatedAt])
	if err != nil {
		return model.ContainerRun{}, fmt.Errorf("invalid label %s: %w", LabelCreatedAt, err)
	}

	return model.ContainerRun{
		Mesh:      labels[LabelMesh],
		Nparts:    nparts,
		Image:     labels[LabelImage],
		CreatedAt: createdAt,
	}, nil
}
