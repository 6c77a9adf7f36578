// run.go implements containerized partitioner invocations for the
// metis-wizard CLI: one container per partition count, created from the
// packaged fesom_ini image, with the mesh's directory bind-mounted so the
// partition files land on the host.
package docker

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	// Docker API types for container listing results.
	"github.com/docker/docker/api/types"

	// container package provides Config, HostConfig, and the option
	// structs for create/start/wait/logs/remove.
	"github.com/docker/docker/api/types/container"

	// filters package provides Args for label-based server-side filtering.
	"github.com/docker/docker/api/types/filters"

	// mount package describes the bind mount of the mesh directory.
	"github.com/docker/docker/api/types/mount"

	// stdcopy demultiplexes the Docker log stream back into stdout/stderr.
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/FESOM/metis-wizard/internal/model"
)

// ContainerDataDir is where the mesh's host directory is bind-mounted
// inside the partitioner container. fesom_ini writes its partition files
// next to the mesh, so the mount is read-write.
const ContainerDataDir = "/data"

// RunOptions describes one containerized invocation.
type RunOptions struct {
	// Image is the fesom_ini image to run. The image's entrypoint is the
	// partitioner itself, so the container command is just its argv.
	Image string

	// Mesh is the host-side mesh path.
	Mesh model.Mesh

	// Nparts is the partition count for this invocation.
	Nparts int

	// Stdout and Stderr receive the partitioner's output.
	Stdout io.Writer

	// Stderr receives the partitioner's error output.
	Stderr io.Writer

	// Remove deletes the container after the run. When false the exited
	// container is kept so "metis-wizard runs" can show run history.
	Remove bool
}

// RunPartition executes fesom_ini inside a container for a single
// partition count and blocks until it exits, mirroring the synchronous
// local execution path.
//
// The mesh's parent directory is mounted at ContainerDataDir so the
// mesh argument can be passed as a container path and the partition
// files fesom_ini writes appear on the host.
func RunPartition(ctx context.Context, cli *Client, opts RunOptions) error {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	absMesh, err := filepath.Abs(opts.Mesh.Path)
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError,
			fmt.Sprintf("failed to resolve mesh path %q", opts.Mesh.Path), err)
	}
	hostDir := filepath.Dir(absMesh)
	containerMesh := ContainerDataDir + "/" + filepath.Base(absMesh)

	createdAt := time.Now()
	cfg := &container.Config{
		Image: opts.Image,
		// Same fixed argv contract as the local path: <mesh> <nparts>.
		Cmd:        []string{containerMesh, strconv.Itoa(opts.Nparts)},
		WorkingDir: ContainerDataDir,
		Labels:     BuildRunLabels(opts.Mesh, opts.Nparts, opts.Image, createdAt),
	}
	hostCfg := &container.HostConfig{
		Mounts: []mount.Mount{{
			Type:   mount.TypeBind,
			Source: hostDir,
			Target: ContainerDataDir,
		}},
	}

	name := containerName(opts.Nparts, createdAt)
	created, err := cli.Inner().ContainerCreate(ctx, cfg, hostCfg, nil, nil, name)
	if err != nil {
		return model.WrapCLIError(model.ExitDockerNotRunning,
			fmt.Sprintf("failed to create partitioner container from image %q", opts.Image), err)
	}

	if err := cli.Inner().ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return model.WrapCLIError(model.ExitDockerNotRunning,
			fmt.Sprintf("failed to start partitioner container %q", name), err)
	}

	// Synchronous wait: the wizard never leaves a partitioner running in
	// the background, matching the local exec path.
	exitCode, err := waitForExit(ctx, cli, created.ID)
	if err != nil {
		return err
	}

	// Stream the run's output after completion. Partitioner runs are
	// minutes, not hours, and post-hoc logs keep the wait loop simple.
	if logErr := copyLogs(ctx, cli, created.ID, opts.Stdout, opts.Stderr); logErr != nil {
		fmt.Fprintf(opts.Stderr, "warning: could not fetch container logs: %v\n", logErr)
	}

	if opts.Remove {
		if rmErr := cli.Inner().ContainerRemove(ctx, created.ID, container.RemoveOptions{Force: true}); rmErr != nil {
			fmt.Fprintf(opts.Stderr, "warning: could not remove container %q: %v\n", name, rmErr)
		}
	}

	if exitCode != 0 {
		return model.NewCLIError(model.ExitPartitionFailed,
			fmt.Sprintf("fesom_ini (image %s) exited with code %d for nparts=%d",
				opts.Image, exitCode, opts.Nparts))
	}
	return nil
}

// containerName builds a unique, recognizable container name for one run.
func containerName(nparts int, createdAt time.Time) string {
	return fmt.Sprintf("metis-wizard-%d-%d", nparts, createdAt.Unix())
}

// waitForExit blocks until the container stops and returns its exit code.
func waitForExit(ctx context.Context, cli *Client, containerID string) (int64, error) {
	statusCh, errCh := cli.Inner().ContainerWait(ctx, containerID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		return 0, model.WrapCLIError(model.ExitDockerNotRunning,
			"failed waiting for partitioner container", err)
	case status := <-statusCh:
		if status.Error != nil {
			return 0, model.NewCLIError(model.ExitDockerNotRunning,
				fmt.Sprintf("partitioner container wait error: %s", status.Error.Message))
		}
		return status.StatusCode, nil
	}
}

// copyLogs demultiplexes the container's combined log stream onto the
// given writers. Docker multiplexes stdout/stderr over one connection
// for non-TTY containers; stdcopy splits them back apart.
func copyLogs(ctx context.Context, cli *Client, containerID string, stdout, stderr io.Writer) error {
	rc, err := cli.Inner().ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	_, err = stdcopy.StdCopy(stdout, stderr, rc)
	return err
}

// ListRuns queries the Docker daemon for every partitioner container the
// wizard has started, including exited ones, and rebuilds the run view
// from their labels and state.
func ListRuns(ctx context.Context, cli *Client) ([]model.ContainerRun, error) {
	// Server-side label filtering: only metis-wizard containers come back.
	filterArgs := filters.NewArgs(
		filters.Arg("label", LabelManagedBy+"="+ManagedByValue),
	)

	containers, err := cli.Inner().ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filterArgs,
	})
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitDockerNotRunning,
			"failed to list partitioner containers",
			err,
		)
	}

	runs := make([]model.ContainerRun, 0, len(containers))
	for _, c := range containers {
		run, err := containerToRun(ctx, cli, c)
		if err != nil {
			// A tampered or foreign container must not break the listing;
			// skip it and keep going.
			continue
		}
		runs = append(runs, run)
	}

	// Newest first — the run the user just started is what they came for.
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	return runs, nil
}

// containerToRun combines a container's labels with its runtime state
// into a ContainerRun.
func containerToRun(ctx context.Context, cli *Client, c types.Container) (model.ContainerRun, error) {
	run, err := ParseRunLabels(c.Labels)
	if err != nil {
		return model.ContainerRun{}, err
	}

	run.ContainerID = c.ID
	if len(c.Names) > 0 {
		// The API reports names with a leading "/" that means nothing
		// to users.
		run.ContainerName = strings.TrimPrefix(c.Names[0], "/")
	}

	exitCode := 0
	if c.State != "running" {
		// The list endpoint does not expose exit codes; inspect the
		// container to learn how the run ended.
		inspected, inspectErr := cli.Inner().ContainerInspect(ctx, c.ID)
		if inspectErr == nil && inspected.State != nil {
			exitCode = inspected.State.ExitCode
		}
	}
	run.ExitCode = exitCode
	run.Status = RunStatusFromState(c.State, exitCode)
	return run, nil
}

// RunStatusFromState maps Docker container state plus exit code onto the
// run lifecycle: a running container is a running partitioning, an exit
// code of zero a successful one, anything else a failed one.
func RunStatusFromState(state string, exitCode int) model.RunStatus {
	if state == "running" {
		return model.StatusRunning
	}
	if exitCode == 0 {
		return model.StatusSucceeded
	}
	return model.StatusFailed
}
