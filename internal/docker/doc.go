// Package docker runs the mesh partitioner inside the packaged fesom_ini
// Docker image and tracks those runs.
//
// This package handles:
//   - Docker client initialization with automatic socket detection
//     (Linux, macOS, Windows)
//   - Containerized fesom_ini invocations: create, start, wait, logs,
//     remove — one container per partition count
//   - Container labels recording what was partitioned; the labels are
//     the only record the wizard keeps, and the "runs" command rebuilds
//     its view entirely from them
//
// The package uses github.com/docker/docker/client as the underlying
// Docker SDK, with version negotiation enabled for broad compatibility.
package docker
