// Package model defines the domain types and value objects for the
// metis-wizard CLI.
//
// This package contains pure data structures with no external dependencies:
// the mesh reference, partition count parsing, per-invocation results, and
// the aggregate report used for end-of-run summaries. Everything here is
// transient — the wizard persists nothing itself; partition output files
// are written by the external fesom_ini program.
//
// The package also defines exit codes (ExitCode) and a custom error type
// (CLIError) that carries exit codes for proper OS process exit handling.
package model
