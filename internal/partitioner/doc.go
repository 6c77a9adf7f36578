// Package partitioner invokes the external fesom_ini mesh partitioner.
//
// This package contains no partitioning logic. It resolves the fesom_ini
// binary on PATH, optionally prepares the Fortran namelist it reads, and
// shells out once per requested partition count — synchronously, so a
// terminated wizard never leaves an orphaned partitioner behind.
//
// Design decisions:
//   - We shell out via os/exec rather than linking METIS: the partitioner
//     is a Fortran program with its own mesh I/O, and its CLI contract
//     (fesom_ini <mesh> <nparts>) is fixed.
//   - All errors are wrapped in model.CLIError so the CLI layer can map
//     them onto process exit codes.
package partitioner
