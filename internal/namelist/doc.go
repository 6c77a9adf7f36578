// Package namelist reads and writes the Fortran namelist file that
// configures fesom_ini (conventionally namelist.config).
//
// Only the small subset of the namelist grammar that FESOM configuration
// files actually use is supported: &group headers, key = value entries,
// "!" comments, and "/" group terminators. Values are kept as raw text so
// that entries the wizard does not understand round-trip untouched — the
// wizard only ever patches paths.meshpath, machine.n_levels, and
// machine.n_part.
package namelist
