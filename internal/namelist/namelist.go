package namelist

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// entry is a single key = value line inside a namelist group.
// The value is stored as raw namelist text (quotes included for strings)
// so unknown entries round-trip byte-for-byte.
type entry struct {
	key   string
	value string
}

// Group is a single &name ... / block of a namelist file.
type Group struct {
	// Name is the group name without the leading "&", lowercased.
	// Fortran namelists are case-insensitive; FESOM files are lowercase
	// in practice, so we normalize on read.
	Name string

	entries []entry
}

// Namelist is an ordered collection of namelist groups, preserving the
// group and entry order of the file it was parsed from.
type Namelist struct {
	groups []*Group
}

// Parse reads a namelist from r.
//
// The parser is line-oriented, mirroring the structure FESOM namelist
// files actually have:
//
//	&paths
//	meshpath='/work/meshes/pi/'   ! mesh location
//	/
//
// Multi-line values and inline group declarations are not supported;
// encountering a key outside any group is an error.
func Parse(r io.Reader) (*Namelist, error) {
	nl := &Namelist{}
	var current *Group

	scanner := bufio.NewScanner(r)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := stripComment(scanner.Text())
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "&"):
			if current != nil {
				return nil, fmt.Errorf("line %d: group %q not terminated before new group", lineno, current.Name)
			}
			name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(line, "&")))
			if name == "" {
				return nil, fmt.Errorf("line %d: empty group name", lineno)
			}
			current = &Group{Name: name}
			nl.groups = append(nl.groups, current)

		case line == "/":
			if current == nil {
				return nil, fmt.Errorf("line %d: group terminator outside any group", lineno)
			}
			current = nil

		default:
			if current == nil {
				return nil, fmt.Errorf("line %d: entry %q outside any group", lineno, line)
			}
			key, value, ok := strings.Cut(line, "=")
			if !ok {
				return nil, fmt.Errorf("line %d: expected key=value, got %q", lineno, line)
			}
			current.entries = append(current.entries, entry{
				key:   strings.ToLower(strings.TrimSpace(key)),
				value: strings.TrimSpace(value),
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if current != nil {
		return nil, fmt.Errorf("group %q not terminated at end of file", current.Name)
	}
	return nl, nil
}

// stripComment removes a trailing "!" comment, respecting single-quoted
// strings so a literal "!" inside a path value survives.
func stripComment(line string) string {
	inQuote := false
	for i, r := range line {
		switch r {
		case '\'':
			inQuote = !inQuote
		case '!':
			if !inQuote {
				return line[:i]
			}
		}
	}
	return line
}

// ParseFile parses the namelist file at path.
func ParseFile(path string) (*Namelist, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return Parse(f)
}

// Group returns the group with the given name, or nil if absent.
func (nl *Namelist) Group(name string) *Group {
	name = strings.ToLower(name)
	for _, g := range nl.groups {
		if g.Name == name {
			return g
		}
	}
	return nil
}

// ensureGroup returns the named group, appending a new one if needed.
// FESOM templates normally already contain &paths and &machine, but a
// stripped-down template should not make patching fail.
func (nl *Namelist) ensureGroup(name string) *Group {
	if g := nl.Group(name); g != nil {
		return g
	}
	g := &Group{Name: strings.ToLower(name)}
	nl.groups = append(nl.groups, g)
	return g
}

// Set stores a raw namelist value under group/key, replacing an existing
// entry in place (preserving its position) or appending a new one.
func (nl *Namelist) Set(group, key, rawValue string) {
	g := nl.ensureGroup(group)
	key = strings.ToLower(key)
	for i := range g.entries {
		if g.entries[i].key == key {
			g.entries[i].value = rawValue
			return
		}
	}
	g.entries = append(g.entries, entry{key: key, value: rawValue})
}

// SetString stores a single-quoted string value under group/key.
func (nl *Namelist) SetString(group, key, value string) {
	// Fortran escapes an embedded single quote by doubling it.
	nl.Set(group, key, "'"+strings.ReplaceAll(value, "'", "''")+"'")
}

// SetInt stores an integer value under group/key.
func (nl *Namelist) SetInt(group, key string, value int) {
	nl.Set(group, key, strconv.Itoa(value))
}

// Lookup returns the raw value stored under group/key.
func (nl *Namelist) Lookup(group, key string) (string, bool) {
	g := nl.Group(group)
	if g == nil {
		return "", false
	}
	key = strings.ToLower(key)
	for _, e := range g.entries {
		if e.key == key {
			return e.value, true
		}
	}
	return "", false
}

// String returns the string value under group/key with quotes removed.
func (nl *Namelist) String(group, key string) (string, bool) {
	raw, ok := nl.Lookup(group, key)
	if !ok {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	if len(raw) >= 2 && strings.HasPrefix(raw, "'") && strings.HasSuffix(raw, "'") {
		raw = strings.ReplaceAll(raw[1:len(raw)-1], "''", "'")
	}
	return raw, true
}

// Int returns the integer value under group/key.
func (nl *Namelist) Int(group, key string) (int, bool) {
	raw, ok := nl.Lookup(group, key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, false
	}
	return n, true
}

// SetMesh points the partitioner namelist at the given mesh path.
// This patches paths.meshpath, the key fesom_ini reads the mesh from.
func (nl *Namelist) SetMesh(meshPath string) {
	nl.SetString("paths", "meshpath", meshPath)
}

// SetPartitioning configures the partition scheme: a single-level
// partitioning into nparts subdomains. Hierarchical partitioning
// (n_levels > 1) is never produced by the wizard.
func (nl *Namelist) SetPartitioning(nparts int) {
	nl.SetInt("machine", "n_levels", 1)
	nl.SetInt("machine", "n_part", nparts)
}

// Write renders the namelist to w in canonical form:
//
//	&group
//	key=value
//	/
//
// Comments from the source file are not preserved; the wizard writes the
// patched namelist next to the partitioner's working directory, leaving
// the user's template untouched.
func (nl *Namelist) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for i, g := range nl.groups {
		if i > 0 {
			if _, err := fmt.Fprintln(bw); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(bw, "&%s\n", g.Name); err != nil {
			return err
		}
		for _, e := range g.entries {
			if _, err := fmt.Fprintf(bw, "%s=%s\n", e.key, e.value); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(bw, "/"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFile writes the namelist to path, replacing any existing file.
func (nl *Namelist) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := nl.Write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
