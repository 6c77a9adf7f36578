// Package cli — interactive.go implements the interactive partition count
// selection used by "metis-wizard partition --interactive".
//
// The flow mirrors what FESOM users expect from the wizard: a curated
// menu of common core counts, an optional round of custom additions, and
// a final confirmation before any partitioner is launched. Whatever the
// user ends up selecting produces exactly the same invocations as passing
// those counts on the command line.
package cli

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/FESOM/metis-wizard/internal/model"
)

// errCancelled is returned whenever the user backs out of the interactive
// flow, either explicitly or by closing stdin.
var errCancelled = model.NewCLIError(model.ExitUserCancelled, "partitioning cancelled")

// Selector drives the interactive selection dialogue. Input and output
// are injected so tests can script the conversation.
type Selector struct {
	scanner *bufio.Scanner
	out     io.Writer
}

// NewSelector creates a Selector reading answers from in and writing
// prompts to out.
func NewSelector(in io.Reader, out io.Writer) *Selector {
	return &Selector{
		// bufio.Scanner handles both LF and CRLF line endings.
		scanner: bufio.NewScanner(in),
		out:     out,
	}
}

// SelectCounts runs the full dialogue and returns the chosen partition
// counts. The choices argument is the curated menu (from config);
// an empty answer selects all of them, matching the wizard's historical
// behavior of pre-selecting every common count.
//
// Returns a CLIError with ExitUserCancelled when the user declines the
// final confirmation or stdin is closed mid-dialogue.
func (s *Selector) SelectCounts(choices []int) ([]int, error) {
	counts, err := s.pickFromMenu(choices)
	if err != nil {
		return nil, err
	}

	counts, err = s.addCustomCounts(counts)
	if err != nil {
		return nil, err
	}

	if len(counts) == 0 {
		return nil, model.NewCLIError(model.ExitUserCancelled, "no partition counts selected")
	}

	confirmed, err := s.confirm(fmt.Sprintf("Proceed with partitioning for %s?", formatCounts(counts)))
	if err != nil {
		return nil, err
	}
	if !confirmed {
		return nil, errCancelled
	}
	return counts, nil
}

// pickFromMenu shows the curated menu and parses the selection.
// Selections are menu numbers ("1 3 5" or "1,3,5"); an empty answer
// selects every entry.
func (s *Selector) pickFromMenu(choices []int) ([]int, error) {
	fmt.Fprintln(s.out, "Common partition counts:")
	for i, n := range choices {
		fmt.Fprintf(s.out, "  %d) %d\n", i+1, n)
	}
	fmt.Fprint(s.out, "Select entries (e.g. \"1 3\"; empty selects all): ")

	line, ok := s.readLine()
	if !ok {
		return nil, errCancelled
	}
	if strings.TrimSpace(line) == "" {
		return append([]int(nil), choices...), nil
	}

	var counts []int
	for _, token := range splitSelection(line) {
		idx, err := strconv.Atoi(token)
		if err != nil || idx < 1 || idx > len(choices) {
			return nil, model.NewCLIError(model.ExitGeneralError,
				fmt.Sprintf("invalid selection %q: expected a menu number between 1 and %d", token, len(choices)))
		}
		counts = append(counts, choices[idx-1])
	}
	sort.Ints(counts)
	return counts, nil
}

// addCustomCounts offers to extend the selection with counts not on the
// menu, one at a time, until the user declines.
func (s *Selector) addCustomCounts(counts []int) ([]int, error) {
	for {
		more, err := s.confirm("Add a custom partition count? [y/N]")
		if err != nil {
			return nil, err
		}
		if !more {
			return counts, nil
		}

		fmt.Fprint(s.out, "Partition count: ")
		line, ok := s.readLine()
		if !ok {
			return nil, errCancelled
		}
		n, err := model.ParsePartitionCount(line)
		if err != nil {
			fmt.Fprintf(s.out, "%v\n", err)
			continue
		}
		counts = append(counts, n)
		fmt.Fprintf(s.out, "Selected: %s\n", formatCounts(counts))
	}
}

// confirm asks a yes/no question, defaulting to no.
func (s *Selector) confirm(question string) (bool, error) {
	fmt.Fprintf(s.out, "%s ", question)
	line, ok := s.readLine()
	if !ok {
		return false, errCancelled
	}
	answer := strings.TrimSpace(strings.ToLower(line))
	return answer == "y" || answer == "yes", nil
}

// readLine reads one answer; ok is false when stdin is exhausted.
func (s *Selector) readLine() (string, bool) {
	if s.scanner.Scan() {
		return s.scanner.Text(), true
	}
	return "", false
}

// splitSelection tokenizes a menu selection on spaces and commas.
func splitSelection(line string) []string {
	return strings.FieldsFunc(line, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\t'
	})
}

// formatCounts renders a count list for prompts and reports, e.g.
// "72, 144, 288 partitions".
func formatCounts(counts []int) string {
	parts := make([]string, len(counts))
	for i, n := range counts {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ", ") + " partitions"
}
