package audit

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// FlaggedTest is a test function with at least one violation.
type FlaggedTest struct {
	Name       string     `json:"name"`
	Line       int        `json:"line"`
	Categories []Category `json:"categories"`
	// Marked is set when this run inserted the marker.
	Marked bool `json:"marked"`
}

// FileResult summarizes one file that contained test functions.
type FileResult struct {
	Path     string        `json:"path"`
	Tests    int           `json:"tests"`
	Flagged  []FlaggedTest `json:"flagged,omitempty"`
	Modified bool          `json:"modified"`
}

// Failure is a file the run had to abandon.
type Failure struct {
	Path  string `json:"path"`
	Op    string `json:"op"`
	Error string `json:"error"`
}

// Report is the outcome of one audit run.
type Report struct {
	RunID          string           `json:"runId"`
	Root           string           `json:"root"`
	DryRun         bool             `json:"dryRun"`
	StartedAt      time.Time        `json:"startedAt"`
	Duration       time.Duration    `json:"durationNs"`
	CandidateFiles int              `json:"candidateFiles"`
	Files          []FileResult     `json:"files"`
	TotalTests     int              `json:"totalTests"`
	FlaggedTests   int              `json:"flaggedTests"`
	CategoryCounts map[Category]int `json:"categoryCounts"`
	Modified       []string         `json:"modified"`
	Failures       []Failure        `json:"failures,omitempty"`
}

func newReport(root string, dryRun bool) *Report {
	counts := make(map[Category]int, len(Categories))
	for _, c := range Categories {
		counts[c] = 0
	}
	return &Report{
		Root:           root,
		DryRun:         dryRun,
		CategoryCounts: counts,
		Files:          []FileResult{},
		Modified:       []string{},
	}
}

// CleanTests is the number of scanned tests without violations.
func (r *Report) CleanTests() int {
	return r.TotalTests - r.FlaggedTests
}

// Percent is the share of scanned tests flagged with c.
func (r *Report) Percent(c Category) float64 {
	if r.TotalTests == 0 {
		return 0
	}
	return float64(r.CategoryCounts[c]) / float64(r.TotalTests) * 100
}

func (r *Report) addFailure(err *FileError, rel string) {
	r.Failures = append(r.Failures, Failure{Path: rel, Op: err.Op, Error: err.Err.Error()})
}

// WriteText renders the human-readable report.
func (r *Report) WriteText(w io.Writer) error {
	var b strings.Builder
	rule := strings.Repeat("=", 50)

	b.WriteString("=== Test Audit Report ===\n\n")
	fmt.Fprintf(&b, "Found %d test files\n", r.CandidateFiles)

	for _, f := range r.Files {
		fmt.Fprintf(&b, "\n%s (%d tests)\n", f.Path, f.Tests)
		for _, t := range f.Flagged {
			fmt.Fprintf(&b, "  - %s: %s\n", t.Name, joinCategories(t.Categories))
		}
	}

	fmt.Fprintf(&b, "\n%s\n", rule)
	b.WriteString("\n=== Summary ===\n")
	fmt.Fprintf(&b, "Total tests scanned: %d\n", r.TotalTests)
	fmt.Fprintf(&b, "Tests with violations: %d\n", r.FlaggedTests)
	fmt.Fprintf(&b, "Clean tests: %d\n", r.CleanTests())

	b.WriteString("\n=== Violations by Type ===\n")
	for _, c := range Categories {
		fmt.Fprintf(&b, "%-20s: %3d (%5.1f%%)\n", c, r.CategoryCounts[c], r.Percent(c))
	}

	b.WriteString("\n=== Files Modified ===\n")
	if r.DryRun {
		fmt.Fprintf(&b, "Dry run: would tag %d files with %s comments\n", len(r.Modified), MarkerToken)
	} else {
		fmt.Fprintf(&b, "Tagged %d files with %s comments\n", len(r.Modified), MarkerToken)
	}
	for _, path := range r.Modified {
		fmt.Fprintf(&b, "  %s\n", path)
	}

	if len(r.Failures) > 0 {
		fmt.Fprintf(&b, "\n=== Errors (%d) ===\n", len(r.Failures))
		for _, f := range r.Failures {
			fmt.Fprintf(&b, "  %s %s: %s\n", f.Op, f.Path, f.Error)
		}
	}

	b.WriteString("\n=== Next Steps ===\n")
	b.WriteString(nextSteps)

	_, err := io.WriteString(w, b.String())
	return err
}

const nextSteps = `1. Review the @audit tags added to test files
2. To find all violations: rg '@audit' --type rust
3. To find specific type: rg '@audit:.*no_source' --type rust
4. To count by type: rg '@audit:.*PATTERN' -c
`

func joinCategories(cs []Category) string {
	names := make([]string, len(cs))
	for i, c := range cs {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}
