package audit

import (
	"regexp"
	"strings"
)

const (
	// TestAttribute marks a function as a test.
	TestAttribute = "#[test]"

	// declWindow is how many lines, starting at the attribute line, are
	// searched for the function declaration.
	declWindow = 5
)

var fnDecl = regexp.MustCompile(`fn\s+(\w+)\s*\(`)

// FunctionRecord locates one test function. Lines are 1-based and inclusive.
type FunctionRecord struct {
	Name      string `json:"name"`
	StartLine int    `json:"startLine"`
	EndLine   int    `json:"endLine"`
}

// Locate returns the test functions found in source, in file order.
//
// Boundaries come from brace counting, not parsing: braces inside string
// literals and comments are counted like any other brace. An attribute with
// no declaration within the window is skipped.
func Locate(source string) []FunctionRecord {
	lines := strings.Split(source, "\n")
	var records []FunctionRecord
	for i, line := range lines {
		if !strings.Contains(line, TestAttribute) {
			continue
		}
		for j := i; j < len(lines) && j < i+declWindow; j++ {
			m := fnDecl.FindStringSubmatch(lines[j])
			if m == nil {
				continue
			}
			records = append(records, FunctionRecord{
				Name:      m[1],
				StartLine: i + 1,
				EndLine:   closingLine(lines, j),
			})
			break
		}
	}
	return records
}

// closingLine returns the 1-based line on which the brace depth, counted from
// the declaration line, first returns to zero after going positive. An
// unclosed body runs to the last line.
func closingLine(lines []string, decl int) int {
	depth := 0
	opened := false
	for k := decl; k < len(lines); k++ {
		for _, r := range lines[k] {
			switch r {
			case '{':
				depth++
				opened = true
			case '}':
				depth--
				if opened && depth == 0 {
					return k + 1
				}
			}
		}
	}
	return len(lines)
}
