package audit

import (
	"fmt"
	"strings"
)

const (
	// MarkerToken identifies an inserted audit comment.
	MarkerToken = "@audit"

	markerPrefix = "// " + MarkerToken + ": "

	// markerLookback is how many lines above a function are checked for an
	// existing marker.
	markerLookback = 5

	// attrLookback bounds the upward search for the attribute line.
	attrLookback = 5
)

// Marker renders the comment line for v without indentation.
func Marker(v ViolationSet) string {
	return markerPrefix + v.String()
}

// HasMarker reports whether one of the lines just above startLine already
// carries a marker. The search looks at most markerLookback lines up and
// stops at the first line of code, so a marker belonging to the previous
// function is never taken for this one's.
func HasMarker(text string, startLine int) bool {
	lines := strings.Split(text, "\n")
	if startLine > len(lines)+1 {
		startLine = len(lines) + 1
	}
	for n := startLine - 1; n >= 1 && n >= startLine-markerLookback; n-- {
		line := lines[n-1]
		if strings.Contains(line, MarkerToken) {
			return true
		}
		if !isPreamble(line) {
			return false
		}
	}
	return false
}

// isPreamble reports whether line may sit between a function and its
// marker: blank lines, comments and attribute-only lines. An attribute
// followed by code on the same line, as in a one-line test, is code.
func isPreamble(line string) bool {
	trimmed := strings.TrimSpace(line)
	switch {
	case trimmed == "":
		return true
	case strings.HasPrefix(trimmed, "//"), strings.HasPrefix(trimmed, "/*"), strings.HasPrefix(trimmed, "*"):
		return true
	case strings.HasPrefix(trimmed, "#["):
		return strings.HasSuffix(trimmed, "]") && !fnDecl.MatchString(trimmed)
	}
	return false
}

// Annotate inserts a marker for v above the test attribute at startLine.
// The text is returned unchanged when v is empty or a marker is already
// present. Every line other than the inserted one is kept byte for byte.
func Annotate(text string, startLine int, v ViolationSet) (string, error) {
	if len(v) == 0 || HasMarker(text, startLine) {
		return text, nil
	}
	lines := strings.Split(text, "\n")
	if startLine < 1 || startLine > len(lines) {
		return text, fmt.Errorf("line %d outside %d-line text: %w", startLine, len(lines), ErrUnsafeEdit)
	}

	at := attributeLine(lines, startLine-1)
	marker := leadingSpace(lines[at]) + Marker(v)
	if strings.HasSuffix(lines[at], "\r") {
		marker += "\r"
	}

	out := make([]string, 0, len(lines)+1)
	out = append(out, lines[:at]...)
	out = append(out, marker)
	out = append(out, lines[at:]...)
	updated := strings.Join(out, "\n")

	if err := verifyInsertion(text, updated, at, marker); err != nil {
		return text, err
	}
	return updated, nil
}

// attributeLine returns the 0-based index of the attribute line for the
// function at idx, falling back to idx itself.
func attributeLine(lines []string, idx int) int {
	for k := idx; k >= 0 && k >= idx-attrLookback; k-- {
		if strings.Contains(lines[k], TestAttribute) {
			return k
		}
	}
	return idx
}

func leadingSpace(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}

// verifyInsertion checks that updated is original with exactly marker
// inserted at line index at.
func verifyInsertion(original, updated string, at int, marker string) error {
	want := strings.Split(original, "\n")
	got := strings.Split(updated, "\n")
	if len(got) != len(want)+1 || got[at] != marker {
		return ErrUnsafeEdit
	}
	for i, line := range want {
		j := i
		if i >= at {
			j++
		}
		if got[j] != line {
			return ErrUnsafeEdit
		}
	}
	return nil
}
