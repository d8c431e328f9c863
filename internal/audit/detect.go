package audit

import "strings"

// Detect returns the categories whose rules match the lines of rec in
// source. Lines are read from source as given; callers pass the unmodified
// file text and the record's original line numbers.
func Detect(rules *RuleSet, source string, rec FunctionRecord) ViolationSet {
	section := sliceLines(source, rec.StartLine, rec.EndLine)
	found := ViolationSet{}
	for _, c := range Categories {
		for _, r := range rules.rules[c] {
			if r.Match(section) {
				found.Add(c)
				break
			}
		}
	}
	return found
}

// sliceLines joins lines start..end (1-based, inclusive), clamped to the text.
func sliceLines(text string, start, end int) string {
	lines := strings.Split(text, "\n")
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end {
		return ""
	}
	return strings.Join(lines[start-1:end], "\n")
}
