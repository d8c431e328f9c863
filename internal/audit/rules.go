package audit

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Category is a violation class a test function can be flagged with.
type Category string

const (
	NoSource           Category = "no_source"
	ManualConstruction Category = "manual_construction"
	HardcodedSource    Category = "hardcoded_source"
)

// Categories lists every category in report order.
var Categories = []Category{NoSource, ManualConstruction, HardcodedSource}

// ParseCategory maps a textual category name to its Category.
func ParseCategory(name string) (Category, error) {
	for _, c := range Categories {
		if string(c) == name {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category: %q", name)
}

// Rule is one textual pattern bound to a category.
type Rule struct {
	Category Category
	Pattern  string
	re       *regexp.Regexp
}

// Match reports whether the rule's pattern occurs anywhere in text.
func (r Rule) Match(text string) bool {
	return r.re.MatchString(text)
}

// RuleSet maps each category to its ordered rules. A RuleSet is never
// modified after construction; Extend returns a copy.
type RuleSet struct {
	rules map[Category][]Rule
}

var defaultPatterns = map[Category][]string{
	NoSource: {
		`\.new\([^)]*vec!\[\][^)]*\)`,
		`from_string\([^,]+,\s*None\)`,
		`Position::new\(0,\s*0\)`,
		`default_location\(\)`,
	},
	ManualConstruction: {
		`Token::\w+\([^)]*\.to_string\(\)[^)]*\)`,
		`vec!\[[\s\n]*Token::\w+`,
		`Token::(?:Text|Number|Dash|Newline|Whitespace|Indent|Dedent|Period|Comma|Colon|Semicolon|OpenBrace|CloseBrace|OpenBracket|CloseBracket|OpenParen|CloseParen|Equal|Hash)`,
	},
	HardcodedSource: {
		`let\s+source\s*=\s*"[^"]*\\n`,
		`"[^"]*-\s+[^"]*\\n`,
		`"[^"]*:\s*\\n\s+`,
		`"[^"]*::\s*\w+[^"]*::"`,
		`"[^"]*\\n\\n`,
		`format!\([^)]*"[^"]*\\n`,
	},
}

// DefaultRules returns the built-in rule table.
func DefaultRules() *RuleSet {
	rs, err := NewRuleSet(defaultPatterns)
	if err != nil {
		panic(fmt.Sprintf("audit: built-in rules: %v", err))
	}
	return rs
}

// NewRuleSet compiles patterns into a RuleSet. Every known category must have
// at least one pattern.
func NewRuleSet(patterns map[Category][]string) (*RuleSet, error) {
	rs := &RuleSet{rules: make(map[Category][]Rule, len(Categories))}
	for c, list := range patterns {
		if _, err := ParseCategory(string(c)); err != nil {
			return nil, err
		}
		for _, p := range list {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("compile %s rule %q: %w", c, p, err)
			}
			rs.rules[c] = append(rs.rules[c], Rule{Category: c, Pattern: p, re: re})
		}
	}
	for _, c := range Categories {
		if len(rs.rules[c]) == 0 {
			return nil, fmt.Errorf("category %s has no rules", c)
		}
	}
	return rs, nil
}

// Extend returns a new RuleSet with extra patterns appended after the
// existing rules of each category.
func (rs *RuleSet) Extend(extra map[Category][]string) (*RuleSet, error) {
	merged := make(map[Category][]string, len(Categories))
	for _, c := range Categories {
		for _, r := range rs.rules[c] {
			merged[c] = append(merged[c], r.Pattern)
		}
	}
	for c, list := range extra {
		merged[c] = append(merged[c], list...)
	}
	return NewRuleSet(merged)
}

// Rules returns the ordered rules of a category.
func (rs *RuleSet) Rules(c Category) []Rule {
	out := make([]Rule, len(rs.rules[c]))
	copy(out, rs.rules[c])
	return out
}

// ViolationSet is the set of categories flagged for one function.
type ViolationSet map[Category]struct{}

// Add flags c.
func (v ViolationSet) Add(c Category) {
	v[c] = struct{}{}
}

// Has reports whether c is flagged.
func (v ViolationSet) Has(c Category) bool {
	_, ok := v[c]
	return ok
}

// Sorted returns the flagged categories ordered by name.
func (v ViolationSet) Sorted() []Category {
	out := make([]Category, 0, len(v))
	for c := range v {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// String renders the set as a sorted, comma-joined list.
func (v ViolationSet) String() string {
	names := make([]string, 0, len(v))
	for _, c := range v.Sorted() {
		names = append(names, string(c))
	}
	return strings.Join(names, ", ")
}
