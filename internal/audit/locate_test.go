package audit

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLocate(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   []FunctionRecord
	}{
		{
			name: "single function",
			source: `#[test]
fn parses_word() {
    let doc = parse("word");
    assert_eq!(doc.len(), 1);
}
`,
			want: []FunctionRecord{{Name: "parses_word", StartLine: 1, EndLine: 5}},
		},
		{
			name: "inside cfg(test) module",
			source: `pub fn lex() {}

#[cfg(test)]
mod tests {
    use super::*;

    #[test]
    fn lexes() {
        lex();
    }
}
`,
			want: []FunctionRecord{{Name: "lexes", StartLine: 7, EndLine: 10}},
		},
		{
			name:   "attribute and declaration on one line",
			source: "#[test] fn inline() { assert!(true); }\n",
			want:   []FunctionRecord{{Name: "inline", StartLine: 1, EndLine: 1}},
		},
		{
			name: "extra attributes between",
			source: `#[test]
#[should_panic(expected = "boom")]
fn panics() {
    boom();
}`,
			want: []FunctionRecord{{Name: "panics", StartLine: 1, EndLine: 5}},
		},
		{
			name: "declaration outside window is skipped",
			source: `#[test]
// one
// two
// three
// four
fn too_far() {
}
`,
			want: nil,
		},
		{
			name: "nested blocks",
			source: `#[test]
fn nested() {
    if ready {
        for x in xs {
            run(x);
        }
    }
}
`,
			want: []FunctionRecord{{Name: "nested", StartLine: 1, EndLine: 8}},
		},
		{
			name: "declaration split across lines",
			source: `#[test]
fn long_signature(
    fixture: Fixture,
) {
    fixture.run();
}
`,
			want: []FunctionRecord{{Name: "long_signature", StartLine: 1, EndLine: 6}},
		},
		{
			name: "unclosed body runs to end",
			source: `#[test]
fn truncated() {
    let x = 1;`,
			want: []FunctionRecord{{Name: "truncated", StartLine: 1, EndLine: 3}},
		},
		{
			// Braces in literals are counted too; the body is cut short.
			name: "brace in string literal",
			source: `#[test]
fn braces() {
    let s = "}";
    check(s);
}
`,
			want: []FunctionRecord{{Name: "braces", StartLine: 1, EndLine: 3}},
		},
		{
			name: "several functions in file order",
			source: `#[test]
fn first() {
}

#[test]
fn second() { one(); }

fn helper() {}

#[test]
fn third() {
    two();
}
`,
			want: []FunctionRecord{
				{Name: "first", StartLine: 1, EndLine: 3},
				{Name: "second", StartLine: 5, EndLine: 6},
				{Name: "third", StartLine: 10, EndLine: 13},
			},
		},
		{
			name:   "no tests",
			source: "fn helper() {}\n",
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Locate(tt.source)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Locate() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLocateIsDeterministic(t *testing.T) {
	source := `#[test]
fn a() {
}
#[test]
fn b() {
}
`
	first := Locate(source)
	for i := 0; i < 5; i++ {
		if diff := cmp.Diff(first, Locate(source)); diff != "" {
			t.Fatalf("run %d differs (-first +got):\n%s", i, diff)
		}
	}
}
