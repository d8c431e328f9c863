package audit

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func violations(cs ...Category) ViolationSet {
	v := ViolationSet{}
	for _, c := range cs {
		v.Add(c)
	}
	return v
}

func TestAnnotateInsertsIndentedMarker(t *testing.T) {
	source := `#[cfg(test)]
mod tests {
    #[test]
    fn lexes() {
        assert_eq!(lex("a")[0], Token::Text);
    }
}
`
	want := `#[cfg(test)]
mod tests {
    // @audit: manual_construction
    #[test]
    fn lexes() {
        assert_eq!(lex("a")[0], Token::Text);
    }
}
`
	got, err := Annotate(source, 3, violations(ManualConstruction))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestAnnotateSortsCategories(t *testing.T) {
	source := "#[test]\nfn f() {}\n"
	got, err := Annotate(source, 1, violations(NoSource, HardcodedSource))
	require.NoError(t, err)
	assert.Equal(t, "// @audit: hardcoded_source, no_source\n#[test]\nfn f() {}\n", got)
}

func TestAnnotateIsIdempotent(t *testing.T) {
	source := "#[test]\nfn f() {}\n"
	once, err := Annotate(source, 1, violations(NoSource))
	require.NoError(t, err)

	// The attribute moved down one line.
	assert.True(t, HasMarker(once, 2))
	twice, err := Annotate(once, 2, violations(NoSource))
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestAnnotateNoViolationsIsNoop(t *testing.T) {
	source := "#[test]\nfn f() {}\n"
	got, err := Annotate(source, 1, ViolationSet{})
	require.NoError(t, err)
	assert.Equal(t, source, got)
}

func TestAnnotateWalksUpToAttribute(t *testing.T) {
	source := "    #[test]\n    #[ignore]\n    fn f() {}\n"
	got, err := Annotate(source, 3, violations(NoSource))
	require.NoError(t, err)
	assert.Equal(t, "    // @audit: no_source\n    #[test]\n    #[ignore]\n    fn f() {}\n", got)
}

func TestAnnotateFallsBackToStartLine(t *testing.T) {
	source := "mod m {\n\tfn f() {}\n}\n"
	got, err := Annotate(source, 2, violations(HardcodedSource))
	require.NoError(t, err)
	assert.Equal(t, "mod m {\n\t// @audit: hardcoded_source\n\tfn f() {}\n}\n", got)
}

func TestAnnotateKeepsCRLF(t *testing.T) {
	source := "#[test]\r\nfn f() {}\r\n"
	got, err := Annotate(source, 1, violations(NoSource))
	require.NoError(t, err)
	assert.Equal(t, "// @audit: no_source\r\n#[test]\r\nfn f() {}\r\n", got)
}

func TestAnnotateRejectsOutOfRangeLine(t *testing.T) {
	source := "#[test]\nfn f() {}\n"
	got, err := Annotate(source, 10, violations(NoSource))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsafeEdit))
	assert.Equal(t, source, got)
}

func TestHasMarker(t *testing.T) {
	tests := []struct {
		name      string
		source    string
		startLine int
		want      bool
	}{
		{"directly above", "// @audit: no_source\n#[test]\nfn f() {}", 2, true},
		{"above doc comment and blank", "// @audit: no_source\n\n/// Docs.\n#[test]\nfn f() {}", 4, true},
		{"none", "#[test]\nfn f() {}", 1, false},
		{"beyond lookback", "// @audit: x\n//\n//\n//\n//\n//\n#[test]", 7, false},
		{
			"marker of previous function",
			"// @audit: manual_construction\n#[test]\nfn a() { Token::Dash; }\n#[test]\nfn b() {}",
			4,
			false,
		},
		{
			"marker of previous one-line function",
			"// @audit: manual_construction\n#[test] fn a() { Token::Dash; }\n#[test]\nfn b() {}",
			3,
			false,
		},
		{"above another attribute", "// @audit: no_source\n#[should_panic(expected = \"x\")]\n#[test]\nfn f() {}", 3, true},
		{"start past end is clamped", "// @audit: x\n#[test]", 9, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasMarker(tt.source, tt.startLine))
		})
	}
}

func TestVerifyInsertion(t *testing.T) {
	original := "a\nb\nc"
	assert.NoError(t, verifyInsertion(original, "a\nM\nb\nc", 1, "M"))
	assert.ErrorIs(t, verifyInsertion(original, "a\nM\nb\nX", 1, "M"), ErrUnsafeEdit)
	assert.ErrorIs(t, verifyInsertion(original, "a\nM\nM\nb\nc", 1, "M"), ErrUnsafeEdit)
	assert.ErrorIs(t, verifyInsertion(original, "M\na\nb\nc", 1, "M"), ErrUnsafeEdit)
}

func TestAnnotateOnlyAddsOneLine(t *testing.T) {
	source := strings.Repeat("fn helper() {}\n", 3) + "#[test]\nfn f() {}\n"
	got, err := Annotate(source, 4, violations(NoSource))
	require.NoError(t, err)
	assert.Equal(t, strings.Count(source, "\n")+1, strings.Count(got, "\n"))
	assert.Equal(t, source, strings.Replace(got, "// @audit: no_source\n", "", 1))
}
