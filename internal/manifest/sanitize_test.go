package manifest

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeTitle(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain", input: "Lecture 1", want: "Lecture 1"},
		{name: "pipe annotation removed", input: "Advance - Class-01 | Calculation (Cube & Cube Root)", want: "Advance - Class-01"},
		{name: "illegal characters", input: `a/b\c:d*e?f"g<h>i`, want: "abcdefghi"},
		{name: "percent removed", input: "100% Results", want: "100 Results"},
		{name: "whitespace collapsed", input: "  a \t  b\u00a0c  ", want: "a b c"},
		{name: "trailing dots", input: "Chapter 3...", want: "Chapter 3"},
		{name: "unicode kept", input: "गणित कक्षा 1", want: "गणित कक्षा 1"},
		{name: "control characters", input: "a\x00b\x1fc", want: "abc"},
		{name: "only illegal", input: `///???`, want: DefaultTitle},
		{name: "empty", input: "", want: DefaultTitle},
		{name: "reserved name", input: "con", want: "con_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeTitle(tt.input))
		})
	}
}

func TestSanitizeTitle_Truncates(t *testing.T) {
	long := strings.Repeat("क", 100)

	got := SanitizeTitle(long)

	assert.LessOrEqual(t, len(got), MaxTitleBytes)
	assert.True(t, utf8.ValidString(got))
}

func TestSanitizeTitle_Idempotent(t *testing.T) {
	inputs := []string{
		"Lecture 1",
		"Advance - Class-01 | Calculation (Cube & Cube Root)",
		`weird / name : with * stuff ?.. `,
		"  ..hidden. ",
		"nul",
		strings.Repeat("ab ", 120),
		strings.Repeat("é", 150) + ".",
		"",
	}

	for _, in := range inputs {
		once := SanitizeTitle(in)
		assert.Equal(t, once, SanitizeTitle(once), "input %q", in)
	}
}
