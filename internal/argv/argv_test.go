package argv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", nil},
		{"simple words", "a b c", []string{"a", "b", "c"}},
		{"leading and multiple whitespace", "  a   b\tc\n", []string{"a", "b", "c"}},
		{"single quotes preserve spaces", "'a b' c", []string{"a b", "c"}},
		{"double quotes preserve spaces", `"a b"`, []string{"a b"}},
		{"single quote inside double", `"a'b"`, []string{"a'b"}},
		{"backslash outside quotes", `a\ b`, []string{"a b"}},
		{"backslash in single quotes is literal", `'a\b'`, []string{`a\b`}},
		{"double quote escapes", `"a\"b\\c\d"`, []string{`a"b\c\d`}},
		{"adjacent quoted parts join", `ab"c d"'e'`, []string{"abc de"}},
		{"empty quoted argument", `'' x`, []string{"", "x"}},
		{"trailing backslash kept", `a\`, []string{`a\`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Split(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitUnterminated(t *testing.T) {
	for _, in := range []string{`"abc`, `'abc`, `a "b c`} {
		_, err := Split(in)
		assert.ErrorIs(t, err, ErrUnterminatedQuote, in)
		_, err = Dequote(in)
		assert.ErrorIs(t, err, ErrUnterminatedQuote, in)
	}
}

func TestDequoteKeepsWhitespace(t *testing.T) {
	got, err := Dequote("hello   \"big world\"\nsecond  line")
	require.NoError(t, err)
	assert.Equal(t, "hello   big world\nsecond  line", got)
}

func TestEscapeRoundTrip(t *testing.T) {
	for _, in := range []string{`C:\dir\file`, `say "hi"`, `it's`, "multi\nline"} {
		got, err := Dequote(Escape(in))
		require.NoError(t, err)
		assert.Equal(t, in, got)
	}
}

func TestCut(t *testing.T) {
	assert.Equal(t, []string{"a ", " b"}, Cut("a && b", "&&"))
	assert.Equal(t, []string{`echo "x && y"`}, Cut(`echo "x && y"`, "&&"))
	assert.Equal(t, []string{"echo A", "echo", "echo"}, Cut("echo A | echo | echo", " | "))
	assert.Equal(t, []string{`echo 'a | b'`}, Cut(`echo 'a | b'`, " | "))
	assert.Equal(t, []string{`echo a\ | b`}, Cut(`echo a\ | b`, " | "), "escaped space is not an operator boundary")
	assert.Equal(t, []string{"a|b"}, Cut("a|b", " | "))
}

func TestVerb(t *testing.T) {
	v, rest := Verb("  tab   title  My Tab")
	assert.Equal(t, "tab", v)
	assert.Equal(t, "title  My Tab", rest)

	v, rest = Verb("cwd")
	assert.Equal(t, "cwd", v)
	assert.Equal(t, "", rest)
}
