package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile_LiteralContains(t *testing.T) {
	r, err := Compile("you are hungry")
	require.NoError(t, err)
	assert.False(t, r.TinTin)

	_, ok := r.Match("Suddenly, you are hungry.")
	assert.True(t, ok)

	_, ok = r.Match("nothing here")
	assert.False(t, ok)
}

func TestCompile_DetectsTinTinStyle(t *testing.T) {
	cases := []string{
		"^%1 tells you '%2'",
		"ends$",
		"{foo|bar} appears",
		"%* attacks you",
		"%d gold coins",
	}
	for _, p := range cases {
		r, err := Compile(p)
		require.NoError(t, err)
		assert.Truef(t, r.TinTin, "expected %q to be detected as TinTin-style", p)
	}
}

func TestCompile_CaptureAndSubstitute(t *testing.T) {
	r, err := Compile("^%1 tells you '%2'")
	require.NoError(t, err)
	require.True(t, r.TinTin)

	captures, ok := r.Match("Alice tells you 'hello'")
	require.True(t, ok)
	require.Len(t, captures, 3)
	assert.Equal(t, "Alice", captures[1])
	assert.Equal(t, "hello", captures[2])

	out := Substitute("reply %1 got it: %2", captures)
	assert.Equal(t, "reply Alice got it: hello", out)
}

func TestCompile_StarAndNumberedWildcards(t *testing.T) {
	r, err := Compile("%* attacks %1 for %2 damage")
	require.NoError(t, err)

	captures, ok := r.Match("The goblin attacks you for 12 damage")
	require.True(t, ok)
	assert.Equal(t, "you", captures[2])
	assert.Equal(t, "12", captures[3])
}

func TestCompile_BraceGroupPassesThroughAsRegex(t *testing.T) {
	r, err := Compile("{[Nn]orth|[Ss]outh} exit")
	require.NoError(t, err)
	require.True(t, r.TinTin)

	_, ok := r.Match("There is a north exit")
	assert.True(t, ok)
	_, ok = r.Match("There is a south exit")
	assert.True(t, ok)
	_, ok = r.Match("There is a west exit")
	assert.False(t, ok)
}

func TestCompile_StripsSGRFromCaptures(t *testing.T) {
	r, err := Compile("^You hit %1")
	require.NoError(t, err)

	captures, ok := r.Match("You hit \x1b[31mthe orc\x1b[0m")
	require.True(t, ok)
	assert.Equal(t, "the orc", captures[1])
}

func TestSubstitute_UnmatchedPlaceholderRemoved(t *testing.T) {
	out := Substitute("hello %1 and %5", []string{"full", "world"})
	assert.Equal(t, "hello world and ", out)
}

func TestCompile_NonCapturingVariant(t *testing.T) {
	r, err := Compile("^%!1 is here")
	require.NoError(t, err)
	require.True(t, r.TinTin)

	_, ok := r.Match("anything is here")
	assert.True(t, ok)
}

func TestCompile_QuantifiedCaptureOverClass(t *testing.T) {
	r, err := Compile(`^ID: %+3..5<d> done`)
	require.NoError(t, err)
	require.True(t, r.TinTin)

	captures, ok := r.Match("ID: 1234 done")
	require.True(t, ok)
	assert.Equal(t, "1234", captures[1])
}
