package script

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpander_RecursiveExpansion(t *testing.T) {
	e := NewExpander()
	e.SetAliases([]*Alias{
		{Pattern: "kk", MatchType: MatchExact, Replacement: "kill $1; loot", Enabled: true},
		{Pattern: "loot", MatchType: MatchExact, Replacement: "get all from corpse", Enabled: true},
	})

	out := e.Expand("kk kobold")
	require.Equal(t, []string{"kill kobold", "get all from corpse"}, out)
}

func TestExpander_SplitRespectsBraceDepth(t *testing.T) {
	e := NewExpander()
	out := e.Expand("say {hello; world}; wave")
	require.Equal(t, []string{"say {hello; world}", "wave"}, out)
}

func TestExpander_StartsWithMatch(t *testing.T) {
	e := NewExpander()
	e.SetAliases([]*Alias{
		{Pattern: "n", MatchType: MatchStartsWith, Replacement: "north", Enabled: true},
	})

	assert.Equal(t, []string{"north"}, e.Expand("n"))
	assert.Equal(t, []string{"west"}, e.Expand("west")) // no match, passthrough
}

func TestExpander_TinTinMatchCaseInsensitive(t *testing.T) {
	e := NewExpander()
	e.SetAliases([]*Alias{
		{Pattern: "GET %1", MatchType: MatchTinTin, Replacement: "take %1 from corpse", Enabled: true},
	})

	assert.Equal(t, []string{"take sword from corpse"}, e.Expand("get sword"))
}

func TestExpander_RegexMatchWithGroups(t *testing.T) {
	e := NewExpander()
	e.SetAliases([]*Alias{
		{Pattern: `^cast (\w+) (\w+)$`, MatchType: MatchRegex, Replacement: "cast '$1' at $2", Enabled: true},
	})

	assert.Equal(t, []string{"cast 'fireball' at goblin"}, e.Expand("cast fireball goblin"))
}

func TestExpander_RecursionBoundedAtTen(t *testing.T) {
	e := NewExpander()
	e.SetAliases([]*Alias{
		{Pattern: "loop", MatchType: MatchExact, Replacement: "loop", Enabled: true},
	})

	out := e.Expand("loop")
	require.Len(t, out, 1)
	assert.Equal(t, "loop", out[0])
}

func TestExpander_DisabledAliasSkipped(t *testing.T) {
	e := NewExpander()
	e.SetAliases([]*Alias{
		{Pattern: "n", MatchType: MatchStartsWith, Replacement: "north", Enabled: false},
	})

	assert.Equal(t, []string{"n"}, e.Expand("n"))
}

func TestClassifyCommand_MetaCommandRoutedToBrowser(t *testing.T) {
	d := ClassifyCommand("#showme test")
	assert.Equal(t, "#showme test", d.MetaCommand)
	assert.Empty(t, d.MudCommands)
}

func TestClassifyCommand_RepeatCappedAtHundred(t *testing.T) {
	d := ClassifyCommand("#500 kick")
	require.Len(t, d.MudCommands, 100)
	for _, c := range d.MudCommands {
		assert.Equal(t, "kick", c)
	}
}

func TestClassifyCommand_PlainCommand(t *testing.T) {
	d := ClassifyCommand("look")
	assert.Equal(t, []string{"look"}, d.MudCommands)
	assert.Empty(t, d.MetaCommand)
}
