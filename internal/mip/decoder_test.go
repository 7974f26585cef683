package mip

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcess_KnownMipIDGagsOwnFrameAndUpdatesReboot(t *testing.T) {
	d := NewDecoder()
	d.Enabled = true
	d.MipID = "62395"

	res := d.Process("You see a bird.#K%623950110AAC3.7 days")

	assert.False(t, res.Consumed)
	assert.Equal(t, "You see a bird.", res.Residual)
	assert.True(t, res.StatsUpdated)
	assert.Equal(t, "3d 17h", d.Stats().Reboot)
}

// Intentional quirk: one leading ']' is trimmed from the text left around the
// session's own frame. This test pins that behaviour.
func TestProcess_TrimsLeadingBracketLeftByOwnFrame(t *testing.T) {
	d := NewDecoder()
	d.Enabled = true
	d.MipID = "62395"

	res := d.Process("]You see a bird.#K%623950008AAC2.0 days")

	assert.Equal(t, "You see a bird.", res.Residual)
	assert.Equal(t, "2d 0h", d.Stats().Reboot)
}

func TestProcess_FallsBackToGenericFrameWhenOwnIDAbsent(t *testing.T) {
	d := NewDecoder()
	d.Enabled = true
	d.MipID = "62395"

	res := d.Process("before %998870003BAEabc after")

	assert.True(t, res.Consumed)
	assert.Equal(t, "", res.Residual)
	assert.False(t, res.StatsUpdated)
}

func TestProcess_UnknownMipIDStripsEmbeddedFrameAndKeepsResidue(t *testing.T) {
	d := NewDecoder()
	d.Enabled = true

	res := d.Process("before %998870003BAEabc after")

	assert.Equal(t, "before  after", res.Residual)
	assert.False(t, res.Consumed)
}

func TestFindOwnFrame_PrefersKFormOverBareForm(t *testing.T) {
	line := "start %623950008BADBareRoom mid #K%623950005BADKRoom end"

	d := NewDecoder()
	d.Enabled = true
	d.MipID = "62395"

	d.Process(line)

	assert.Equal(t, "KRoom", d.Stats().RoomName)
}

func TestDispatch_FFFPopulatesStatsFields(t *testing.T) {
	d := NewDecoder()

	d.dispatch("FFF", "A~50~B~100~C~20~D~30~E~5~F~10~G~1~H~2~K~Orc~L~75~N~3")

	stats := d.Stats()
	assert.Equal(t, 50, stats.HPCurrent)
	assert.Equal(t, 100, stats.HPMax)
	assert.Equal(t, 20, stats.SPCurrent)
	assert.Equal(t, 30, stats.SPMax)
	assert.Equal(t, 5, stats.GP1Current)
	assert.Equal(t, 10, stats.GP1Max)
	assert.Equal(t, 1, stats.GP2Current)
	assert.Equal(t, 2, stats.GP2Max)
	assert.Equal(t, "Orc", stats.EnemyName)
	assert.Equal(t, 75, stats.EnemyPercent)
	assert.Equal(t, 3, stats.Round)
}

func TestDispatch_BABClassifiesTellDirection(t *testing.T) {
	d := NewDecoder()

	out := d.applyBAB("x~Bob~hello there")
	require.NotNil(t, out)
	assert.Equal(t, "tell_out", out.ChatType)
	assert.Equal(t, "Bob", out.RawText)
	assert.Equal(t, "hello there", out.Message)

	in := d.applyBAB("~Alice~hi")
	require.NotNil(t, in)
	assert.Equal(t, "tell_in", in.ChatType)
	assert.Equal(t, "Alice", in.RawText)
}

func TestDispatch_CAAFiltersDivvyNoise(t *testing.T) {
	d := NewDecoder()

	chat := d.applyCAA("ooc~Hello everyone")
	require.NotNil(t, chat)
	assert.Equal(t, "channel", chat.ChatType)
	assert.Equal(t, "ooc", chat.Channel)
	assert.Equal(t, "Hello everyone", chat.Message)

	noise := d.applyCAA("ooc~Bob divides 100 coins among the group")
	assert.Nil(t, noise)
}

func TestDeriveGuildVars_EarlierPassIsNeverOverwritten(t *testing.T) {
	raw := "Hp:[50/100] Foo:[50%] Status:[Ready]"
	colorized := "Foo: 99%"

	vars := deriveGuildVars(raw, colorized)

	assert.Equal(t, "50", vars["hp_current"])
	assert.Equal(t, "100", vars["hp_max"])
	assert.Equal(t, "50", vars["foo_pct"], "bracketed-%% pass runs before the unbracketed pass and must win")
	assert.Equal(t, "Ready", vars["status"])
}

func TestRenderDaysHours_RollsHoursIntoWholeDayAtBoundary(t *testing.T) {
	assert.Equal(t, "4d 0h", renderDaysHours("3.999 days"))
	assert.Equal(t, "17h", renderDaysHours("0.7 days"))
}
