package session

import (
	"testing"

	"github.com/nduval/muxproxy/internal/script"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	sent   []any
	closed bool
}

func (f *fakeSink) Send(v any) error {
	f.sent = append(f.sent, v)
	return nil
}

func (f *fakeSink) Close() error {
	f.closed = true
	return nil
}

func newTestSession() *Session {
	return New("a1b2c3d4")
}

func TestProcessLine_ForwardsPlainLine(t *testing.T) {
	s := newTestSession()
	sink := &fakeSink{}
	s.AttachWS(sink)

	s.processLine("You are standing in a clearing.")

	require.Len(t, sink.sent, 1)
	line, ok := sink.sent[0].(MudLine)
	require.True(t, ok)
	assert.Equal(t, "You are standing in a clearing.", line.Line)
}

func TestProcessLine_TriggerGagSuppressesLine(t *testing.T) {
	s := newTestSession()
	sink := &fakeSink{}
	s.AttachWS(sink)
	s.Triggers.SetTriggers([]*script.Trigger{
		{ID: "t1", Pattern: "^%1 tells you '%2'", Enabled: true, Actions: []script.Action{
			{Kind: script.ActionGag},
			{Kind: script.ActionCommand, Template: "reply %1 got it: %2"},
		}},
	})

	s.processLine("Alice tells you 'hello'")

	assert.Empty(t, sink.sent)
}

func TestProcessLine_MIPConsumesOwnFrame(t *testing.T) {
	s := newTestSession()
	sink := &fakeSink{}
	s.AttachWS(sink)
	s.MIP.Enabled = true
	s.MIP.MipID = "62395"

	s.processLine("You see a bird.#K%623950008AAC2.0 days")

	require.Len(t, sink.sent, 2)
	line, ok := sink.sent[0].(StatsSnapshot)
	require.True(t, ok)
	assert.Equal(t, "2d 0h", line.Stats.Reboot)

	mudLine, ok := sink.sent[1].(MudLine)
	require.True(t, ok)
	assert.Equal(t, "You see a bird.", mudLine.Line)
}

func TestHandleCommand_RawBypassesAliasExpansion(t *testing.T) {
	s := newTestSession()
	s.Aliases.SetAliases([]*script.Alias{
		{Pattern: "n", MatchType: script.MatchStartsWith, Replacement: "north", Enabled: true},
	})

	// No MUD socket attached; WriteMud is then a no-op, but we only assert
	// that raw mode does not crash or route through aliases.
	s.HandleCommand("n", true)
	assert.Nil(t, s.Mud())
}

func TestSendOrBuffer_BuffersWhenNoBrowser(t *testing.T) {
	s := newTestSession()
	s.SendOrBuffer(MudLine{Line: "hello"})

	assert.Equal(t, 1, s.Buffer.Len())
}

func TestSendOrBuffer_ClearsBufferOnTakeover(t *testing.T) {
	s := newTestSession()
	s.SendOrBuffer(MudLine{Line: "one"})
	s.SendOrBuffer(MudLine{Line: "two"})
	require.Equal(t, 2, s.Buffer.Len())

	sink := &fakeSink{}
	s.AttachWS(sink)
	s.Buffer.Clear()

	assert.Equal(t, 0, s.Buffer.Len())
}
