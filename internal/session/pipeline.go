package session

import (
	"github.com/nduval/muxproxy/internal/mip"
	"github.com/nduval/muxproxy/internal/script"
)

// MudLine is emitted to the browser for one rendered, non-gagged line of
// MUD output, including any highlight spans and the last-wins trigger sound.
type MudLine struct {
	Line       string
	Highlights []script.Highlight
	Sound      string
}

// StatsSnapshot is emitted whenever a MIP frame updates the known stats.
type StatsSnapshot struct {
	Stats *mip.Stats
}

// ChatEvent is emitted for a decoded MIP chat frame (tell or channel).
type ChatEvent struct {
	Chat *mip.Chat
}

// TriggerDisabled is emitted when loop detection trips a trigger; the
// browser is expected to mark it disabled in its own UI state.
type TriggerDisabled struct {
	TriggerID string
}

// SystemNotice is a server-originated informational message, e.g. on
// takeover or MUD disconnect.
type SystemNotice struct {
	Message string
}

// ClientCommand is a meta-command (leading '#') that the session does not
// execute itself; it's handed back to the browser for UI-level handling.
type ClientCommand struct {
	Command string
}

// FeedMudData processes a freshly-read chunk of bytes from the MUD socket:
// telnet/line assembly, then per-line processing. Must be called from the
// session's owned goroutine (typically via Post from the MUD-reader
// goroutine).
func (s *Session) FeedMudData(data []byte) {
	lines, _ := s.Assembler.Feed(data)
	for _, line := range lines {
		s.processLine(line)
	}
}

// TestLine feeds a synthetic line through the same ANSI/MIP/trigger
// pipeline as real MUD output, used by the browser's `#showme` scripting
// test command via the `test_line` message.
func (s *Session) TestLine(line string) {
	s.processLine(line)
}

// handlePacketPatch is invoked when the telnet assembler's packet-patch
// timer releases an incomplete trailing line.
func (s *Session) handlePacketPatch(partial string) {
	s.processLine(partial)
}

// processLine runs one logical line through ANSI carry-over, MIP decoding,
// and the trigger engine, in that fixed order (MIP runs before triggers,
// never the reverse).
func (s *Session) processLine(line string) {
	line = s.ANSI.Apply(line)

	result := s.MIP.Process(line)
	if result.StatsUpdated {
		s.SendOrBuffer(StatsSnapshot{Stats: s.MIP.Stats()})
	}
	if result.Debug != nil {
		s.SendOrBuffer(result.Debug)
	}
	if result.Chat != nil {
		s.routeChat(result.Chat)
	}
	if result.Consumed {
		return
	}

	residual := result.Residual
	if residual == "" {
		return
	}

	applied := s.Triggers.Apply(residual)

	for _, id := range applied.LoopDetected {
		s.SendOrBuffer(TriggerDisabled{TriggerID: id})
	}
	for _, cmd := range applied.Commands {
		s.dispatchExpandedCommand(cmd)
	}
	for _, fx := range applied.SideEffects {
		s.dispatchSideEffect(fx)
	}

	if applied.Gag {
		return
	}

	s.SendOrBuffer(MudLine{
		Line:       applied.Line,
		Highlights: applied.Highlights,
		Sound:      applied.Sound,
	})
}

// TriggerChatmon is emitted to the browser for a fired `chatmon` trigger
// action, letting the UI route it to a separate chat-monitor pane.
type TriggerChatmon struct {
	Message string
	Channel string
}

// routeChat applies the session's per-channel discordChannelPrefs to a
// decoded MIP chat event: forwards to a Discord webhook if configured and
// suppresses the browser frame if the channel is marked hidden. The Sound
// preference is not read here; no sound is played by the session.
func (s *Session) routeChat(chat *mip.Chat) {
	pref, hasPref := s.DiscordPrefs[chat.Channel]

	if hasPref && pref.Discord && pref.WebhookURL != "" && discordSink != nil {
		_ = discordSink.Send(pref.WebhookURL, "**"+chat.Channel+"** "+chat.RawText+": "+chat.Message, s.DiscordUsername)
	}

	if hasPref && pref.Hidden {
		return
	}

	s.SendOrBuffer(ChatEvent{Chat: chat})
}

// DiscordSink delivers a trigger-queued discord side effect to an actual
// webhook; wired by cmd/muxproxyd to internal/discord.Client.
type DiscordSink interface {
	Send(webhookURL, message, username string) error
}

var discordSink DiscordSink

// WireDiscordSink installs the process-wide Discord delivery target. Called
// once at startup from cmd/muxproxyd.
func WireDiscordSink(sink DiscordSink) {
	discordSink = sink
}

func (s *Session) dispatchSideEffect(fx script.SideEffect) {
	message := script.ExpandVars(fx.Template, s.Vars)
	switch fx.Kind {
	case script.ActionDiscord:
		if discordSink != nil && fx.WebhookURL != "" {
			_ = discordSink.Send(fx.WebhookURL, message, s.DiscordUsername)
		}
	case script.ActionChatmon:
		s.SendOrBuffer(TriggerChatmon{Message: message, Channel: fx.Channel})
	}
}

// dispatchExpandedCommand classifies one already-expanded command string
// (from the trigger engine or alias expander) and routes it to the MUD
// socket or back to the browser as a meta-command.
func (s *Session) dispatchExpandedCommand(cmd string) {
	d := script.ClassifyCommand(cmd)
	if d.MetaCommand != "" {
		s.SendOrBuffer(ClientCommand{Command: d.MetaCommand})
		return
	}
	for _, mc := range d.MudCommands {
		_ = s.WriteMud(mc)
	}
}

// dispatchTickerCommands writes a ticker's alias-expanded commands out,
// applying the same meta-command/repeat classification as browser commands.
func (s *Session) dispatchTickerCommands(expanded []string) {
	for _, cmd := range expanded {
		s.dispatchExpandedCommand(cmd)
	}
}

// HandleCommand is the entry point for a browser-issued `command` message:
// expand via the alias expander unless raw, then dispatch each result.
func (s *Session) HandleCommand(command string, raw bool) {
	if raw {
		_ = s.WriteMud(command)
		return
	}
	for _, cmd := range s.Aliases.Expand(command) {
		s.dispatchExpandedCommand(cmd)
	}
}
