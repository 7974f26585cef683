// Package session implements the per-session state machine: one owned
// goroutine per session draining a command queue, so every mutation of a
// session's MUD connection, scripting state, and buffer is serialized
// without field-level locking.
package session

import (
	"net"
	"time"

	"github.com/nduval/muxproxy/internal/ansi"
	"github.com/nduval/muxproxy/internal/logger"
	"github.com/nduval/muxproxy/internal/mip"
	"github.com/nduval/muxproxy/internal/script"
	"github.com/nduval/muxproxy/internal/telnet"
)

// OutboundSink is the minimal surface a session needs from its attached
// browser connection. internal/wsapi's websocket wrapper implements this.
type OutboundSink interface {
	Send(v any) error
	Close() error
}

// Session holds all per-connection state for one authenticated browser/MUD
// pairing. Every field below is touched only from the goroutine started by
// Run — external callers must go through Post.
type Session struct {
	Token         string
	UserID        string
	CharacterID   string
	CharacterName string
	IsWizard      bool

	ws   OutboundSink
	mud  net.Conn

	Assembler *telnet.Assembler
	ANSI      *ansi.Tracker
	MIP       *mip.Decoder
	Triggers  *script.Engine
	Aliases   *script.Expander
	Tickers   *script.Scheduler

	Buffer *RingBuffer

	DisconnectedAt     time.Time
	ExplicitDisconnect bool

	Vars map[string]string // session variable scope for $name side-effect substitution

	DiscordUsername string
	DiscordPrefs    map[string]ChannelPref // channel name -> server-side notification routing

	cmds chan func(*Session)
	done chan struct{}
}

// ChannelPref is the server-side notification routing recorded per MIP chat
// channel via `set_discord_prefs`.
type ChannelPref struct {
	Sound      bool
	Hidden     bool
	Discord    bool
	WebhookURL string
}

// New creates a session in the disconnected state (no browser, no MUD
// socket). The caller must call Run before Post-ing any work.
func New(token string) *Session {
	s := &Session{
		Token:     token,
		ANSI:      &ansi.Tracker{},
		MIP:       mip.NewDecoder(),
		Triggers:  script.NewEngine(),
		Aliases:   script.NewExpander(),
		Buffer:       NewRingBuffer(DefaultRingCapacity),
		Vars:         make(map[string]string),
		DiscordPrefs: make(map[string]ChannelPref),
		cmds:         make(chan func(*Session), 256),
		done:         make(chan struct{}),
	}
	s.Assembler = telnet.NewAssembler(func(partial []byte) {
		s.Post(func(sess *Session) {
			sess.handlePacketPatch(string(partial))
		})
	})
	s.Tickers = script.NewScheduler(s.Aliases, func() bool { return s.mud != nil }, func(t *script.Ticker, expanded []string) {
		s.Post(func(sess *Session) {
			sess.dispatchTickerCommands(expanded)
		})
	})
	return s
}

// Run drains the command queue on the calling goroutine until Close is
// called. Callers should invoke this in its own goroutine per session.
func (s *Session) Run() {
	for {
		select {
		case fn := <-s.cmds:
			fn(s)
		case <-s.done:
			s.drainRemaining()
			return
		}
	}
}

func (s *Session) drainRemaining() {
	for {
		select {
		case fn := <-s.cmds:
			fn(s)
		default:
			return
		}
	}
}

// Post enqueues fn to run on the session's owned goroutine. Safe to call
// from any goroutine (WebSocket reader, MUD reader, ticker, store sweep).
func (s *Session) Post(fn func(*Session)) {
	select {
	case s.cmds <- fn:
	case <-s.done:
		logger.Debug("session: dropped post after close", "token", shortToken(s.Token))
	}
}

// Close stops Run and tears down the MUD socket and tickers. Idempotent.
func (s *Session) Close() {
	select {
	case <-s.done:
		return
	default:
		close(s.done)
	}
	s.Tickers.Close()
	s.Assembler.Close()
	if s.mud != nil {
		s.mud.Close()
		s.mud = nil
	}
}

// AttachWS attaches a browser connection, closing a prior one if present —
// the takeover path, implemented in store.go, calls this after already
// deciding a takeover should occur.
func (s *Session) AttachWS(ws OutboundSink) {
	if s.ws != nil {
		s.ws.Close()
	}
	s.ws = ws
	s.DisconnectedAt = time.Time{}
}

// DetachWS clears the browser connection without touching the MUD socket,
// recording the moment of disconnect for the idle-timeout sweep.
func (s *Session) DetachWS() {
	s.ws = nil
	s.DisconnectedAt = time.Now()
}

// HasBrowser reports whether a browser is currently attached.
func (s *Session) HasBrowser() bool {
	return s.ws != nil
}

// MudAlive reports whether the MUD socket is currently connected.
func (s *Session) MudAlive() bool {
	return s.mud != nil
}

// SetMud installs a newly-connected MUD socket, resetting all
// stream-derived state (line buffer, ANSI carry, MIP id) per the
// tear-down-before-reconnect rule.
func (s *Session) SetMud(conn net.Conn) {
	if s.mud != nil {
		s.mud.Close()
	}
	s.mud = conn
	s.Assembler.Close()
	s.Assembler = telnet.NewAssembler(func(partial []byte) {
		s.Post(func(sess *Session) {
			sess.handlePacketPatch(string(partial))
		})
	})
	s.ANSI.Reset()
	s.MIP = mip.NewDecoder()
}

// ClearMud detaches the MUD socket (e.g. on remote close) without deleting
// the session.
func (s *Session) ClearMud() {
	if s.mud != nil {
		s.mud.Close()
	}
	s.mud = nil
}

// Mud returns the current MUD connection, or nil.
func (s *Session) Mud() net.Conn {
	return s.mud
}

// SendOrBuffer serializes and sends msg to the attached browser, or appends
// it to the ring buffer if no browser is attached.
func (s *Session) SendOrBuffer(msg any) {
	if s.ws != nil {
		if err := s.ws.Send(msg); err != nil {
			logger.Warn("session: send failed, detaching browser", "token", shortToken(s.Token), "err", err)
			s.DetachWS()
			s.Buffer.Append(msg)
		}
		return
	}
	s.Buffer.Append(msg)
}

// WriteMud writes cmd to the MUD socket terminated by CR+LF. A no-op if no
// MUD socket is attached.
func (s *Session) WriteMud(cmd string) error {
	if s.mud == nil {
		return nil
	}
	_, err := s.mud.Write([]byte(cmd + "\r\n"))
	return err
}

func shortToken(token string) string {
	if len(token) > 8 {
		return token[:8]
	}
	return token
}
