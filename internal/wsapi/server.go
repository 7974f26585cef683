package wsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"time"

	"github.com/coder/websocket"

	"github.com/nduval/muxproxy/internal/config"
	"github.com/nduval/muxproxy/internal/discord"
	"github.com/nduval/muxproxy/internal/logger"
	"github.com/nduval/muxproxy/internal/mip"
	"github.com/nduval/muxproxy/internal/script"
	"github.com/nduval/muxproxy/internal/session"
)

// tokenPattern enforces the exactly-64-hex-characters auth contract.
var tokenPattern = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)

// Handler upgrades incoming HTTP requests to WebSocket connections and runs
// the per-connection auth-first dispatcher loop.
type Handler struct {
	Store  *session.Store
	Config config.ServerConfig
	// DefaultScripts, if set, seeds every newly created session's trigger,
	// alias, and ticker engines before it sends session_new.
	DefaultScripts *script.Bundle
}

// NewHandler creates a wsapi Handler bound to a session store and config.
func NewHandler(store *session.Store, cfg config.ServerConfig) *Handler {
	return &Handler{Store: store, Config: cfg}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		logger.Warn("wsapi: accept failed", "err", err)
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	wc := &wsConn{conn: conn, ctx: ctx}

	sess, ok := h.authenticate(ctx, conn, wc)
	if !ok {
		return
	}
	defer sess.DetachWS()

	h.dispatchLoop(ctx, conn, sess)
}

// wsConn adapts *websocket.Conn to session.OutboundSink, translating the
// session package's internal event structs into wire envelopes.
type wsConn struct {
	conn *websocket.Conn
	ctx  context.Context
}

func (w *wsConn) Send(v any) error {
	msg := toWireMessage(v)
	if msg == nil {
		return nil
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return w.conn.Write(w.ctx, websocket.MessageText, data)
}

func (w *wsConn) Close() error {
	return w.conn.Close(websocket.StatusNormalClosure, "takeover")
}

// toWireMessage converts a session-package output event into its wire
// representation. Unknown types are dropped (nil) rather than sent raw.
func toWireMessage(v any) any {
	switch e := v.(type) {
	case session.MudLine:
		return MudMsg{Type: TypeMud, Line: e.Line, Highlight: toHighlightWire(e.Highlights), Sound: e.Sound}
	case session.StatsSnapshot:
		return MIPStatsMsg{Type: TypeMIPStats, Stats: e.Stats}
	case session.ChatEvent:
		c := e.Chat
		return MIPChatMsg{Type: TypeMIPChat, ChatType: c.ChatType, Channel: c.Channel, Raw: c.Raw, RawText: c.RawText, Message: c.Message}
	case session.TriggerDisabled:
		return DisableTriggerMsg{Type: TypeDisableTrigger, TriggerID: e.TriggerID}
	case session.SystemNotice:
		return SystemMsg{Type: TypeSystem, Message: e.Message}
	case session.ClientCommand:
		return ClientCommandMsg{Type: TypeClientCommand, Command: e.Command}
	case session.TriggerChatmon:
		return TriggerChatmonMsg{Type: TypeTriggerChatmon, Message: e.Message, Channel: e.Channel}
	case *mip.Debug:
		return MIPDebugMsg{Type: TypeMIPDebug, MsgType: e.MsgType, MsgData: e.MsgData}
	default:
		return v // already wire-shaped (e.g. outbound messages built directly in this package)
	}
}

func toHighlightWire(hs []script.Highlight) []HighlightWire {
	if len(hs) == 0 {
		return nil
	}
	out := make([]HighlightWire, len(hs))
	for i, h := range hs {
		out[i] = HighlightWire{Start: h.Start, End: h.End, FG: h.FG, BG: h.BG, Blink: h.Blink, Underline: h.Underline}
	}
	return out
}

// authenticate reads the first frame, which must be a valid `auth` message,
// and performs the store's takeover algorithm. Returns ok=false if the
// connection should be closed (already handled).
func (h *Handler) authenticate(ctx context.Context, conn *websocket.Conn, wc *wsConn) (*session.Session, bool) {
	_, data, err := conn.Read(ctx)
	if err != nil {
		return nil, false
	}

	var auth AuthMsg
	if err := json.Unmarshal(data, &auth); err != nil || auth.Type != TypeAuth {
		h.closeWithError(ctx, conn, "first frame must be auth")
		return nil, false
	}
	if !tokenPattern.MatchString(auth.Token) {
		h.closeWithError(ctx, conn, "invalid token")
		return nil, false
	}

	res := h.Store.Authenticate(auth.Token, auth.UserID, auth.CharacterID, auth.CharacterName, auth.IsWizard)

	if res.Evicted != nil {
		res.Evicted.Post(func(s *session.Session) {
			s.SendOrBuffer(SessionTakenMsg{Type: TypeSessionTaken, Message: "logged in from another device"})
		})
		res.Evicted.Close()
	}

	sess := res.Session
	switch res.Outcome {
	case "resumed":
		sess.Post(func(s *session.Session) {
			s.AttachWS(wc)
			s.Buffer.Clear()
			s.SendOrBuffer(SessionResumedMsg{Type: TypeSessionResumed, MudConnected: s.MudAlive()})
			stats := s.MIP.Stats()
			if stats.HPMax > 0 {
				s.SendOrBuffer(session.StatsSnapshot{Stats: stats})
			}
		})
	default:
		sess.Post(func(s *session.Session) {
			h.DefaultScripts.Apply(s.Triggers, s.Aliases, s.Tickers)
			s.AttachWS(wc)
			s.SendOrBuffer(SessionNewMsg{Type: TypeSessionNew})
		})
	}

	return sess, true
}

func (h *Handler) closeWithError(ctx context.Context, conn *websocket.Conn, message string) {
	data, _ := json.Marshal(ErrorMsg{Type: TypeError, Message: message})
	_ = conn.Write(ctx, websocket.MessageText, data)
	_ = conn.Close(websocket.StatusPolicyViolation, message)
}

// dispatchLoop reads frames until the connection closes, posting each to
// the session's owned goroutine for serialized handling.
func (h *Handler) dispatchLoop(ctx context.Context, conn *websocket.Conn, sess *session.Session) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}

		if h.handleControlMessage(ctx, conn, sess, env.Type, data) {
			if env.Type == TypeDisconnect {
				return
			}
			continue
		}

		payload := append([]byte(nil), data...)
		sess.Post(func(s *session.Session) {
			h.dispatch(s, env.Type, payload)
		})
	}
}

// handleControlMessage handles the two request/response message types that
// must reply synchronously regardless of session queue depth (keepalive,
// health_check), so a slow scripting backlog never makes a live connection
// look like a zombie, and `disconnect`, which flags the session for explicit
// disconnect before the read loop ends. Returns true if it handled (or
// intentionally ignored) the message type.
func (h *Handler) handleControlMessage(ctx context.Context, conn *websocket.Conn, sess *session.Session, typ string, data []byte) bool {
	switch typ {
	case TypeKeepalive:
		out, _ := json.Marshal(KeepaliveAckMsg{Type: TypeKeepaliveAck})
		_ = conn.Write(ctx, websocket.MessageText, out)
		return true
	case TypeHealthCheck:
		out, _ := json.Marshal(HealthOKMsg{Type: TypeHealthOK})
		_ = conn.Write(ctx, websocket.MessageText, out)
		return true
	case TypeDisconnect:
		sess.Post(func(s *session.Session) {
			s.ExplicitDisconnect = true
		})
		return true
	}
	return false
}

// dispatch applies one post-auth message on the session's owned goroutine.
func (h *Handler) dispatch(s *session.Session, typ string, data []byte) {
	switch typ {
	case TypeCommand:
		var m CommandMsg
		if json.Unmarshal(data, &m) == nil {
			s.HandleCommand(m.Command, m.Raw)
		}
	case TypeSetTriggers:
		var m SetTriggersMsg
		if json.Unmarshal(data, &m) == nil {
			s.Triggers.SetTriggers(toTriggers(m.Triggers))
		}
	case TypeSetAliases:
		var m SetAliasesMsg
		if json.Unmarshal(data, &m) == nil {
			s.Aliases.SetAliases(toAliases(m.Aliases))
		}
	case TypeSetTickers:
		var m SetTickersMsg
		if json.Unmarshal(data, &m) == nil {
			s.Tickers.SetTickers(toTickers(m.Tickers))
		}
	case TypeSetMIP:
		var m SetMIPMsg
		if json.Unmarshal(data, &m) == nil {
			s.MIP.Enabled = m.Enabled
			s.MIP.MipID = m.MipID
			s.MIP.Debug = m.Debug
		}
	case TypeSetDiscordPrefs:
		var m SetDiscordPrefsMsg
		if json.Unmarshal(data, &m) == nil {
			s.DiscordUsername = m.Username
			prefs := make(map[string]session.ChannelPref, len(m.ChannelPrefs))
			for ch, p := range m.ChannelPrefs {
				webhook := p.WebhookURL
				if webhook != "" && !discord.IsWebhookURL(webhook) {
					webhook = ""
				}
				prefs[ch] = session.ChannelPref{Sound: p.Sound, Hidden: p.Hidden, Discord: p.Discord, WebhookURL: webhook}
			}
			s.DiscordPrefs = prefs
		}
	case TypeSetServer:
		var m SetServerMsg
		if json.Unmarshal(data, &m) == nil {
			h.connectMud(s, m.Host, m.Port)
		}
	case TypeReconnect:
		h.reconnectMud(s)
	case TypeTestLine:
		var m TestLineMsg
		if json.Unmarshal(data, &m) == nil {
			s.TestLine(m.Line)
		}
	}
}

// connectMud validates (host, port) against the whitelist and dials the MUD
// server, wiring its read loop to feed the session.
func (h *Handler) connectMud(s *session.Session, host string, port int) {
	if !h.Config.Allowed(host, port) {
		s.SendOrBuffer(ErrorMsg{Type: TypeError, Message: "server not in whitelist"})
		return
	}

	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		s.SendOrBuffer(ErrorMsg{Type: TypeError, Message: "connect failed: " + err.Error()})
		return
	}

	s.SetMud(conn)
	h.Store.Audit.Record(s.Token, session.AuditMudConnected, time.Now())
	s.SendOrBuffer(SystemMsg{Type: TypeSystem, Message: "connected to " + addr})

	go readMudLoop(h.Store, s, conn)
}

// reconnectMud closes any existing MUD socket via ClearMud before the caller
// issues a new set_server. The line buffer, packet-patch timer, MIP state and
// ANSI carry are reset by SetMud when that set_server connects.
func (h *Handler) reconnectMud(s *session.Session) {
	s.ClearMud()
	s.SendOrBuffer(SystemMsg{Type: TypeSystem, Message: "disconnected, ready to reconnect"})
}

// readMudLoop owns the MUD socket's read side; every chunk is handed to the
// session's queue so line assembly and scripting stay serialized with
// everything else.
func readMudLoop(store *session.Store, s *session.Session, conn net.Conn) {
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			s.Post(func(sess *session.Session) {
				sess.FeedMudData(chunk)
			})
		}
		if err != nil {
			store.Audit.Record(s.Token, session.AuditMudClosed, time.Now())
			s.Post(func(sess *session.Session) {
				if sess.Mud() == conn {
					sess.ClearMud()
					if !sess.ExplicitDisconnect {
						sess.SendOrBuffer(SystemMsg{Type: TypeSystem, Message: "MUD connection closed"})
					}
				}
			})
			return
		}
	}
}

func toTriggers(wire []TriggerWire) []*script.Trigger {
	out := make([]*script.Trigger, 0, len(wire))
	for _, t := range wire {
		out = append(out, &script.Trigger{
			ID: t.ID, Name: t.Name, Pattern: t.Pattern, Enabled: t.Enabled,
			Actions: toActions(t.Actions),
		})
	}
	return out
}

func toActions(wire []ActionWire) []script.Action {
	out := make([]script.Action, 0, len(wire))
	for _, a := range wire {
		out = append(out, script.Action{
			Kind:              script.ActionKind(a.Kind),
			Template:          a.Template,
			FG:                a.FG,
			BG:                a.BG,
			Blink:             a.Blink,
			Underline:         a.Underline,
			SoundName:         a.SoundName,
			DiscordWebhookURL: a.DiscordWebhookURL,
			Channel:           a.Channel,
		})
	}
	return out
}

func toAliases(wire []AliasWire) []*script.Alias {
	out := make([]*script.Alias, 0, len(wire))
	for _, a := range wire {
		out = append(out, &script.Alias{
			Pattern: a.Pattern, MatchType: script.MatchType(a.MatchType), Replacement: a.Replacement, Enabled: a.Enabled,
		})
	}
	return out
}

func toTickers(wire []TickerWire) []*script.Ticker {
	out := make([]*script.Ticker, 0, len(wire))
	for _, t := range wire {
		out = append(out, &script.Ticker{
			ID: t.ID, Command: t.Command, Interval: time.Duration(t.Interval) * time.Second, Enabled: t.Enabled,
		})
	}
	return out
}
