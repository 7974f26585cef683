// Package wsapi implements the browser-facing WebSocket JSON protocol: an
// auth-first tagged-union dispatcher sitting on top of a session.Session.
package wsapi

import "github.com/nduval/muxproxy/internal/mip"

// Inbound message type tags.
const (
	TypeAuth            = "auth"
	TypeCommand         = "command"
	TypeSetTriggers     = "set_triggers"
	TypeSetAliases      = "set_aliases"
	TypeSetTickers      = "set_tickers"
	TypeSetMIP          = "set_mip"
	TypeSetDiscordPrefs = "set_discord_prefs"
	TypeSetServer       = "set_server"
	TypeKeepalive       = "keepalive"
	TypeHealthCheck     = "health_check"
	TypeReconnect       = "reconnect"
	TypeTestLine        = "test_line"
	TypeDisconnect      = "disconnect"
)

// Outbound message type tags.
const (
	TypeSessionNew      = "session_new"
	TypeSessionResumed  = "session_resumed"
	TypeSessionTaken    = "session_taken"
	TypeError           = "error"
	TypeSystem          = "system"
	TypeMud             = "mud"
	TypeMIPStats        = "mip_stats"
	TypeMIPChat         = "mip_chat"
	TypeMIPDebug        = "mip_debug"
	TypeClientCommand   = "client_command"
	TypeDisableTrigger  = "disable_trigger"
	TypeTriggerChatmon  = "trigger_chatmon"
	TypeBroadcast       = "broadcast"
	TypeKeepaliveAck    = "keepalive_ack"
	TypeHealthOK        = "health_ok"
)

// Envelope is decoded first for every inbound frame to recover its type tag
// before unmarshaling into the concrete message struct.
type Envelope struct {
	Type string `json:"type"`
}

// --- Inbound messages ---

type AuthMsg struct {
	Type          string `json:"type"`
	Token         string `json:"token"`
	UserID        string `json:"userId,omitempty"`
	CharacterID   string `json:"characterId,omitempty"`
	CharacterName string `json:"characterName,omitempty"`
	IsWizard      bool   `json:"isWizard,omitempty"`
}

type CommandMsg struct {
	Type    string `json:"type"`
	Command string `json:"command"`
	Raw     bool   `json:"raw,omitempty"`
}

type TriggerWire struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Pattern string         `json:"pattern"`
	Enabled bool           `json:"enabled"`
	Actions []ActionWire   `json:"actions"`
}

type ActionWire struct {
	Kind              string `json:"kind"`
	Template          string `json:"template,omitempty"`
	FG                string `json:"fg,omitempty"`
	BG                string `json:"bg,omitempty"`
	Blink             bool   `json:"blink,omitempty"`
	Underline         bool   `json:"underline,omitempty"`
	SoundName         string `json:"soundName,omitempty"`
	DiscordWebhookURL string `json:"discordWebhookUrl,omitempty"`
	Channel           string `json:"channel,omitempty"`
}

type SetTriggersMsg struct {
	Type     string        `json:"type"`
	Triggers []TriggerWire `json:"triggers"`
}

type AliasWire struct {
	Pattern     string `json:"pattern"`
	MatchType   string `json:"matchType"`
	Replacement string `json:"replacement"`
	Enabled     bool   `json:"enabled"`
}

type SetAliasesMsg struct {
	Type    string      `json:"type"`
	Aliases []AliasWire `json:"aliases"`
}

type TickerWire struct {
	ID       string `json:"id"`
	Command  string `json:"command"`
	Interval int    `json:"interval"` // seconds
	Enabled  bool   `json:"enabled"`
}

type SetTickersMsg struct {
	Type    string       `json:"type"`
	Tickers []TickerWire `json:"tickers"`
}

type SetMIPMsg struct {
	Type    string `json:"type"`
	Enabled bool   `json:"enabled"`
	MipID   string `json:"mipId"`
	Debug   bool   `json:"debug"`
}

type ChannelPrefWire struct {
	Sound      bool   `json:"sound"`
	Hidden     bool   `json:"hidden"`
	Discord    bool   `json:"discord"`
	WebhookURL string `json:"webhookUrl,omitempty"`
}

type SetDiscordPrefsMsg struct {
	Type          string                     `json:"type"`
	Username      string                     `json:"username"`
	ChannelPrefs  map[string]ChannelPrefWire `json:"channelPrefs"`
}

type SetServerMsg struct {
	Type string `json:"type"`
	Host string `json:"host"`
	Port int    `json:"port"`
}

type TestLineMsg struct {
	Type string `json:"type"`
	Line string `json:"line"`
}

// --- Outbound messages ---

type SessionNewMsg struct {
	Type string `json:"type"`
}

type SessionResumedMsg struct {
	Type         string `json:"type"`
	MudConnected bool   `json:"mudConnected"`
}

type SessionTakenMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type ErrorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type SystemMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type MudMsg struct {
	Type      string          `json:"type"`
	Line      string          `json:"line"`
	Highlight []HighlightWire `json:"highlight,omitempty"`
	Sound     string          `json:"sound,omitempty"`
	Test      bool            `json:"test,omitempty"`
}

type HighlightWire struct {
	Start     int    `json:"start"`
	End       int    `json:"end"`
	FG        string `json:"fg,omitempty"`
	BG        string `json:"bg,omitempty"`
	Blink     bool   `json:"blink,omitempty"`
	Underline bool   `json:"underline,omitempty"`
}

type MIPStatsMsg struct {
	Type  string     `json:"type"`
	Stats *mip.Stats `json:"stats"`
}

type MIPChatMsg struct {
	Type     string `json:"type"`
	ChatType string `json:"chatType"`
	Channel  string `json:"channel"`
	Raw      string `json:"raw"`
	RawText  string `json:"rawText"`
	Message  string `json:"message"`
}

type MIPDebugMsg struct {
	Type    string `json:"type"`
	MsgType string `json:"msgType"`
	MsgData string `json:"msgData"`
}

type ClientCommandMsg struct {
	Type    string `json:"type"`
	Command string `json:"command"`
}

type DisableTriggerMsg struct {
	Type      string `json:"type"`
	TriggerID string `json:"triggerId"`
}

type TriggerChatmonMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Channel string `json:"channel"`
}

type BroadcastMsg struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

type KeepaliveAckMsg struct {
	Type string `json:"type"`
}

type HealthOKMsg struct {
	Type string `json:"type"`
}
