// Package mip decodes the in-band MIP side-channel embedded in a MUD's
// text stream: fixed-length frames carrying HP/SP/room/chat state, recognized
// either bare (`%<mipId><len><type><data>`) or prefixed (`#K%...`).
package mip

import (
	"regexp"
	"strconv"
	"strings"
)

// genericFrame matches any MIP-shaped header regardless of which session's
// mipId it carries — used to recognize and consume frames that belong to
// someone else's client sharing the same line.
var genericFrame = regexp.MustCompile(`%(\d{5})(\d{4})([A-Z]{3})`)

// Chat is emitted for chat-shaped MIP messages (tells, channel lines).
type Chat struct {
	ChatType string // "tell_in", "tell_out", or "channel"
	Channel  string
	Raw      string
	RawText  string // sender/recipient or channel label
	Message  string
}

// Debug carries the raw type/data for a decoded frame when debug mode is on.
type Debug struct {
	MsgType string
	MsgData string
}

// Result is the outcome of processing one line through the decoder.
type Result struct {
	Consumed     bool // the MIP frame fully owns this line; nothing goes to the browser
	Residual     string // remaining text (possibly empty) to continue down the pipeline
	StatsUpdated bool
	Chat         *Chat
	Debug        *Debug
}

// Decoder holds per-session MIP state: whether decoding is enabled, the
// session's own mipId, and the accumulated Stats record.
type Decoder struct {
	Enabled bool
	MipID   string
	Debug   bool

	stats *Stats
}

// NewDecoder creates a decoder with MIP parsing disabled by default.
func NewDecoder() *Decoder {
	return &Decoder{stats: newStats()}
}

// Stats returns a snapshot of the current stats record.
func (d *Decoder) Stats() *Stats {
	return d.stats.Clone()
}

// Process decodes MIP frames out of one line, which must already have
// passed through telnet/ANSI handling. It always runs before trigger
// evaluation.
func (d *Decoder) Process(line string) Result {
	if !d.Enabled {
		return Result{Residual: line}
	}

	if d.MipID == "" {
		return d.processUnknownID(line)
	}
	return d.processKnownID(line)
}

// processUnknownID strips every embedded MIP frame (both forms) from the
// line and emits whatever residue remains.
func (d *Decoder) processUnknownID(line string) Result {
	residual := line
	for {
		loc, _, typ, data, consumedSpan := findAnyFrame(residual)
		if loc == nil {
			break
		}
		d.dispatch(typ, data)
		residual = residual[:loc[0]] + residual[consumedSpan:]
	}
	if residual == "" {
		return Result{Consumed: true, StatsUpdated: true}
	}
	return Result{Residual: residual}
}

// processKnownID looks first for a frame carrying the session's own mipId
// (either `#K%<id>...` or bare `%<id>...`); if found, the surrounding text
// continues to the trigger engine (with a leading ']' trimmed, per the
// documented quirk). Otherwise falls back to the generic rule: any MIP-shaped
// frame for any id consumes the whole line.
func (d *Decoder) processKnownID(line string) Result {
	if start, end, typ, data, ok := findOwnFrame(line, d.MipID); ok {
		before := line[:start]
		after := line[end:]
		surrounding := trimLeadingBracket(before + after)
		res := d.dispatch(typ, data)
		res.Residual = surrounding
		res.Consumed = false
		return res
	}

	loc := genericFrame.FindStringSubmatchIndex(line)
	if loc == nil {
		return Result{Residual: line}
	}
	_, _, typ, data := parseGenericAt(line, loc)
	res := d.dispatch(typ, data)
	res.Consumed = true
	res.Residual = ""
	return res
}

func trimLeadingBracket(s string) string {
	return strings.TrimPrefix(s, "]")
}

// findAnyFrame locates the first MIP-shaped header anywhere in s (regardless
// of id), in either #K%-prefixed or bare form, and returns its match bounds,
// type, data, and the end offset of the consumed span (header + data).
func findAnyFrame(s string) (loc []int, headerEnd int, typ, data string, consumedEnd int) {
	idx := strings.Index(s, "#K%")
	bareIdx := genericFrame.FindStringIndex(s)

	useKForm := false
	if idx >= 0 {
		// Validate the #K% form actually has a genuine MIP header following it.
		sub := s[idx+3:]
		if m := genericFrame.FindStringIndex(sub); m != nil && m[0] == 0 {
			useKForm = true
		} else {
			idx = -1
		}
	}

	if useKForm {
		sub := s[idx+3:]
		m := genericFrame.FindStringSubmatch(sub)
		mi := genericFrame.FindStringSubmatchIndex(sub)
		length, _ := strconv.Atoi(m[2])
		typ = m[3]
		headerEnd = idx + 3 + mi[1]
		dataEnd := headerEnd + length
		if dataEnd > len(s) {
			dataEnd = len(s)
		}
		data = s[headerEnd:dataEnd]
		return []int{idx, headerEnd}, headerEnd, typ, data, dataEnd
	}

	if bareIdx == nil {
		return nil, 0, "", "", 0
	}
	m := genericFrame.FindStringSubmatch(s)
	mi := genericFrame.FindStringSubmatchIndex(s)
	length, _ := strconv.Atoi(m[2])
	typ = m[3]
	headerEnd = mi[1]
	dataEnd := headerEnd + length
	if dataEnd > len(s) {
		dataEnd = len(s)
	}
	data = s[headerEnd:dataEnd]
	return []int{mi[0], headerEnd}, headerEnd, typ, data, dataEnd
}

// findOwnFrame looks specifically for a frame carrying mipId, preferring the
// `#K%<id>...` form over the bare `%<id>...` form.
func findOwnFrame(s, mipID string) (start, end int, typ, data string, ok bool) {
	kPattern := regexp.MustCompile(`#K%` + regexp.QuoteMeta(mipID) + `(\d{4})([A-Z]{3})`)
	if loc := kPattern.FindStringSubmatchIndex(s); loc != nil {
		length, _ := strconv.Atoi(s[loc[2]:loc[3]])
		typ = s[loc[4]:loc[5]]
		dataStart := loc[1]
		dataEnd := dataStart + length
		if dataEnd > len(s) {
			dataEnd = len(s)
		}
		return loc[0], dataEnd, typ, s[dataStart:dataEnd], true
	}

	bPattern := regexp.MustCompile(`%` + regexp.QuoteMeta(mipID) + `(\d{4})([A-Z]{3})`)
	if loc := bPattern.FindStringSubmatchIndex(s); loc != nil {
		length, _ := strconv.Atoi(s[loc[2]:loc[3]])
		typ = s[loc[4]:loc[5]]
		dataStart := loc[1]
		dataEnd := dataStart + length
		if dataEnd > len(s) {
			dataEnd = len(s)
		}
		return loc[0], dataEnd, typ, s[dataStart:dataEnd], true
	}

	return 0, 0, "", "", false
}

func parseGenericAt(s string, loc []int) (start, end int, typ, data string) {
	length, _ := strconv.Atoi(s[loc[2]:loc[3]])
	typ = s[loc[4]:loc[5]]
	dataStart := loc[1]
	dataEnd := dataStart + length
	if dataEnd > len(s) {
		dataEnd = len(s)
	}
	return loc[0], dataEnd, typ, s[dataStart:dataEnd]
}

// dispatch applies a decoded frame's effect to Stats, returning a Result
// with StatsUpdated/Chat/Debug populated as appropriate. Residual/Consumed
// are left for the caller to set based on which rule matched.
func (d *Decoder) dispatch(typ, data string) Result {
	res := Result{}
	if d.Debug {
		res.Debug = &Debug{MsgType: typ, MsgData: data}
	}

	switch typ {
	case "FFF":
		d.applyFFF(data)
		res.StatsUpdated = true
	case "BAD":
		d.stats.RoomName = stripRoomSuffix(data)
		res.StatsUpdated = true
	case "DDD":
		parts := strings.Split(data, "~")
		d.stats.Exits = strings.Join(parts, ",")
		res.StatsUpdated = true
	case "BBA":
		d.stats.GP1Label = data
		res.StatsUpdated = true
	case "BBB":
		d.stats.GP2Label = data
		res.StatsUpdated = true
	case "BBC":
		d.stats.HPLabel = data
		res.StatsUpdated = true
	case "BBD":
		d.stats.SPLabel = data
		res.StatsUpdated = true
	case "BAB":
		res.Chat = d.applyBAB(data)
	case "CAA":
		res.Chat = d.applyCAA(data)
	case "AAC":
		d.stats.Reboot = renderDaysHours(data)
		res.StatsUpdated = true
	case "AAF":
		d.stats.Uptime = renderDaysHours(data)
		res.StatsUpdated = true
	case "BAE", "HAA", "HAB":
		// recognized and ignored
	}
	return res
}

func (d *Decoder) applyFFF(data string) {
	parts := strings.Split(data, "~")
	for i := 0; i+1 < len(parts); i += 2 {
		key := parts[i]
		val := parts[i+1]
		switch key {
		case "A":
			d.stats.HPCurrent = atoi(val)
		case "B":
			d.stats.HPMax = atoi(val)
		case "C":
			d.stats.SPCurrent = atoi(val)
		case "D":
			d.stats.SPMax = atoi(val)
		case "E":
			d.stats.GP1Current = atoi(val)
		case "F":
			d.stats.GP1Max = atoi(val)
		case "G":
			d.stats.GP2Current = atoi(val)
		case "H":
			d.stats.GP2Max = atoi(val)
		case "K":
			d.stats.EnemyName = val
		case "L":
			d.stats.EnemyPercent = atoi(val)
		case "N":
			d.stats.Round = atoi(val)
		case "I":
			d.stats.GuildRaw = val
		case "J":
			d.stats.GuildColorized = colorizeInline(val)
		}
	}
	d.stats.GuildVars = deriveGuildVars(d.stats.GuildRaw, d.stats.GuildColorized)
}

func (d *Decoder) applyBAB(data string) *Chat {
	parts := strings.SplitN(data, "~", 3)
	if len(parts) != 3 {
		return nil
	}
	chatType := "tell_in"
	rawText := parts[1]
	if parts[0] == "x" {
		chatType = "tell_out"
	}
	return &Chat{
		ChatType: chatType,
		Channel:  "tell",
		Raw:      data,
		RawText:  rawText,
		Message:  colorizeInline(parts[2]),
	}
}

func (d *Decoder) applyCAA(data string) *Chat {
	parts := strings.Split(data, "~")
	if len(parts) < 2 {
		return nil
	}
	channel := strings.ToLower(parts[0])
	msg := parts[len(parts)-1]
	if isDivvyNoise(msg) {
		return nil
	}
	return &Chat{
		ChatType: "channel",
		Channel:  channel,
		Raw:      data,
		RawText:  channel,
		Message:  colorizeInline(msg),
	}
}

func isDivvyNoise(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "divides") && strings.Contains(lower, "coin")
}

func atoi(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}
