// Package script implements the server-side scripting surface: triggers,
// aliases, and tickers, evaluated against lines from the MUD and commands
// from the browser.
package script

import (
	"strings"
	"time"

	"github.com/nduval/muxproxy/internal/pattern"
)

// ActionKind enumerates the trigger action variants.
type ActionKind string

const (
	ActionGag        ActionKind = "gag"
	ActionHighlight  ActionKind = "highlight"
	ActionCommand    ActionKind = "command"
	ActionSubstitute ActionKind = "substitute"
	ActionSound      ActionKind = "sound"
	ActionDiscord    ActionKind = "discord"
	ActionChatmon    ActionKind = "chatmon"
)

// Action is one step of a trigger's ordered action list.
type Action struct {
	Kind ActionKind `yaml:"kind"`

	Template string `yaml:"template,omitempty"` // command, substitute, discord, chatmon

	FG        string `yaml:"fg,omitempty"` // highlight
	BG        string `yaml:"bg,omitempty"`
	Blink     bool   `yaml:"blink,omitempty"`
	Underline bool   `yaml:"underline,omitempty"`

	SoundName string `yaml:"soundName,omitempty"`

	DiscordWebhookURL string `yaml:"discordWebhookUrl,omitempty"`
	Channel           string `yaml:"channel,omitempty"` // chatmon
}

// Trigger is one rule in the ordered trigger set.
type Trigger struct {
	ID      string   `yaml:"id"`
	Name    string   `yaml:"name"`
	Pattern string   `yaml:"pattern"`
	Enabled bool     `yaml:"enabled"`
	Actions []Action `yaml:"actions"`

	compiled *pattern.Rule
	disabled bool // tripped by loop detection; sticky for the session
}

// compile lazily compiles the trigger's pattern, caching the result.
func (t *Trigger) compile() (*pattern.Rule, error) {
	if t.compiled == nil {
		r, err := pattern.Compile(t.Pattern)
		if err != nil {
			return nil, err
		}
		t.compiled = r
	}
	return t.compiled, nil
}

// Highlight describes a highlighted span in the rendered output.
type Highlight struct {
	Start, End int
	FG, BG     string
	Blink      bool
	Underline  bool
}

// SideEffect is a queued discord/chatmon notification awaiting `$name`
// variable substitution from the session scope by the outer dispatcher.
type SideEffect struct {
	Kind       ActionKind
	Template   string
	WebhookURL string
	Channel    string
}

// ApplyResult is the outcome of evaluating the trigger set over one line.
type ApplyResult struct {
	Line         string
	Gag          bool
	Highlights   []Highlight
	Commands     []string
	Sound        string
	SideEffects  []SideEffect
	LoopDetected []string // trigger IDs tripped this call
}

// loopWindow is the sliding window used for runaway-trigger detection.
const (
	loopWindow    = 2 * time.Second
	loopThreshold = 50
)

type loopState struct {
	count     int
	firstFire time.Time
}

// Engine evaluates an ordered trigger set against lines, tracking per-session
// loop-detection state and permanently-disabled (tripped) triggers.
type Engine struct {
	triggers []*Trigger
	loops    map[string]*loopState
}

// NewEngine creates an engine with no triggers configured.
func NewEngine() *Engine {
	return &Engine{loops: make(map[string]*loopState)}
}

// SetTriggers atomically replaces the active trigger set. Loop-tripped state
// from before the replacement is discarded, so a re-sent rule set always
// starts with a clean slate rather than inheriting a stale trip.
func (e *Engine) SetTriggers(triggers []*Trigger) {
	e.triggers = triggers
	e.loops = make(map[string]*loopState)
}

// Apply runs the engine's ordered trigger set over line.
func (e *Engine) Apply(line string) ApplyResult {
	res := ApplyResult{Line: line}

	for _, t := range e.triggers {
		if !t.Enabled || t.disabled {
			continue
		}

		rule, err := t.compile()
		if err != nil {
			continue
		}

		start, end, captures, ok := rule.MatchSpan(res.Line)
		if !ok {
			continue
		}

		if e.trip(t) {
			res.LoopDetected = append(res.LoopDetected, t.ID)
			t.disabled = true
			continue
		}

		res.Line, start, end = e.runActions(t, res.Line, start, end, captures, &res)
	}

	return res
}

// trip advances the sliding-window loop counter for t and reports whether
// this fire trips the 50-in-2-second threshold (the 50th fire itself is
// tripped and its actions are skipped).
func (e *Engine) trip(t *Trigger) bool {
	now := time.Now()
	st, ok := e.loops[t.ID]
	if !ok || now.Sub(st.firstFire) > loopWindow {
		e.loops[t.ID] = &loopState{count: 1, firstFire: now}
		return false
	}
	st.count++
	return st.count >= loopThreshold
}

func (e *Engine) runActions(t *Trigger, line string, start, end int, captures []string, res *ApplyResult) (string, int, int) {
	for _, act := range t.Actions {
		switch act.Kind {
		case ActionGag:
			res.Gag = true
		case ActionHighlight:
			res.Highlights = append(res.Highlights, Highlight{
				Start: start, End: end,
				FG: act.FG, BG: act.BG,
				Blink: act.Blink, Underline: act.Underline,
			})
		case ActionSubstitute:
			replacement := pattern.Substitute(act.Template, captures)
			line = line[:start] + replacement + line[end:]
			end = start + len(replacement)
		case ActionCommand:
			res.Commands = append(res.Commands, pattern.Substitute(act.Template, captures))
		case ActionSound:
			res.Sound = act.SoundName
		case ActionDiscord:
			res.SideEffects = append(res.SideEffects, SideEffect{
				Kind:       ActionDiscord,
				Template:   pattern.Substitute(act.Template, captures),
				WebhookURL: act.DiscordWebhookURL,
			})
		case ActionChatmon:
			res.SideEffects = append(res.SideEffects, SideEffect{
				Kind:     ActionChatmon,
				Template: pattern.Substitute(act.Template, captures),
				Channel:  act.Channel,
			})
		}
	}
	return line, start, end
}

// ExpandVars substitutes `$name` references in a side-effect template from a
// flat session variable scope. Unknown names are left untouched.
func ExpandVars(template string, scope map[string]string) string {
	var out strings.Builder
	i := 0
	for i < len(template) {
		if template[i] == '$' && i+1 < len(template) {
			j := i + 1
			for j < len(template) && isVarNameByte(template[j]) {
				j++
			}
			if j > i+1 {
				name := template[i+1 : j]
				if v, ok := scope[name]; ok {
					out.WriteString(v)
				} else {
					out.WriteString(template[i:j])
				}
				i = j
				continue
			}
		}
		out.WriteByte(template[i])
		i++
	}
	return out.String()
}

func isVarNameByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
