package script

import (
	"regexp"
	"strings"

	"github.com/nduval/muxproxy/internal/pattern"
)

// MatchType selects how an Alias's Pattern is matched against a command.
type MatchType string

const (
	MatchExact      MatchType = "exact"
	MatchStartsWith MatchType = "startsWith"
	MatchTinTin     MatchType = "tintin"
	MatchRegex      MatchType = "regex"
)

// Alias is one rewrite rule in the ordered alias list.
type Alias struct {
	Pattern     string    `yaml:"pattern"`
	MatchType   MatchType `yaml:"matchType"`
	Replacement string    `yaml:"replacement"`
	Enabled     bool      `yaml:"enabled"`

	compiledTinTin *regexp.Regexp
	compiledRegex  *regexp.Regexp
}

const (
	maxRecursionDepth = 10
	maxRepeatCount    = 100
)

// Expander rewrites outgoing commands recursively against an ordered alias
// list.
type Expander struct {
	aliases []*Alias
}

// NewExpander creates an expander with no aliases configured.
func NewExpander() *Expander {
	return &Expander{}
}

// SetAliases atomically replaces the active alias set.
func (e *Expander) SetAliases(aliases []*Alias) {
	e.aliases = aliases
}

// Expand splits command on unbraced semicolons/newlines, matches each part
// against the alias list, and recursively re-expands the result. The
// returned sequence preserves order.
func (e *Expander) Expand(command string) []string {
	var out []string
	for _, part := range splitUnbraced(command) {
		out = append(out, e.expandOne(strings.TrimSpace(part), 0)...)
	}
	return out
}

func (e *Expander) expandOne(part string, depth int) []string {
	if part == "" {
		return nil
	}
	if depth >= maxRecursionDepth {
		return []string{part}
	}

	for _, a := range e.aliases {
		if !a.Enabled {
			continue
		}
		replacement, ok := a.match(part)
		if !ok {
			continue
		}

		var out []string
		for _, sub := range splitUnbraced(replacement) {
			out = append(out, e.expandOne(strings.TrimSpace(sub), depth+1)...)
		}
		return out
	}

	return []string{part}
}

// match reports whether a matches part and, if so, the fully substituted
// replacement string.
func (a *Alias) match(part string) (string, bool) {
	switch a.MatchType {
	case MatchExact:
		words := strings.Fields(part)
		if len(words) == 0 || !strings.EqualFold(words[0], a.Pattern) {
			return "", false
		}
		return substituteArgs(a.Replacement, words), true

	case MatchStartsWith:
		if part == a.Pattern {
			return substituteArgs(a.Replacement, strings.Fields(part)), true
		}
		prefix := a.Pattern + " "
		if strings.HasPrefix(part, prefix) {
			return substituteArgs(a.Replacement, strings.Fields(part)), true
		}
		return "", false

	case MatchTinTin:
		if a.compiledTinTin == nil {
			anchored := "^" + a.Pattern + "$"
			r, err := pattern.Compile(anchored)
			if err != nil || r.Regex == nil {
				return "", false
			}
			re, err := regexp.Compile("(?i)" + r.Regex.String())
			if err != nil {
				return "", false
			}
			a.compiledTinTin = re
		}
		m := a.compiledTinTin.FindStringSubmatch(part)
		if m == nil {
			return "", false
		}
		return pattern.Substitute(a.Replacement, m), true

	case MatchRegex:
		if a.compiledRegex == nil {
			re, err := regexp.Compile("(?i)" + a.Pattern)
			if err != nil {
				return "", false
			}
			a.compiledRegex = re
		}
		m := a.compiledRegex.FindStringSubmatch(part)
		if m == nil {
			return "", false
		}
		return substituteRegexGroups(a.Replacement, m), true
	}
	return "", false
}

// substituteArgs handles exact/startsWith replacement templates: `$*` is all
// args joined, `$1..$N` are individual args, unmatched `$N` are stripped.
var argPlaceholder = regexp.MustCompile(`\$(\*|\d+)`)

func substituteArgs(template string, words []string) string {
	return argPlaceholder.ReplaceAllStringFunc(template, func(m string) string {
		key := argPlaceholder.FindStringSubmatch(m)[1]
		if key == "*" {
			if len(words) > 1 {
				return strings.Join(words[1:], " ")
			}
			return ""
		}
		idx := 0
		for _, c := range key {
			idx = idx*10 + int(c-'0')
		}
		if idx < len(words) {
			return words[idx]
		}
		return ""
	})
}

var regexGroupPlaceholder = regexp.MustCompile(`\$(\d+)`)

func substituteRegexGroups(template string, groups []string) string {
	return regexGroupPlaceholder.ReplaceAllStringFunc(template, func(m string) string {
		idx := 0
		for _, c := range regexGroupPlaceholder.FindStringSubmatch(m)[1] {
			idx = idx*10 + int(c-'0')
		}
		if idx < len(groups) {
			return groups[idx]
		}
		return ""
	})
}

// splitUnbraced splits s on unescaped semicolons or newlines at brace depth
// 0 (braces are '{'/'}').
func splitUnbraced(s string) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		case ';', '\n':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}

// Dispatch classifies an expanded command: a meta-command (starts with '#',
// not a bare `#N <cmd>` repeat) is routed back to the browser; a `#N <cmd>`
// repeat expands to N copies of cmd (N capped at 100); anything else is a
// single MUD-bound command.
type Dispatch struct {
	MetaCommand string   // non-empty if this is a client_command
	MudCommands []string // commands to write to the MUD, CRLF-terminated by the caller
}

var repeatPattern = regexp.MustCompile(`^#(\d+)\s+(.+)$`)

func ClassifyCommand(cmd string) Dispatch {
	if m := repeatPattern.FindStringSubmatch(cmd); m != nil {
		n := 0
		for _, c := range m[1] {
			n = n*10 + int(c-'0')
		}
		if n > maxRepeatCount {
			n = maxRepeatCount
		}
		cmds := make([]string, n)
		for i := range cmds {
			cmds[i] = m[2]
		}
		return Dispatch{MudCommands: cmds}
	}

	if strings.HasPrefix(cmd, "#") {
		return Dispatch{MetaCommand: cmd}
	}

	return Dispatch{MudCommands: []string{cmd}}
}
