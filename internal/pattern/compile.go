// Package pattern compiles TinTin++-style trigger/alias patterns into Go
// regular expressions, and substitutes captures back into action templates.
package pattern

import (
	"regexp"
	"strconv"
	"strings"
)

// Rule is a compiled pattern ready to match lines and substitute captures.
type Rule struct {
	Source   string
	TinTin   bool
	Regex    *regexp.Regexp // nil for a literal-contains rule
}

// ansiPattern matches SGR escape sequences, used both to strip them from
// captured text before substitution and to build the %c wildcard.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// looksTinTin reports whether pattern should be treated as TinTin-style
// rather than a literal "contains" match, per the detection rules.
func looksTinTin(p string) bool {
	if strings.HasPrefix(p, "^") || strings.HasSuffix(p, "$") {
		return true
	}
	if hasUnescapedBraces(p) {
		return true
	}
	for i := 0; i < len(p)-1; i++ {
		if p[i] != '%' {
			continue
		}
		c := p[i+1]
		if isDigit(c) || strings.IndexByte("*+?.dDwWsSaAcCpPuUi!", c) >= 0 {
			return true
		}
	}
	return false
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func hasUnescapedBraces(p string) bool {
	for i := 0; i < len(p); i++ {
		if p[i] == '\\' {
			i++
			continue
		}
		if p[i] == '{' {
			return true
		}
	}
	return false
}

// charClasses maps the single-letter wildcard suffix to its RE2 class.
var charClasses = map[byte]string{
	'd': `[0-9]`, 'D': `[^0-9]`,
	'w': `\w`, 'W': `\W`,
	's': `\s`, 'S': `\S`,
	'a': `[A-Za-z]`, 'A': `[^A-Za-z]`,
	'p': `[[:punct:]]`, 'P': `[^[:punct:]]`,
	'u': `[A-Z]`, 'U': `[a-z]`,
}

// Compile translates pattern into a Rule. A literal ("contains") pattern has
// Regex == nil and Source holding the literal text.
func Compile(p string) (*Rule, error) {
	if !looksTinTin(p) {
		return &Rule{Source: p, TinTin: false}, nil
	}

	re, err := translate(p)
	if err != nil {
		return nil, err
	}
	compiled, err := regexp.Compile(re)
	if err != nil {
		return nil, err
	}
	return &Rule{Source: p, TinTin: true, Regex: compiled}, nil
}

// translate converts a TinTin-style pattern into an RE2 source string.
func translate(p string) (string, error) {
	var out strings.Builder
	i := 0
	for i < len(p) {
		c := p[i]
		switch c {
		case '%':
			consumed, frag := translateWildcard(p[i:])
			out.WriteString(frag)
			i += consumed
		case '{':
			j := matchingBrace(p, i)
			if j < 0 {
				out.WriteString(`\{`)
				i++
				continue
			}
			out.WriteByte('(')
			out.WriteString(p[i+1 : j])
			out.WriteByte(')')
			i = j + 1
		case '^', '$':
			out.WriteByte(c)
			i++
		default:
			out.WriteString(regexp.QuoteMeta(string(c)))
			i++
		}
	}
	return out.String(), nil
}

func matchingBrace(p string, open int) int {
	depth := 0
	for i := open; i < len(p); i++ {
		switch p[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// translateWildcard consumes one %-escape starting at s[0]=='%' and returns
// how many bytes of s it consumed plus the RE2 fragment to emit.
func translateWildcard(s string) (consumed int, frag string) {
	if len(s) < 2 {
		return 1, `%`
	}

	// %!{...} — non-capturing brace group.
	if strings.HasPrefix(s, "%!{") {
		j := matchingBrace(s, 2)
		if j > 0 {
			return j + 1, `(?:` + s[3:j] + `)`
		}
	}

	// %!x — non-capturing variant of %x.
	if s[1] == '!' && len(s) >= 3 {
		nc, nfrag := translateWildcard("%" + s[2:])
		return nc + 1, toNonCapturing(nfrag)
	}

	if s[1] == '+' {
		if consumed, frag, ok := tryQuantified(s); ok {
			return consumed, frag
		}
		return 2, `(.+)`
	}

	c := s[1]
	switch {
	case c == '*':
		return 2, `(.*)`
	case c == '?':
		return 2, `(.?)`
	case c == '.':
		return 2, `(.)`
	case c == 'c':
		return 2, `(?:` + ansiPattern.String() + `)*`
	case c == 'i' || c == 'I':
		return 2, ``
	case isDigit(c):
		j := 1
		for j < len(s) && j < 3 && isDigit(s[j]) {
			j++
		}
		return j, `(.*)`
	}

	if cls, ok := charClasses[c]; ok {
		return 2, `(` + cls + `+)`
	}

	return 2, regexp.QuoteMeta(string(c))
}

func toNonCapturing(frag string) string {
	if strings.HasPrefix(frag, "(") && !strings.HasPrefix(frag, "(?:") {
		return "(?:" + frag[1:]
	}
	return frag
}

var quantPattern = regexp.MustCompile(`^%\+(\d+)(?:\.\.(\d+))?<(\w)>`)

// tryQuantified attempts to parse the %+min[..max]<type> explicit-quantifier
// form starting at s. ok is false if s does not match that form, in which
// case the caller falls back to treating %+ as the plain (.+) wildcard.
func tryQuantified(s string) (consumed int, frag string, ok bool) {
	m := quantPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, "", false
	}
	min := m[1]
	max := m[2]
	cls, found := charClasses[m[3][0]]
	if !found {
		cls = `.`
	}
	quant := "{" + min + "}"
	if max != "" {
		quant = "{" + min + "," + max + "}"
	}
	return len(m[0]), `(` + cls + quant + `)`, true
}

// Match reports whether the rule matches line, and if so the captures
// ($0 = full match, $1.. = groups), SGR-stripped.
func (r *Rule) Match(line string) (captures []string, ok bool) {
	if !r.TinTin {
		if strings.Contains(line, r.Source) {
			return []string{r.Source}, true
		}
		return nil, false
	}

	m := r.Regex.FindStringSubmatch(line)
	if m == nil {
		return nil, false
	}
	captures = make([]string, len(m))
	for i, v := range m {
		captures[i] = ansiPattern.ReplaceAllString(v, "")
	}
	return captures, true
}

// MatchSpan returns the byte range of the full match, for substitution and
// highlighting, along with captures.
func (r *Rule) MatchSpan(line string) (start, end int, captures []string, ok bool) {
	if !r.TinTin {
		idx := strings.Index(line, r.Source)
		if idx < 0 {
			return 0, 0, nil, false
		}
		return idx, idx + len(r.Source), []string{r.Source}, true
	}

	loc := r.Regex.FindStringSubmatchIndex(line)
	if loc == nil {
		return 0, 0, nil, false
	}
	captures = make([]string, len(loc)/2)
	for i := range captures {
		s, e := loc[2*i], loc[2*i+1]
		if s < 0 {
			continue
		}
		captures[i] = ansiPattern.ReplaceAllString(line[s:e], "")
	}
	return loc[0], loc[1], captures, true
}

var capturePattern = regexp.MustCompile(`%(\d{1,2})`)

// Substitute replaces %0..%99 placeholders in template with captures;
// placeholders beyond len(captures) are removed.
func Substitute(template string, captures []string) string {
	return capturePattern.ReplaceAllStringFunc(template, func(m string) string {
		n, _ := strconv.Atoi(capturePattern.FindStringSubmatch(m)[1])
		if n < len(captures) {
			return captures[n]
		}
		return ""
	})
}
