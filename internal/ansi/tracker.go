// Package ansi carries SGR (color/style) state across line boundaries so a
// MUD's single opening escape for a multi-line colored block is not lost
// when the stream is split into lines upstream.
package ansi

import "regexp"

var sgrPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// Tracker holds the last non-reset SGR sequence seen across a session's
// lines. It is not safe for concurrent use.
type Tracker struct {
	carry string
}

// Apply prepends the current carry to line if line does not already open
// with an SGR sequence, then updates the carry from line's own sequences.
func (t *Tracker) Apply(line string) string {
	out := line
	if t.carry != "" && !startsWithSGR(line) {
		out = t.carry + line
	}

	matches := sgrPattern.FindAllString(line, -1)
	for _, m := range matches {
		if isReset(m) {
			t.carry = ""
		} else {
			t.carry = m
		}
	}

	return out
}

// Carry returns the currently-tracked SGR sequence, or "" if none.
func (t *Tracker) Carry() string {
	return t.carry
}

// Reset clears the tracked SGR state, e.g. on session/MUD reconnect.
func (t *Tracker) Reset() {
	t.carry = ""
}

func startsWithSGR(line string) bool {
	loc := sgrPattern.FindStringIndex(line)
	return loc != nil && loc[0] == 0
}

func isReset(seq string) bool {
	return seq == "\x1b[0m" || seq == "\x1b[m"
}
