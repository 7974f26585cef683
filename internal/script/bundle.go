package script

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Bundle is a YAML-persisted default trigger/alias/ticker set. A server
// operator points DEFAULT_SCRIPTS_FILE at one of these to seed every new
// session with a starting scripting kit, which the browser may then replace
// via set_triggers/set_aliases/set_tickers.
type Bundle struct {
	Triggers []*Trigger `yaml:"triggers,omitempty"`
	Aliases  []*Alias   `yaml:"aliases,omitempty"`
	Tickers  []*Ticker  `yaml:"tickers,omitempty"`
}

// LoadBundleFile reads and parses a Bundle from a YAML file.
func LoadBundleFile(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var b Bundle
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// Apply installs the bundle's triggers, aliases, and tickers on a fresh
// session's engines. Triggers and aliases are copied per session, so one
// session's loop-detection trip does not disable the trigger elsewhere.
func (b *Bundle) Apply(triggers *Engine, aliases *Expander, tickers *Scheduler) {
	if b == nil {
		return
	}
	if b.Triggers != nil {
		ts := make([]*Trigger, len(b.Triggers))
		for i, t := range b.Triggers {
			cp := *t
			ts[i] = &cp
		}
		triggers.SetTriggers(ts)
	}
	if b.Aliases != nil {
		as := make([]*Alias, len(b.Aliases))
		for i, a := range b.Aliases {
			cp := *a
			as[i] = &cp
		}
		aliases.SetAliases(as)
	}
	if b.Tickers != nil {
		tickers.SetTickers(b.Tickers)
	}
}
