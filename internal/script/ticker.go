package script

import (
	"context"
	"time"
)

// Ticker is one periodic command emitter.
type Ticker struct {
	ID       string        `yaml:"id"`
	Command  string        `yaml:"command"`
	Interval time.Duration `yaml:"interval"`
	Enabled  bool          `yaml:"enabled"`
}

// TickFunc is invoked once per tick with the ticker's command already run
// through the alias expander; the caller dispatches each resulting command
// through its own session queue (so this never races the session's other
// mutable state).
type TickFunc func(ticker *Ticker, expanded []string)

// Scheduler owns one goroutine per enabled ticker. It is not safe for
// concurrent use from outside the session goroutine that owns it.
type Scheduler struct {
	expander *Expander
	onTick   TickFunc
	mudAlive func() bool

	cancel context.CancelFunc
}

// NewScheduler creates a scheduler bound to an alias expander (tickers are
// expanded exactly like any other outgoing command) and a liveness check —
// tickers never fire while the MUD socket is absent.
func NewScheduler(expander *Expander, mudAlive func() bool, onTick TickFunc) *Scheduler {
	return &Scheduler{expander: expander, mudAlive: mudAlive, onTick: onTick}
}

// SetTickers cancels all existing emitters and re-arms from scratch —
// mirrors the reconnect-drains-then-rebuilds pattern used for the rest of
// the per-session scripting state.
func (s *Scheduler) SetTickers(tickers []*Ticker) {
	s.stopAll()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	for _, t := range tickers {
		if !t.Enabled || t.Interval <= 0 {
			continue
		}
		go s.run(ctx, t)
	}
}

func (s *Scheduler) run(ctx context.Context, t *Ticker) {
	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.mudAlive == nil || !s.mudAlive() {
				continue
			}
			expanded := s.expander.Expand(t.Command)
			if s.onTick != nil {
				s.onTick(t, expanded)
			}
		}
	}
}

// stopAll cancels all currently-running emitter goroutines.
func (s *Scheduler) stopAll() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Close cancels all emitters; call on session teardown.
func (s *Scheduler) Close() {
	s.stopAll()
}
