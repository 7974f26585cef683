package session

import (
	"context"
	"sync"
	"time"

	"github.com/nduval/muxproxy/internal/logger"
)

// idleTimeout is how long a non-wizard session may sit with no browser
// attached before the sweep reclaims it.
const idleTimeout = 15 * time.Minute

// sweepInterval is how often the store checks for idle sessions.
const sweepInterval = 1 * time.Minute

func userCharKey(userID, characterID string) string {
	return userID + "\x00" + characterID
}

// Store is the process-wide session registry: token → session is the
// source of truth for identity; userChar → token exists only to find and
// evict a predecessor session on login from another device.
type Store struct {
	mu             sync.RWMutex
	sessionsByToken map[string]*Session
	tokenByUserChar map[string]string

	Audit *AuditLog
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		sessionsByToken: make(map[string]*Session),
		tokenByUserChar: make(map[string]string),
		Audit:           NewAuditLog(),
	}
}

// AuthResult tells the caller which of the three auth outcomes occurred, so
// it can send the right session_new/session_resumed/session_taken frames.
type AuthResult struct {
	Session  *Session
	Outcome  string // "new" or "resumed"; an eviction is reported through Evicted
	Evicted  *Session // non-nil if a predecessor session on another token was evicted
}

// Authenticate implements the three-case login algorithm from the session
// store contract: evict a predecessor on the same (user,character) under a
// different token, then either take over or create the session for this
// token.
func (st *Store) Authenticate(token, userID, characterID, characterName string, isWizard bool) AuthResult {
	st.mu.Lock()
	defer st.mu.Unlock()

	var evicted *Session
	key := userCharKey(userID, characterID)
	if prevToken, ok := st.tokenByUserChar[key]; ok && prevToken != token {
		if prev, ok := st.sessionsByToken[prevToken]; ok {
			evicted = prev
			delete(st.sessionsByToken, prevToken)
		}
	}
	st.tokenByUserChar[key] = token

	if existing, ok := st.sessionsByToken[token]; ok {
		existing.CharacterName = characterName
		existing.IsWizard = isWizard
		if evicted != nil {
			st.Audit.Record(token, AuditTakenOver, time.Now())
		}
		return AuthResult{Session: existing, Outcome: "resumed", Evicted: evicted}
	}

	sess := New(token)
	sess.UserID = userID
	sess.CharacterID = characterID
	sess.CharacterName = characterName
	sess.IsWizard = isWizard
	st.sessionsByToken[token] = sess
	go sess.Run()
	st.Audit.Record(token, AuditCreated, time.Now())
	if evicted != nil {
		st.Audit.Record(token, AuditTakenOver, time.Now())
	}

	return AuthResult{Session: sess, Outcome: "new", Evicted: evicted}
}

// Get looks up a session by token.
func (st *Store) Get(token string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessionsByToken[token]
	return s, ok
}

// Remove deletes a session from both indices and closes it.
func (st *Store) Remove(token string) {
	st.mu.Lock()
	sess, ok := st.sessionsByToken[token]
	if ok {
		delete(st.sessionsByToken, token)
		key := userCharKey(sess.UserID, sess.CharacterID)
		if st.tokenByUserChar[key] == token {
			delete(st.tokenByUserChar, key)
		}
	}
	st.mu.Unlock()

	if ok {
		sess.Close()
		st.Audit.Record(token, AuditDestroyed, time.Now())
	}
}

// Len reports the number of active sessions, for the /health endpoint.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessionsByToken)
}

// Snapshot returns a point-in-time copy of active sessions for admin
// reporting. Safe to call concurrently.
func (st *Store) Snapshot() []*Session {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]*Session, 0, len(st.sessionsByToken))
	for _, s := range st.sessionsByToken {
		out = append(out, s)
	}
	return out
}

// Run starts the once-per-minute idle sweep; blocks until ctx is cancelled.
func (st *Store) Run(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st.sweep()
		}
	}
}

// sweep evicts sessions with no browser attached, not flagged for explicit
// disconnect, not wizard-owned, and idle past idleTimeout.
func (st *Store) sweep() {
	now := time.Now()
	var toEvict []string

	st.mu.RLock()
	for token, sess := range st.sessionsByToken {
		if sess.HasBrowser() || sess.ExplicitDisconnect || sess.IsWizard {
			continue
		}
		if sess.DisconnectedAt.IsZero() {
			continue
		}
		if now.Sub(sess.DisconnectedAt) > idleTimeout {
			toEvict = append(toEvict, token)
		}
	}
	st.mu.RUnlock()

	for _, token := range toEvict {
		logger.Info("session: idle timeout sweep evicting", "token", shortToken(token))
		st.Remove(token)
	}
}
