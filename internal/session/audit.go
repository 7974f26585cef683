package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// AuditKind enumerates the session lifecycle events recorded in the audit
// log, surfaced to operators via GET /sessions.
type AuditKind string

const (
	AuditCreated      AuditKind = "created"
	AuditTakenOver    AuditKind = "taken_over"
	AuditMudConnected AuditKind = "mud_connected"
	AuditMudClosed    AuditKind = "mud_closed"
	AuditDestroyed    AuditKind = "destroyed"
)

// AuditEvent is one recorded session lifecycle transition.
type AuditEvent struct {
	ID    string    `json:"id"`
	Token string    `json:"token"`
	Kind  AuditKind `json:"kind"`
	At    time.Time `json:"at"`
}

// defaultAuditCapacity bounds the in-memory event ring the same way the
// outbound message buffer is bounded.
const defaultAuditCapacity = 500

// AuditLog is a small bounded, thread-safe ring of recent session lifecycle
// events. It supplements (does not replace) the live session map — it
// exists purely for operator visibility into churn that the point-in-time
// sessionsByToken snapshot can't show.
type AuditLog struct {
	mu     sync.Mutex
	events []AuditEvent
	cap    int
}

// NewAuditLog creates an audit log bounded at defaultAuditCapacity entries.
func NewAuditLog() *AuditLog {
	return &AuditLog{cap: defaultAuditCapacity}
}

// Record appends a new event, stamped with a fresh UUID, dropping the
// oldest entry once the log is at capacity.
func (a *AuditLog) Record(token string, kind AuditKind, at time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.events) >= a.cap {
		a.events = a.events[1:]
	}
	a.events = append(a.events, AuditEvent{ID: uuid.NewString(), Token: token, Kind: kind, At: at})
}

// Recent returns a copy of the last n events, most recent last.
func (a *AuditLog) Recent(n int) []AuditEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	if n <= 0 || n > len(a.events) {
		n = len(a.events)
	}
	start := len(a.events) - n
	out := make([]AuditEvent, n)
	copy(out, a.events[start:])
	return out
}
