package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_AuthenticateCreatesNewSession(t *testing.T) {
	st := NewStore()
	res := st.Authenticate("tok1", "u1", "c1", "Alice", false)

	assert.Equal(t, "new", res.Outcome)
	require.NotNil(t, res.Session)
	assert.Nil(t, res.Evicted)
	assert.Equal(t, 1, st.Len())

	t.Cleanup(func() { st.Remove("tok1") })
}

func TestStore_AuthenticateSameTokenResumes(t *testing.T) {
	st := NewStore()
	first := st.Authenticate("tok1", "u1", "c1", "Alice", false)

	second := st.Authenticate("tok1", "u1", "c1", "Alice", false)
	assert.Equal(t, "resumed", second.Outcome)
	assert.Same(t, first.Session, second.Session)
	assert.Equal(t, 1, st.Len())

	t.Cleanup(func() { st.Remove("tok1") })
}

func TestStore_DifferentTokenSameCharacterEvictsPredecessor(t *testing.T) {
	st := NewStore()
	first := st.Authenticate("tok1", "u1", "c1", "Alice", false)
	require.NotNil(t, first.Session)

	second := st.Authenticate("tok2", "u1", "c1", "Alice", false)
	assert.Equal(t, "new", second.Outcome)
	require.NotNil(t, second.Evicted)
	assert.Same(t, first.Session, second.Evicted)

	_, stillPresent := st.Get("tok1")
	assert.False(t, stillPresent)
	assert.Equal(t, 1, st.Len())

	t.Cleanup(func() { st.Remove("tok2") })
}

func TestStore_RemoveDeletesBothIndices(t *testing.T) {
	st := NewStore()
	st.Authenticate("tok1", "u1", "c1", "Alice", false)
	st.Remove("tok1")

	_, ok := st.Get("tok1")
	assert.False(t, ok)

	// A subsequent auth for the same user/character should be "new", not
	// find a stale predecessor to evict.
	res := st.Authenticate("tok2", "u1", "c1", "Alice", false)
	assert.Equal(t, "new", res.Outcome)
	assert.Nil(t, res.Evicted)

	t.Cleanup(func() { st.Remove("tok2") })
}

func TestStore_SweepEvictsOnlyIdleNonWizardDetached(t *testing.T) {
	st := NewStore()

	idleRes := st.Authenticate("idle", "u1", "c1", "Idle", false)
	idleRes.Session.DetachWS()
	idleRes.Session.DisconnectedAt = time.Now().Add(-20 * time.Minute)

	wizardRes := st.Authenticate("wizard", "u2", "c2", "Wiz", true)
	wizardRes.Session.DetachWS()
	wizardRes.Session.DisconnectedAt = time.Now().Add(-20 * time.Minute)

	freshRes := st.Authenticate("fresh", "u3", "c3", "Fresh", false)
	freshRes.Session.DetachWS()
	freshRes.Session.DisconnectedAt = time.Now().Add(-1 * time.Minute)

	st.sweep()

	_, idleStillPresent := st.Get("idle")
	assert.False(t, idleStillPresent)

	_, wizardStillPresent := st.Get("wizard")
	assert.True(t, wizardStillPresent)

	_, freshStillPresent := st.Get("fresh")
	assert.True(t, freshStillPresent)

	t.Cleanup(func() {
		st.Remove("wizard")
		st.Remove("fresh")
	})
}
