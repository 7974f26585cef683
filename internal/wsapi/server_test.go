package wsapi

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nduval/muxproxy/internal/config"
	"github.com/nduval/muxproxy/internal/session"
)

func testServer(t *testing.T) (*httptest.Server, *session.Store) {
	t.Helper()
	store := session.NewStore()
	h := NewHandler(store, config.Load())
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return ts, store
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.Dial(context.Background(), wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readMsg(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func writeMsg(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, conn.Write(context.Background(), websocket.MessageText, data))
}

const validToken = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcd"

func TestServer_FirstFrameMustBeAuth(t *testing.T) {
	ts, _ := testServer(t)
	conn := dial(t, ts)

	writeMsg(t, conn, CommandMsg{Type: TypeCommand, Command: "look"})

	msg := readMsg(t, conn)
	assert.Equal(t, TypeError, msg["type"])
}

func TestServer_InvalidTokenRejected(t *testing.T) {
	ts, _ := testServer(t)
	conn := dial(t, ts)

	writeMsg(t, conn, AuthMsg{Type: TypeAuth, Token: "not-hex"})

	msg := readMsg(t, conn)
	assert.Equal(t, TypeError, msg["type"])
}

func TestServer_AuthCreatesNewSession(t *testing.T) {
	ts, store := testServer(t)
	conn := dial(t, ts)

	writeMsg(t, conn, AuthMsg{Type: TypeAuth, Token: validToken, UserID: "u1", CharacterID: "c1", CharacterName: "Alice"})

	msg := readMsg(t, conn)
	assert.Equal(t, TypeSessionNew, msg["type"])
	assert.Eventually(t, func() bool { return store.Len() == 1 }, time.Second, 10*time.Millisecond)
}

func TestServer_ReauthSameTokenResumes(t *testing.T) {
	ts, _ := testServer(t)

	first := dial(t, ts)
	writeMsg(t, first, AuthMsg{Type: TypeAuth, Token: validToken, UserID: "u1", CharacterID: "c1", CharacterName: "Alice"})
	_ = readMsg(t, first)
	first.Close(websocket.StatusNormalClosure, "")

	second := dial(t, ts)
	writeMsg(t, second, AuthMsg{Type: TypeAuth, Token: validToken, UserID: "u1", CharacterID: "c1", CharacterName: "Alice"})
	msg := readMsg(t, second)
	assert.Equal(t, TypeSessionResumed, msg["type"])
}

func TestServer_SecondLoginEvictsPredecessor(t *testing.T) {
	ts, _ := testServer(t)

	predecessor := dial(t, ts)
	writeMsg(t, predecessor, AuthMsg{Type: TypeAuth, Token: validToken, UserID: "u1", CharacterID: "c1", CharacterName: "Alice"})
	_ = readMsg(t, predecessor)

	otherToken := "ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff"
	newcomer := dial(t, ts)
	writeMsg(t, newcomer, AuthMsg{Type: TypeAuth, Token: otherToken, UserID: "u1", CharacterID: "c1", CharacterName: "Alice"})
	msg := readMsg(t, newcomer)
	assert.Equal(t, TypeSessionNew, msg["type"])

	taken := readMsg(t, predecessor)
	assert.Equal(t, TypeSessionTaken, taken["type"])
}

func TestServer_KeepaliveAnsweredImmediately(t *testing.T) {
	ts, _ := testServer(t)
	conn := dial(t, ts)
	writeMsg(t, conn, AuthMsg{Type: TypeAuth, Token: validToken, UserID: "u2", CharacterID: "c2", CharacterName: "Bob"})
	_ = readMsg(t, conn)

	writeMsg(t, conn, Envelope{Type: TypeKeepalive})
	msg := readMsg(t, conn)
	assert.Equal(t, TypeKeepaliveAck, msg["type"])
}

func TestServer_TestLineRunsThroughPipeline(t *testing.T) {
	ts, _ := testServer(t)
	conn := dial(t, ts)
	writeMsg(t, conn, AuthMsg{Type: TypeAuth, Token: validToken, UserID: "u3", CharacterID: "c3", CharacterName: "Cara"})
	_ = readMsg(t, conn)

	writeMsg(t, conn, TestLineMsg{Type: TypeTestLine, Line: "A kobold attacks you!"})
	msg := readMsg(t, conn)
	assert.Equal(t, TypeMud, msg["type"])
	assert.Equal(t, "A kobold attacks you!", msg["line"])
}

func TestServer_SetServerRejectsNonWhitelistedHost(t *testing.T) {
	ts, _ := testServer(t)
	conn := dial(t, ts)
	writeMsg(t, conn, AuthMsg{Type: TypeAuth, Token: validToken, UserID: "u4", CharacterID: "c4", CharacterName: "Dex"})
	_ = readMsg(t, conn)

	writeMsg(t, conn, SetServerMsg{Type: TypeSetServer, Host: "evil.example", Port: 23})
	msg := readMsg(t, conn)
	assert.Equal(t, TypeError, msg["type"])
	assert.Contains(t, msg["message"], "whitelist")
}
