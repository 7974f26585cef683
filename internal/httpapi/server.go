// Package httpapi implements the small HTTP control plane: health, session
// listing, broadcast, and the Discord webhook relay.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/nduval/muxproxy/internal/config"
	"github.com/nduval/muxproxy/internal/discord"
	"github.com/nduval/muxproxy/internal/session"
)

// Version is the build-reported version string shown by /health.
const Version = "0.1.0"

// Server hosts the admin-key-gated control plane endpoints.
type Server struct {
	Store   *session.Store
	Config  config.ServerConfig
	Discord *discord.Client
	limiter *RateLimiter

	mux *http.ServeMux
}

// NewServer wires up the control-plane routes. The two write endpoints are
// rate-limited per source IP; read endpoints are not.
func NewServer(store *session.Store, cfg config.ServerConfig) *Server {
	s := &Server{
		Store:   store,
		Config:  cfg,
		Discord: discord.New(cfg.DiscordWebhookTimeout),
		limiter: NewRateLimiter(2, 5),
		mux:     http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /", s.handleRoot)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /sessions", s.requireAdmin(s.handleSessions))
	s.mux.HandleFunc("POST /broadcast", s.limiter.Middleware(s.requireAdmin(s.handleBroadcast)))
	s.mux.HandleFunc("POST /discord-webhook", s.limiter.Middleware(s.handleDiscordWebhook))

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("muxproxy: stateful MUD session proxy\n"))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"version":  Version,
		"sessions": s.Store.Len(),
	})
}

// sessionView is the admin-facing shape of one session row.
type sessionView struct {
	Token         string `json:"token"`
	UserID        string `json:"userId"`
	CharacterName string `json:"characterName"`
	IsWizard      bool   `json:"isWizard"`
	HasBrowser    bool   `json:"hasBrowser"`
	MudConnected  bool   `json:"mudConnected"`
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	snap := s.Store.Snapshot()
	out := make([]sessionView, 0, len(snap))
	for _, sess := range snap {
		out = append(out, sessionView{
			Token:         shortenToken(sess.Token),
			UserID:        sess.UserID,
			CharacterName: sess.CharacterName,
			IsWizard:      sess.IsWizard,
			HasBrowser:    sess.HasBrowser(),
			MudConnected:  sess.MudAlive(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": out,
		"audit":    s.Store.Audit.Recent(50),
	})
}

type broadcastRequest struct {
	Message string `json:"message"`
}

// broadcastMessage is the wire shape sent to every attached browser; mirrors
// wsapi.BroadcastMsg without importing wsapi (httpapi stays ws-protocol
// agnostic and only knows about session.OutboundSink).
type broadcastMessage struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	msg := broadcastMessage{Type: "broadcast", Message: req.Message, Timestamp: time.Now().Unix()}
	sent := 0
	for _, sess := range s.Store.Snapshot() {
		if sess.HasBrowser() {
			sess.Post(func(sv *session.Session) {
				sv.SendOrBuffer(msg)
			})
			sent++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sent": sent})
}

type discordWebhookRequest struct {
	WebhookURL string `json:"webhookUrl"`
	Message    string `json:"message"`
	Username   string `json:"username"`
}

func (s *Server) handleDiscordWebhook(w http.ResponseWriter, r *http.Request) {
	var req discordWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if !discord.IsWebhookURL(req.WebhookURL) {
		writeError(w, http.StatusBadRequest, "webhookUrl must be a Discord webhook")
		return
	}
	if err := s.Discord.Send(req.WebhookURL, req.Message, req.Username); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// requireAdmin enforces the X-Admin-Key header against the configured
// admin key. A server started without ADMIN_KEY set refuses every
// admin-gated call with a 500 rather than silently allowing it.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.Config.AdminKey == "" {
			writeError(w, http.StatusInternalServerError, "admin endpoints disabled: ADMIN_KEY not configured")
			return
		}
		if r.Header.Get("X-Admin-Key") != s.Config.AdminKey {
			writeError(w, http.StatusForbidden, "invalid admin key")
			return
		}
		next(w, r)
	}
}

func shortenToken(token string) string {
	if len(token) > 8 {
		return token[:8] + "…"
	}
	return token
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
