// Package discord sends sanitized trigger/control-plane notifications to a
// Discord incoming webhook: a context-timeout request, no retries, built to
// be called fire-and-forget from a trigger side effect.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/nduval/muxproxy/internal/logger"
)

// WebhookOrigin is the required prefix for any URL accepted as a Discord
// webhook target, both for per-channel prefs and the HTTP control-plane
// endpoint.
const WebhookOrigin = "https://discord.com/api/webhooks/"

// Client posts messages to Discord incoming webhooks.
type Client struct {
	timeout time.Duration
}

// New creates a Client with the given per-request timeout.
func New(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{timeout: timeout}
}

// Send sanitizes message and POSTs it to webhookURL as a Discord webhook
// execute payload. webhookURL must already have been validated against
// WebhookOrigin by the caller. An empty username leaves Discord's configured
// webhook name in place.
func (c *Client) Send(webhookURL, message, username string) error {
	payload := discordgo.WebhookParams{
		Content:  Sanitize(message),
		Username: username,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		logger.Warn("discord: build request failed", "err", err)
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		logger.Warn("discord: post failed", "err", err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		err := fmt.Errorf("discord: HTTP %d", resp.StatusCode)
		logger.Warn("discord: webhook rejected", "status", resp.StatusCode)
		return err
	}
	return nil
}

// IsWebhookURL reports whether url is prefixed with the Discord webhook
// origin — the only check applied before accepting a per-channel or
// control-plane webhook target.
func IsWebhookURL(url string) bool {
	return strings.HasPrefix(url, WebhookOrigin)
}

var (
	sgrPattern       = regexp.MustCompile(`\x1b\[[0-9;]*m`)
	everyoneHerePat  = regexp.MustCompile(`@(everyone|here)`)
	explicitMention  = regexp.MustCompile(`<@!?&?\d+>`)
)

const maxDiscordMessageLen = 1997 // leaves room for the 3-character ellipsis within Discord's 2000-char cap

// Sanitize strips SGR color codes, neutralizes @everyone/@here, redacts
// explicit user/role mentions, and truncates to Discord's length limit.
func Sanitize(message string) string {
	out := sgrPattern.ReplaceAllString(message, "")
	out = everyoneHerePat.ReplaceAllString(out, "@​$1")
	out = explicitMention.ReplaceAllString(out, "[mention redacted]")

	if len(out) > maxDiscordMessageLen {
		out = out[:maxDiscordMessageLen] + "..."
	}
	return out
}
