// Package notify reports run status to a Discord channel through a webhook.
package notify

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type Severity int

const (
	Info Severity = iota
	Warning
	Error
)

func (s Severity) String() string {
	switch s {
	case Warning:
		return "Warning"
	case Error:
		return "Error"
	default:
		return "Success"
	}
}

func (s Severity) icon() string {
	switch s {
	case Warning:
		return "⚠️"
	case Error:
		return "❌"
	default:
		return "✅"
	}
}

func (s Severity) color() int {
	switch s {
	case Warning:
		return 0xFFFF00
	case Error:
		return 0xFF0000
	default:
		return 0x00FF00
	}
}

// Notifier never fails the caller; delivery problems are only logged.
type Notifier interface {
	Notify(ctx context.Context, sev Severity, account, message string, err error)
}

type nop struct{}

func (nop) Notify(context.Context, Severity, string, string, error) {}

// Nop drops every message.
var Nop Notifier = nop{}

// Session is the part of *discordgo.Session used for webhooks.
type Session interface {
	WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

const (
	maxDescription = 4096
	maxContent     = 2000
)

type Discord struct {
	session Session
	id      string
	token   string
	logger  *zap.Logger
	now     func() time.Time
}

// ParseWebhookURL extracts the ID and token from
// https://discord.com/api/webhooks/<id>/<token>.
func ParseWebhookURL(raw string) (id, token string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("invalid webhook URL: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, p := range parts {
		if p == "webhooks" && i+2 < len(parts) && parts[i+1] != "" && parts[i+2] != "" {
			return parts[i+1], parts[i+2], nil
		}
	}
	return "", "", fmt.Errorf("invalid webhook URL: no webhook id/token in %q", u.Path)
}

func NewDiscord(session Session, webhookURL string, logger *zap.Logger) (*Discord, error) {
	id, token, err := ParseWebhookURL(webhookURL)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Discord{session: session, id: id, token: token, logger: logger, now: time.Now}, nil
}

// ForURL returns a Discord notifier for webhookURL on a token-less session,
// or Nop when the URL is empty or unusable.
func ForURL(webhookURL string, logger *zap.Logger) Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if webhookURL == "" {
		return Nop
	}
	session, err := discordgo.New("")
	if err != nil {
		logger.Warn("failed to create discord session", zap.Error(err))
		return Nop
	}
	d, err := NewDiscord(session, webhookURL, logger)
	if err != nil {
		logger.Warn("webhook notifications disabled", zap.Error(err))
		return Nop
	}
	return d
}

// Title is the embed title, e.g. "✅ TikTok Carousel - Success (@acct)".
func Title(sev Severity, account string) string {
	title := fmt.Sprintf("%s TikTok Carousel - %s", sev.icon(), sev)
	if account != "" {
		title += " (" + account + ")"
	}
	return title
}

// Description appends error details in a code block.
func Description(message string, err error) string {
	if err == nil {
		return message
	}
	return message + "\n\n**Error Details:**\n```" + err.Error() + "```"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func (d *Discord) Notify(ctx context.Context, sev Severity, account, message string, err error) {
	title := Title(sev, account)
	desc := Description(message, err)

	embed := &discordgo.MessageEmbed{
		Title:       title,
		Description: truncate(desc, maxDescription),
		Color:       sev.color(),
		Timestamp:   d.now().UTC().Format(time.RFC3339),
	}
	_, sendErr := d.session.WebhookExecute(d.id, d.token, false,
		&discordgo.WebhookParams{Embeds: []*discordgo.MessageEmbed{embed}},
		discordgo.WithContext(ctx))
	if sendErr == nil {
		return
	}

	d.logger.Warn("webhook embed failed, sending plain message", zap.Error(sendErr))
	_, sendErr = d.session.WebhookExecute(d.id, d.token, false,
		&discordgo.WebhookParams{Content: truncate("**"+title+"**\n"+desc, maxContent)},
		discordgo.WithContext(ctx))
	if sendErr != nil {
		d.logger.Warn("webhook message failed", zap.Error(sendErr))
	}
}
