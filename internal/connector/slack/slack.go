// Package slackconn mirrors engineer-channel broadcasts to Slack. It is an
// outbound-only notifier: tickets are claimed and completed on the primary
// transport, Slack just keeps the engineering channel informed.
package slackconn

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/slack-go/slack"

	"github.com/fixbot-io/fixbot/internal/connector"
)

// Config holds Slack notifier configuration.
type Config struct {
	BotToken         string // xoxb-... Bot User OAuth Token
	EngineersChannel string // Channel ID for engineer broadcasts
}

// Notifier implements connector.Notifier over the Slack Web API.
type Notifier struct {
	api     *slack.Client
	config  Config
	logger  *slog.Logger
}

// New creates a Slack notifier.
func New(cfg Config, logger *slog.Logger) (*Notifier, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("slack: bot_token is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	api := slack.New(cfg.BotToken)

	authResp, err := api.AuthTest()
	if err != nil {
		return nil, fmt.Errorf("slack: auth test: %w", err)
	}
	logger.Info("slack bot authorized", "user", authResp.User, "team", authResp.Team)

	return &Notifier{api: api, config: cfg, logger: logger}, nil
}

func (n *Notifier) Name() string { return "slack" }

// Channel returns the configured engineers channel ID.
func (n *Notifier) Channel() string { return n.config.EngineersChannel }

// Send posts a message. Inline buttons have no Slack rendering here; the
// ticket id in the text is enough for engineers following along in Slack.
func (n *Notifier) Send(ctx context.Context, msg connector.OutboundMessage) (connector.MessageRef, error) {
	if len(msg.Buttons) > 0 {
		n.logger.Debug("dropping inline buttons for slack broadcast", "chat_id", msg.ChatID)
	}

	channel, ts, err := n.api.PostMessageContext(ctx, msg.ChatID,
		slack.MsgOptionText(MarkdownToMrkdwn(msg.Content), false))
	if err != nil {
		return connector.MessageRef{}, fmt.Errorf("slack: send message: %w", err)
	}
	return connector.MessageRef{ChatID: channel, MessageID: ts}, nil
}

// Edit replaces a previously posted message.
func (n *Notifier) Edit(ctx context.Context, ref connector.MessageRef, content string) error {
	_, _, _, err := n.api.UpdateMessageContext(ctx, ref.ChatID, ref.MessageID,
		slack.MsgOptionText(MarkdownToMrkdwn(content), false))
	if err != nil {
		return fmt.Errorf("slack: update message %s: %w", ref.MessageID, err)
	}
	return nil
}

// Delete retracts a previously posted message.
func (n *Notifier) Delete(ctx context.Context, ref connector.MessageRef) error {
	_, _, err := n.api.DeleteMessageContext(ctx, ref.ChatID, ref.MessageID)
	if err != nil {
		return fmt.Errorf("slack: delete message %s: %w", ref.MessageID, err)
	}
	return nil
}

// MarkdownToMrkdwn converts standard Markdown to Slack's mrkdwn format:
// **bold** → *bold*, *italic* → _italic_, [text](url) → <url|text>.
// Inline code passes through untouched.
func MarkdownToMrkdwn(md string) string {
	var b strings.Builder
	inCode := false
	for i := 0; i < len(md); {
		ch := md[i]
		switch {
		case ch == '`':
			inCode = !inCode
			b.WriteByte(ch)
			i++
		case inCode:
			b.WriteByte(ch)
			i++
		case ch == '*':
			if i+1 < len(md) && md[i+1] == '*' {
				b.WriteByte('*')
				i += 2
			} else {
				b.WriteByte('_')
				i++
			}
		case ch == '[':
			text, url, rest := splitLink(md[i:])
			if rest < 0 {
				b.WriteByte(ch)
				i++
				break
			}
			fmt.Fprintf(&b, "<%s|%s>", url, text)
			i += rest
		default:
			b.WriteByte(ch)
			i++
		}
	}
	return b.String()
}

// splitLink parses a leading [text](url) and returns its parts plus the
// number of bytes consumed, or -1 when s is not a link.
func splitLink(s string) (text, url string, consumed int) {
	closeBracket := strings.Index(s, "](")
	if closeBracket < 0 {
		return "", "", -1
	}
	closeParen := strings.Index(s[closeBracket:], ")")
	if closeParen < 0 {
		return "", "", -1
	}
	closeParen += closeBracket
	return s[1:closeBracket], s[closeBracket+2 : closeParen], closeParen + 1
}
