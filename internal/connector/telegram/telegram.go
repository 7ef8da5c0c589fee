// Package telegram is the primary chat transport: long-polling updates,
// bot commands, inline claim/complete keyboards, and the guided ticket
// creation dialog.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/fixbot-io/fixbot/internal/catalog"
	"github.com/fixbot-io/fixbot/internal/connector"
	"github.com/fixbot-io/fixbot/internal/coordinator"
	"github.com/fixbot-io/fixbot/internal/ticket"
	"github.com/fixbot-io/fixbot/internal/tracking"
	"github.com/fixbot-io/fixbot/pkg/protocol"
)

// Config holds Telegram connector configuration.
type Config struct {
	Token           string        // Bot token from @BotFather
	EngineersChatID int64         // Group chat where new tickets are announced
	IdleTimeout     time.Duration // How long an open dialog prompt stays live
}

// Bot runs the Telegram side of the repair desk. It implements
// connector.Notifier for outbound delivery and long-polls for commands,
// free-text dialog replies and inline button presses.
type Bot struct {
	bot      *tgbotapi.BotAPI
	cfg      Config
	coord    *coordinator.Coordinator
	store    ticket.Store
	catalog  *catalog.Cache
	cleaner  *tracking.Cleaner
	sessions *sessionStore
	logger   *slog.Logger
	cancel   context.CancelFunc

	// Channel receives engineer-facing broadcasts (new tickets, claim and
	// completion notices). It defaults to the bot itself posting into
	// cfg.EngineersChatID and may be rebound to another platform.
	Channel       connector.Notifier
	ChannelChatID string
}

// New creates a Telegram bot.
func New(cfg Config, coord *coordinator.Coordinator, store ticket.Store, cat *catalog.Cache, cleaner *tracking.Cleaner, logger *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram: init bot: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 5 * time.Minute
	}

	logger.Info("telegram bot authorized", "username", api.Self.UserName)

	b := &Bot{
		bot:           api,
		cfg:           cfg,
		coord:         coord,
		store:         store,
		catalog:       cat,
		cleaner:       cleaner,
		sessions:      newSessionStore(cfg.IdleTimeout),
		logger:        logger,
		ChannelChatID: strconv.FormatInt(cfg.EngineersChatID, 10),
	}
	b.Channel = b
	return b, nil
}

func (b *Bot) Name() string { return "telegram" }

// Start begins long-polling for updates. Blocks until context is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	ctx, b.cancel = context.WithCancel(ctx)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := b.bot.GetUpdatesChan(u)

	b.logger.Info("telegram connector started", "bot", b.bot.Self.UserName)

	for {
		select {
		case update := <-updates:
			switch {
			case update.CallbackQuery != nil:
				b.handleCallback(ctx, update.CallbackQuery)
			case update.Message != nil:
				b.handleMessage(ctx, update.Message)
			}

		case <-ctx.Done():
			b.bot.StopReceivingUpdates()
			b.logger.Info("telegram connector stopped")
			return ctx.Err()
		}
	}
}

// Stop gracefully shuts down the connector.
func (b *Bot) Stop() error {
	if b.cancel != nil {
		b.cancel()
	}
	return nil
}

// Send delivers a Markdown message, rendered as Telegram HTML with a plain
// text fallback. Buttons become an inline keyboard, one button per row.
func (b *Bot) Send(_ context.Context, msg connector.OutboundMessage) (connector.MessageRef, error) {
	chatID, err := strconv.ParseInt(msg.ChatID, 10, 64)
	if err != nil {
		return connector.MessageRef{}, fmt.Errorf("telegram: invalid chat_id %q: %w", msg.ChatID, err)
	}

	tgMsg := tgbotapi.NewMessage(chatID, MarkdownToHTML(msg.Content))
	tgMsg.ParseMode = tgbotapi.ModeHTML
	tgMsg.DisableWebPagePreview = true
	if len(msg.Buttons) > 0 {
		tgMsg.ReplyMarkup = inlineKeyboard(msg.Buttons)
	}

	sent, err := b.bot.Send(tgMsg)
	if err != nil {
		// Fallback to plain text if HTML fails
		b.logger.Warn("HTML send failed, falling back to plain text",
			"chat_id", msg.ChatID,
			"error", err,
		)
		tgMsg.Text = StripMarkdown(msg.Content)
		tgMsg.ParseMode = ""
		sent, err = b.bot.Send(tgMsg)
	}
	if err != nil {
		return connector.MessageRef{}, fmt.Errorf("telegram: send: %w", err)
	}

	return connector.MessageRef{
		ChatID:    msg.ChatID,
		MessageID: strconv.Itoa(sent.MessageID),
	}, nil
}

// Edit replaces the content of a previously sent message.
func (b *Bot) Edit(_ context.Context, ref connector.MessageRef, content string) error {
	chatID, messageID, err := parseRef(ref)
	if err != nil {
		return err
	}

	edit := tgbotapi.NewEditMessageText(chatID, messageID, MarkdownToHTML(content))
	edit.ParseMode = tgbotapi.ModeHTML
	if _, err := b.bot.Request(edit); err != nil {
		return fmt.Errorf("telegram: edit message %s: %w", ref.MessageID, err)
	}
	return nil
}

// Delete retracts a previously sent message.
func (b *Bot) Delete(_ context.Context, ref connector.MessageRef) error {
	chatID, messageID, err := parseRef(ref)
	if err != nil {
		return err
	}

	if _, err := b.bot.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		return fmt.Errorf("telegram: delete message %s: %w", ref.MessageID, err)
	}
	return nil
}

func parseRef(ref connector.MessageRef) (int64, int, error) {
	chatID, err := strconv.ParseInt(ref.ChatID, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("telegram: invalid chat_id %q: %w", ref.ChatID, err)
	}
	messageID, err := strconv.Atoi(ref.MessageID)
	if err != nil {
		return 0, 0, fmt.Errorf("telegram: invalid message_id %q: %w", ref.MessageID, err)
	}
	return chatID, messageID, nil
}

func inlineKeyboard(btns []connector.Button) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(btns))
	for _, btn := range btns {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(btn.Label, btn.Data),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// identityOf builds a ticket identity from a Telegram user. The handle is
// the @username when set, otherwise the display name.
func identityOf(u *tgbotapi.User) protocol.Identity {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	handle := name
	if u.UserName != "" {
		handle = "@" + u.UserName
	}
	return protocol.Identity{Handle: handle, ID: u.ID, Name: name}
}
