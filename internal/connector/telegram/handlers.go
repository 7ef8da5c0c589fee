package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/fixbot-io/fixbot/internal/connector"
	"github.com/fixbot-io/fixbot/internal/coordinator"
	"github.com/fixbot-io/fixbot/pkg/protocol"
)

// Callback payloads. claim: and done: carry a ticket id; exh: and prob:
// carry an index into the current catalog snapshot.
const (
	cbNewTicket    = "newreq"
	cbExhibit      = "exh:"
	cbProblem      = "prob:"
	cbOtherProblem = "probother"
	cbBack         = "exhback"
	cbCancel       = "cancel"
	cbClaim        = "claim:"
	cbComplete     = "done:"
)

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}
	if msg.Text == "" {
		return
	}

	sess, ok := b.sessions.get(msg.From.ID)
	if !ok {
		return
	}
	switch {
	case sess.kind == sessionCreate && sess.step == stepTypeProblem:
		b.openTicket(ctx, msg.From, msg.Chat.ID, sess.exhibit, strings.TrimSpace(msg.Text))
	case sess.kind == sessionComplete:
		b.finishTicket(ctx, msg.From, msg.Chat.ID, sess.ticketID, strings.TrimSpace(msg.Text))
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		if !msg.Chat.IsPrivate() {
			// In the group chat, point the visitor at a private dialog.
			reply := tgbotapi.NewMessage(chatID, "Let's file your ticket in a private chat:")
			reply.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonURL("Report a problem",
					"https://t.me/"+b.bot.Self.UserName+"?start=new"),
			))
			b.reply(reply)
			return
		}
		if msg.CommandArguments() == "new" {
			b.beginCreateFlow(msg.From.ID, chatID, 0)
			return
		}
		greeting := tgbotapi.NewMessage(chatID,
			"Hi! I file repair tickets for museum exhibits.")
		greeting.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🛠 Report a problem", cbNewTicket),
		))
		b.reply(greeting)

	case "new":
		if !b.requireEngineer(msg) {
			return
		}
		b.listForEngineer(ctx, chatID, protocol.TicketNew)

	case "inprogress":
		if !b.requireEngineer(msg) {
			return
		}
		b.listForEngineer(ctx, chatID, protocol.TicketInProgress)

	case "myrequests":
		b.listMyRequests(ctx, msg)

	case "cancel":
		b.sessions.clear(msg.From.ID)
		b.reply(tgbotapi.NewMessage(chatID, "Cancelled."))

	case "help":
		help := strings.Join([]string{
			"Available commands:",
			"/start — File a repair ticket",
			"/new — New tickets awaiting an engineer",
			"/inprogress — Tickets currently being worked on",
			"/myrequests — Your own tickets",
			"/cancel — Abandon the current dialog",
		}, "\n")
		b.reply(tgbotapi.NewMessage(chatID, help))
	}
}

// requireEngineer replies with a refusal and returns false when the sender
// is not on the roster.
func (b *Bot) requireEngineer(msg *tgbotapi.Message) bool {
	if b.catalog.IsEngineer(msg.From.ID) {
		return true
	}
	b.reply(tgbotapi.NewMessage(msg.Chat.ID, "This command is for engineers only."))
	return false
}

// listForEngineer sends one message per ticket in the given status, with the
// matching action button. Each message is tracked so it can be retracted when
// the ticket moves on.
func (b *Bot) listForEngineer(ctx context.Context, chatID int64, status protocol.TicketStatus) {
	tickets, err := b.store.ListByStatus(status)
	if err != nil {
		b.logger.Error("list tickets failed", "status", status, "error", err)
		b.reply(tgbotapi.NewMessage(chatID, "Storage is unavailable, please try again later."))
		return
	}
	if len(tickets) == 0 {
		b.reply(tgbotapi.NewMessage(chatID, "Nothing here 🎉"))
		return
	}

	for _, t := range tickets {
		var btn connector.Button
		content := ticketCard(t)
		if status == protocol.TicketNew {
			btn = connector.Button{Label: "Claim", Data: cbClaim + strconv.FormatInt(t.ID, 10)}
		} else {
			btn = connector.Button{Label: "Complete", Data: cbComplete + strconv.FormatInt(t.ID, 10)}
		}

		ref, err := b.Send(ctx, connector.OutboundMessage{
			ChatID:  strconv.FormatInt(chatID, 10),
			Content: content,
			Buttons: []connector.Button{btn},
		})
		if err != nil {
			b.logger.Error("send ticket card failed", "ticket", t.ID, "error", err)
			continue
		}
		b.cleaner.Track(t.ID, ref)
	}
}

func (b *Bot) listMyRequests(ctx context.Context, msg *tgbotapi.Message) {
	tickets, err := b.store.ListByRequester(msg.From.ID)
	if err != nil {
		b.logger.Error("list requester tickets failed", "user", msg.From.ID, "error", err)
		b.reply(tgbotapi.NewMessage(msg.Chat.ID, "Storage is unavailable, please try again later."))
		return
	}
	if len(tickets) == 0 {
		b.reply(tgbotapi.NewMessage(msg.Chat.ID, "You haven't filed any tickets yet."))
		return
	}

	var sb strings.Builder
	sb.WriteString("Your tickets:\n")
	for _, t := range tickets {
		fmt.Fprintf(&sb, "\n%s **#%d** %s — %s", statusIcon(t.Status), t.ID, t.Exhibit, t.Problem)
		if t.Status == protocol.TicketInProgress && t.Engineer != nil {
			fmt.Fprintf(&sb, " (engineer: %s)", t.Engineer.Name)
		}
	}
	if _, err := b.Send(ctx, connector.OutboundMessage{
		ChatID:  strconv.FormatInt(msg.Chat.ID, 10),
		Content: sb.String(),
	}); err != nil {
		b.logger.Error("send myrequests failed", "user", msg.From.ID, "error", err)
	}
}

func (b *Bot) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	if q.From == nil || q.Message == nil {
		return
	}

	data := q.Data
	switch {
	case data == cbNewTicket:
		b.answer(q, "")
		b.beginCreateFlow(q.From.ID, q.Message.Chat.ID, q.Message.MessageID)

	case strings.HasPrefix(data, cbExhibit):
		b.pickExhibit(q, strings.TrimPrefix(data, cbExhibit))

	case strings.HasPrefix(data, cbProblem):
		b.pickProblem(ctx, q, strings.TrimPrefix(data, cbProblem))

	case data == cbOtherProblem:
		sess, ok := b.sessions.get(q.From.ID)
		if !ok || sess.kind != sessionCreate {
			b.alert(q, "This dialog has expired, start over with /start.")
			return
		}
		sess.step = stepTypeProblem
		b.sessions.set(q.From.ID, sess)
		b.answer(q, "")
		b.editText(q, "Describe the problem in a few words:")

	case data == cbBack:
		b.answer(q, "")
		b.beginCreateFlow(q.From.ID, q.Message.Chat.ID, q.Message.MessageID)

	case data == cbCancel:
		b.sessions.clear(q.From.ID)
		b.answer(q, "")
		b.editText(q, "Cancelled.")

	case strings.HasPrefix(data, cbClaim):
		id, err := strconv.ParseInt(strings.TrimPrefix(data, cbClaim), 10, 64)
		if err != nil {
			return
		}
		b.handleClaim(ctx, q, id)

	case strings.HasPrefix(data, cbComplete):
		id, err := strconv.ParseInt(strings.TrimPrefix(data, cbComplete), 10, 64)
		if err != nil {
			return
		}
		b.handleCompletePrompt(q, id)
	}
}

// beginCreateFlow shows the exhibit keyboard, editing the pressed message in
// place when messageID is non-zero.
func (b *Bot) beginCreateFlow(userID, chatID int64, messageID int) {
	exhibits := b.catalog.Exhibits()
	if len(exhibits) == 0 {
		b.reply(tgbotapi.NewMessage(chatID, "The exhibit catalog is empty, please try again later."))
		return
	}

	b.sessions.set(userID, session{kind: sessionCreate, step: stepPickExhibit})

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(exhibits)+1)
	for i, e := range exhibits {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(e.Name, cbExhibit+strconv.Itoa(i)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("✖️ Cancel", cbCancel),
	))
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)

	const prompt = "Which exhibit has the problem?"
	if messageID != 0 {
		edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, prompt, markup)
		if _, err := b.bot.Request(edit); err != nil {
			b.logger.Warn("edit create prompt failed", "chat_id", chatID, "error", err)
		}
		return
	}
	msg := tgbotapi.NewMessage(chatID, prompt)
	msg.ReplyMarkup = markup
	b.reply(msg)
}

func (b *Bot) pickExhibit(q *tgbotapi.CallbackQuery, arg string) {
	sess, ok := b.sessions.get(q.From.ID)
	if !ok || sess.kind != sessionCreate {
		b.alert(q, "This dialog has expired, start over with /start.")
		return
	}

	exhibits := b.catalog.Exhibits()
	i, err := strconv.Atoi(arg)
	if err != nil || i < 0 || i >= len(exhibits) {
		// Catalog refreshed under the keyboard; restart the flow.
		b.answer(q, "")
		b.beginCreateFlow(q.From.ID, q.Message.Chat.ID, q.Message.MessageID)
		return
	}

	sess.exhibit = exhibits[i].Name
	sess.step = stepPickProblem
	b.sessions.set(q.From.ID, sess)

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(exhibits[i].Problems)+2)
	for j, p := range exhibits[i].Problems {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(p, cbProblem+strconv.Itoa(j)),
		))
	}
	rows = append(rows,
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("✏️ Something else…", cbOtherProblem)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("« Back", cbBack)),
	)

	b.answer(q, "")
	edit := tgbotapi.NewEditMessageTextAndMarkup(q.Message.Chat.ID, q.Message.MessageID,
		fmt.Sprintf("%s — what's wrong?", exhibits[i].Name),
		tgbotapi.NewInlineKeyboardMarkup(rows...))
	if _, err := b.bot.Request(edit); err != nil {
		b.logger.Warn("edit problem prompt failed", "chat_id", q.Message.Chat.ID, "error", err)
	}
}

func (b *Bot) pickProblem(ctx context.Context, q *tgbotapi.CallbackQuery, arg string) {
	sess, ok := b.sessions.get(q.From.ID)
	if !ok || sess.kind != sessionCreate || sess.exhibit == "" {
		b.alert(q, "This dialog has expired, start over with /start.")
		return
	}

	problems := b.catalog.Problems(sess.exhibit)
	i, err := strconv.Atoi(arg)
	if err != nil || i < 0 || i >= len(problems) {
		b.alert(q, "This option is out of date, start over with /start.")
		return
	}

	b.answer(q, "")
	b.editText(q, "Filing your ticket…")
	b.openTicket(ctx, q.From, q.Message.Chat.ID, sess.exhibit, problems[i])
}

// openTicket files the ticket, confirms to the requester, and announces it
// with a claim button in the engineers channel.
func (b *Bot) openTicket(ctx context.Context, from *tgbotapi.User, chatID int64, exhibit, problem string) {
	b.sessions.clear(from.ID)

	if problem == "" {
		b.reply(tgbotapi.NewMessage(chatID, "The description is empty, please try again."))
		return
	}

	requester := identityOf(from)
	id, err := b.coord.Open(exhibit, problem, requester)
	if err != nil {
		b.logger.Error("open ticket failed", "exhibit", exhibit, "error", err)
		b.reply(tgbotapi.NewMessage(chatID, "Could not save your ticket, please try again later."))
		return
	}

	if _, err := b.Send(ctx, connector.OutboundMessage{
		ChatID:  strconv.FormatInt(chatID, 10),
		Content: fmt.Sprintf("✅ Ticket **#%d** filed for *%s*. Engineers have been notified.", id, exhibit),
	}); err != nil {
		b.logger.Warn("confirm ticket failed", "ticket", id, "error", err)
	}

	ref, err := b.Channel.Send(ctx, connector.OutboundMessage{
		ChatID: b.ChannelChatID,
		Content: fmt.Sprintf("‼️ **New ticket #%d**\n🏛 %s\n🔧 %s\n👤 %s",
			id, exhibit, problem, requester.Handle),
		Buttons: []connector.Button{{Label: "Claim", Data: cbClaim + strconv.FormatInt(id, 10)}},
	})
	if err != nil {
		b.logger.Error("announce ticket failed", "ticket", id, "error", err)
		return
	}
	b.cleaner.Track(id, ref)
}

func (b *Bot) handleClaim(ctx context.Context, q *tgbotapi.CallbackQuery, id int64) {
	actor := identityOf(q.From)
	res, t, err := b.coord.Claim(ctx, id, actor)
	if err != nil {
		b.logger.Error("claim failed", "ticket", id, "error", err)
		b.alert(q, "Storage is unavailable, please try again.")
		return
	}

	switch res {
	case coordinator.ClaimUnauthorized:
		b.alert(q, "Only engineers can claim tickets.")
	case coordinator.ClaimNotFound:
		b.alert(q, "This ticket no longer exists.")
	case coordinator.ClaimAlreadyTaken:
		b.alert(q, "Too late — this ticket was already claimed.")
	case coordinator.ClaimOK:
		b.answer(q, fmt.Sprintf("Ticket #%d is yours.", id))
		b.notifyClaimed(ctx, t)
	}
}

// notifyClaimed broadcasts the claim to the engineers channel and DMs the
// requester. Both are best-effort.
func (b *Bot) notifyClaimed(ctx context.Context, t *protocol.Ticket) {
	engineer := t.Engineer.Name
	if _, err := b.Channel.Send(ctx, connector.OutboundMessage{
		ChatID: b.ChannelChatID,
		Content: fmt.Sprintf("⚙️ **Ticket #%d** (%s) claimed by %s.",
			t.ID, t.Exhibit, engineer),
	}); err != nil {
		b.logger.Warn("claim broadcast failed", "ticket", t.ID, "error", err)
	}

	if t.Requester.ID == 0 {
		return
	}
	if _, err := b.Send(ctx, connector.OutboundMessage{
		ChatID: strconv.FormatInt(t.Requester.ID, 10),
		Content: fmt.Sprintf("👷 Engineer %s took your ticket **#%d** (%s).",
			engineer, t.ID, t.Exhibit),
	}); err != nil {
		b.logger.Warn("claim DM failed", "ticket", t.ID, "error", err)
	}
}

// handleCompletePrompt opens the resolution-comment dialog for the pressing
// engineer. The actual completion happens when their next message arrives.
func (b *Bot) handleCompletePrompt(q *tgbotapi.CallbackQuery, id int64) {
	if !b.catalog.IsEngineer(q.From.ID) {
		b.alert(q, "Only engineers can complete tickets.")
		return
	}

	b.sessions.set(q.From.ID, session{kind: sessionComplete, ticketID: id})
	b.answer(q, "")
	b.reply(tgbotapi.NewMessage(q.Message.Chat.ID,
		fmt.Sprintf("Add a short resolution comment for ticket #%d (or /cancel):", id)))
}

func (b *Bot) finishTicket(ctx context.Context, from *tgbotapi.User, chatID, id int64, comment string) {
	actor := identityOf(from)
	res, t, err := b.coord.Complete(ctx, id, actor, comment)
	if err != nil {
		b.logger.Error("complete failed", "ticket", id, "error", err)
		b.reply(tgbotapi.NewMessage(chatID, "Storage is unavailable, please try again."))
		return
	}

	switch res {
	case coordinator.CompleteEmptyResolution:
		// Keep the dialog open; the next message is tried again.
		b.reply(tgbotapi.NewMessage(chatID,
			fmt.Sprintf("The comment can't be empty — describe how ticket #%d was resolved (or /cancel):", id)))
	case coordinator.CompleteNotFound:
		b.sessions.clear(from.ID)
		b.reply(tgbotapi.NewMessage(chatID, "This ticket no longer exists."))
	case coordinator.CompleteNotInProgress:
		b.sessions.clear(from.ID)
		b.reply(tgbotapi.NewMessage(chatID, fmt.Sprintf("Ticket #%d is not in progress.", id)))
	case coordinator.CompleteNotOwner:
		b.sessions.clear(from.ID)
		owner := "another engineer"
		if t != nil && t.Engineer != nil {
			owner = t.Engineer.Handle
		}
		b.reply(tgbotapi.NewMessage(chatID,
			fmt.Sprintf("Ticket #%d was claimed by %s — only they can complete it.", id, owner)))
	case coordinator.CompleteOK:
		b.sessions.clear(from.ID)
		if _, err := b.Send(ctx, connector.OutboundMessage{
			ChatID:  strconv.FormatInt(chatID, 10),
			Content: fmt.Sprintf("✅ Ticket **#%d** completed.", id),
		}); err != nil {
			b.logger.Warn("complete confirm failed", "ticket", id, "error", err)
		}
		b.notifyCompleted(ctx, t, actor)
	}
}

func (b *Bot) notifyCompleted(ctx context.Context, t *protocol.Ticket, actor protocol.Identity) {
	if _, err := b.Channel.Send(ctx, connector.OutboundMessage{
		ChatID: b.ChannelChatID,
		Content: fmt.Sprintf("✅ **Ticket #%d** (%s) completed by %s.\n💬 %s",
			t.ID, t.Exhibit, actor.Handle, t.Resolution),
	}); err != nil {
		b.logger.Warn("completion broadcast failed", "ticket", t.ID, "error", err)
	}

	if t.Requester.ID == 0 {
		return
	}
	if _, err := b.Send(ctx, connector.OutboundMessage{
		ChatID: strconv.FormatInt(t.Requester.ID, 10),
		Content: fmt.Sprintf("✅ Your ticket **#%d** (%s) has been completed!\n💬 %s",
			t.ID, t.Exhibit, t.Resolution),
	}); err != nil {
		b.logger.Warn("completion DM failed", "ticket", t.ID, "error", err)
	}
}

func ticketCard(t *protocol.Ticket) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s **Ticket #%d**\n🏛 %s\n🔧 %s\n👤 %s",
		statusIcon(t.Status), t.ID, t.Exhibit, t.Problem, t.Requester.Handle)
	if t.Engineer != nil {
		fmt.Fprintf(&sb, "\n👷 %s", t.Engineer.Name)
	}
	return sb.String()
}

func statusIcon(s protocol.TicketStatus) string {
	switch s {
	case protocol.TicketNew:
		return "🆕"
	case protocol.TicketInProgress:
		return "⚙️"
	case protocol.TicketCompleted:
		return "✅"
	}
	return "❔"
}

// reply sends a plain Telegram message, logging delivery failures.
func (b *Bot) reply(msg tgbotapi.MessageConfig) {
	if _, err := b.bot.Send(msg); err != nil {
		b.logger.Warn("reply failed", "chat_id", msg.ChatID, "error", err)
	}
}

// editText replaces the pressed message's text and drops its keyboard.
func (b *Bot) editText(q *tgbotapi.CallbackQuery, text string) {
	edit := tgbotapi.NewEditMessageText(q.Message.Chat.ID, q.Message.MessageID, text)
	if _, err := b.bot.Request(edit); err != nil {
		b.logger.Warn("edit failed", "chat_id", q.Message.Chat.ID, "error", err)
	}
}

func (b *Bot) answer(q *tgbotapi.CallbackQuery, text string) {
	if _, err := b.bot.Request(tgbotapi.NewCallback(q.ID, text)); err != nil {
		b.logger.Warn("answer callback failed", "error", err)
	}
}

func (b *Bot) alert(q *tgbotapi.CallbackQuery, text string) {
	if _, err := b.bot.Request(tgbotapi.NewCallbackWithAlert(q.ID, text)); err != nil {
		b.logger.Warn("answer callback failed", "error", err)
	}
}
