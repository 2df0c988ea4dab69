package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"lead_bot/internal/model"
	"lead_bot/internal/storage"
)

// Callback data prefixes. Lead buttons carry "lead:status:<id>:<STATUS>" and
// "lead:neg:<id>".
const (
	cbLeadStatus   = "lead:status:"
	cbLeadNeg      = "lead:neg:"
	cbClearConfirm = "leads:clear"
	cbNoop         = "noop"
)

type callbackRoute struct {
	prefix string
	handle func(ctx context.Context, cb *tgbotapi.CallbackQuery, rest string)
}

func (b *Bot) callbackTable() []callbackRoute {
	return []callbackRoute{
		{prefix: cbLeadStatus, handle: b.handleLeadStatus},
		{prefix: cbLeadNeg, handle: b.handleLeadNeg},
		{prefix: cbClearConfirm, handle: b.handleClearConfirm},
		{prefix: cbNoop, handle: func(_ context.Context, cb *tgbotapi.CallbackQuery, _ string) {
			b.answerCallback(cb.ID, "")
		}},
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	b.log.Info("callback",
		"data", cb.Data,
		"user_id", cb.From.ID,
		"username", cb.From.UserName,
	)

	for _, r := range b.callbacks {
		if rest, ok := strings.CutPrefix(cb.Data, r.prefix); ok {
			r.handle(ctx, cb, rest)
			return
		}
	}
	b.answerCallback(cb.ID, "Unknown action.")
}

func (b *Bot) answerCallback(id, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(id, text)); err != nil {
		b.log.Error("answer callback", "error", err)
	}
}

func (b *Bot) handleLeadStatus(ctx context.Context, cb *tgbotapi.CallbackQuery, rest string) {
	idStr, statusStr, ok := strings.Cut(rest, ":")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if !ok || err != nil {
		b.answerCallback(cb.ID, "Malformed action.")
		return
	}
	status, ok := model.ParseLeadStatus(statusStr)
	if !ok {
		b.answerCallback(cb.ID, "Unknown status.")
		return
	}

	err = b.store.UpdateLeadStatus(ctx, id, status)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		b.answerCallback(cb.ID, fmt.Sprintf("Lead #%d not found.", id))
		return
	case err != nil:
		b.log.Error("update lead status", "lead_id", id, "status", status, "error", err)
		b.answerCallback(cb.ID, "Failed to update status.")
		return
	}
	b.answerCallback(cb.ID, fmt.Sprintf("Lead #%d: %s", id, status))
}

func (b *Bot) handleLeadNeg(ctx context.Context, cb *tgbotapi.CallbackQuery, rest string) {
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		b.answerCallback(cb.ID, "Malformed action.")
		return
	}
	if _, err := b.store.GetLead(ctx, id); err != nil {
		b.answerCallback(cb.ID, fmt.Sprintf("Lead #%d not found.", id))
		return
	}

	// The prompt goes to the operator's private chat even when the lead was
	// posted to a channel.
	b.setPendingStop(cb.From.ID, id)
	b.answerCallback(cb.ID, "")
	b.reply(cb.From.ID, "Send a word or phrase for the stop list:")
}

func (b *Bot) handleClearConfirm(ctx context.Context, cb *tgbotapi.CallbackQuery, _ string) {
	n, err := b.store.ClearLeads(ctx)
	if err != nil {
		b.log.Error("clear leads", "error", err)
		b.answerCallback(cb.ID, "Failed to clear leads.")
		return
	}
	b.answerCallback(cb.ID, "Done.")
	b.reply(cb.From.ID, fmt.Sprintf("Deleted %d lead(s).", n))
}
