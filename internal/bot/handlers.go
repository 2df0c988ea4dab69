package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"lead_bot/internal/export"
	"lead_bot/internal/model"
	"lead_bot/internal/scheduler"
)

const exportLimit = 2000

func (b *Bot) commandTable() map[string]commandHandler {
	return map[string]commandHandler{
		"start":     b.handleStart,
		"help":      b.handleHelp,
		"status":    b.handleStatus,
		"run":       b.handleRun,
		"monitor":   b.handleMonitor,
		"interval":  b.handleInterval,
		"minscore":  b.handleMinScore,
		"quota":     b.handleQuota,
		"lang":      b.handleLang,
		"target":    b.handleTarget,
		"keywords":  b.handleKeywords,
		"addkw":     b.handleAddKeyword,
		"rmkw":      b.handleRemoveKeyword,
		"stopwords": b.handleStopWords,
		"addstop":   b.handleAddStop,
		"rmstop":    b.handleRemoveStop,
		"sources":   b.handleSources,
		"addsource": b.handleAddSource,
		"rmsource":  b.handleRemoveSource,
		"export":    b.handleExport,
		"clear":     b.handleClear,
	}
}

func (b *Bot) handleStart(_ context.Context, chatID int64, _ string) {
	b.reply(chatID, `Lead monitor is ready.

It polls your RSS/Atom sources, scores new posts against your keywords and sends the relevant ones here.

Quick start:
1. /addsource <url> - add a feed
2. /addkw <phrase> - add a keyword
3. /monitor on - start monitoring

Use /help for the full command reference.`)
}

func (b *Bot) handleHelp(_ context.Context, chatID int64, _ string) {
	b.reply(chatID, `Monitoring:
/status - current settings and counters
/run - run a cycle now
/monitor on|off - enable or disable automatic cycles
/interval <sec> - poll interval (10-3600)
/minscore <0-100> - minimum score to deliver
/quota <n> - max leads per cycle (1-100)
/lang RU|EN|BOTH - keyword language filter
/target admin|<channel_id> - where leads are sent

Keywords:
/keywords - list keywords
/addkw [RU|EN|BOTH] <phrase> - add a keyword
/rmkw <phrase> - remove a keyword
/stopwords - list stop words
/addstop <phrase> - add a stop word
/rmstop <phrase> - remove a stop word

Sources:
/sources - list feeds
/addsource <url> - add an RSS/Atom feed
/rmsource <id> - remove a feed

History:
/export - download leads as CSV
/clear - delete all leads`)
}

func (b *Bot) handleStatus(ctx context.Context, chatID int64, _ string) {
	settings, err := b.store.GetSettings(ctx)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	keywords, err := b.store.ListKeywords(ctx)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	sources, err := b.store.ListSources(ctx)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	today := time.Now().UTC().Truncate(24 * time.Hour)
	leadsToday, err := b.store.CountLeadsSince(ctx, today)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}

	b.reply(chatID, FormatStatus(StatusReport{
		Settings:   *settings,
		Keywords:   len(keywords),
		Sources:    len(sources),
		LeadsToday: leadsToday,
	}))
}

func (b *Bot) handleRun(ctx context.Context, chatID int64, _ string) {
	b.reply(chatID, "Running a monitoring cycle...")

	n, err := b.ctrl.RunNow(ctx, "manual")
	switch {
	case errors.Is(err, scheduler.ErrCycleInProgress):
		b.reply(chatID, "A cycle is already running. Try again later.")
	case err != nil:
		b.reply(chatID, fmt.Sprintf("Cycle failed: %v", err))
	default:
		b.reply(chatID, fmt.Sprintf("Cycle finished: %d lead(s) delivered.", n))
	}
}

func (b *Bot) handleMonitor(ctx context.Context, chatID int64, args string) {
	enabled, err := ParseOnOff(args)
	if err != nil {
		b.reply(chatID, "Usage: /monitor on|off")
		return
	}
	if err := b.store.SetMonitoringEnabled(ctx, enabled); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	if enabled {
		b.reply(chatID, "Monitoring enabled.")
		return
	}
	b.reply(chatID, "Monitoring disabled.")
}

func (b *Bot) handleInterval(ctx context.Context, chatID int64, args string) {
	secs, err := ParseIntRange(args, minIntervalSeconds, maxIntervalSeconds)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Usage: /interval <sec>, %v", err))
		return
	}
	interval := time.Duration(secs) * time.Second
	if err := b.store.SetPollInterval(ctx, interval); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	if err := b.ctrl.Reschedule(interval); err != nil {
		b.log.Error("reschedule", "interval", interval, "error", err)
		b.reply(chatID, fmt.Sprintf("Saved, but the scheduler was not updated: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Poll interval set to %ds.", secs))
}

func (b *Bot) handleMinScore(ctx context.Context, chatID int64, args string) {
	score, err := ParseIntRange(args, 0, 100)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Usage: /minscore <0-100>, %v", err))
		return
	}
	if err := b.store.SetMinScore(ctx, score); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Minimum score set to %d.", score))
}

func (b *Bot) handleQuota(ctx context.Context, chatID int64, args string) {
	n, err := ParseIntRange(args, 1, maxQuota)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Usage: /quota <1-%d>, %v", maxQuota, err))
		return
	}
	if err := b.store.SetMaxResults(ctx, n); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("At most %d lead(s) per cycle.", n))
}

func (b *Bot) handleLang(ctx context.Context, chatID int64, args string) {
	lang, ok := model.ParseLang(strings.ToUpper(args))
	if !ok {
		b.reply(chatID, "Usage: /lang RU|EN|BOTH")
		return
	}
	if err := b.store.SetLangFilter(ctx, lang); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Language filter set to %s.", lang))
}

func (b *Bot) handleTarget(ctx context.Context, chatID int64, args string) {
	target, err := ParseTarget(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}
	if target.Kind == model.TargetChannel {
		if err := b.checkChannelAdmin(target.ChannelID); err != nil {
			b.log.Warn("channel check", "channel_id", target.ChannelID, "error", err)
			b.reply(chatID, "Could not verify the channel. The bot must be an administrator there.")
			return
		}
	}
	if err := b.store.SetDeliveryTarget(ctx, target); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Leads will be sent to %s.", FormatTarget(target)))
}

// checkChannelAdmin verifies the bot can post to the channel.
func (b *Bot) checkChannelAdmin(channelID int64) error {
	me, err := b.api.GetMe()
	if err != nil {
		return fmt.Errorf("get bot user: %w", err)
	}
	member, err := b.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: channelID, UserID: me.ID},
	})
	if err != nil {
		return fmt.Errorf("get chat member: %w", err)
	}
	if !member.IsAdministrator() && !member.IsCreator() {
		return fmt.Errorf("bot is %q in channel %d", member.Status, channelID)
	}
	return nil
}

func (b *Bot) handleKeywords(ctx context.Context, chatID int64, _ string) {
	keywords, err := b.store.ListKeywords(ctx)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, FormatKeywordList(keywords))
}

func (b *Bot) handleAddKeyword(ctx context.Context, chatID int64, args string) {
	lang, phrase, err := ParseKeywordArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}
	added, err := b.store.AddKeyword(ctx, phrase, lang)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	if !added {
		b.reply(chatID, fmt.Sprintf("Keyword %q already exists.", phrase))
		return
	}
	b.reply(chatID, fmt.Sprintf("Keyword %q [%s] added.", phrase, lang))
}

func (b *Bot) handleRemoveKeyword(ctx context.Context, chatID int64, args string) {
	if args == "" {
		b.reply(chatID, "Usage: /rmkw <phrase>")
		return
	}
	removed, err := b.store.RemoveKeyword(ctx, args)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	if !removed {
		b.reply(chatID, fmt.Sprintf("Keyword %q not found.", args))
		return
	}
	b.reply(chatID, fmt.Sprintf("Keyword %q removed.", args))
}

func (b *Bot) handleStopWords(ctx context.Context, chatID int64, _ string) {
	phrases, err := b.store.ListNegativeKeywords(ctx)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, FormatStopList(phrases))
}

func (b *Bot) handleAddStop(ctx context.Context, chatID int64, args string) {
	if args == "" {
		b.reply(chatID, "Usage: /addstop <phrase>")
		return
	}
	b.addStopWord(ctx, chatID, args)
}

func (b *Bot) addStopWord(ctx context.Context, chatID int64, phrase string) {
	added, err := b.store.AddNegativeKeyword(ctx, phrase)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	if !added {
		b.reply(chatID, fmt.Sprintf("%q is already in the stop list.", phrase))
		return
	}
	b.reply(chatID, fmt.Sprintf("%q added to the stop list.", phrase))
}

func (b *Bot) handleRemoveStop(ctx context.Context, chatID int64, args string) {
	if args == "" {
		b.reply(chatID, "Usage: /rmstop <phrase>")
		return
	}
	removed, err := b.store.RemoveNegativeKeyword(ctx, args)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	if !removed {
		b.reply(chatID, fmt.Sprintf("%q is not in the stop list.", args))
		return
	}
	b.reply(chatID, fmt.Sprintf("%q removed from the stop list.", args))
}

func (b *Bot) handleSources(ctx context.Context, chatID int64, _ string) {
	sources, err := b.store.ListSources(ctx)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, FormatSourceList(sources))
}

func (b *Bot) handleAddSource(ctx context.Context, chatID int64, args string) {
	if args == "" {
		b.reply(chatID, "Usage: /addsource <url>")
		return
	}

	title, err := b.resolver.Resolve(ctx, args)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Failed to read feed: %v", err))
		return
	}

	src := &model.Source{URL: args, Title: title}
	added, err := b.store.AddSource(ctx, src)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Failed to save source: %v", err))
		return
	}
	if !added {
		b.reply(chatID, "This source is already registered.")
		return
	}
	b.reply(chatID, fmt.Sprintf("Source added.\n#%d %s\nURL: %s", src.ID, src.Title, src.URL))
}

func (b *Bot) handleRemoveSource(ctx context.Context, chatID int64, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /rmsource <id>")
		return
	}
	deleted, err := b.store.DeleteSource(ctx, id)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error deleting source: %v", err))
		return
	}
	if !deleted {
		b.reply(chatID, fmt.Sprintf("Source #%d not found.", id))
		return
	}
	b.reply(chatID, fmt.Sprintf("Source #%d deleted.", id))
}

func (b *Bot) handleExport(ctx context.Context, chatID int64, _ string) {
	leads, err := b.store.ListLeadsForExport(ctx, exportLimit)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	if len(leads) == 0 {
		b.reply(chatID, "No leads to export.")
		return
	}

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, leads); err != nil {
		b.reply(chatID, fmt.Sprintf("Export failed: %v", err))
		return
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: "leads_export.csv", Bytes: buf.Bytes()})
	doc.Caption = fmt.Sprintf("%d lead(s)", len(leads))
	if _, err := b.api.Send(doc); err != nil {
		b.log.Error("send export", "chat_id", chatID, "error", err)
		b.reply(chatID, "Failed to send the export.")
	}
}

func (b *Bot) handleClear(_ context.Context, chatID int64, _ string) {
	msg := tgbotapi.NewMessage(chatID, "Delete the whole lead history? This cannot be undone.")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Yes, delete", cbClearConfirm),
			tgbotapi.NewInlineKeyboardButtonData("Cancel", cbNoop),
		),
	)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send clear confirmation", "error", err)
	}
}
