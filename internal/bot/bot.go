// Package bot implements the Telegram operator surface and lead delivery.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"lead_bot/internal/config"
	"lead_bot/internal/storage"
)

// API is the subset of the Telegram Bot API the application uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetMe() (tgbotapi.User, error)
	GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// NewAPI connects to Telegram with the given token.
func NewAPI(token string) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return api, nil
}

// FeedResolver validates a feed URL and returns its title.
type FeedResolver interface {
	Resolve(ctx context.Context, url string) (string, error)
}

// Controller exposes the scheduler operations the operator can trigger.
type Controller interface {
	RunNow(ctx context.Context, reason string) (int, error)
	Reschedule(interval time.Duration) error
}

type commandHandler func(ctx context.Context, chatID int64, args string)

// Bot is the Telegram bot that handles operator commands.
type Bot struct {
	api      API
	store    storage.Storage
	cfg      *config.Config
	resolver FeedResolver
	ctrl     Controller
	log      *slog.Logger

	commands  map[string]commandHandler
	callbacks []callbackRoute

	// pendingStop maps a chat to the lead whose "add stop word" button was
	// pressed; the next plain message in that chat is the phrase.
	mu          sync.Mutex
	pendingStop map[int64]int64
}

// New creates a Bot.
func New(api API, store storage.Storage, cfg *config.Config, resolver FeedResolver, ctrl Controller, log *slog.Logger) *Bot {
	b := &Bot{
		api:         api,
		store:       store,
		cfg:         cfg,
		resolver:    resolver,
		ctrl:        ctrl,
		log:         log,
		pendingStop: make(map[int64]int64),
	}
	b.commands = b.commandTable()
	b.callbacks = b.callbackTable()
	return b
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if cb := update.CallbackQuery; cb != nil {
		if cb.From == nil || !b.cfg.IsAdmin(cb.From.ID) {
			b.answerCallback(cb.ID, "Access denied.")
			return
		}
		b.handleCallback(ctx, cb)
		return
	}

	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	if msg.From == nil || !b.cfg.IsAdmin(msg.From.ID) {
		if msg.IsCommand() {
			b.reply(msg.Chat.ID, "Access denied.")
		}
		return
	}
	if msg.IsCommand() {
		b.clearPendingStop(msg.Chat.ID)
		b.handleCommand(ctx, msg)
		return
	}
	b.handleText(ctx, msg)
}

// SendMessage sends a text message to the given chat.
func (b *Bot) SendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	b.SendMessage(chatID, text)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID

	b.log.Debug("command", "cmd", cmd, "args", args, "chat_id", chatID)

	h, ok := b.commands[cmd]
	if !ok {
		b.reply(chatID, "Unknown command. Use /help for a list of commands.")
		return
	}
	h(ctx, chatID, args)
}

// handleText consumes plain messages that answer a pending prompt.
func (b *Bot) handleText(ctx context.Context, msg *tgbotapi.Message) {
	leadID, ok := b.takePendingStop(msg.Chat.ID)
	if !ok {
		return
	}

	phrase := strings.TrimSpace(msg.Text)
	if phrase == "" {
		b.setPendingStop(msg.Chat.ID, leadID)
		b.reply(msg.Chat.ID, "Empty phrase. Send the stop word again.")
		return
	}
	b.addStopWord(ctx, msg.Chat.ID, phrase)
}

func (b *Bot) setPendingStop(chatID, leadID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pendingStop[chatID] = leadID
}

func (b *Bot) takePendingStop(chatID int64) (int64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	leadID, ok := b.pendingStop[chatID]
	delete(b.pendingStop, chatID)
	return leadID, ok
}

func (b *Bot) clearPendingStop(chatID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.pendingStop, chatID)
}
