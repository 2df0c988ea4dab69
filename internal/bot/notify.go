package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"lead_bot/internal/model"
)

// Telegram allows about 30 messages per second per bot; stay below that.
const sendInterval = 50 * time.Millisecond

// Notifier delivers lead notifications through Telegram.
type Notifier struct {
	api     API
	adminID int64
	limiter *rate.Limiter
	log     *slog.Logger
}

// NewNotifier creates a Notifier that falls back to adminID when no channel is configured.
func NewNotifier(api API, adminID int64, log *slog.Logger) *Notifier {
	return &Notifier{
		api:     api,
		adminID: adminID,
		limiter: rate.NewLimiter(rate.Every(sendInterval), 1),
		log:     log,
	}
}

// NotifyLead sends the lead message with its action buttons to the target chat.
func (n *Notifier) NotifyLead(ctx context.Context, target model.DeliveryTarget, lead *model.Lead) error {
	chatID := n.adminID
	if target.Kind == model.TargetChannel && target.ChannelID != 0 {
		chatID = target.ChannelID
	}

	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for send slot: %w", err)
	}

	msg := tgbotapi.NewMessage(chatID, FormatLead(lead))
	msg.DisableWebPagePreview = true
	msg.ReplyMarkup = LeadKeyboard(lead.ID)
	if _, err := n.api.Send(msg); err != nil {
		return fmt.Errorf("send lead %d to chat %d: %w", lead.ID, chatID, err)
	}

	n.log.Debug("lead sent", "lead_id", lead.ID, "chat_id", chatID)
	return nil
}
