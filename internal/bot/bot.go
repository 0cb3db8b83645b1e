package bot

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/tazhate/luach/internal/domain"
	"github.com/tazhate/luach/internal/outbox"
)

// Scheme is the recipient scheme handled by the bot: "telegram:<chat id>".
const Scheme = "telegram"

// Bot delivers digests to Telegram chats and answers the few commands needed
// to link a chat to a user.
type Bot struct {
	api *tgbotapi.BotAPI
	log logrus.FieldLogger
}

func New(token string, log logrus.FieldLogger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return NewWithAPI(api, log), nil
}

func NewWithAPI(api *tgbotapi.BotAPI, log logrus.FieldLogger) *Bot {
	log.WithField("username", api.Self.UserName).Info("telegram bot authorized")
	return &Bot{api: api, log: log}
}

func (b *Bot) Scheme() string {
	return Scheme
}

// Send delivers a queued digest. Telegram HTML has no lists or headings, so
// the plain-text rendering is sent under a bold subject.
func (b *Bot) Send(ctx context.Context, m *domain.OutgoingMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	chatID, err := strconv.ParseInt(outbox.Address(m.Recipient), 10, 64)
	if err != nil {
		return fmt.Errorf("bad telegram recipient %q: %w", m.Recipient, err)
	}
	return b.SendMessage(chatID, FormatDigest(m))
}

func (b *Bot) SendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := b.api.Send(msg)
	return err
}

// FormatDigest renders a digest as Telegram HTML.
func FormatDigest(m *domain.OutgoingMessage) string {
	var sb strings.Builder
	sb.WriteString("<b>")
	sb.WriteString(html.EscapeString(m.Subject))
	sb.WriteString("</b>\n\n")
	sb.WriteString(html.EscapeString(strings.TrimSpace(m.Text)))
	return sb.String()
}

// Start polls for updates until ctx is done.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(update)
		}
	}
}

func (b *Bot) handleUpdate(update tgbotapi.Update) {
	if update.Message == nil || !update.Message.IsCommand() {
		return
	}
	if reply := b.reply(update.Message); reply != "" {
		if err := b.SendMessage(update.Message.Chat.ID, reply); err != nil {
			b.log.WithError(err).WithField("chat_id", update.Message.Chat.ID).Error("reply failed")
		}
	}
}

func (b *Bot) reply(msg *tgbotapi.Message) string {
	switch msg.Command() {
	case "start", "id":
		return fmt.Sprintf("Reminders for this chat go to recipient <code>%s:%d</code>.\n"+
			"Set it with <code>luach settings set --recipient %s:%d</code>.",
			Scheme, msg.Chat.ID, Scheme, msg.Chat.ID)
	case "help":
		return "/id shows the recipient address of this chat."
	}
	return ""
}
