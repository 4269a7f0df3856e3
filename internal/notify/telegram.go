package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramBot is the slice of the bot API the sender needs; tests inject
// a fake.
type TelegramBot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// BotFactory builds the bot client, indirected for tests.
type BotFactory func(token string) (TelegramBot, error)

var defaultBotFactory BotFactory = func(token string) (TelegramBot, error) {
	return tgbotapi.NewBotAPI(token)
}

// Telegram message size limit is 4096; chunk below it, preferring
// newline boundaries.
const telegramMaxLen = 4000

// TelegramSender delivers as Telegram messages with HTML formatting,
// falling back to plain text when the API rejects the markup.
type TelegramSender struct {
	bot    TelegramBot
	chatID int64
}

type TelegramOptions struct {
	Token  string
	ChatID string
}

func NewTelegramSender(opts TelegramOptions) (*TelegramSender, error) {
	return NewTelegramSenderWithFactory(opts, defaultBotFactory)
}

func NewTelegramSenderWithFactory(opts TelegramOptions, factory BotFactory) (*TelegramSender, error) {
	chatID, err := strconv.ParseInt(opts.ChatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid telegram chat id %q: %w", opts.ChatID, err)
	}
	bot, err := factory(opts.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	return &TelegramSender{bot: bot, chatID: chatID}, nil
}

func (t *TelegramSender) Channel() string { return "telegram" }

func (t *TelegramSender) Send(ctx context.Context, subject, htmlBody string) error {
	content := "<b>" + escapeHTML(subject) + "</b>\n\n" + htmlBody
	for len(content) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		chunk := content
		if len(chunk) > telegramMaxLen {
			idx := strings.LastIndex(chunk[:telegramMaxLen], "\n")
			if idx > 0 {
				chunk = chunk[:idx]
			} else {
				chunk = chunk[:telegramMaxLen]
			}
		}
		content = content[len(chunk):]

		msg := tgbotapi.NewMessage(t.chatID, chunk)
		msg.ParseMode = tgbotapi.ModeHTML
		if _, err := t.bot.Send(msg); err != nil {
			// The API rejects unsupported tags wholesale; retry the
			// chunk as plain text before giving up.
			msg.ParseMode = ""
			if _, err2 := t.bot.Send(msg); err2 != nil {
				return fmt.Errorf("send telegram message: %w", err2)
			}
		}
	}
	return nil
}

func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
