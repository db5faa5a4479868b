package notification

import (
	"context"
	"fmt"
	"log"
	"strings"

	tele "gopkg.in/telebot.v3"
)

// TelegramNotifier sends alerts to a Telegram chat via the Bot API.
type TelegramNotifier struct {
	bot    *tele.Bot
	chatID int64
}

// NewTelegramNotifier creates a Telegram notifier.
// token: Bot API token from @BotFather.
// chatID: target chat/group/channel ID.
func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	bot, err := tele.NewBot(tele.Settings{
		Token:  token,
		Client: nil, // default HTTP client
		Poller: nil, // send-only, no updates
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: create bot: %w", err)
	}
	return &TelegramNotifier{bot: bot, chatID: chatID}, nil
}

func (t *TelegramNotifier) Send(ctx context.Context, alert Alert) error {
	emoji := "ℹ️"
	switch alert.Level {
	case AlertWarning:
		emoji = "⚠️"
	case AlertCritical:
		emoji = "🚨"
	}

	text := fmt.Sprintf("%s *%s*\n\n%s",
		emoji, escapeMarkdown(alert.Title), escapeMarkdown(alert.Message))

	_, err := t.bot.Send(tele.ChatID(t.chatID), text, tele.ModeMarkdownV2)
	if err != nil {
		return fmt.Errorf("telegram: send: %w", err)
	}

	log.Printf("[telegram] sent alert: %s", alert.Title)
	return nil
}

// escapeMarkdown escapes special characters for Telegram MarkdownV2.
func escapeMarkdown(s string) string {
	const specials = `_*[]()~` + "`" + `>#+-=|{}.!`
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(specials, s[i]) >= 0 {
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
