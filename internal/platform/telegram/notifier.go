// Package telegram sends outbound bot messages. All sends are best-effort:
// callers fire them asynchronously and a failed delivery never fails the
// operation that triggered it.
package telegram

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"

	"cardtool-backend/internal/common/logger"
)

type Notifier struct {
	bot *bot.Bot
}

func NewNotifier(token string) (*Notifier, error) {
	b, err := bot.New(token)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram bot: %w", err)
	}
	return &Notifier{bot: b}, nil
}

// SendMessage delivers a plain-text message to the user's private chat.
func (n *Notifier) SendMessage(ctx context.Context, telegramID int64, text string) error {
	_, err := n.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: telegramID,
		Text:   text,
	})
	if err != nil {
		logger.Warn().Int64("telegram_id", telegramID).Err(err).Msg("Failed to send notification")
		return err
	}
	return nil
}
