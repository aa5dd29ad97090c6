package services

import (
	"context"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"github.com/ad/go-course-progress/internal/logger"
)

// MessageSender is the subset of *bot.Bot the services need.
type MessageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*tgmodels.Message, error)
}

type MessageManager struct {
	sender   MessageSender
	maxRetry int
	log      *logger.Logger
}

func NewMessageManager(sender MessageSender, log *logger.Logger) *MessageManager {
	if log == nil {
		log = logger.Nop()
	}
	return &MessageManager{
		sender:   sender,
		maxRetry: 2,
		log:      log.With("component", "message_manager"),
	}
}

func (m *MessageManager) SendWithRetry(ctx context.Context, params *bot.SendMessageParams) (*tgmodels.Message, error) {
	var lastErr error
	for attempt := 0; attempt < m.maxRetry; attempt++ {
		msg, err := m.sender.SendMessage(ctx, params)
		if err == nil {
			return msg, nil
		}
		lastErr = err
	}
	m.log.Error("failed to send message", "chat_id", params.ChatID, "error", lastErr)
	return nil, lastErr
}

// Reply sends plain text to chatID, dropping the error after logging it.
func (m *MessageManager) Reply(ctx context.Context, chatID int64, text string) {
	_, _ = m.SendWithRetry(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
}
