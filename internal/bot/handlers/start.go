package handlers

import (
	"context"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	botservice "github.com/region23/sessionboard/internal/bot/service"
	"github.com/region23/sessionboard/pkg/logger"
)

// StartHandler обрабатывает команды /start и /help
type StartHandler struct {
	messenger *botservice.Service
	log       *logger.Logger
}

// NewStartHandler создает новый обработчик команды /start
func NewStartHandler(messenger *botservice.Service, log *logger.Logger) *StartHandler {
	return &StartHandler{messenger: messenger, log: log}
}

// Handle отправляет справку; администраторы видят свои команды
func (h *StartHandler) Handle(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	text := helpText
	if update.Message.From != nil && h.messenger.IsAdmin(update.Message.From.ID) {
		text += adminHelpText
	}

	if err := h.messenger.SendSimpleMessage(ctx, update.Message.Chat.ID, text); err != nil {
		h.log.Error("Failed to send help",
			logger.Int64("chat_id", update.Message.Chat.ID),
			logger.Error(err),
		)
	}
}
