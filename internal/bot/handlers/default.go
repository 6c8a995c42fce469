package handlers

import (
	"context"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	botservice "github.com/region23/sessionboard/internal/bot/service"
	"github.com/region23/sessionboard/pkg/logger"
)

// DefaultHandler обрабатывает неопознанные сообщения
type DefaultHandler struct {
	messenger *botservice.Service
	log       *logger.Logger
}

// NewDefaultHandler создает новый обработчик по умолчанию
func NewDefaultHandler(messenger *botservice.Service, log *logger.Logger) *DefaultHandler {
	return &DefaultHandler{messenger: messenger, log: log}
}

// Handle напоминает, как пользоваться ботом
func (h *DefaultHandler) Handle(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	chatID := update.Message.Chat.ID
	if err := h.messenger.SendSimpleMessage(ctx, chatID, "Неизвестная команда. Нажмите /help, чтобы увидеть список команд."); err != nil {
		h.log.Error("Failed to send default message",
			logger.Int64("chat_id", chatID),
			logger.Error(err),
		)
	}
}
