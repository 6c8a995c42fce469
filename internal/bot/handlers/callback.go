package handlers

import (
	"context"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/region23/sessionboard/internal/bot/keyboard"
	botservice "github.com/region23/sessionboard/internal/bot/service"
	"github.com/region23/sessionboard/internal/service"
	"github.com/region23/sessionboard/pkg/logger"
)

// CallbackHandler обрабатывает callback query от inline кнопок
type CallbackHandler struct {
	board     *service.Service
	messenger *botservice.Service
	week      *WeekHandler
	log       *logger.Logger
}

// NewCallbackHandler создает новый обработчик callback query
func NewCallbackHandler(board *service.Service, messenger *botservice.Service, week *WeekHandler, log *logger.Logger) *CallbackHandler {
	return &CallbackHandler{board: board, messenger: messenger, week: week, log: log}
}

// Handle обрабатывает callback query
func (h *CallbackHandler) Handle(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	cb := update.CallbackQuery
	if cb == nil {
		return
	}

	switch {
	case strings.HasPrefix(cb.Data, keyboard.CancelPrefix):
		h.handleCancel(ctx, cb, strings.TrimPrefix(cb.Data, keyboard.CancelPrefix))
	case strings.HasPrefix(cb.Data, keyboard.WeekPrefix):
		h.answer(ctx, cb.ID, "")
		h.week.Navigate(ctx, callbackChatID(cb), strings.TrimPrefix(cb.Data, keyboard.WeekPrefix))
	default:
		h.answer(ctx, cb.ID, "Неверный выбор")
	}
}

func (h *CallbackHandler) handleCancel(ctx context.Context, cb *models.CallbackQuery, slotID string) {
	chatID := callbackChatID(cb)

	if err := h.board.CancelSignUp(ctx, slotID, attendeeName(&cb.From)); err != nil {
		h.answer(ctx, cb.ID, errorText(err))
		return
	}
	h.answer(ctx, cb.ID, "Запись отменена")

	// Кнопки старого списка больше не актуальны
	if cb.Message.Message != nil {
		if err := h.messenger.DeleteMessage(ctx, chatID, cb.Message.Message.ID); err != nil {
			h.log.Warn("Failed to delete message", logger.Error(err))
		}
	}

	if err := h.messenger.SendSimpleMessage(ctx, chatID, "Запись отменена."); err != nil {
		h.log.Error("Failed to confirm cancellation",
			logger.Int64("chat_id", chatID),
			logger.Error(err),
		)
	}
}

func (h *CallbackHandler) answer(ctx context.Context, id, text string) {
	if err := h.messenger.AnswerCallbackQuery(ctx, id, text); err != nil {
		h.log.Warn("Failed to answer callback query", logger.Error(err))
	}
}

// callbackChatID возвращает чат, из которого нажата кнопка
func callbackChatID(cb *models.CallbackQuery) int64 {
	switch {
	case cb.Message.Message != nil:
		return cb.Message.Message.Chat.ID
	case cb.Message.InaccessibleMessage != nil:
		return cb.Message.InaccessibleMessage.Chat.ID
	default:
		return cb.From.ID
	}
}
