package handlers

import (
	"context"
	"fmt"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	botservice "github.com/region23/sessionboard/internal/bot/service"
	"github.com/region23/sessionboard/internal/service"
	"github.com/region23/sessionboard/pkg/logger"
)

// AdminHandler обрабатывает команды отмены и восстановления сессий
type AdminHandler struct {
	board     *service.Service
	messenger *botservice.Service
	log       *logger.Logger
}

// NewAdminHandler создает обработчик административных команд
func NewAdminHandler(board *service.Service, messenger *botservice.Service, log *logger.Logger) *AdminHandler {
	return &AdminHandler{board: board, messenger: messenger, log: log}
}

// Handle выполняет команду, если отправитель администратор
func (h *AdminHandler) Handle(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil {
		return
	}
	chatID := msg.Chat.ID

	if msg.From == nil || !h.messenger.IsAdmin(msg.From.ID) {
		h.messenger.SendError(ctx, chatID, "Команда доступна только администраторам.")
		return
	}

	cmd, args := ParseCommand(msg.Text)
	if cmd == "/sessions" {
		dates, err := h.board.UpcomingSessions()
		if err != nil {
			h.log.Error("Failed to list session dates", logger.Error(err))
			h.messenger.SendError(ctx, chatID, errorText(err))
			return
		}
		h.reply(ctx, chatID, formatSessionDates(dates))
		return
	}

	if len(args) != 1 {
		h.messenger.SendError(ctx, chatID, fmt.Sprintf("Формат: %s <ГГГГ-ММ-ДД>", cmd))
		return
	}

	restore := cmd == "/restore"
	changed, err := h.board.CancelSession(ctx, args[0], restore)
	if err != nil {
		h.messenger.SendError(ctx, chatID, errorText(err))
		return
	}

	h.log.Info("Session date updated from bot",
		logger.String("date", args[0]),
		logger.Bool("restore", restore),
		logger.Bool("changed", changed),
		logger.Int64("admin_id", msg.From.ID),
	)

	switch {
	case !changed && restore:
		h.reply(ctx, chatID, fmt.Sprintf("Сессии %s не были отменены.", args[0]))
	case !changed:
		h.reply(ctx, chatID, fmt.Sprintf("Сессии %s уже отменены.", args[0]))
	case restore:
		h.reply(ctx, chatID, fmt.Sprintf("Сессии %s снова по расписанию.", args[0]))
	default:
		h.reply(ctx, chatID, fmt.Sprintf("Сессии %s отменены.", args[0]))
	}
}

func (h *AdminHandler) reply(ctx context.Context, chatID int64, text string) {
	if err := h.messenger.SendSimpleMessage(ctx, chatID, text); err != nil {
		h.log.Error("Failed to send admin reply",
			logger.Int64("chat_id", chatID),
			logger.Error(err),
		)
	}
}
