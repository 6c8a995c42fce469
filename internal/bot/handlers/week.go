package handlers

import (
	"context"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/region23/sessionboard/internal/bot/keyboard"
	botservice "github.com/region23/sessionboard/internal/bot/service"
	"github.com/region23/sessionboard/internal/service"
	"github.com/region23/sessionboard/pkg/logger"
)

// WeekHandler показывает выбранную неделю и переключает ее
type WeekHandler struct {
	board     *service.Service
	messenger *botservice.Service
	log       *logger.Logger
}

// NewWeekHandler создает обработчик команд /week, /next и /prev
func NewWeekHandler(board *service.Service, messenger *botservice.Service, log *logger.Logger) *WeekHandler {
	return &WeekHandler{board: board, messenger: messenger, log: log}
}

// Handle обрабатывает команды недели
func (h *WeekHandler) Handle(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	cmd, _ := ParseCommand(update.Message.Text)
	switch cmd {
	case "/next":
		h.Navigate(ctx, update.Message.Chat.ID, keyboard.WeekNext)
	case "/prev":
		h.Navigate(ctx, update.Message.Chat.ID, keyboard.WeekPrev)
	default:
		h.send(ctx, update.Message.Chat.ID, h.board.Week())
	}
}

// Navigate сдвигает неделю в направлении direction и показывает результат
func (h *WeekHandler) Navigate(ctx context.Context, chatID int64, direction string) {
	var view service.WeekView
	if direction == keyboard.WeekPrev {
		view = h.board.PrevWeek(ctx)
	} else {
		view = h.board.NextWeek(ctx)
	}
	h.send(ctx, chatID, view)
}

func (h *WeekHandler) send(ctx context.Context, chatID int64, view service.WeekView) {
	if err := h.messenger.SendMessage(ctx, chatID, formatWeek(view), keyboard.CreateWeekNavigationKeyboard()); err != nil {
		h.log.Error("Failed to send week",
			logger.Int64("chat_id", chatID),
			logger.Error(err),
		)
	}
}
