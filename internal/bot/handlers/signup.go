package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/region23/sessionboard/internal/bot/keyboard"
	botservice "github.com/region23/sessionboard/internal/bot/service"
	"github.com/region23/sessionboard/internal/service"
	"github.com/region23/sessionboard/pkg/logger"
)

const signUpUsage = "Формат: /signup <номер сессии> <минуты> <тема>\nНапример: /signup 1 10 Профилирование Go"

// SignUpHandler обрабатывает команды /signup и /mine
type SignUpHandler struct {
	board     *service.Service
	messenger *botservice.Service
	log       *logger.Logger
}

// NewSignUpHandler создает обработчик записи
func NewSignUpHandler(board *service.Service, messenger *botservice.Service, log *logger.Logger) *SignUpHandler {
	return &SignUpHandler{board: board, messenger: messenger, log: log}
}

// Handle обрабатывает команды записи
func (h *SignUpHandler) Handle(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	cmd, args := ParseCommand(update.Message.Text)
	if cmd == "/mine" {
		h.showMine(ctx, update.Message)
		return
	}
	h.signUp(ctx, update.Message, args)
}

func (h *SignUpHandler) signUp(ctx context.Context, msg *models.Message, args []string) {
	chatID := msg.Chat.ID
	if len(args) < 3 {
		h.messenger.SendError(ctx, chatID, signUpUsage)
		return
	}

	view := h.board.Week()
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 || n > len(view.Sessions) {
		h.messenger.SendError(ctx, chatID, fmt.Sprintf("Номер сессии должен быть от 1 до %d.\n%s", len(view.Sessions), signUpUsage))
		return
	}
	minutes, err := strconv.Atoi(args[1])
	if err != nil {
		h.messenger.SendError(ctx, chatID, "Длительность указывается числом минут.\n"+signUpUsage)
		return
	}

	session := view.Sessions[n-1]
	slot, err := h.board.SignUp(ctx, service.SignUpInput{
		SessionID: session.ID.String(),
		Minutes:   minutes,
		Attendee:  attendeeName(msg.From),
		Topic:     strings.Join(args[2:], " "),
		ChatID:    chatID,
	})
	if err != nil {
		h.log.Debug("Bot sign-up rejected",
			logger.Int64("chat_id", chatID),
			logger.Error(err),
		)
		h.messenger.SendError(ctx, chatID, errorText(err))
		return
	}

	text := fmt.Sprintf("Вы записаны: %s, %s %s\nТема: %s",
		session.Name, slot.Start.Format("02.01"), slot.GetFormattedTime(), slot.Topic)
	if err := h.messenger.SendSimpleMessage(ctx, chatID, text); err != nil {
		h.log.Error("Failed to confirm sign-up",
			logger.Int64("chat_id", chatID),
			logger.Error(err),
		)
	}
}

func (h *SignUpHandler) showMine(ctx context.Context, msg *models.Message) {
	chatID := msg.Chat.ID
	slots := h.board.AttendeeSlots(attendeeName(msg.From))
	if len(slots) == 0 {
		h.messenger.SendError(ctx, chatID, "На выбранной неделе у вас нет записей.")
		return
	}

	lines := make([]string, 0, len(slots)+1)
	lines = append(lines, "Ваши записи:")
	for _, slot := range slots {
		lines = append(lines, slot.Start.Format("02.01")+" "+formatSlot(slot))
	}

	if err := h.messenger.SendMessage(ctx, chatID, strings.Join(lines, "\n"), keyboard.CreateCancelKeyboard(slots)); err != nil {
		h.log.Error("Failed to send attendee slots",
			logger.Int64("chat_id", chatID),
			logger.Error(err),
		)
	}
}
