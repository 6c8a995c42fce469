package service

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"github.com/region23/sessionboard/internal/scheduler"
	"github.com/region23/sessionboard/pkg/errors"
	"github.com/region23/sessionboard/pkg/logger"
)

// API: методы Telegram Bot API, которыми пользуется бот.
// *bot.Bot удовлетворяет этому интерфейсу.
type API interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*tgmodels.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
	DeleteMessage(ctx context.Context, params *bot.DeleteMessageParams) (bool, error)
}

// Service отправляет сообщения в Telegram и доставляет напоминания
type Service struct {
	api      API
	adminIDs []int64
	log      *logger.Logger
}

var _ scheduler.NotificationSender = (*Service)(nil)

// NewService создает сервис поверх Telegram API
func NewService(api API, adminIDs []int64, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Default()
	}
	return &Service{
		api:      api,
		adminIDs: adminIDs,
		log:      log,
	}
}

// IsAdmin сообщает, может ли пользователь отменять сессии
func (s *Service) IsAdmin(userID int64) bool {
	return slices.Contains(s.adminIDs, userID)
}

// SendMessage отправляет сообщение пользователю
func (s *Service) SendMessage(ctx context.Context, chatID int64, text string, replyMarkup tgmodels.ReplyMarkup) error {
	params := &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: replyMarkup,
	}

	if _, err := s.api.SendMessage(ctx, params); err != nil {
		return errors.ErrTelegramAPI.WithError(err)
	}
	return nil
}

// SendSimpleMessage отправляет простое текстовое сообщение
func (s *Service) SendSimpleMessage(ctx context.Context, chatID int64, text string) error {
	return s.SendMessage(ctx, chatID, text, nil)
}

// SendError отправляет сообщение об ошибке пользователю
func (s *Service) SendError(ctx context.Context, chatID int64, message string) {
	if err := s.SendSimpleMessage(ctx, chatID, message); err != nil {
		s.log.Error("Failed to send error message",
			logger.Int64("chat_id", chatID),
			logger.Error(err),
		)
	}
}

// AnswerCallbackQuery отвечает на callback query
func (s *Service) AnswerCallbackQuery(ctx context.Context, callbackQueryID, text string) error {
	params := &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackQueryID,
		Text:            text,
	}

	if _, err := s.api.AnswerCallbackQuery(ctx, params); err != nil {
		return errors.ErrTelegramAPI.WithError(err)
	}
	return nil
}

// DeleteMessage удаляет сообщение
func (s *Service) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	params := &bot.DeleteMessageParams{
		ChatID:    chatID,
		MessageID: messageID,
	}

	if _, err := s.api.DeleteMessage(ctx, params); err != nil {
		return errors.ErrTelegramAPI.WithError(err)
	}
	return nil
}

// SendNotification отправляет уведомление пользователю
func (s *Service) SendNotification(ctx context.Context, chatID int64, message string) error {
	return s.SendSimpleMessage(ctx, chatID, message)
}

// SendSlotReminder напоминает участнику о скором выступлении
func (s *Service) SendSlotReminder(ctx context.Context, reminder scheduler.Reminder) error {
	return s.SendNotification(ctx, reminder.ChatID, ReminderText(reminder))
}

// ReminderText формирует текст напоминания
func ReminderText(reminder scheduler.Reminder) string {
	slot := reminder.Slot
	var b strings.Builder
	fmt.Fprintf(&b, "Напоминание: %s, ваше выступление скоро начнется.\n", slot.Attendee)
	fmt.Fprintf(&b, "%s, %s %s\n", reminder.SessionName, slot.Start.Format("02.01.2006"), slot.GetFormattedTime())
	fmt.Fprintf(&b, "Тема: %s", slot.Topic)
	return b.String()
}
