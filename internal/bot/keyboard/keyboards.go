package keyboard

import (
	"fmt"

	"github.com/go-telegram/bot/models"

	sbmodels "github.com/region23/sessionboard/internal/storage/models"
)

// Префиксы callback data
const (
	CancelPrefix = "CANCEL:"
	WeekPrefix   = "WEEK:"

	WeekNext = "next"
	WeekPrev = "prev"
)

// CreateWeekNavigationKeyboard создает inline клавиатуру переключения недели
func CreateWeekNavigationKeyboard() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: "« Предыдущая", CallbackData: WeekPrefix + WeekPrev},
				{Text: "Следующая »", CallbackData: WeekPrefix + WeekNext},
			},
		},
	}
}

// CreateCancelKeyboard создает inline клавиатуру отмены записей
func CreateCancelKeyboard(slots []sbmodels.Slot) *models.InlineKeyboardMarkup {
	rows := make([][]models.InlineKeyboardButton, 0, len(slots))
	for _, s := range slots {
		btn := models.InlineKeyboardButton{
			Text:         fmt.Sprintf("Отменить %s %s", s.Start.Format("02.01"), s.GetFormattedTime()),
			CallbackData: CancelPrefix + s.ID.String(),
		}
		rows = append(rows, []models.InlineKeyboardButton{btn})
	}

	return &models.InlineKeyboardMarkup{
		InlineKeyboard: rows,
	}
}
