package handlers

import (
	"fmt"
	"strings"

	"github.com/go-telegram/bot/models"

	"github.com/region23/sessionboard/internal/scheduler"
	"github.com/region23/sessionboard/internal/service"
	sbmodels "github.com/region23/sessionboard/internal/storage/models"
	"github.com/region23/sessionboard/pkg/errors"
)

const helpText = `Запись на выступления.

/week: сессии выбранной недели
/next, /prev: переключить неделю
/signup <номер сессии> <минуты> <тема>: записаться
/mine: мои записи и их отмена`

const adminHelpText = `

Администрирование:
/sessions: ближайшие даты сессий
/cancelsession <ГГГГ-ММ-ДД>: отменить сессии даты
/restore <ГГГГ-ММ-ДД>: вернуть сессии даты`

var errorMessages = map[string]string{
	errors.ErrInvalidAttendee.Code:    "Укажите имя участника.",
	errors.ErrInvalidTopic.Code:       "Укажите тему выступления.",
	errors.ErrInvalidDuration.Code:    "Длительность должна быть не меньше 5 минут и кратна 5.",
	errors.ErrSlotOutsideSession.Code: "Запись не помещается в окно сессии.",
	errors.ErrNotEnoughCapacity.Code:  "В сессии не хватает свободного времени.",
	errors.ErrSessionCanceled.Code:    "Сессии этой даты отменены.",
	errors.ErrSessionInPast.Code:      "Сессия уже началась.",
	errors.ErrWeekInPast.Code:         "Выбрана прошедшая неделя, переключитесь командой /next.",
	errors.ErrSessionNotFound.Code:    "Сессия не найдена на выбранной неделе.",
	errors.ErrSlotNotFound.Code:       "Запись не найдена.",
	errors.ErrNotSlotOwner.Code:       "Это чужая запись.",
	errors.ErrInvalidDate.Code:        "Неверная дата, используйте формат ГГГГ-ММ-ДД.",
	errors.ErrInvalidTime.Code:        "Неверное время.",
}

// errorText возвращает понятное пользователю описание ошибки
func errorText(err error) string {
	if appErr, ok := errors.GetAppError(err); ok {
		if msg, ok := errorMessages[appErr.Code]; ok {
			return msg
		}
	}
	return "Произошла ошибка, попробуйте позже."
}

// formatWeek описывает неделю с пронумерованными сессиями
func formatWeek(view service.WeekView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Неделя: %s\n", view.Label)
	if !view.InFuture {
		b.WriteString("Неделя прошла, запись закрыта.\n")
	}

	for i, s := range view.Sessions {
		b.WriteString("\n")
		fmt.Fprintf(&b, "%d. %s, %s %s", i+1, s.Name, s.Start.Format("02.01"), s.GetFormattedTime())
		switch {
		case s.Canceled:
			b.WriteString(" (отменена)")
		case s.Past:
			b.WriteString(" (прошла)")
		default:
			fmt.Fprintf(&b, " (свободно %d мин)", s.Available)
		}
		b.WriteString("\n")

		for _, slot := range s.Slots {
			fmt.Fprintf(&b, "   %s\n", formatSlot(slot))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatSlot(slot sbmodels.Slot) string {
	line := fmt.Sprintf("%s %s: %s", slot.GetFormattedTime(), slot.Attendee, slot.Topic)
	if len(slot.Categories) > 0 {
		line += " [" + strings.Join(slot.Categories, ", ") + "]"
	}
	return line
}

func formatSessionDates(dates []scheduler.SessionDate) string {
	if len(dates) == 0 {
		return "В ближайшие дни сессий нет."
	}
	var b strings.Builder
	b.WriteString("Ближайшие даты сессий:")
	for _, d := range dates {
		status := "по расписанию"
		if d.Canceled {
			status = "отменены"
		}
		fmt.Fprintf(&b, "\n%s: %s", d.Date, status)
	}
	return b.String()
}

// attendeeName возвращает имя пользователя Telegram для записи
func attendeeName(user *models.User) string {
	if user == nil {
		return ""
	}
	name := strings.TrimSpace(user.FirstName + " " + user.LastName)
	if name == "" {
		name = user.Username
	}
	return name
}

// ParseCommand отделяет команду (без @имя_бота) от аргументов
func ParseCommand(text string) (string, []string) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil
	}
	cmd, _, _ := strings.Cut(fields[0], "@")
	return strings.ToLower(cmd), fields[1:]
}
