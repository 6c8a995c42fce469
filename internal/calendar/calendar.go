package calendar

import (
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/region23/sessionboard/internal/storage/models"
)

const (
	productID = "-//region23//sessionboard//EN"
	uidDomain = "sessionboard"
)

// Options управляет содержимым календаря
type Options struct {
	Name string
	// Canceled сообщает, отменены ли сессии даты
	Canceled func(models.Date) bool
	// Stamp: значение DTSTAMP, обычно текущее время
	Stamp time.Time
}

// Build собирает календарь: событие на каждую сессию и на каждую занятую запись.
// Сессии отмененных дат получают STATUS:CANCELLED вместе со своими записями.
func Build(sessions []models.Session, opts Options) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}
	if len(sessions) > 0 {
		cal.SetXWRTimezone(sessions[0].Start.Location().String())
	}

	stamp := opts.Stamp
	if stamp.IsZero() {
		stamp = time.Now()
	}

	for _, s := range sessions {
		canceled := opts.Canceled != nil && opts.Canceled(s.Date())

		ev := cal.AddEvent(s.ID.String() + "@" + uidDomain)
		ev.SetDtStampTime(stamp)
		ev.SetStartAt(s.Start)
		ev.SetEndAt(s.End)
		ev.SetSummary(s.Name)
		ev.SetDescription(sessionDescription(s))
		if canceled {
			ev.SetStatus(ical.ObjectStatusCancelled)
		} else {
			ev.SetStatus(ical.ObjectStatusConfirmed)
		}

		for _, slot := range s.Slots {
			if !slot.IsBooked() {
				continue
			}
			sev := cal.AddEvent(slot.ID.String() + "@" + uidDomain)
			sev.SetDtStampTime(stamp)
			sev.SetStartAt(slot.Start)
			sev.SetEndAt(slot.End)
			sev.SetSummary(fmt.Sprintf("%s: %s", slot.Attendee, slot.Topic))
			sev.SetDescription(fmt.Sprintf("%s (%s)", s.Name, s.GetFormattedTime()))
			if len(slot.Categories) > 0 {
				sev.SetProperty(ical.ComponentPropertyCategories, strings.Join(slot.Categories, ","))
			}
			if canceled {
				sev.SetStatus(ical.ObjectStatusCancelled)
			}
		}
	}

	return cal
}

// Serialize возвращает календарь в формате iCalendar
func Serialize(sessions []models.Session, opts Options) string {
	return Build(sessions, opts).Serialize()
}

func sessionDescription(s models.Session) string {
	if len(s.Slots) == 0 {
		return "No sign-ups yet"
	}
	lines := make([]string, 0, len(s.Slots))
	for _, slot := range s.Slots {
		lines = append(lines, fmt.Sprintf("%s %s: %s", slot.GetFormattedTime(), slot.Attendee, slot.Topic))
	}
	return strings.Join(lines, "\n")
}
