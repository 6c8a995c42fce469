package scheduler

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/region23/sessionboard/internal/storage/models"
)

// Cutoff: момент недели, после которого текущая неделя считается прошедшей
type Cutoff struct {
	Weekday time.Weekday
	Clock   models.Clock
}

// DefaultCutoff возвращает стандартную границу: четверг 11:30
func DefaultCutoff() Cutoff {
	return Cutoff{Weekday: time.Thursday, Clock: models.Clock{Hour: 11, Minute: 30}}
}

// StartOfWeek возвращает понедельник 00:00 недели, в которую попадает t,
// в часовом поясе t
func StartOfWeek(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	y, m, d := t.Date()
	return time.Date(y, m, d-offset, 0, 0, 0, 0, t.Location())
}

// DayOfWeek возвращает дату дня weekday в неделе, начинающейся с monday
func DayOfWeek(monday time.Time, weekday time.Weekday) models.Date {
	offset := (int(weekday) + 6) % 7
	return models.DateOf(monday).AddDays(offset)
}

// CutoffOf возвращает момент границы внутри недели monday
func (c Cutoff) CutoffOf(monday time.Time) time.Time {
	return DayOfWeek(monday, c.Weekday).At(c.Clock, monday.Location())
}

// InitialWeek выбирает неделю при старте: текущую, либо следующую,
// если now уже позже границы текущей недели
func InitialWeek(now time.Time, cutoff Cutoff) time.Time {
	week := StartOfWeek(now)
	if now.After(cutoff.CutoffOf(week)) {
		week = ShiftWeek(week, 1)
	}
	return week
}

// ShiftWeek сдвигает понедельник на n календарных недель; результат всегда
// полночь, в том числе через переход на летнее время
func ShiftWeek(monday time.Time, n int) time.Time {
	y, m, d := monday.Date()
	return time.Date(y, m, d+7*n, 0, 0, 0, 0, monday.Location())
}

// FormatWeekRange возвращает подпись недели вида "May 6 - 12, 2024"
func FormatWeekRange(monday time.Time) string {
	end := monday.AddDate(0, 0, 6)
	switch {
	case monday.Month() == end.Month():
		return fmt.Sprintf("%s - %s", monday.Format("January 2"), end.Format("2, 2006"))
	case monday.Year() == end.Year():
		return fmt.Sprintf("%s - %s", monday.Format("January 2"), end.Format("January 2, 2006"))
	default:
		return fmt.Sprintf("%s - %s", monday.Format("January 2, 2006"), end.Format("January 2, 2006"))
	}
}

var rruleWeekdays = [...]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}

// SessionDates возвращает даты дня weekday в интервале [from, from+days)
// по еженедельному правилу повторения
func SessionDates(from time.Time, days int, weekday time.Weekday) ([]models.Date, error) {
	if days <= 0 {
		return []models.Date{}, nil
	}

	y, m, d := from.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, from.Location())
	until := start.AddDate(0, 0, days)

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Byweekday: []rrule.Weekday{rruleWeekdays[weekday]},
		Dtstart:   start,
		Until:     until,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build recurrence rule: %w", err)
	}

	occurrences := rule.Between(start, until, true)
	dates := make([]models.Date, 0, len(occurrences))
	for _, occ := range occurrences {
		// Until включителен, а интервал полуоткрыт
		if !occ.Before(until) {
			continue
		}
		dates = append(dates, models.DateOf(occ.In(from.Location())))
	}
	return dates, nil
}
