package validation

import (
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/region23/sessionboard/internal/storage/models"
	"github.com/region23/sessionboard/pkg/errors"
)

const (
	// Granularity: шаг длительности и начала записи в минутах
	Granularity = 5
	// MinDuration: минимальная длительность записи в минутах
	MinDuration = 5

	maxAttendeeLen = 100
	maxTopicLen    = 200
	maxCategories  = 5
	maxCategoryLen = 30
)

// SignUpRequest содержит все, что нужно для проверки записи на границе
// ввода: целевую сессию, ее свободную емкость и текущее время
type SignUpRequest struct {
	Session   models.Session
	Start     time.Time
	End       time.Time
	Attendee  string
	Topic     string
	Available int
	Canceled  bool
	Now       time.Time
}

// ValidateSignUp проверяет запись перед передачей в движок
func ValidateSignUp(req SignUpRequest) error {
	if req.Canceled {
		return errors.ErrSessionCanceled.WithContext(map[string]interface{}{
			"session_id": req.Session.ID.String(),
		})
	}

	if req.Start.Before(req.Now) {
		return errors.ErrSessionInPast.WithContext(map[string]interface{}{
			"start_time": req.Start.Format(time.RFC3339),
		})
	}

	if _, err := ValidateAttendee(req.Attendee); err != nil {
		return err
	}
	if _, err := ValidateTopic(req.Topic); err != nil {
		return err
	}

	if req.Start.Second() != 0 || req.Start.Minute()%Granularity != 0 {
		return errors.ErrInvalidTime.WithContext(map[string]interface{}{
			"start_time": models.ClockOf(req.Start).String(),
			"reason":     "время начала должно быть кратно 5 минутам",
		})
	}

	minutes := int(req.End.Sub(req.Start) / time.Minute)
	if err := ValidateDuration(minutes); err != nil {
		return err
	}

	if !req.Session.Contains(req.Start, req.End) {
		return errors.ErrSlotOutsideSession.WithContext(map[string]interface{}{
			"session": req.Session.GetFormattedTime(),
			"slot":    models.ClockOf(req.Start).String() + " - " + models.ClockOf(req.End).String(),
		})
	}

	if minutes > req.Available {
		return errors.ErrNotEnoughCapacity.WithContext(map[string]interface{}{
			"requested": minutes,
			"available": req.Available,
		})
	}

	return nil
}

// ValidateDuration проверяет длительность записи в минутах
func ValidateDuration(minutes int) error {
	if minutes < MinDuration || minutes%Granularity != 0 {
		return errors.ErrInvalidDuration.WithContext(map[string]interface{}{
			"minutes": minutes,
		})
	}
	return nil
}

// ValidateAttendee проверяет имя участника и возвращает его в нормальной форме
func ValidateAttendee(name string) (string, error) {
	name = normalizeSpaces(norm.NFC.String(name))
	if name == "" {
		return "", errors.ErrInvalidAttendee
	}
	if utf8.RuneCountInString(name) > maxAttendeeLen {
		return "", errors.ErrInvalidAttendee.WithContext(map[string]interface{}{
			"reason": "имя слишком длинное (максимум 100 символов)",
		})
	}
	return name, nil
}

// ValidateTopic проверяет тему выступления
func ValidateTopic(topic string) (string, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return "", errors.ErrInvalidTopic
	}
	if utf8.RuneCountInString(topic) > maxTopicLen {
		return "", errors.ErrInvalidTopic.WithContext(map[string]interface{}{
			"reason": "тема слишком длинная (максимум 200 символов)",
		})
	}
	return topic, nil
}

// NormalizeCategories убирает пустые и повторяющиеся теги, сохраняя порядок
func NormalizeCategories(categories []string) []string {
	out := make([]string, 0, len(categories))
	seen := make(map[string]bool, len(categories))
	for _, c := range categories {
		c = strings.TrimSpace(c)
		if c == "" || utf8.RuneCountInString(c) > maxCategoryLen {
			continue
		}
		key := foldName(c)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
		if len(out) == maxCategories {
			break
		}
	}
	return out
}

// SameAttendee сравнивает имена без учета регистра, лишних пробелов
// и формы нормализации Unicode
func SameAttendee(a, b string) bool {
	return foldName(a) == foldName(b)
}

// ValidateSessionID разбирает идентификатор сессии
func ValidateSessionID(s string) (models.SessionID, error) {
	id, err := models.ParseSessionID(strings.TrimSpace(s))
	if err != nil {
		return models.SessionID{}, errors.ErrInvalidSessionID.WithError(err).WithContext(map[string]interface{}{
			"input": s,
		})
	}
	return id, nil
}

// ValidateSlotID разбирает идентификатор записи
func ValidateSlotID(s string) (models.SlotID, error) {
	id, err := models.ParseSlotID(strings.TrimSpace(s))
	if err != nil {
		return models.SlotID{}, errors.ErrInvalidSlotID.WithError(err).WithContext(map[string]interface{}{
			"input": s,
		})
	}
	return id, nil
}

// ValidateDate валидирует дату в формате YYYY-MM-DD
func ValidateDate(s string) (models.Date, error) {
	if s == "" {
		return models.Date{}, errors.ErrInvalidDate.WithContext("дата не может быть пустой")
	}
	d, err := models.ParseDate(s)
	if err != nil {
		return models.Date{}, errors.ErrInvalidDate.WithError(err).WithContext(map[string]interface{}{
			"date": s,
		})
	}
	return d, nil
}

// ValidateTime валидирует время в формате HH:MM
func ValidateTime(s string) (models.Clock, error) {
	if s == "" {
		return models.Clock{}, errors.ErrInvalidTime.WithContext("время не может быть пустым")
	}
	c, err := models.ParseClock(s)
	if err != nil {
		return models.Clock{}, errors.ErrInvalidTime.WithError(err).WithContext(map[string]interface{}{
			"time": s,
		})
	}
	return c, nil
}

func foldName(s string) string {
	return cases.Fold().String(normalizeSpaces(norm.NFC.String(s)))
}

func normalizeSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
