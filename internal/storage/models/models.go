package models

import (
	"fmt"
	"strings"
	"time"
)

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04"

	sessionIDPrefix = "session-"
	slotIDPrefix    = "slot-"
)

// Date представляет календарную дату без времени и часового пояса
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf возвращает календарную дату момента t в его часовом поясе
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate разбирает дату в формате YYYY-MM-DD.
// Полная метка RFC 3339 тоже принимается: берется дата в ее собственном смещении.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return DateOf(t), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return DateOf(t), nil
	}
	return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
}

// String возвращает дату в формате YYYY-MM-DD
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// IsZero сообщает, что дата не задана
func (d Date) IsZero() bool {
	return d == Date{}
}

// In возвращает полночь даты в часовом поясе loc
func (d Date) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// At возвращает момент времени c в дату d в часовом поясе loc
func (d Date) At(c Clock, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, c.Hour, c.Minute, 0, 0, loc)
}

// AddDays сдвигает дату на n дней
func (d Date) AddDays(n int) Date {
	return DateOf(d.In(time.UTC).AddDate(0, 0, n))
}

// Weekday возвращает день недели
func (d Date) Weekday() time.Weekday {
	return d.In(time.UTC).Weekday()
}

// Before сообщает, что d раньше other
func (d Date) Before(other Date) bool {
	return d.In(time.UTC).Before(other.In(time.UTC))
}

// After сообщает, что d позже other
func (d Date) After(other Date) bool {
	return d.In(time.UTC).After(other.In(time.UTC))
}

// MarshalText реализует encoding.TextMarshaler
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText реализует encoding.TextUnmarshaler
func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Clock представляет время суток с точностью до минуты
type Clock struct {
	Hour   int
	Minute int
}

// ClockOf возвращает время суток момента t
func ClockOf(t time.Time) Clock {
	return Clock{Hour: t.Hour(), Minute: t.Minute()}
}

// ParseClock разбирает время в формате HH:MM
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse(clockLayout, strings.TrimSpace(s))
	if err != nil {
		return Clock{}, fmt.Errorf("invalid time %q: expected HH:MM", s)
	}
	return ClockOf(t), nil
}

// String возвращает время в формате HH:MM
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Minutes возвращает количество минут от полуночи
func (c Clock) Minutes() int {
	return c.Hour*60 + c.Minute
}

// idPart возвращает время в форме HH-MM для идентификаторов
func (c Clock) idPart() string {
	return fmt.Sprintf("%02d-%02d", c.Hour, c.Minute)
}

// MarshalText реализует encoding.TextMarshaler
func (c Clock) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText реализует encoding.TextUnmarshaler
func (c *Clock) UnmarshalText(b []byte) error {
	parsed, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// SessionID идентифицирует сессию по дате и времени начала
type SessionID struct {
	Date  Date
	Start Clock
}

// NewSessionID строит идентификатор сессии из момента начала
func NewSessionID(start time.Time) SessionID {
	return SessionID{Date: DateOf(start), Start: ClockOf(start)}
}

// ParseSessionID разбирает строку вида session-YYYY-MM-DD-HH-MM
func ParseSessionID(s string) (SessionID, error) {
	rest, ok := strings.CutPrefix(s, sessionIDPrefix)
	if !ok {
		return SessionID{}, fmt.Errorf("invalid session id %q", s)
	}
	// YYYY-MM-DD-HH-MM
	if len(rest) != len("2006-01-02-15-04") {
		return SessionID{}, fmt.Errorf("invalid session id %q", s)
	}
	date, err := time.Parse(dateLayout, rest[:10])
	if err != nil || rest[10] != '-' {
		return SessionID{}, fmt.Errorf("invalid session id %q", s)
	}
	start, err := parseIDClock(rest[11:])
	if err != nil {
		return SessionID{}, fmt.Errorf("invalid session id %q: %w", s, err)
	}
	return SessionID{Date: DateOf(date), Start: start}, nil
}

// String возвращает ключ сессии session-YYYY-MM-DD-HH-MM
func (id SessionID) String() string {
	return sessionIDPrefix + id.Date.String() + "-" + id.Start.idPart()
}

// IsZero сообщает, что идентификатор не задан
func (id SessionID) IsZero() bool {
	return id == SessionID{}
}

// MarshalText реализует encoding.TextMarshaler
func (id SessionID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText реализует encoding.TextUnmarshaler
func (id *SessionID) UnmarshalText(b []byte) error {
	parsed, err := ParseSessionID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// SlotID идентифицирует запись по дате, началу и концу
type SlotID struct {
	Date  Date
	Start Clock
	End   Clock
}

// NewSlotID строит идентификатор записи из ее интервала
func NewSlotID(start, end time.Time) SlotID {
	return SlotID{Date: DateOf(start), Start: ClockOf(start), End: ClockOf(end)}
}

// ParseSlotID разбирает строку вида slot-YYYY-MM-DD-HH-MM-HH-MM
func ParseSlotID(s string) (SlotID, error) {
	rest, ok := strings.CutPrefix(s, slotIDPrefix)
	if !ok || len(rest) != len("2006-01-02-15-04-15-04") {
		return SlotID{}, fmt.Errorf("invalid slot id %q", s)
	}
	date, err := time.Parse(dateLayout, rest[:10])
	if err != nil || rest[10] != '-' || rest[16] != '-' {
		return SlotID{}, fmt.Errorf("invalid slot id %q", s)
	}
	start, err := parseIDClock(rest[11:16])
	if err != nil {
		return SlotID{}, fmt.Errorf("invalid slot id %q: %w", s, err)
	}
	end, err := parseIDClock(rest[17:])
	if err != nil {
		return SlotID{}, fmt.Errorf("invalid slot id %q: %w", s, err)
	}
	return SlotID{Date: DateOf(date), Start: start, End: end}, nil
}

// String возвращает ключ записи slot-YYYY-MM-DD-HH-MM-HH-MM
func (id SlotID) String() string {
	return slotIDPrefix + id.Date.String() + "-" + id.Start.idPart() + "-" + id.End.idPart()
}

// MarshalText реализует encoding.TextMarshaler
func (id SlotID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText реализует encoding.TextUnmarshaler
func (id *SlotID) UnmarshalText(b []byte) error {
	parsed, err := ParseSlotID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func parseIDClock(s string) (Clock, error) {
	t, err := time.Parse("15-04", s)
	if err != nil {
		return Clock{}, err
	}
	return ClockOf(t), nil
}

// Slot представляет запись участника внутри сессии
type Slot struct {
	ID         SlotID    `json:"id"`
	Start      time.Time `json:"start_time"`
	End        time.Time `json:"end_time"`
	Attendee   string    `json:"attendee,omitempty"`
	Topic      string    `json:"topic"`
	Categories []string  `json:"categories,omitempty"`
}

// NewSlot строит запись с детерминированным идентификатором
func NewSlot(start, end time.Time, attendee, topic string, categories []string) Slot {
	return Slot{
		ID:         NewSlotID(start, end),
		Start:      start,
		End:        end,
		Attendee:   attendee,
		Topic:      topic,
		Categories: append([]string(nil), categories...),
	}
}

// IsBooked проверяет, есть ли у записи участник
func (s Slot) IsBooked() bool {
	return s.Attendee != ""
}

// Minutes возвращает длительность записи в целых минутах
func (s Slot) Minutes() int {
	return int(s.End.Sub(s.Start) / time.Minute)
}

// GetFormattedTime возвращает отформатированное время записи
func (s Slot) GetFormattedTime() string {
	return ClockOf(s.Start).String() + " - " + ClockOf(s.End).String()
}

// Clone возвращает копию записи без общих срезов
func (s Slot) Clone() Slot {
	s.Categories = append([]string(nil), s.Categories...)
	return s
}

// Session представляет фиксированное окно выступлений в конкретный день
type Session struct {
	ID    SessionID `json:"id"`
	Name  string    `json:"name"`
	Start time.Time `json:"start_time"`
	End   time.Time `json:"end_time"`
	Slots []Slot    `json:"slots"`
}

// Date возвращает дату сессии
func (s Session) Date() Date {
	return s.ID.Date
}

// Minutes возвращает длину окна сессии в минутах
func (s Session) Minutes() int {
	return int(s.End.Sub(s.Start) / time.Minute)
}

// BookedMinutes возвращает сумму длительностей всех записей
func (s Session) BookedMinutes() int {
	total := 0
	for _, slot := range s.Slots {
		total += slot.Minutes()
	}
	return total
}

// Contains проверяет, лежит ли [start,end) внутри окна сессии
func (s Session) Contains(start, end time.Time) bool {
	return !start.Before(s.Start) && !end.After(s.End) && start.Before(end)
}

// GetFormattedTime возвращает отформатированное окно сессии
func (s Session) GetFormattedTime() string {
	return ClockOf(s.Start).String() + " - " + ClockOf(s.End).String()
}

// Clone возвращает глубокую копию сессии
func (s Session) Clone() Session {
	slots := make([]Slot, len(s.Slots))
	for i, slot := range s.Slots {
		slots[i] = slot.Clone()
	}
	s.Slots = slots
	return s
}

// SessionWindow описывает одно окно в шаблоне недели
type SessionWindow struct {
	Name  string `json:"name" yaml:"name"`
	Start Clock  `json:"start" yaml:"start"`
	End   Clock  `json:"end" yaml:"end"`
}

// Minutes возвращает длину окна в минутах
func (w SessionWindow) Minutes() int {
	return w.End.Minutes() - w.Start.Minutes()
}

// SessionTemplate описывает, в какой день недели и в какие окна проходят сессии
type SessionTemplate struct {
	Weekday time.Weekday    `json:"weekday" yaml:"-"`
	Windows []SessionWindow `json:"windows" yaml:"windows"`
}

// DefaultTemplate возвращает стандартное расписание: три окна в четверг
func DefaultTemplate() SessionTemplate {
	return SessionTemplate{
		Weekday: time.Thursday,
		Windows: []SessionWindow{
			{Name: "Session 1", Start: Clock{9, 35}, End: Clock{10, 10}},
			{Name: "Session 2", Start: Clock{10, 10}, End: Clock{10, 45}},
			{Name: "Session 3", Start: Clock{10, 55}, End: Clock{11, 30}},
		},
	}
}
