package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/region23/sessionboard/internal/storage"
	"github.com/region23/sessionboard/internal/storage/models"
	"github.com/region23/sessionboard/pkg/logger"
	"github.com/region23/sessionboard/pkg/metrics"
)

// EngineConfig содержит параметры движка расписания
type EngineConfig struct {
	Template models.SessionTemplate
	Cutoff   Cutoff
	Location *time.Location
	// Now подменяет системные часы (в тестах)
	Now    func() time.Time
	Logger *logger.Logger
}

// SlotEdit описывает новые значения записи при редактировании
type SlotEdit struct {
	Start      time.Time
	End        time.Time
	Attendee   string
	Topic      string
	Categories []string
}

// SessionDate: дата, на которую приходится сессия, с признаком отмены
type SessionDate struct {
	Date     models.Date `json:"date"`
	Canceled bool        `json:"canceled"`
}

// Engine владеет курсором недели, набором отмененных дат и записями
// сессий выбранной недели. Каждая мутация сразу пишется в хранилище.
// Все методы безопасны для конкурентного использования и возвращают копии.
type Engine struct {
	mu sync.RWMutex

	store    storage.Storage
	template models.SessionTemplate
	cutoff   Cutoff
	loc      *time.Location
	now      func() time.Time
	log      *logger.Logger

	week     time.Time
	sessions []models.Session
	slots    []models.Slot
	canceled []models.Date
}

// NewEngine создает движок, загружает набор отмененных дат и выводит
// сессии начальной недели
func NewEngine(ctx context.Context, store storage.Storage, cfg EngineConfig) *Engine {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	if len(cfg.Template.Windows) == 0 {
		cfg.Template = models.DefaultTemplate()
	}
	if cfg.Cutoff == (Cutoff{}) {
		cfg.Cutoff = DefaultCutoff()
	}

	e := &Engine{
		store:    store,
		template: cfg.Template,
		cutoff:   cfg.Cutoff,
		loc:      cfg.Location,
		now:      cfg.Now,
		log:      cfg.Logger,
	}

	canceled, err := store.LoadCanceledDates(ctx)
	if err != nil {
		e.log.Error("Failed to load canceled sessions",
			logger.Error(err),
		)
	}
	e.canceled = canceled
	metrics.SetCanceledSessions(float64(len(e.canceled)))

	e.setWeekLocked(ctx, InitialWeek(e.Now(), e.cutoff))
	return e
}

// Now возвращает текущее время в часовом поясе движка
func (e *Engine) Now() time.Time {
	return e.now().In(e.loc)
}

// Location возвращает часовой пояс движка
func (e *Engine) Location() *time.Location {
	return e.loc
}

// Template возвращает шаблон недели
func (e *Engine) Template() models.SessionTemplate {
	t := e.template
	t.Windows = append([]models.SessionWindow(nil), e.template.Windows...)
	return t
}

// DeriveSessions строит сессии недели week и загружает их записи.
// Испорченные данные логируются, сессия остается пустой.
// Состояние движка не меняется.
func (e *Engine) DeriveSessions(ctx context.Context, week time.Time) []models.Session {
	monday := StartOfWeek(week.In(e.loc))
	day := DayOfWeek(monday, e.template.Weekday)

	sessions := make([]models.Session, 0, len(e.template.Windows))
	for _, w := range e.template.Windows {
		start := day.At(w.Start, e.loc)
		id := models.NewSessionID(start)

		slots, err := e.store.Load(ctx, id)
		if err != nil {
			e.log.Warn("Failed to load session slots, treating as empty",
				logger.String("session_id", id.String()),
				logger.Error(err),
			)
			slots = []models.Slot{}
		}

		sessions = append(sessions, models.Session{
			ID:    id,
			Name:  w.Name,
			Start: start,
			End:   day.At(w.End, e.loc),
			Slots: slots,
		})
	}
	return sessions
}

// setWeekLocked переключает курсор и пересобирает сессии; вызывается под mu
func (e *Engine) setWeekLocked(ctx context.Context, week time.Time) {
	e.week = StartOfWeek(week.In(e.loc))
	e.sessions = e.DeriveSessions(ctx, e.week)

	e.slots = e.slots[:0]
	for _, s := range e.sessions {
		e.slots = append(e.slots, s.Slots...)
	}
	e.updateCapacityMetrics()
}

// SetWeek переключает курсор на неделю, содержащую week
func (e *Engine) SetWeek(ctx context.Context, week time.Time) time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.setWeekLocked(ctx, week)
	return e.week
}

// Refresh перечитывает записи выбранной недели из хранилища
func (e *Engine) Refresh(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.setWeekLocked(ctx, e.week)
}

// NavigateToNextWeek сдвигает курсор на неделю вперед
func (e *Engine) NavigateToNextWeek(ctx context.Context) time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.setWeekLocked(ctx, ShiftWeek(e.week, 1))
	metrics.RecordWeekNavigation("next")
	return e.week
}

// NavigateToPreviousWeek сдвигает курсор на неделю назад
func (e *Engine) NavigateToPreviousWeek(ctx context.Context) time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.setWeekLocked(ctx, ShiftWeek(e.week, -1))
	metrics.RecordWeekNavigation("prev")
	return e.week
}

// RollOver переводит курсор на следующую неделю, если он показывает
// текущую неделю и ее граница уже пройдена
func (e *Engine) RollOver(ctx context.Context) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.Now()
	current := StartOfWeek(now)
	if !e.week.Equal(current) || !now.After(e.cutoff.CutoffOf(current)) {
		return false
	}

	e.setWeekLocked(ctx, ShiftWeek(current, 1))
	metrics.RecordWeekNavigation("rollover")
	return true
}

// Week возвращает понедельник выбранной недели
func (e *Engine) Week() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.week
}

// IsCurrentWeekInFuture сообщает, что выбранная неделя не раньше текущей
func (e *Engine) IsCurrentWeekInFuture() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.week.Before(StartOfWeek(e.Now()))
}

// Sessions возвращает копию сессий выбранной недели
func (e *Engine) Sessions() []models.Session {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]models.Session, len(e.sessions))
	for i, s := range e.sessions {
		out[i] = s.Clone()
	}
	return out
}

// Session возвращает копию сессии выбранной недели по идентификатору
func (e *Engine) Session(id models.SessionID) (models.Session, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if i := e.sessionIndex(id); i >= 0 {
		return e.sessions[i].Clone(), true
	}
	return models.Session{}, false
}

// Slots возвращает копию общего списка записей выбранной недели
func (e *Engine) Slots() []models.Slot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return cloneSlots(e.slots)
}

// FindSlot возвращает первую запись с идентификатором id и ее сессию
func (e *Engine) FindSlot(id models.SlotID) (models.Slot, models.Session, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	si, ti := e.slotIndex(id)
	if si < 0 {
		return models.Slot{}, models.Session{}, false
	}
	return e.sessions[si].Slots[ti].Clone(), e.sessions[si].Clone(), true
}

// AvailableMinutes возвращает длину окна минус сумму длительностей записей.
// Пересекающиеся записи не учитываются отдельно, так что результат может
// быть отрицательным. Для неизвестной сессии возвращает 0.
func (e *Engine) AvailableMinutes(id models.SessionID) int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	i := e.sessionIndex(id)
	if i < 0 {
		return 0
	}
	return availableMinutes(e.sessions[i])
}

// SignUpForSlot добавляет запись в сессию и сохраняет сессию.
// Движок не проверяет аргументы. Неизвестная сессия игнорируется.
func (e *Engine) SignUpForSlot(ctx context.Context, id models.SessionID, start, end time.Time, attendee, topic string, categories ...string) (models.Slot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.sessionIndex(id)
	if i < 0 {
		return models.Slot{}, false
	}

	slot := models.NewSlot(start.In(e.loc), end.In(e.loc), attendee, topic, categories)
	e.sessions[i].Slots = append(e.sessions[i].Slots, slot)
	e.slots = append(e.slots, slot)

	e.persistSessionLocked(ctx, i)
	metrics.RecordSignUp()

	e.log.Info("Sign-up created",
		logger.String("session_id", id.String()),
		logger.String("slot_id", slot.ID.String()),
		logger.String("attendee", attendee),
	)
	return slot.Clone(), true
}

// EditSignUp заменяет запись новыми значениями на том же месте списка.
// Идентификатор выводится заново из нового интервала.
// Неизвестная запись игнорируется.
func (e *Engine) EditSignUp(ctx context.Context, id models.SlotID, edit SlotEdit) (models.Slot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	si, ti := e.slotIndex(id)
	if si < 0 {
		return models.Slot{}, false
	}

	updated := models.NewSlot(edit.Start.In(e.loc), edit.End.In(e.loc), edit.Attendee, edit.Topic, edit.Categories)
	e.sessions[si].Slots[ti] = updated
	if gi := indexOfSlot(e.slots, id); gi >= 0 {
		e.slots[gi] = updated
	}

	e.persistSessionLocked(ctx, si)
	metrics.RecordSignUpEdit()

	e.log.Info("Sign-up edited",
		logger.String("old_slot_id", id.String()),
		logger.String("slot_id", updated.ID.String()),
	)
	return updated.Clone(), true
}

// CancelSignUp удаляет первую запись с идентификатором id и сохраняет
// сессию. Неизвестный идентификатор игнорируется.
func (e *Engine) CancelSignUp(ctx context.Context, id models.SlotID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	si, ti := e.slotIndex(id)
	if si < 0 {
		return false
	}

	slots := e.sessions[si].Slots
	e.sessions[si].Slots = append(slots[:ti:ti], slots[ti+1:]...)
	if gi := indexOfSlot(e.slots, id); gi >= 0 {
		e.slots = append(e.slots[:gi:gi], e.slots[gi+1:]...)
	}

	e.persistSessionLocked(ctx, si)
	metrics.RecordSignUpCancellation()

	e.log.Info("Sign-up canceled",
		logger.String("slot_id", id.String()),
	)
	return true
}

// CancelSession добавляет дату в набор отмененных (restore=false) или
// убирает ее (restore=true). Набор сохраняется целиком при каждом
// изменении. Возвращает true, если набор изменился.
func (e *Engine) CancelSession(ctx context.Context, date models.Date, restore bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := indexOfDate(e.canceled, date)
	switch {
	case !restore && i < 0:
		e.canceled = append(e.canceled, date)
	case restore && i >= 0:
		e.canceled = append(e.canceled[:i:i], e.canceled[i+1:]...)
	default:
		return false
	}

	if err := e.store.SaveCanceledDates(ctx, e.canceled); err != nil {
		e.log.Error("Failed to persist canceled sessions",
			logger.Error(err),
		)
	}
	metrics.SetCanceledSessions(float64(len(e.canceled)))

	e.log.Info("Canceled sessions changed",
		logger.String("date", date.String()),
		logger.Bool("restore", restore),
	)
	return true
}

// CanceledDates возвращает копию набора отмененных дат
func (e *Engine) CanceledDates() []models.Date {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]models.Date{}, e.canceled...)
}

// IsCanceled сообщает, отменены ли сессии даты date
func (e *Engine) IsCanceled(date models.Date) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return indexOfDate(e.canceled, date) >= 0
}

// UpcomingSlots возвращает занятые записи выбранной недели, которые
// начинаются не раньше now, по возрастанию начала
func (e *Engine) UpcomingSlots(now time.Time) []models.Slot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]models.Slot, 0)
	for _, s := range e.slots {
		if s.IsBooked() && !s.Start.Before(now) {
			out = append(out, s.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// PastSlots возвращает не более limit последних прошедших занятых записей,
// от самой поздней; limit <= 0 снимает ограничение
func (e *Engine) PastSlots(now time.Time, limit int) []models.Slot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]models.Slot, 0)
	for _, s := range e.slots {
		if s.IsBooked() && s.Start.Before(now) {
			out = append(out, s.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.After(out[j].Start) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// UpcomingSessionDates возвращает даты сессий в ближайшие days дней
// начиная с from, с признаком отмены
func (e *Engine) UpcomingSessionDates(from time.Time, days int) ([]SessionDate, error) {
	dates, err := SessionDates(from.In(e.loc), days, e.template.Weekday)
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]SessionDate, 0, len(dates))
	for _, d := range dates {
		out = append(out, SessionDate{Date: d, Canceled: indexOfDate(e.canceled, d) >= 0})
	}
	return out, nil
}

func (e *Engine) persistSessionLocked(ctx context.Context, i int) {
	s := e.sessions[i]
	if err := e.store.Save(ctx, s.ID, s.Slots); err != nil {
		e.log.Error("Failed to persist session",
			logger.String("session_id", s.ID.String()),
			logger.Error(err),
		)
	}
	metrics.SetAvailableMinutes(s.ID.String(), float64(availableMinutes(s)))
}

func (e *Engine) updateCapacityMetrics() {
	for _, s := range e.sessions {
		metrics.SetAvailableMinutes(s.ID.String(), float64(availableMinutes(s)))
	}
}

func (e *Engine) sessionIndex(id models.SessionID) int {
	for i, s := range e.sessions {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func (e *Engine) slotIndex(id models.SlotID) (int, int) {
	for si, s := range e.sessions {
		if ti := indexOfSlot(s.Slots, id); ti >= 0 {
			return si, ti
		}
	}
	return -1, -1
}

func availableMinutes(s models.Session) int {
	return s.Minutes() - s.BookedMinutes()
}

func indexOfSlot(slots []models.Slot, id models.SlotID) int {
	for i, s := range slots {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func indexOfDate(dates []models.Date, d models.Date) int {
	for i, c := range dates {
		if c == d {
			return i
		}
	}
	return -1
}

func cloneSlots(slots []models.Slot) []models.Slot {
	out := make([]models.Slot, len(slots))
	for i, s := range slots {
		out[i] = s.Clone()
	}
	return out
}
