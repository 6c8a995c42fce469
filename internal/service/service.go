package service

import (
	"context"
	"sync"
	"time"

	"github.com/region23/sessionboard/internal/scheduler"
	"github.com/region23/sessionboard/internal/storage/models"
	"github.com/region23/sessionboard/internal/validation"
	"github.com/region23/sessionboard/pkg/errors"
	"github.com/region23/sessionboard/pkg/logger"
	"github.com/region23/sessionboard/pkg/metrics"
)

// Options содержит необязательные параметры сервиса
type Options struct {
	// Reminders планирует напоминания участникам, записавшимся из бота
	Reminders scheduler.NotificationScheduler
	// ReminderLead: за сколько до начала записи отправлять напоминание
	ReminderLead time.Duration
	// PastLimit ограничивает список прошедших выступлений
	PastLimit int
	// UpcomingDays задает горизонт списка дат сессий
	UpcomingDays int
	Logger       *logger.Logger
}

// Service проверяет запросы пользователей и передает их движку расписания.
// HTTP API и Telegram бот работают только через него.
type Service struct {
	engine       *scheduler.Engine
	reminders    scheduler.NotificationScheduler
	reminderLead time.Duration
	pastLimit    int
	upcomingDays int
	log          *logger.Logger

	mu     sync.Mutex
	owners map[models.SlotID]int64
}

// New создает сервис поверх движка
func New(engine *scheduler.Engine, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}
	if opts.UpcomingDays <= 0 {
		opts.UpcomingDays = 30
	}
	return &Service{
		engine:       engine,
		reminders:    opts.Reminders,
		reminderLead: opts.ReminderLead,
		pastLimit:    opts.PastLimit,
		upcomingDays: opts.UpcomingDays,
		log:          opts.Logger,
		owners:       make(map[models.SlotID]int64),
	}
}

// Engine возвращает движок расписания
func (s *Service) Engine() *scheduler.Engine {
	return s.engine
}

// SessionView: сессия выбранной недели вместе с производными признаками
type SessionView struct {
	models.Session
	Available int  `json:"available_minutes"`
	Canceled  bool `json:"canceled"`
	Past      bool `json:"past"`
}

// WeekView: снимок выбранной недели
type WeekView struct {
	Week     time.Time     `json:"week"`
	Label    string        `json:"label"`
	InFuture bool          `json:"in_future"`
	Sessions []SessionView `json:"sessions"`
}

// SlotList: записи выбранной недели, разделенные относительно текущего момента
type SlotList struct {
	Upcoming []models.Slot `json:"upcoming"`
	Past     []models.Slot `json:"past"`
}

// SignUpInput: запрос на запись в сессию.
// Пустое Start означает первую свободную минуту сессии.
// Длительность задается либо End, либо Minutes.
type SignUpInput struct {
	SessionID  string   `json:"session_id"`
	Start      string   `json:"start"`
	End        string   `json:"end"`
	Minutes    int      `json:"minutes"`
	Attendee   string   `json:"attendee"`
	Topic      string   `json:"topic"`
	Categories []string `json:"categories"`
	// ChatID: чат Telegram для напоминания, 0 если запись не из бота
	ChatID int64 `json:"-"`
}

// EditInput: новые значения записи.
// Пустые Start/End (при Minutes == 0) сохраняют прежний интервал.
type EditInput struct {
	Start      string   `json:"start"`
	End        string   `json:"end"`
	Minutes    int      `json:"minutes"`
	Attendee   string   `json:"attendee"`
	Topic      string   `json:"topic"`
	Categories []string `json:"categories"`
	// Requester: имя того, кто редактирует; непустое значение должно
	// совпадать с участником записи
	Requester string `json:"requester"`
}

// Week возвращает снимок выбранной недели
func (s *Service) Week() WeekView {
	now := s.engine.Now()
	week := s.engine.Week()

	sessions := s.engine.Sessions()
	views := make([]SessionView, 0, len(sessions))
	for _, sess := range sessions {
		views = append(views, SessionView{
			Session:   sess,
			Available: s.engine.AvailableMinutes(sess.ID),
			Canceled:  s.engine.IsCanceled(sess.Date()),
			Past:      !sess.End.After(now),
		})
	}

	return WeekView{
		Week:     week,
		Label:    scheduler.FormatWeekRange(week),
		InFuture: s.engine.IsCurrentWeekInFuture(),
		Sessions: views,
	}
}

// NextWeek переключает неделю вперед
func (s *Service) NextWeek(ctx context.Context) WeekView {
	s.engine.NavigateToNextWeek(ctx)
	return s.Week()
}

// PrevWeek переключает неделю назад
func (s *Service) PrevWeek(ctx context.Context) WeekView {
	s.engine.NavigateToPreviousWeek(ctx)
	return s.Week()
}

// Slots возвращает ближайшие и последние прошедшие выступления
func (s *Service) Slots() SlotList {
	now := s.engine.Now()
	return SlotList{
		Upcoming: s.engine.UpcomingSlots(now),
		Past:     s.engine.PastSlots(now, s.pastLimit),
	}
}

// AttendeeSlots возвращает предстоящие записи участника
func (s *Service) AttendeeSlots(attendee string) []models.Slot {
	out := make([]models.Slot, 0)
	for _, slot := range s.engine.UpcomingSlots(s.engine.Now()) {
		if validation.SameAttendee(slot.Attendee, attendee) {
			out = append(out, slot)
		}
	}
	return out
}

// SignUp проверяет запрос и создает запись
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (models.Slot, error) {
	slot, err := s.signUp(ctx, in)
	if err != nil {
		s.recordRejection(err)
		return models.Slot{}, err
	}
	return slot, nil
}

func (s *Service) signUp(ctx context.Context, in SignUpInput) (models.Slot, error) {
	id, err := validation.ValidateSessionID(in.SessionID)
	if err != nil {
		return models.Slot{}, err
	}

	if !s.engine.IsCurrentWeekInFuture() {
		return models.Slot{}, errors.ErrWeekInPast
	}

	session, ok := s.engine.Session(id)
	if !ok {
		return models.Slot{}, errors.ErrSessionNotFound.WithContext(map[string]interface{}{
			"session_id": id.String(),
		})
	}

	start := firstFreeStart(session)
	if in.Start != "" {
		c, err := validation.ValidateTime(in.Start)
		if err != nil {
			return models.Slot{}, err
		}
		start = session.Date().At(c, s.engine.Location())
	}

	end, err := s.resolveEnd(session, start, in.End, in.Minutes)
	if err != nil {
		return models.Slot{}, err
	}

	attendee, err := validation.ValidateAttendee(in.Attendee)
	if err != nil {
		return models.Slot{}, err
	}
	topic, err := validation.ValidateTopic(in.Topic)
	if err != nil {
		return models.Slot{}, err
	}

	err = validation.ValidateSignUp(validation.SignUpRequest{
		Session:   session,
		Start:     start,
		End:       end,
		Attendee:  attendee,
		Topic:     topic,
		Available: s.engine.AvailableMinutes(id),
		Canceled:  s.engine.IsCanceled(session.Date()),
		Now:       s.engine.Now(),
	})
	if err != nil {
		return models.Slot{}, err
	}

	slot, ok := s.engine.SignUpForSlot(ctx, id, start, end, attendee, topic, validation.NormalizeCategories(in.Categories)...)
	if !ok {
		// Неделя могла смениться между проверкой и записью
		return models.Slot{}, errors.ErrSessionNotFound
	}

	if in.ChatID != 0 {
		s.scheduleReminder(ctx, session, slot, in.ChatID)
	}
	return slot, nil
}

// EditSignUp проверяет новые значения и заменяет запись
func (s *Service) EditSignUp(ctx context.Context, slotID string, in EditInput) (models.Slot, error) {
	slot, err := s.editSignUp(ctx, slotID, in)
	if err != nil {
		s.recordRejection(err)
		return models.Slot{}, err
	}
	return slot, nil
}

func (s *Service) editSignUp(ctx context.Context, slotID string, in EditInput) (models.Slot, error) {
	id, err := validation.ValidateSlotID(slotID)
	if err != nil {
		return models.Slot{}, err
	}

	old, session, ok := s.engine.FindSlot(id)
	if !ok {
		return models.Slot{}, errors.ErrSlotNotFound.WithContext(map[string]interface{}{
			"slot_id": id.String(),
		})
	}
	if in.Requester != "" && !validation.SameAttendee(in.Requester, old.Attendee) {
		return models.Slot{}, errors.ErrNotSlotOwner
	}

	start, end := old.Start, old.End
	if in.Start != "" {
		c, err := validation.ValidateTime(in.Start)
		if err != nil {
			return models.Slot{}, err
		}
		start = session.Date().At(c, s.engine.Location())
	}
	if in.End != "" || in.Minutes != 0 {
		end, err = s.resolveEnd(session, start, in.End, in.Minutes)
		if err != nil {
			return models.Slot{}, err
		}
	} else if in.Start != "" {
		end = start.Add(old.End.Sub(old.Start))
	}

	attendee := in.Attendee
	if attendee == "" {
		attendee = old.Attendee
	}
	topic := in.Topic
	if topic == "" {
		topic = old.Topic
	}
	categories := old.Categories
	if in.Categories != nil {
		categories = validation.NormalizeCategories(in.Categories)
	}

	attendee, err = validation.ValidateAttendee(attendee)
	if err != nil {
		return models.Slot{}, err
	}
	topic, err = validation.ValidateTopic(topic)
	if err != nil {
		return models.Slot{}, err
	}

	// Собственная длительность записи снова становится доступной
	err = validation.ValidateSignUp(validation.SignUpRequest{
		Session:   session,
		Start:     start,
		End:       end,
		Attendee:  attendee,
		Topic:     topic,
		Available: s.engine.AvailableMinutes(session.ID) + old.Minutes(),
		Canceled:  s.engine.IsCanceled(session.Date()),
		Now:       s.engine.Now(),
	})
	if err != nil {
		return models.Slot{}, err
	}

	updated, ok := s.engine.EditSignUp(ctx, id, scheduler.SlotEdit{
		Start:      start,
		End:        end,
		Attendee:   attendee,
		Topic:      topic,
		Categories: categories,
	})
	if !ok {
		return models.Slot{}, errors.ErrSlotNotFound
	}

	if chatID, ok := s.takeOwner(ctx, id); ok {
		s.scheduleReminder(ctx, session, updated, chatID)
	}
	return updated, nil
}

// CancelSignUp удаляет запись. Непустой requester должен совпадать
// с участником записи.
func (s *Service) CancelSignUp(ctx context.Context, slotID, requester string) error {
	id, err := validation.ValidateSlotID(slotID)
	if err != nil {
		return err
	}

	old, _, ok := s.engine.FindSlot(id)
	if !ok {
		return errors.ErrSlotNotFound.WithContext(map[string]interface{}{
			"slot_id": id.String(),
		})
	}
	if requester != "" && !validation.SameAttendee(requester, old.Attendee) {
		return errors.ErrNotSlotOwner
	}

	s.engine.CancelSignUp(ctx, id)
	s.takeOwner(ctx, id)
	return nil
}

// CancelSession отменяет (restore=false) или восстанавливает сессии даты
func (s *Service) CancelSession(ctx context.Context, date string, restore bool) (bool, error) {
	d, err := validation.ValidateDate(date)
	if err != nil {
		return false, err
	}
	return s.engine.CancelSession(ctx, d, restore), nil
}

// UpcomingSessions возвращает даты сессий на ближайший горизонт
func (s *Service) UpcomingSessions() ([]scheduler.SessionDate, error) {
	return s.engine.UpcomingSessionDates(s.engine.Now(), s.upcomingDays)
}

// resolveEnd вычисляет конец записи по явному времени или длительности
func (s *Service) resolveEnd(session models.Session, start time.Time, end string, minutes int) (time.Time, error) {
	if end != "" {
		c, err := validation.ValidateTime(end)
		if err != nil {
			return time.Time{}, err
		}
		return session.Date().At(c, s.engine.Location()), nil
	}
	if err := validation.ValidateDuration(minutes); err != nil {
		return time.Time{}, err
	}
	return start.Add(time.Duration(minutes) * time.Minute), nil
}

func (s *Service) scheduleReminder(ctx context.Context, session models.Session, slot models.Slot, chatID int64) {
	if s.reminders == nil || s.reminderLead <= 0 {
		return
	}

	s.mu.Lock()
	s.owners[slot.ID] = chatID
	s.mu.Unlock()

	reminder := scheduler.Reminder{
		Key:         slot.ID.String(),
		ChatID:      chatID,
		SessionName: session.Name,
		Slot:        slot,
	}
	if err := s.reminders.Schedule(ctx, reminder, slot.Start.Add(-s.reminderLead)); err != nil {
		s.log.Warn("Failed to schedule reminder",
			logger.String("slot_id", slot.ID.String()),
			logger.Error(err),
		)
	}
}

// takeOwner снимает напоминание записи и возвращает чат ее владельца
func (s *Service) takeOwner(ctx context.Context, id models.SlotID) (int64, bool) {
	s.mu.Lock()
	chatID, ok := s.owners[id]
	delete(s.owners, id)
	s.mu.Unlock()

	if ok && s.reminders != nil {
		if err := s.reminders.Cancel(ctx, id.String()); err != nil {
			s.log.Warn("Failed to cancel reminder",
				logger.String("slot_id", id.String()),
				logger.Error(err),
			)
		}
	}
	return chatID, ok
}

func (s *Service) recordRejection(err error) {
	code := "UNKNOWN"
	if appErr, ok := errors.GetAppError(err); ok {
		code = appErr.Code
	}
	metrics.RecordRejectedSignUp(code)
	s.log.Debug("Sign-up rejected",
		logger.String("code", code),
		logger.Error(err),
	)
}

// firstFreeStart возвращает конец самой поздней записи внутри окна
// или начало окна, если записей нет
func firstFreeStart(session models.Session) time.Time {
	start := session.Start
	for _, slot := range session.Slots {
		if slot.End.After(start) && !slot.End.After(session.End) {
			start = slot.End
		}
	}
	return start
}
