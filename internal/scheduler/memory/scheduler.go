package memory

import (
	"context"
	"sync"
	"time"

	"github.com/region23/sessionboard/internal/scheduler"
	"github.com/region23/sessionboard/pkg/errors"
	"github.com/region23/sessionboard/pkg/logger"
	"github.com/region23/sessionboard/pkg/metrics"
)

// MemoryScheduler реализует планировщик напоминаний в памяти
type MemoryScheduler struct {
	timers   map[string]*time.Timer
	mu       sync.RWMutex
	sender   scheduler.NotificationSender
	log      *logger.Logger
	now      func() time.Time
	ctx      context.Context
	cancel   context.CancelFunc
	stopped  bool
	stopOnce sync.Once
}

// NewMemoryScheduler создает новый планировщик в памяти
func NewMemoryScheduler(sender scheduler.NotificationSender, log *logger.Logger) *MemoryScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	if log == nil {
		log = logger.Default()
	}

	return &MemoryScheduler{
		timers: make(map[string]*time.Timer),
		sender: sender,
		log:    log,
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start запускает планировщик
func (s *MemoryScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return errors.ErrSchedulerStopped
	}

	// Таймеры работают сами по себе, отдельный цикл не нужен
	return nil
}

// Schedule планирует напоминание на момент notifyAt
func (s *MemoryScheduler) Schedule(ctx context.Context, reminder scheduler.Reminder, notifyAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return errors.ErrSchedulerStopped
	}

	if timer, exists := s.timers[reminder.Key]; exists {
		timer.Stop()
		delete(s.timers, reminder.Key)
	}

	delay := notifyAt.Sub(s.now())
	if delay <= 0 {
		// Момент уже прошел: отправляем сразу
		go s.handleNotification(reminder)
		return nil
	}

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		// Таймер мог быть заменен новым Schedule с тем же ключом
		if s.timers[reminder.Key] != timer {
			s.mu.Unlock()
			return
		}
		delete(s.timers, reminder.Key)
		metrics.SetPendingReminders(float64(len(s.timers)))
		s.mu.Unlock()

		s.handleNotification(reminder)
	})

	s.timers[reminder.Key] = timer
	metrics.SetPendingReminders(float64(len(s.timers)))

	s.log.Debug("Reminder scheduled",
		logger.String("slot_id", reminder.Key),
		logger.Time("notify_at", notifyAt),
	)
	return nil
}

// Cancel отменяет запланированное напоминание
func (s *MemoryScheduler) Cancel(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, exists := s.timers[key]; exists {
		timer.Stop()
		delete(s.timers, key)
		metrics.SetPendingReminders(float64(len(s.timers)))
	}

	return nil
}

// Stop останавливает планировщик
func (s *MemoryScheduler) Stop() error {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		s.stopped = true

		for key, timer := range s.timers {
			timer.Stop()
			delete(s.timers, key)
		}
		metrics.SetPendingReminders(0)

		s.cancel()
	})

	return nil
}

// Pending возвращает количество активных таймеров
func (s *MemoryScheduler) Pending() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.timers)
}

// handleNotification отправляет напоминание
func (s *MemoryScheduler) handleNotification(reminder scheduler.Reminder) {
	s.mu.RLock()
	stopped := s.stopped
	s.mu.RUnlock()
	if stopped {
		return
	}

	if err := s.sender.SendSlotReminder(s.ctx, reminder); err != nil {
		metrics.RecordReminder("error")
		s.log.Error("Failed to send reminder",
			logger.String("slot_id", reminder.Key),
			logger.Int64("chat_id", reminder.ChatID),
			logger.Error(err),
		)
		return
	}
	metrics.RecordReminder("sent")
}
