package scheduler

import (
	"context"
	"time"

	"github.com/region23/sessionboard/internal/storage/models"
)

// Reminder описывает напоминание участнику о его выступлении
type Reminder struct {
	// Key: строковый идентификатор записи
	Key         string
	ChatID      int64
	SessionName string
	Slot        models.Slot
}

// NotificationScheduler определяет интерфейс для планирования напоминаний
type NotificationScheduler interface {
	// Schedule планирует напоминание; повторный вызов с тем же ключом
	// заменяет предыдущее
	Schedule(ctx context.Context, reminder Reminder, notifyAt time.Time) error

	// Cancel отменяет запланированное напоминание
	Cancel(ctx context.Context, key string) error

	// Pending возвращает количество ожидающих напоминаний
	Pending() int

	// Start запускает планировщик
	Start(ctx context.Context) error

	// Stop останавливает планировщик
	Stop() error
}

// NotificationSender определяет интерфейс для отправки уведомлений
type NotificationSender interface {
	// SendNotification отправляет уведомление пользователю
	SendNotification(ctx context.Context, chatID int64, message string) error

	// SendSlotReminder отправляет напоминание о записи
	SendSlotReminder(ctx context.Context, reminder Reminder) error
}
