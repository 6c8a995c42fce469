package storage

import (
	"context"

	"github.com/region23/sessionboard/internal/storage/models"
)

// KeyValueStore определяет минимальное хранилище строковых ключей
type KeyValueStore interface {
	// Get возвращает значение ключа и признак его наличия
	Get(ctx context.Context, key string) (string, bool, error)
	// Set перезаписывает значение ключа
	Set(ctx context.Context, key, value string) error
	// Remove удаляет ключ; отсутствие ключа не ошибка
	Remove(ctx context.Context, key string) error
	Close() error
	Ping(ctx context.Context) error
}

// SessionRepository определяет интерфейс для хранения записей по сессиям
type SessionRepository interface {
	Save(ctx context.Context, id models.SessionID, slots []models.Slot) error
	Load(ctx context.Context, id models.SessionID) ([]models.Slot, error)
}

// CanceledDateRepository определяет интерфейс для набора отмененных дат
type CanceledDateRepository interface {
	SaveCanceledDates(ctx context.Context, dates []models.Date) error
	LoadCanceledDates(ctx context.Context) ([]models.Date, error)
}

// Storage объединяет все репозитории в единый интерфейс
type Storage interface {
	SessionRepository
	CanceledDateRepository
	Close() error
	Ping(ctx context.Context) error
}
