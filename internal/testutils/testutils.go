package testutils

import (
	"context"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/region23/sessionboard/internal/storage"
	"github.com/region23/sessionboard/internal/storage/memory"
	"github.com/region23/sessionboard/internal/storage/sqlite"
	"github.com/region23/sessionboard/pkg/logger"
)

// SetupTestDB создает in-memory SQLite базу данных для тестов
func SetupTestDB(t *testing.T) *sqlite.SQLiteStorage {
	t.Helper()
	db, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// SetupTestRepository создает репозиторий поверх хранилища в памяти
func SetupTestRepository(t *testing.T, loc *time.Location) (*storage.Repository, *memory.Store) {
	t.Helper()
	kv := memory.New()
	repo := storage.NewRepository(kv, loc)
	t.Cleanup(func() {
		repo.Close()
	})
	return repo, kv
}

// SetupTestLogger создает тестовый логгер
func SetupTestLogger() *logger.Logger {
	return logger.New(logger.LevelDebug)
}

// TestContext создает контекст для тестов
func TestContext() context.Context {
	return context.Background()
}

// MustLocation загружает часовой пояс или прерывает тест
func MustLocation(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("failed to load location %s: %v", name, err)
	}
	return loc
}

// Clock: управляемые часы для тестов
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock создает часы, остановленные на now
func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

// Now возвращает текущее значение часов
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set переставляет часы
func (c *Clock) Set(now time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

// Advance сдвигает часы на d
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// AssertEqual проверяет равенство значений
func AssertEqual(t *testing.T, expected, actual interface{}, msg string) {
	t.Helper()
	if !reflect.DeepEqual(expected, actual) {
		t.Errorf("%s: expected %v, got %v", msg, expected, actual)
	}
}

// AssertNoError проверяет отсутствие ошибки
func AssertNoError(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: unexpected error: %v", msg, err)
	}
}

// AssertError проверяет наличие ошибки
func AssertError(t *testing.T, err error, msg string) {
	t.Helper()
	if err == nil {
		t.Errorf("%s: expected error, got nil", msg)
	}
}

// AssertTrue проверяет истинность условия
func AssertTrue(t *testing.T, cond bool, msg string) {
	t.Helper()
	if !cond {
		t.Errorf("%s: expected true", msg)
	}
}
