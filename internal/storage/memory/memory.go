package memory

import (
	"context"
	"fmt"
	"sync"
)

// Store реализует KeyValueStore в памяти процесса
type Store struct {
	mu     sync.RWMutex
	data   map[string]string
	closed bool
}

// New создает пустое хранилище в памяти
func New() *Store {
	return &Store{data: make(map[string]string)}
}

// Get возвращает значение ключа
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return "", false, fmt.Errorf("store is closed")
	}
	v, ok := s.data[key]
	return v, ok, nil
}

// Set перезаписывает значение ключа
func (s *Store) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}
	s.data[key] = value
	return nil
}

// Remove удаляет ключ
func (s *Store) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}
	delete(s.data, key)
	return nil
}

// Len возвращает количество ключей (для отладки и тестов)
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Close помечает хранилище закрытым
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Ping проверяет, что хранилище открыто
func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}
	return nil
}
