package storage

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"blister-inspector/internal/domain/entity"
	"blister-inspector/internal/domain/port"
)

// MemorySubscriberRepository in-memory хранилище подписчиков
type MemorySubscriberRepository struct {
	mu          sync.RWMutex
	subscribers map[int64]entity.Subscriber
}

// NewMemorySubscriberRepository создаёт пустое хранилище
func NewMemorySubscriberRepository() *MemorySubscriberRepository {
	return &MemorySubscriberRepository{
		subscribers: make(map[int64]entity.Subscriber),
	}
}

// Get возвращает подписчика по ID чата или nil, если чат не подписан
func (r *MemorySubscriberRepository) Get(ctx context.Context, chatID int64) (*entity.Subscriber, error) {
	r.mu.RLock()
	s, exists := r.subscribers[chatID]
	r.mu.RUnlock()

	if !exists {
		return nil, nil
	}
	return &s, nil
}

// Save сохраняет подписчика
func (r *MemorySubscriberRepository) Save(ctx context.Context, s *entity.Subscriber) error {
	r.mu.Lock()
	r.subscribers[s.ChatID] = *s
	r.mu.Unlock()

	return nil
}

// Delete удаляет подписчика
func (r *MemorySubscriberRepository) Delete(ctx context.Context, chatID int64) error {
	r.mu.Lock()
	delete(r.subscribers, chatID)
	r.mu.Unlock()

	return nil
}

// List возвращает подписчиков, упорядоченных по ID чата
func (r *MemorySubscriberRepository) List(ctx context.Context) ([]*entity.Subscriber, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*entity.Subscriber, 0, len(r.subscribers))
	for _, s := range r.subscribers {
		out = append(out, &s)
	}
	slices.SortFunc(out, func(a, b *entity.Subscriber) int {
		return cmp.Compare(a.ChatID, b.ChatID)
	})
	return out, nil
}

// Проверка реализации интерфейса
var _ port.SubscriberRepository = (*MemorySubscriberRepository)(nil)
