package storage

import (
	"context"
	"sync"

	"blister-inspector/internal/domain/entity"
	"blister-inspector/internal/domain/port"
)

// MemoryInspectionRepository in-memory журнал последних проверок
type MemoryInspectionRepository struct {
	mu       sync.RWMutex
	capacity int
	items    []entity.Inspection // от старых к новым
	stats    entity.InspectionStats
}

// NewMemoryInspectionRepository создаёт журнал на capacity проверок
func NewMemoryInspectionRepository(capacity int) *MemoryInspectionRepository {
	if capacity <= 0 {
		capacity = 100
	}
	return &MemoryInspectionRepository{
		capacity: capacity,
		items:    make([]entity.Inspection, 0, capacity),
	}
}

// Save сохраняет проверку без кадра, вытесняя самую старую при переполнении
func (r *MemoryInspectionRepository) Save(ctx context.Context, inspection entity.Inspection) error {
	inspection.Frame = nil

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.items) == r.capacity {
		copy(r.items, r.items[1:])
		r.items = r.items[:len(r.items)-1]
	}
	r.items = append(r.items, inspection)
	r.stats.Add(inspection)

	return nil
}

// Recent возвращает до limit проверок, начиная с новых
func (r *MemoryInspectionRepository) Recent(ctx context.Context, limit int) ([]entity.Inspection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 || limit > len(r.items) {
		limit = len(r.items)
	}
	out := make([]entity.Inspection, 0, limit)
	for i := len(r.items) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.items[i])
	}

	return out, nil
}

// Stats считает все сохранённые проверки, включая вытесненные
func (r *MemoryInspectionRepository) Stats(ctx context.Context) (entity.InspectionStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.stats, nil
}

// Проверка реализации интерфейса
var _ port.InspectionRepository = (*MemoryInspectionRepository)(nil)
