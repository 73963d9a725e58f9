package port

import (
	"context"

	"blister-inspector/internal/domain/entity"
)

// SubscriberRepository хранилище чатов операторов, получающих оповещения
type SubscriberRepository interface {
	// Get возвращает подписчика по chatID или nil, если чат не подписан
	Get(ctx context.Context, chatID int64) (*entity.Subscriber, error)

	// Save создаёт или обновляет подписчика
	Save(ctx context.Context, s *entity.Subscriber) error

	// Delete удаляет подписчика, неизвестные чаты игнорируются
	Delete(ctx context.Context, chatID int64) error

	// List возвращает всех подписчиков по возрастанию ID чата
	List(ctx context.Context) ([]*entity.Subscriber, error)
}
