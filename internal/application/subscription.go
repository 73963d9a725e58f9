package app

import (
	"context"
	"time"

	"blister-inspector/internal/domain/entity"
	"blister-inspector/internal/domain/port"
)

// SubscriptionService управляет подписками чатов на оповещения
type SubscriptionService struct {
	repo port.SubscriberRepository
	now  func() time.Time
}

// NewSubscriptionService создаёт сервис подписок
func NewSubscriptionService(repo port.SubscriberRepository) *SubscriptionService {
	return &SubscriptionService{repo: repo, now: time.Now}
}

// Subscribe добавляет чат с уровнем по умолчанию. Существующий подписчик не меняется.
func (s *SubscriptionService) Subscribe(ctx context.Context, chatID int64) (*entity.Subscriber, error) {
	sub, err := s.repo.Get(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if sub != nil {
		return sub, nil
	}

	sub = entity.NewSubscriber(chatID, s.now())
	if err := s.repo.Save(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// SetLevel при необходимости подписывает чат и меняет его уровень.
func (s *SubscriptionService) SetLevel(ctx context.Context, chatID int64, level entity.AlertLevel) (*entity.Subscriber, error) {
	sub, err := s.Subscribe(ctx, chatID)
	if err != nil {
		return nil, err
	}

	sub.SetLevel(level)
	if err := s.repo.Save(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *SubscriptionService) Unsubscribe(ctx context.Context, chatID int64) error {
	return s.repo.Delete(ctx, chatID)
}

// Recipients возвращает чаты, которым нужна эта проверка.
func (s *SubscriptionService) Recipients(ctx context.Context, i entity.Inspection) ([]int64, error) {
	subs, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	var chats []int64
	for _, sub := range subs {
		if sub.Wants(i) {
			chats = append(chats, sub.ChatID)
		}
	}
	return chats, nil
}
