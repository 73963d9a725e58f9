package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"blister-inspector/internal/domain/entity"
	"blister-inspector/internal/domain/port"
)

// SQLiteSubscriberRepository keeps the subscriber list in the inspection database.
type SQLiteSubscriberRepository struct {
	conn *sql.DB
}

// Subscribers returns the subscriber table of the same database.
func (r *SQLiteInspectionRepository) Subscribers() *SQLiteSubscriberRepository {
	return &SQLiteSubscriberRepository{conn: r.conn}
}

func (r *SQLiteSubscriberRepository) Get(ctx context.Context, chatID int64) (*entity.Subscriber, error) {
	var (
		level string
		since int64
	)
	err := r.conn.QueryRowContext(ctx,
		`SELECT level, subscribed_at FROM subscribers WHERE chat_id = ?`, chatID,
	).Scan(&level, &since)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query subscriber: %w", err)
	}

	return &entity.Subscriber{
		ChatID:       chatID,
		Level:        entity.AlertLevel(level),
		SubscribedAt: time.Unix(0, since).UTC(),
	}, nil
}

func (r *SQLiteSubscriberRepository) Save(ctx context.Context, s *entity.Subscriber) error {
	_, err := r.conn.ExecContext(ctx, `
		INSERT INTO subscribers (chat_id, level, subscribed_at) VALUES (?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET level = excluded.level
	`, s.ChatID, string(s.Level), s.SubscribedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to save subscriber: %w", err)
	}
	return nil
}

func (r *SQLiteSubscriberRepository) Delete(ctx context.Context, chatID int64) error {
	if _, err := r.conn.ExecContext(ctx, `DELETE FROM subscribers WHERE chat_id = ?`, chatID); err != nil {
		return fmt.Errorf("failed to delete subscriber: %w", err)
	}
	return nil
}

func (r *SQLiteSubscriberRepository) List(ctx context.Context) ([]*entity.Subscriber, error) {
	rows, err := r.conn.QueryContext(ctx,
		`SELECT chat_id, level, subscribed_at FROM subscribers ORDER BY chat_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscribers: %w", err)
	}
	defer rows.Close()

	var out []*entity.Subscriber
	for rows.Next() {
		var (
			s     entity.Subscriber
			level string
			since int64
		)
		if err := rows.Scan(&s.ChatID, &level, &since); err != nil {
			return nil, fmt.Errorf("failed to scan subscriber: %w", err)
		}
		s.Level = entity.AlertLevel(level)
		s.SubscribedAt = time.Unix(0, since).UTC()
		out = append(out, &s)
	}
	return out, rows.Err()
}

var _ port.SubscriberRepository = (*SQLiteSubscriberRepository)(nil)
