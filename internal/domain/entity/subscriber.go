package entity

import "time"

// AlertLevel определяет, о каких проверках сообщать подписчику
type AlertLevel string

const (
	AlertRejects AlertLevel = "rejects" // брак, нет вердикта, классификатор недоступен
	AlertAll     AlertLevel = "all"     // все проверки
	AlertMuted   AlertLevel = "muted"   // ничего
)

// ParseAlertLevel разбирает имя уровня.
func ParseAlertLevel(s string) (AlertLevel, bool) {
	switch l := AlertLevel(s); l {
	case AlertRejects, AlertAll, AlertMuted:
		return l, true
	}
	return "", false
}

// Subscriber чат оператора, получающий оповещения о проверках
type Subscriber struct {
	ChatID       int64      // ID чата в Telegram
	Level        AlertLevel // что отправлять в чат
	SubscribedAt time.Time
}

// NewSubscriber создаёт подписчика только на отбракованные упаковки
func NewSubscriber(chatID int64, now time.Time) *Subscriber {
	return &Subscriber{
		ChatID:       chatID,
		Level:        AlertRejects,
		SubscribedAt: now,
	}
}

// SetLevel обновляет уровень оповещений
func (s *Subscriber) SetLevel(level AlertLevel) {
	s.Level = level
}

// Wants сообщает, нужно ли отправлять проверку подписчику
func (s *Subscriber) Wants(i Inspection) bool {
	switch s.Level {
	case AlertAll:
		return true
	case AlertRejects:
		return i.Alert()
	default:
		return false
	}
}
