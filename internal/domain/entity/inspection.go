package entity

import "time"

// Inspection запись об одном завершённом цикле проверки.
type Inspection struct {
	ID          string          `json:"id"`
	Seq         uint64          `json:"seq"`         // кадр, по которому получен вердикт
	Verdict     Verdict         `json:"verdict"`     // ответ классификатора
	Command     Command         `json:"command"`     // команда, отправленная по вердикту
	Unavailable bool            `json:"unavailable"` // классификатор не ответил
	Detection   DetectionResult `json:"detection"`
	Frame       *Frame          `json:"-"`
	TriggeredAt time.Time       `json:"triggered_at"`
	DecidedAt   time.Time       `json:"decided_at"`
}

// Alert сообщает, нужно ли уведомить оператора об упаковке.
func (i Inspection) Alert() bool {
	return i.Unavailable || i.Verdict.Class != VerdictGood
}

// InspectionStats агрегирует количество вердиктов.
type InspectionStats struct {
	Total       int `json:"total"`
	Good        int `json:"good"`
	Bad         int `json:"bad"`
	None        int `json:"none"`
	Unavailable int `json:"unavailable"`
}

// Add учитывает одну проверку.
func (s *InspectionStats) Add(i Inspection) {
	s.Total++
	switch i.Verdict.Class {
	case VerdictGood:
		s.Good++
	case VerdictBad:
		s.Bad++
	default:
		s.None++
	}
	if i.Unavailable {
		s.Unavailable++
	}
}
