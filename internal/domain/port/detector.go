package port

import "blister-inspector/internal/domain/entity"

// AlignmentDetector определяет положение упаковки относительно точки контроля
type AlignmentDetector interface {
	// Detect проверяет, есть ли упаковка и отцентрована ли она. Побочных эффектов нет.
	Detect(frame *entity.Frame, params entity.DetectionParams) entity.DetectionResult
}
