//go:build !gocv
// +build !gocv

package vision

import (
	"blister-inspector/internal/domain/entity"
	"blister-inspector/internal/domain/port"
)

// ContourDetector недоступен без тега сборки gocv.
type ContourDetector struct{}

// NewContourDetector возвращает entity.ErrVisionUnavailable в сборке без OpenCV.
func NewContourDetector() (*ContourDetector, error) {
	return nil, entity.ErrVisionUnavailable
}

// Detect никогда не находит упаковку.
func (d *ContourDetector) Detect(frame *entity.Frame, params entity.DetectionParams) entity.DetectionResult {
	_ = frame
	_ = params
	return entity.NotPresent()
}

var _ port.AlignmentDetector = (*ContourDetector)(nil)
