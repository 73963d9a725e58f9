package port

import (
	"context"

	"blister-inspector/internal/domain/entity"
)

// FrameSource yields one frame per tick
type FrameSource interface {
	// Next blocks until the next frame is available.
	Next(ctx context.Context) (*entity.Frame, error)
}

// ParamSource supplies the current detection parameters
type ParamSource interface {
	Current() entity.DetectionParams
}
