package port

import (
	"context"

	"blister-inspector/internal/domain/entity"
)

// Classifier sends one frame to the remote scorer and waits for its verdict.
type Classifier interface {
	// Classify returns entity.NoVerdict() and an error wrapping
	// entity.ErrClassificationUnavailable when no answer arrives in time.
	Classify(ctx context.Context, frame *entity.Frame) (entity.Verdict, error)
}
