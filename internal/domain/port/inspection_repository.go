package port

import (
	"context"

	"blister-inspector/internal/domain/entity"
)

// InspectionRepository is the inspection log
type InspectionRepository interface {
	// Save stores a finished inspection
	Save(ctx context.Context, inspection entity.Inspection) error

	// Recent returns the latest inspections, newest first
	Recent(ctx context.Context, limit int) ([]entity.Inspection, error)

	// Stats returns verdict counts over the whole log
	Stats(ctx context.Context) (entity.InspectionStats, error)
}
