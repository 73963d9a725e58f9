package port

import (
	"context"

	"blister-inspector/internal/domain/entity"
)

// Notifier accepts finished inspections. Notify must not block the caller.
type Notifier interface {
	Notify(inspection entity.Inspection)
}

// InspectionSink is one destination behind a Notifier (dashboard, broker, chat)
type InspectionSink interface {
	Name() string
	Publish(ctx context.Context, inspection entity.Inspection) error
}
