package notify

import (
	"context"

	"blister-inspector/internal/domain/entity"
	"blister-inspector/internal/domain/port"
)

// RepositorySink writes inspections to the inspection log.
type RepositorySink struct {
	Repo port.InspectionRepository
}

func (s RepositorySink) Name() string { return "repository" }

func (s RepositorySink) Publish(ctx context.Context, inspection entity.Inspection) error {
	return s.Repo.Save(ctx, inspection)
}
