package contract

import (
	"context"

	"slingshot-be/internal/entity"
	"slingshot-be/internal/repository/specification"
)

type ResearchSessionRepository interface {
	// Save inserts the session or replaces an earlier archived copy, children
	// included.
	Save(ctx context.Context, session *entity.ResearchSession) error
	Delete(ctx context.Context, id string) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ResearchSession, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ResearchSession, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
