package unitofwork

import (
	"context"

	"slingshot-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	ResearchSessionRepository() contract.ResearchSessionRepository
}
