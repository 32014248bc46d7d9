package service

import (
	"context"
	"fmt"

	"slingshot-be/internal/dto"
	"slingshot-be/internal/mapper"
	"slingshot-be/internal/pkg/logger"
	"slingshot-be/internal/repository/specification"
	"slingshot-be/internal/repository/unitofwork"
	"slingshot-be/pkg/research/domain"
)

type IArchiveService interface {
	Save(ctx context.Context, snap domain.Snapshot) error
	Load(ctx context.Context, id string) (domain.Snapshot, error)
	List(ctx context.Context, userID string, q dto.ListSessionsQuery) (*dto.ListSessionsResponse, error)
}

type archiveService struct {
	uowFactory unitofwork.RepositoryFactory
	mapper     *mapper.ResearchMapper
	logger     logger.ILogger
}

func NewArchiveService(uowFactory unitofwork.RepositoryFactory, log logger.ILogger) IArchiveService {
	return &archiveService{
		uowFactory: uowFactory,
		mapper:     mapper.NewResearchMapper(),
		logger:     log,
	}
}

func (s *archiveService) Save(ctx context.Context, snap domain.Snapshot) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	if err := uow.ResearchSessionRepository().Save(ctx, s.mapper.SnapshotToEntity(snap)); err != nil {
		uow.Rollback()
		return fmt.Errorf("archive session %s: %w", snap.ID, err)
	}
	if err := uow.Commit(); err != nil {
		return err
	}

	s.logger.Info("ArchiveService", "Session archived", map[string]interface{}{
		"session_id": snap.ID,
		"status":     snap.Status,
		"steps":      len(snap.Steps),
	})
	return nil
}

func (s *archiveService) Load(ctx context.Context, id string) (domain.Snapshot, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	e, err := uow.ResearchSessionRepository().FindOne(ctx, specification.BySessionID{ID: id})
	if err != nil {
		return domain.Snapshot{}, err
	}
	if e == nil {
		return domain.Snapshot{}, fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	return s.mapper.EntityToSnapshot(e), nil
}

func (s *archiveService) List(ctx context.Context, userID string, q dto.ListSessionsQuery) (*dto.ListSessionsResponse, error) {
	var specs []specification.Specification
	if userID != "" {
		specs = append(specs, specification.ByUserID{UserID: userID})
	}
	if q.Mode != "" {
		specs = append(specs, specification.ByMode{Mode: domain.Mode(q.Mode)})
	}
	if q.Status != "" {
		specs = append(specs, specification.ByStatus{Status: domain.Status(q.Status)})
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	repo := uow.ResearchSessionRepository()

	total, err := repo.Count(ctx, specs...)
	if err != nil {
		return nil, err
	}

	limit := q.Limit
	if limit == 0 {
		limit = 20
	}
	page := append(specs,
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: limit, Offset: q.Offset},
	)
	rows, err := repo.FindAll(ctx, page...)
	if err != nil {
		return nil, err
	}

	res := &dto.ListSessionsResponse{Sessions: make([]dto.SessionSummaryResponse, 0, len(rows)), Total: total}
	for _, e := range rows {
		res.Sessions = append(res.Sessions, mapper.ToSessionSummary(e))
	}
	return res, nil
}
