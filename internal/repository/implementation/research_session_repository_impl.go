package implementation

import (
	"context"
	"errors"

	"slingshot-be/internal/entity"
	"slingshot-be/internal/mapper"
	"slingshot-be/internal/model"
	"slingshot-be/internal/repository/contract"
	"slingshot-be/internal/repository/specification"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ResearchSessionRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ResearchMapper
}

func NewResearchSessionRepository(db *gorm.DB) contract.ResearchSessionRepository {
	return &ResearchSessionRepositoryImpl{
		db:     db,
		mapper: mapper.NewResearchMapper(),
	}
}

func (r *ResearchSessionRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *ResearchSessionRepositoryImpl) withChildren(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("step_number ASC") }).
		Preload("Steps.ToolExecutions").
		Preload("Citations").
		Preload("Report")
}

func (r *ResearchSessionRepositoryImpl) deleteChildren(db *gorm.DB, id string) error {
	steps := db.Model(&model.ThoughtStep{}).Select("id").Where("session_id = ?", id)
	if err := db.Where("thought_step_id IN (?)", steps).Delete(&model.ToolExecution{}).Error; err != nil {
		return err
	}
	for _, child := range []interface{}{&model.ThoughtStep{}, &model.Citation{}, &model.Report{}} {
		if err := db.Where("session_id = ?", id).Delete(child).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *ResearchSessionRepositoryImpl) Save(ctx context.Context, session *entity.ResearchSession) error {
	m, err := r.mapper.ResearchSessionToModel(session)
	if err != nil {
		return err
	}
	db := r.db.WithContext(ctx)
	if err := r.deleteChildren(db, m.Id); err != nil {
		return err
	}
	return db.Clauses(clause.OnConflict{UpdateAll: true}).Create(m).Error
}

func (r *ResearchSessionRepositoryImpl) Delete(ctx context.Context, id string) error {
	db := r.db.WithContext(ctx)
	if err := r.deleteChildren(db, id); err != nil {
		return err
	}
	return db.Delete(&model.ResearchSession{}, "id = ?", id).Error
}

func (r *ResearchSessionRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ResearchSession, error) {
	var m model.ResearchSession
	query := r.applySpecifications(r.withChildren(r.db.WithContext(ctx)), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ResearchSessionToEntity(&m)
}

// FindAll loads the session rows and reports only; steps and citations are
// left empty.
func (r *ResearchSessionRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ResearchSession, error) {
	var models []*model.ResearchSession
	query := r.applySpecifications(r.db.WithContext(ctx).Preload("Report"), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*entity.ResearchSession, 0, len(models))
	for _, m := range models {
		e, err := r.mapper.ResearchSessionToEntity(m)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *ResearchSessionRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.ResearchSession{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
