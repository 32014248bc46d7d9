package mapper

import (
	"encoding/json"
	"time"

	"slingshot-be/internal/entity"
	"slingshot-be/internal/model"
	"slingshot-be/pkg/research/domain"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ResearchMapper struct{}

func NewResearchMapper() *ResearchMapper {
	return &ResearchMapper{}
}

// Snapshot <-> Entity

func (m *ResearchMapper) SnapshotToEntity(s domain.Snapshot) *entity.ResearchSession {
	e := &entity.ResearchSession{
		Id:           s.ID,
		Mode:         s.Mode,
		Query:        s.Query,
		Subject:      s.Subject,
		UserId:       s.UserID,
		Status:       s.Status,
		ErrorMessage: s.Error,
		Extensions:   s.Extensions,
		CreatedAt:    s.CreatedAt,
	}
	if !s.UpdatedAt.IsZero() {
		t := s.UpdatedAt
		e.UpdatedAt = &t
	}
	for _, st := range s.Steps {
		step := &entity.ThoughtStep{
			StepNumber: st.StepNumber,
			StepType:   st.StepType,
			Title:      st.Title,
			Content:    st.Content,
			Confidence: st.Confidence,
		}
		for _, te := range st.ToolExecutions {
			step.ToolExecutions = append(step.ToolExecutions, &entity.ToolExecution{
				ToolName:        te.ToolName,
				ExecutionTimeMs: te.ExecutionTimeMs,
				Status:          te.Status,
			})
		}
		e.Steps = append(e.Steps, step)
	}
	for _, c := range s.Citations {
		e.Citations = append(e.Citations, &entity.Citation{
			CitationKey:    c.Key,
			SourceType:     c.SourceType,
			SourceName:     c.SourceName,
			SourceUrl:      c.SourceURL,
			ContentSnippet: c.ContentSnippet,
			PageNumber:     c.PageNumber,
		})
	}
	if s.Report != nil {
		e.Report = &entity.Report{ExecutiveSummary: s.Report.ExecutiveSummary, FullReport: s.Report.FullReport}
	}
	return e
}

func (m *ResearchMapper) EntityToSnapshot(e *entity.ResearchSession) domain.Snapshot {
	s := domain.Snapshot{
		ID:         e.Id,
		Mode:       e.Mode,
		Query:      e.Query,
		Subject:    e.Subject,
		UserID:     e.UserId,
		Status:     e.Status,
		Error:      e.ErrorMessage,
		Extensions: e.Extensions,
		CreatedAt:  e.CreatedAt,
		Steps:      []domain.ThoughtStep{},
		Citations:  []domain.Citation{},
	}
	if e.Mode == domain.ModeResearch {
		s.Ticker = e.Subject
	}
	if e.UpdatedAt != nil {
		s.UpdatedAt = *e.UpdatedAt
	}
	for _, st := range e.Steps {
		step := domain.ThoughtStep{
			StepNumber:     st.StepNumber,
			StepType:       st.StepType,
			Title:          st.Title,
			Content:        st.Content,
			Confidence:     st.Confidence,
			ToolExecutions: []domain.ToolExecution{},
		}
		for _, te := range st.ToolExecutions {
			step.ToolExecutions = append(step.ToolExecutions, domain.ToolExecution{
				ToolName:        te.ToolName,
				ExecutionTimeMs: te.ExecutionTimeMs,
				Status:          te.Status,
			})
		}
		s.Steps = append(s.Steps, step)
	}
	for _, c := range e.Citations {
		s.Citations = append(s.Citations, domain.Citation{
			Key:            c.CitationKey,
			SourceType:     c.SourceType,
			SourceName:     c.SourceName,
			SourceURL:      c.SourceUrl,
			ContentSnippet: c.ContentSnippet,
			PageNumber:     c.PageNumber,
		})
	}
	if e.Report != nil {
		s.Report = &domain.Report{ExecutiveSummary: e.Report.ExecutiveSummary, FullReport: e.Report.FullReport}
	}
	return s
}

// Entity <-> Model

func (m *ResearchMapper) ResearchSessionToModel(e *entity.ResearchSession) (*model.ResearchSession, error) {
	if e == nil {
		return nil, nil
	}
	ext, err := json.Marshal(e.Extensions)
	if err != nil {
		return nil, err
	}

	var updatedAt time.Time
	if e.UpdatedAt != nil {
		updatedAt = *e.UpdatedAt
	}

	out := &model.ResearchSession{
		Id:           e.Id,
		Mode:         string(e.Mode),
		Query:        e.Query,
		Subject:      e.Subject,
		UserId:       e.UserId,
		Status:       string(e.Status),
		ErrorMessage: e.ErrorMessage,
		Extensions:   datatypes.JSON(ext),
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    updatedAt,
	}
	for _, st := range e.Steps {
		stepID := uuid.New()
		ms := model.ThoughtStep{
			Id:         stepID,
			SessionId:  e.Id,
			StepNumber: st.StepNumber,
			StepType:   string(st.StepType),
			Title:      st.Title,
			Content:    st.Content,
			Confidence: st.Confidence,
		}
		for _, te := range st.ToolExecutions {
			ms.ToolExecutions = append(ms.ToolExecutions, model.ToolExecution{
				Id:              uuid.New(),
				ThoughtStepId:   stepID,
				ToolName:        te.ToolName,
				ExecutionTimeMs: te.ExecutionTimeMs,
				Status:          te.Status,
			})
		}
		out.Steps = append(out.Steps, ms)
	}
	for _, c := range e.Citations {
		out.Citations = append(out.Citations, model.Citation{
			Id:             uuid.New(),
			SessionId:      e.Id,
			CitationKey:    c.CitationKey,
			SourceType:     c.SourceType,
			SourceName:     c.SourceName,
			SourceUrl:      c.SourceUrl,
			ContentSnippet: c.ContentSnippet,
			PageNumber:     c.PageNumber,
		})
	}
	if e.Report != nil {
		out.Report = &model.Report{
			Id:               uuid.New(),
			SessionId:        e.Id,
			ExecutiveSummary: e.Report.ExecutiveSummary,
			FullReport:       e.Report.FullReport,
		}
	}
	return out, nil
}

func (m *ResearchMapper) ResearchSessionToEntity(s *model.ResearchSession) (*entity.ResearchSession, error) {
	if s == nil {
		return nil, nil
	}
	var ext domain.Extensions
	if len(s.Extensions) > 0 {
		if err := json.Unmarshal(s.Extensions, &ext); err != nil {
			return nil, err
		}
	}

	var updatedAt *time.Time
	if !s.UpdatedAt.IsZero() {
		t := s.UpdatedAt
		updatedAt = &t
	}

	out := &entity.ResearchSession{
		Id:           s.Id,
		Mode:         domain.Mode(s.Mode),
		Query:        s.Query,
		Subject:      s.Subject,
		UserId:       s.UserId,
		Status:       domain.Status(s.Status),
		ErrorMessage: s.ErrorMessage,
		Extensions:   ext,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    updatedAt,
	}
	for _, st := range s.Steps {
		step := &entity.ThoughtStep{
			StepNumber: st.StepNumber,
			StepType:   domain.StepType(st.StepType),
			Title:      st.Title,
			Content:    st.Content,
			Confidence: st.Confidence,
		}
		for _, te := range st.ToolExecutions {
			step.ToolExecutions = append(step.ToolExecutions, &entity.ToolExecution{
				ToolName:        te.ToolName,
				ExecutionTimeMs: te.ExecutionTimeMs,
				Status:          te.Status,
			})
		}
		out.Steps = append(out.Steps, step)
	}
	for _, c := range s.Citations {
		out.Citations = append(out.Citations, &entity.Citation{
			CitationKey:    c.CitationKey,
			SourceType:     c.SourceType,
			SourceName:     c.SourceName,
			SourceUrl:      c.SourceUrl,
			ContentSnippet: c.ContentSnippet,
			PageNumber:     c.PageNumber,
		})
	}
	if s.Report != nil {
		out.Report = &entity.Report{ExecutiveSummary: s.Report.ExecutiveSummary, FullReport: s.Report.FullReport}
	}
	return out, nil
}
