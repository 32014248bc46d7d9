package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ResearchSession struct {
	Id           string         `gorm:"type:varchar(64);primaryKey"`
	Mode         string         `gorm:"type:varchar(20);not null;index"`
	Query        string         `gorm:"type:text;not null"`
	Subject      string         `gorm:"type:varchar(200)"`
	UserId       string         `gorm:"type:varchar(64);index"`
	Status       string         `gorm:"type:varchar(20);not null;index"`
	ErrorMessage string         `gorm:"type:text"`
	Extensions   datatypes.JSON `gorm:"type:jsonb"`
	Steps        []ThoughtStep  `gorm:"foreignKey:SessionId;constraint:OnDelete:CASCADE"`
	Citations    []Citation     `gorm:"foreignKey:SessionId;constraint:OnDelete:CASCADE"`
	Report       *Report        `gorm:"foreignKey:SessionId;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time      `gorm:"autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime"`
}

func (ResearchSession) TableName() string {
	return "research_sessions"
}

type ThoughtStep struct {
	Id             uuid.UUID       `gorm:"type:uuid;primaryKey"`
	SessionId      string          `gorm:"type:varchar(64);not null;index"`
	StepNumber     int             `gorm:"not null"`
	StepType       string          `gorm:"type:varchar(20);not null"`
	Title          string          `gorm:"type:text"`
	Content        string          `gorm:"type:text"`
	Confidence     float64         `gorm:"not null"`
	ToolExecutions []ToolExecution `gorm:"foreignKey:ThoughtStepId;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time       `gorm:"autoCreateTime"`
}

func (ThoughtStep) TableName() string {
	return "thought_steps"
}

type ToolExecution struct {
	Id              uuid.UUID `gorm:"type:uuid;primaryKey"`
	ThoughtStepId   uuid.UUID `gorm:"type:uuid;not null;index"`
	ToolName        string    `gorm:"type:varchar(100);not null"`
	ExecutionTimeMs *int64
	Status          string `gorm:"type:varchar(20);not null"`
}

func (ToolExecution) TableName() string {
	return "tool_executions"
}

type Citation struct {
	Id             uuid.UUID `gorm:"type:uuid;primaryKey"`
	SessionId      string    `gorm:"type:varchar(64);not null;index"`
	CitationKey    string    `gorm:"type:varchar(100);not null"`
	SourceType     string    `gorm:"type:varchar(20);not null"`
	SourceName     string    `gorm:"type:text"`
	SourceUrl      string    `gorm:"type:text"`
	ContentSnippet string    `gorm:"type:text"`
	PageNumber     *int
}

func (Citation) TableName() string {
	return "citations"
}

type Report struct {
	Id               uuid.UUID `gorm:"type:uuid;primaryKey"`
	SessionId        string    `gorm:"type:varchar(64);not null;uniqueIndex"`
	ExecutiveSummary string    `gorm:"type:text"`
	FullReport       string    `gorm:"type:text"`
	CreatedAt        time.Time `gorm:"autoCreateTime"`
}

func (Report) TableName() string {
	return "reports"
}

// ArchiveModels lists the archive tables in creation order.
func ArchiveModels() []interface{} {
	return []interface{}{
		&ResearchSession{},
		&ThoughtStep{},
		&ToolExecution{},
		&Citation{},
		&Report{},
	}
}
