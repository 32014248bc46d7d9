package entity

import (
	"time"

	"slingshot-be/pkg/research/domain"
)

// ResearchSession is an archived, finished session.
type ResearchSession struct {
	Id           string
	Mode         domain.Mode
	Query        string
	Subject      string
	UserId       string
	Status       domain.Status
	ErrorMessage string
	Extensions   domain.Extensions
	Steps        []*ThoughtStep
	Citations    []*Citation
	Report       *Report
	CreatedAt    time.Time
	UpdatedAt    *time.Time
}

type ThoughtStep struct {
	StepNumber     int
	StepType       domain.StepType
	Title          string
	Content        string
	Confidence     float64
	ToolExecutions []*ToolExecution
}

type ToolExecution struct {
	ToolName        string
	ExecutionTimeMs *int64
	Status          string
}

type Citation struct {
	CitationKey    string
	SourceType     string
	SourceName     string
	SourceUrl      string
	ContentSnippet string
	PageNumber     *int
}

type Report struct {
	ExecutiveSummary string
	FullReport       string
}
