package step

import (
	"slingshot-be/pkg/research/citation"
	"slingshot-be/pkg/research/domain"
	"slingshot-be/pkg/research/report"
	"slingshot-be/pkg/research/tool"
)

// Finding is the latest successful output of one tool together with the
// citation keys its sources were filed under.
type Finding struct {
	Result *tool.Result
	Keys   []string
}

// State is the session context steps run against. It is owned by a single
// pipeline run and must not be shared across goroutines.
type State struct {
	SessionID string
	Mode      domain.Mode
	Query     string
	// Subject is the ticker for equity research and the event text otherwise.
	Subject string
	Options domain.Options

	// Pass counts research passes, starting at 1.
	Pass      int
	Gaps      []string
	Steps     []domain.ThoughtStep
	Citations *citation.Store
	Findings  map[string]Finding

	Extensions domain.Extensions
	Report     *domain.Report
}

// NewState returns the context for a fresh run. Steps and citations carry over
// from a previous failed run so numbering and keys stay monotonic.
func NewState(id string, mode domain.Mode, query, subject string, opts domain.Options, prior []domain.ThoughtStep, citations []domain.Citation) *State {
	return &State{
		SessionID: id,
		Mode:      mode,
		Query:     query,
		Subject:   subject,
		Options:   opts,
		Pass:      1,
		Steps:     append([]domain.ThoughtStep(nil), prior...),
		Citations: citation.Restore(citations),
		Findings:  make(map[string]Finding),
	}
}

// Cite returns the markers for the sources behind a tool's latest finding.
func (s *State) Cite(toolName string) string {
	return report.Markers(s.Findings[toolName].Keys...)
}

func (s *State) Has(toolName string) bool {
	_, ok := s.Findings[toolName]
	return ok
}

// Latest returns the most recent step of type t.
func (s *State) Latest(t domain.StepType) (domain.ThoughtStep, bool) {
	for i := len(s.Steps) - 1; i >= 0; i-- {
		if s.Steps[i].StepType == t {
			return s.Steps[i], true
		}
	}
	return domain.ThoughtStep{}, false
}

// NextNumber is the sequence number the next emitted step will carry.
func (s *State) NextNumber() int {
	if len(s.Steps) == 0 {
		return 1
	}
	return s.Steps[len(s.Steps)-1].StepNumber + 1
}
