package mapper

import (
	"slingshot-be/internal/dto"
	"slingshot-be/internal/entity"
	"slingshot-be/pkg/research/domain"
)

// Slices in responses are always arrays, never null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func ToSessionResponse(s domain.Snapshot) dto.SessionResponse {
	steps := make([]domain.ThoughtStep, len(s.Steps))
	for i, st := range s.Steps {
		st.ToolExecutions = nonNil(st.ToolExecutions)
		steps[i] = st
	}
	out := dto.SessionResponse{
		SessionId:    s.ID,
		Mode:         s.Mode,
		Query:        s.Query,
		Ticker:       s.Ticker,
		Status:       s.Status,
		ThoughtSteps: steps,
		Citations:    nonNil(s.Citations),
		Error:        s.Error,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
	if s.Report != nil {
		summary, full := s.Report.ExecutiveSummary, s.Report.FullReport
		out.ExecutiveSummary = &summary
		out.FullReport = &full
	}
	return out
}

func ToMacroResponse(s domain.Snapshot) dto.MacroResponse {
	return dto.MacroResponse{
		SessionResponse:   ToSessionResponse(s),
		CausalChain:       nonNil(s.Extensions.CausalChain),
		AffectedCompanies: nonNil(s.Extensions.AffectedCompanies),
		TradeIdeas:        nonNil(s.Extensions.TradeIdeas),
	}
}

func ToPortfolioResponse(s domain.Snapshot) dto.PortfolioResponse {
	return dto.PortfolioResponse{
		SessionResponse:  ToSessionResponse(s),
		PortfolioName:    s.Subject,
		Holdings:         nonNil(s.Extensions.Holdings),
		Metrics:          s.Extensions.Metrics,
		SectorAllocation: nonNil(s.Extensions.SectorAllocation),
		StressTests:      nonNil(s.Extensions.StressTests),
		Recommendations:  nonNil(s.Extensions.Recommendations),
	}
}

// ToModeResponse picks the response shape for the session's mode.
func ToModeResponse(s domain.Snapshot) interface{} {
	switch s.Mode {
	case domain.ModeMacro:
		return ToMacroResponse(s)
	case domain.ModePortfolio:
		return ToPortfolioResponse(s)
	}
	return ToSessionResponse(s)
}

func ToCausalChainResponse(s domain.Snapshot) dto.CausalChainResponse {
	return dto.CausalChainResponse{
		SessionId:   s.ID,
		Event:       s.Query,
		Status:      s.Status,
		CausalChain: nonNil(s.Extensions.CausalChain),
	}
}

func ToSessionSummary(e *entity.ResearchSession) dto.SessionSummaryResponse {
	return dto.SessionSummaryResponse{
		SessionId: e.Id,
		Mode:      e.Mode,
		Query:     e.Query,
		Status:    e.Status,
		HasReport: e.Report != nil,
		CreatedAt: e.CreatedAt,
	}
}
