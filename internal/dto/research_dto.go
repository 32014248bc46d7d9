package dto

import (
	"time"

	"slingshot-be/pkg/research/domain"
)

// Requests

type StartResearchRequest struct {
	Query         string `json:"query" validate:"required,max=500"`
	IncludeNews   *bool  `json:"include_news"`
	MaxIterations int    `json:"max_iterations" validate:"gte=0,lte=5"`
	SessionId     string `json:"session_id" validate:"omitempty,max=64"`
}

type StartMacroRequest struct {
	Query         string `json:"query" validate:"required,max=500"`
	IncludeNews   *bool  `json:"include_news"`
	MaxIterations int    `json:"max_iterations" validate:"gte=0,lte=5"`
	SessionId     string `json:"session_id" validate:"omitempty,max=64"`
}

type HoldingRequest struct {
	Ticker      string  `json:"ticker" validate:"required,max=20"`
	Quantity    float64 `json:"quantity" validate:"gt=0"`
	AvgBuyPrice float64 `json:"avg_buy_price" validate:"gte=0"`
	Sector      string  `json:"sector" validate:"omitempty,max=50"`
}

type PortfolioAuditRequest struct {
	Name          string           `json:"name" validate:"omitempty,max=100"`
	Holdings      []HoldingRequest `json:"holdings" validate:"required,min=1,max=50,dive"`
	IncludeNews   *bool            `json:"include_news"`
	MaxIterations int              `json:"max_iterations" validate:"gte=0,lte=5"`
	SessionId     string           `json:"session_id" validate:"omitempty,max=64"`
}

type StressTestRequest struct {
	ScenarioName string         `json:"scenario_name" validate:"required,max=100"`
	Parameters   map[string]any `json:"parameters"`
}

type ListSessionsQuery struct {
	Mode   string `query:"mode" validate:"omitempty,oneof=research macro portfolio"`
	Status string `query:"status" validate:"omitempty,oneof=complete error"`
	Limit  int    `query:"limit" validate:"gte=0,lte=100"`
	Offset int    `query:"offset" validate:"gte=0"`
}

// Responses

type SessionResponse struct {
	SessionId        string               `json:"session_id"`
	Mode             domain.Mode          `json:"mode"`
	Query            string               `json:"query"`
	Ticker           string               `json:"ticker,omitempty"`
	Status           domain.Status        `json:"status"`
	ThoughtSteps     []domain.ThoughtStep `json:"thought_steps"`
	Citations        []domain.Citation    `json:"citations"`
	ExecutiveSummary *string              `json:"executive_summary"`
	FullReport       *string              `json:"full_report"`
	Error            string               `json:"error,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

type MacroResponse struct {
	SessionResponse
	CausalChain       []domain.CausalLink      `json:"causal_chain"`
	AffectedCompanies []domain.CompanyExposure `json:"affected_companies"`
	TradeIdeas        []domain.TradeIdea       `json:"trade_ideas"`
}

type PortfolioResponse struct {
	SessionResponse
	PortfolioName    string                    `json:"portfolio_name"`
	Holdings         []domain.Holding          `json:"holdings"`
	Metrics          *domain.PortfolioMetrics  `json:"metrics"`
	SectorAllocation []domain.SectorAllocation `json:"sector_allocation"`
	StressTests      []domain.StressTestResult `json:"stress_tests"`
	Recommendations  []string                  `json:"recommendations"`
}

type StressTestResponse struct {
	SessionId     string                  `json:"session_id"`
	PortfolioName string                  `json:"portfolio_name"`
	StressTest    domain.StressTestResult `json:"stress_test"`
}

type ReportResponse struct {
	ExecutiveSummary string `json:"executive_summary"`
	FullReport       string `json:"full_report"`
}

type CausalChainResponse struct {
	SessionId   string              `json:"session_id"`
	Event       string              `json:"event"`
	Status      domain.Status       `json:"status"`
	CausalChain []domain.CausalLink `json:"causal_chain"`
}

type SessionSummaryResponse struct {
	SessionId string        `json:"session_id"`
	Mode      domain.Mode   `json:"mode"`
	Query     string        `json:"query"`
	Status    domain.Status `json:"status"`
	HasReport bool          `json:"has_report"`
	CreatedAt time.Time     `json:"created_at"`
}

type ListSessionsResponse struct {
	Sessions []SessionSummaryResponse `json:"sessions"`
	Total    int64                    `json:"total"`
}

type HealthResponse struct {
	Status         string `json:"status"`
	Service        string `json:"service"`
	ActiveSessions int    `json:"active_sessions"`
}
