package domain

import "time"

// Status is the pipeline state of a session.
type Status string

const (
	StatusPlanning    Status = "planning"
	StatusResearching Status = "researching"
	StatusAnalyzing   Status = "analyzing"
	StatusReflecting  Status = "reflecting"
	StatusReporting   Status = "reporting"
	StatusComplete    Status = "complete"
	StatusError       Status = "error"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusError
}

// StepType names one kind of reasoning step. Every step type doubles as the
// status the pipeline reports while that step runs.
type StepType string

const (
	StepPlanning    StepType = "planning"
	StepResearching StepType = "researching"
	StepAnalyzing   StepType = "analyzing"
	StepReflecting  StepType = "reflecting"
	StepReporting   StepType = "reporting"
)

func (t StepType) Status() Status {
	return Status(t)
}

// Upstream returns the step type whose confidence bounds this one.
func (t StepType) Upstream() (StepType, bool) {
	switch t {
	case StepResearching:
		return StepPlanning, true
	case StepAnalyzing:
		return StepResearching, true
	case StepReflecting:
		return StepAnalyzing, true
	case StepReporting:
		return StepReflecting, true
	}
	return "", false
}

// Mode selects the analysis playbook a session runs.
type Mode string

const (
	ModeResearch  Mode = "research"
	ModeMacro     Mode = "macro"
	ModePortfolio Mode = "portfolio"
)

// Tool execution outcomes.
const (
	ToolSucceeded = "succeeded"
	ToolFailed    = "failed"
	ToolTimedOut  = "timed_out"
)

type ToolExecution struct {
	ToolName        string `json:"tool_name"`
	ExecutionTimeMs *int64 `json:"execution_time_ms"`
	Status          string `json:"status"`
}

func (e ToolExecution) Succeeded() bool {
	return e.Status == ToolSucceeded
}

// ThoughtStep is one unit of the visible reasoning trace. Once emitted it is
// never modified.
type ThoughtStep struct {
	StepNumber     int             `json:"step_number"`
	StepType       StepType        `json:"step_type"`
	Title          string          `json:"title"`
	Content        string          `json:"content"`
	Confidence     float64         `json:"confidence"`
	ToolExecutions []ToolExecution `json:"tool_executions"`
}

// Source types known to the built-in tools. The set is open.
const (
	SourceScreener = "screener"
	SourcePDF      = "pdf"
	SourceNews     = "news"
	SourceWeb      = "web"
)

type Citation struct {
	Key            string `json:"citation_key"`
	SourceType     string `json:"source_type"`
	SourceName     string `json:"source_name"`
	SourceURL      string `json:"source_url,omitempty"`
	ContentSnippet string `json:"content_snippet,omitempty"`
	PageNumber     *int   `json:"page_number,omitempty"`
}

type Report struct {
	ExecutiveSummary string `json:"executive_summary"`
	FullReport       string `json:"full_report"`
}

// Options tune one pipeline run.
type Options struct {
	// MaxIterations caps the extra research passes reflection may request.
	// Zero means the configured default.
	MaxIterations int
	IncludeNews   bool
	Holdings      []Holding
	PortfolioName string
	UserID        string
}

// Macro extensions.

type CausalLink struct {
	FromEvent    string  `json:"from_event"`
	ToEvent      string  `json:"to_event"`
	Relationship string  `json:"relationship"`
	Confidence   float64 `json:"confidence"`
	Evidence     string  `json:"evidence,omitempty"`
}

type CompanyExposure struct {
	Ticker              string         `json:"ticker"`
	CompanyName         string         `json:"company_name"`
	ExposureType        string         `json:"exposure_type"`
	ImpactDirection     string         `json:"impact_direction"`
	ImpactMagnitude     string         `json:"impact_magnitude"`
	CurrentMetrics      map[string]any `json:"current_metrics"`
	ProjectedImpact     string         `json:"projected_impact"`
	Confidence          float64        `json:"confidence"`
	HistoricalPrecedent string         `json:"historical_precedent,omitempty"`
}

type TradeIdea struct {
	Action      string   `json:"action"`
	Ticker      string   `json:"ticker"`
	EntryPrice  *float64 `json:"entry_price,omitempty"`
	TargetPrice *float64 `json:"target_price,omitempty"`
	StopLoss    *float64 `json:"stop_loss,omitempty"`
	Conviction  string   `json:"conviction"`
	Rationale   string   `json:"rationale"`
}

// Portfolio extensions.

type Holding struct {
	Ticker       string  `json:"ticker"`
	Quantity     float64 `json:"quantity"`
	AvgBuyPrice  float64 `json:"avg_buy_price"`
	CurrentPrice float64 `json:"current_price,omitempty"`
	Sector       string  `json:"sector,omitempty"`
}

type PortfolioMetrics struct {
	TotalValue     float64 `json:"total_value"`
	TotalInvested  float64 `json:"total_invested"`
	TotalReturnPct float64 `json:"total_return_pct"`
	RiskScore      float64 `json:"risk_score"`
	PortfolioBeta  float64 `json:"portfolio_beta"`
}

type SectorAllocation struct {
	Sector string  `json:"sector"`
	Weight float64 `json:"weight"`
	Value  float64 `json:"value"`
}

type StressTestResult struct {
	ScenarioName     string         `json:"scenario_name"`
	Description      string         `json:"description"`
	ImpactPercentage float64        `json:"impact_percentage"`
	Severity         string         `json:"severity"`
	Parameters       map[string]any `json:"parameters"`
	Results          map[string]any `json:"results"`
}

// Extensions carries the mode-specific outputs produced by steps. They follow
// the same immutability and citation rules as the report.
type Extensions struct {
	CausalChain       []CausalLink       `json:"causal_chain,omitempty"`
	AffectedCompanies []CompanyExposure  `json:"affected_companies,omitempty"`
	TradeIdeas        []TradeIdea        `json:"trade_ideas,omitempty"`
	Holdings          []Holding          `json:"holdings,omitempty"`
	Metrics           *PortfolioMetrics  `json:"metrics,omitempty"`
	SectorAllocation  []SectorAllocation `json:"sector_allocation,omitempty"`
	StressTests       []StressTestResult `json:"stress_tests,omitempty"`
	Recommendations   []string           `json:"recommendations,omitempty"`
}

// Snapshot is a consistent, copy-on-read view of a session. Subject is the
// ticker, event or portfolio name the session studies.
type Snapshot struct {
	ID         string
	Mode       Mode
	Query      string
	Ticker     string
	Subject    string
	UserID     string
	Status     Status
	Steps      []ThoughtStep
	Citations  []Citation
	Report     *Report
	Extensions Extensions
	Error      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
