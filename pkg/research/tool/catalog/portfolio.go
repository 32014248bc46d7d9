package catalog

import (
	"context"
	"fmt"
	"math"
	"sort"

	"slingshot-be/pkg/research/citation"
	"slingshot-be/pkg/research/domain"
	"slingshot-be/pkg/research/tool"
)

type Analysis struct {
	Holdings   []domain.Holding          `json:"holdings"`
	Metrics    domain.PortfolioMetrics   `json:"metrics"`
	Allocation []domain.SectorAllocation `json:"sector_allocation"`
}

type portfolioAnalyzer struct{ sim }

func (portfolioAnalyzer) Name() string { return PortfolioAnalyzer }
func (portfolioAnalyzer) Description() string {
	return "Prices holdings and computes returns, beta, risk score and sector allocation"
}

func holdingsParam(p tool.Params) ([]domain.Holding, error) {
	hs, ok := p["holdings"].([]domain.Holding)
	if !ok || len(hs) == 0 {
		return nil, fmt.Errorf("holdings are required")
	}
	return hs, nil
}

func (t portfolioAnalyzer) Execute(ctx context.Context, p tool.Params) (*tool.Result, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	hs, err := holdingsParam(p)
	if err != nil {
		return nil, err
	}

	var (
		out      Analysis
		sources  []citation.Source
		betaSum  float64
		bySector = map[string]float64{}
	)
	for _, h := range hs {
		c := Lookup(h.Ticker)
		h.Ticker = c.Ticker
		h.CurrentPrice = c.Price
		if h.Sector == "" {
			h.Sector = c.Sector
		}
		value := h.Quantity * h.CurrentPrice
		out.Metrics.TotalValue += value
		out.Metrics.TotalInvested += h.Quantity * h.AvgBuyPrice
		betaSum += value * c.Beta
		bySector[h.Sector] += value
		out.Holdings = append(out.Holdings, h)
		sources = append(sources, citation.Source{
			Type:    domain.SourceScreener,
			Name:    fmt.Sprintf("Screener.in - %s consolidated financials", c.Name),
			URL:     fmt.Sprintf("https://www.screener.in/company/%s/consolidated/", c.Ticker),
			Snippet: fmt.Sprintf("Last price %.1f, beta %.2f", c.Price, c.Beta),
		})
	}

	m := &out.Metrics
	if m.TotalValue > 0 {
		m.PortfolioBeta = round(betaSum/m.TotalValue, 2)
	}
	if m.TotalInvested > 0 {
		m.TotalReturnPct = round((m.TotalValue-m.TotalInvested)/m.TotalInvested*100, 2)
	}

	var maxWeight float64
	for sector, v := range bySector {
		w := 0.0
		if m.TotalValue > 0 {
			w = round(v/m.TotalValue*100, 1)
		}
		maxWeight = math.Max(maxWeight, w)
		out.Allocation = append(out.Allocation, domain.SectorAllocation{Sector: sector, Weight: w, Value: round(v, 2)})
	}
	sort.Slice(out.Allocation, func(i, j int) bool {
		if out.Allocation[i].Weight != out.Allocation[j].Weight {
			return out.Allocation[i].Weight > out.Allocation[j].Weight
		}
		return out.Allocation[i].Sector < out.Allocation[j].Sector
	})
	// Risk on a 0-10 scale: beta and sector concentration in equal parts.
	m.RiskScore = round(math.Min(10, m.PortfolioBeta*3.5+maxWeight/100*5), 1)
	m.TotalValue = round(m.TotalValue, 2)
	m.TotalInvested = round(m.TotalInvested, 2)

	return result(out, sources...), nil
}

type scenario struct {
	name        string
	description string
	shocks      map[string]float64 // sector -> move in percent
	fallback    float64
	params      map[string]any
}

var scenarios = []scenario{
	{
		name:        "Crude Oil Spike",
		description: "Brent rises 40% on supply disruption",
		shocks:      map[string]float64{"Energy": 6, "Mining": 4, "Aviation": -22, "Consumer": -9, "Automobile": -11},
		fallback:    -4,
		params:      map[string]any{"brent_change_pct": 40},
	},
	{
		name:        "Rate Shock",
		description: "RBI raises the repo rate by 150 bps",
		shocks:      map[string]float64{"Banking": 3, "Automobile": -14, "Infrastructure": -12, "Consumer": -6},
		fallback:    -5,
		params:      map[string]any{"repo_change_bps": 150},
	},
	{
		name:        "Market Correction",
		description: "Broad equity sell-off of 20% in the benchmark index",
		fallback:    -20,
		params:      map[string]any{"index_change_pct": -20},
	},
}

// ScenarioParam carries a caller-defined Scenario. Without it the simulator
// runs the built-in scenarios.
const ScenarioParam = "scenario"

// Scenario is a caller-defined stress scenario. Holdings in a sector listed in
// SectorShocks move by that percentage; all others move by MarketChangePct,
// scaled by beta when no sector shocks are given.
type Scenario struct {
	Name            string
	SectorShocks    map[string]float64
	MarketChangePct float64
	Parameters      map[string]any
}

func (s Scenario) scenario() scenario {
	sc := scenario{
		name:        s.Name,
		description: "Custom scenario",
		fallback:    s.MarketChangePct,
		params:      s.Parameters,
	}
	if len(s.SectorShocks) > 0 {
		sc.shocks = s.SectorShocks
	}
	return sc
}

func (sc scenario) apply(hs []domain.Holding, total float64) domain.StressTestResult {
	var loss float64
	for _, h := range hs {
		c := Lookup(h.Ticker)
		sector := h.Sector
		if sector == "" {
			sector = c.Sector
		}
		move, ok := sc.shocks[sector]
		if !ok {
			move = sc.fallback
		}
		if sc.shocks == nil {
			move = sc.fallback * c.Beta
		}
		loss += h.Quantity * priceOf(h) * move / 100
	}
	impact := round(loss/total*100, 2)
	return domain.StressTestResult{
		ScenarioName:     sc.name,
		Description:      sc.description,
		ImpactPercentage: impact,
		Severity:         severity(impact),
		Parameters:       sc.params,
		Results:          map[string]any{"value_change": round(loss, 2), "stressed_value": round(total+loss, 2)},
	}
}

type stressSimulator struct{ sim }

func (stressSimulator) Name() string { return StressSimulator }
func (stressSimulator) Description() string {
	return "Simulates portfolio drawdowns under oil, rate and market-wide stress scenarios"
}

func (t stressSimulator) Execute(ctx context.Context, p tool.Params) (*tool.Result, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	hs, err := holdingsParam(p)
	if err != nil {
		return nil, err
	}

	var total float64
	for _, h := range hs {
		total += h.Quantity * priceOf(h)
	}
	if total == 0 {
		return nil, fmt.Errorf("portfolio has no market value")
	}

	run := scenarios
	if custom, ok := p[ScenarioParam].(Scenario); ok {
		run = []scenario{custom.scenario()}
	}

	out := make([]domain.StressTestResult, 0, len(run))
	for _, sc := range run {
		out = append(out, sc.apply(hs, total))
	}
	return result(out, citation.Source{
		Type:       domain.SourcePDF,
		Name:       "RBI Financial Stability Report",
		URL:        "https://www.rbi.org.in/Scripts/PublicationReportDetails.aspx?UrlPage=&ID=1234",
		Snippet:    "Macro stress tests under baseline and severe adverse scenarios",
		PageNumber: intPtr(42),
	}), nil
}

func priceOf(h domain.Holding) float64 {
	if h.CurrentPrice > 0 {
		return h.CurrentPrice
	}
	return Lookup(h.Ticker).Price
}

func severity(impact float64) string {
	switch {
	case impact <= -15:
		return "high"
	case impact <= -7:
		return "medium"
	default:
		return "low"
	}
}
