package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"slingshot-be/pkg/research/citation"
	"slingshot-be/pkg/research/domain"
	"slingshot-be/pkg/research/tool"
)

// Theme is a macro transmission template selected from the event text.
type Theme struct {
	Name          string
	Keywords      []string
	Chain         []domain.CausalLink
	Channels      []string
	Beneficiaries []string
	Losers        []string
	Precedent     string
	PrecedentMove map[string]float64
	ReferenceURL  string
	AgencyReport  string
}

var themes = []Theme{
	{
		Name:     "energy supply shock",
		Keywords: []string{"oil", "crude", "sanction", "russia", "opec", "brent", "energy"},
		Chain: []domain.CausalLink{
			{FromEvent: "%s", ToEvent: "Global Oil Supply Disruption", Relationship: "Export restrictions remove supply from the seaborne crude market", Confidence: 0.92},
			{FromEvent: "Global Oil Supply Disruption", ToEvent: "Brent Crude Spike", Relationship: "Inelastic short-term demand turns the supply gap into a price surge", Confidence: 0.89},
			{FromEvent: "Brent Crude Spike", ToEvent: "India Import Bill Surges", Relationship: "India imports most of its crude; every $10/bbl adds roughly $15B to the annual bill", Confidence: 0.9},
			{FromEvent: "India Import Bill Surges", ToEvent: "CAD Widens & INR Pressure", Relationship: "Higher energy imports widen the current account deficit", Confidence: 0.84},
			{FromEvent: "CAD Widens & INR Pressure", ToEvent: "Sector-Specific Stock Impacts", Relationship: "Upstream producers gain while fuel consumers face margin compression", Confidence: 0.86},
		},
		Channels:      []string{"crude import bill", "current account deficit", "fuel under-recoveries", "input costs for crude derivatives"},
		Beneficiaries: []string{"ONGC", "RELIANCE", "COALINDIA"},
		Losers:        []string{"IOC", "BPCL", "INDIGO", "ASIANPAINT"},
		Precedent:     "Feb-Jun 2022 sanctions cycle: Brent moved from $90 to $130",
		PrecedentMove: map[string]float64{"ONGC": 28, "RELIANCE": 9, "COALINDIA": 14, "IOC": -18, "BPCL": -21, "INDIGO": -22, "ASIANPAINT": -11},
		ReferenceURL:  "https://ppac.gov.in/import-export",
		AgencyReport:  "PPAC Crude Import Dependency Snapshot",
	},
	{
		Name:     "rate tightening",
		Keywords: []string{"rate", "rbi", "fed", "inflation", "repo", "hike", "yield"},
		Chain: []domain.CausalLink{
			{FromEvent: "%s", ToEvent: "Higher Policy Rates", Relationship: "Central banks tighten to anchor inflation expectations", Confidence: 0.9},
			{FromEvent: "Higher Policy Rates", ToEvent: "Bond Yields Rise", Relationship: "Short-end yields reprice first and the curve follows", Confidence: 0.87},
			{FromEvent: "Bond Yields Rise", ToEvent: "Credit Growth Slows", Relationship: "Costlier borrowing cools retail and corporate loan demand", Confidence: 0.8},
			{FromEvent: "Credit Growth Slows", ToEvent: "Sector-Specific Stock Impacts", Relationship: "Deposit-rich lenders gain on margins while rate-sensitive sectors de-rate", Confidence: 0.78},
		},
		Channels:      []string{"net interest margins", "consumer credit demand", "capex financing costs"},
		Beneficiaries: []string{"HDFCBANK", "ICICIBANK"},
		Losers:        []string{"TATAMOTORS", "LT"},
		Precedent:     "May 2022-Feb 2023 RBI hiking cycle: repo rate up 250 bps",
		PrecedentMove: map[string]float64{"HDFCBANK": 6, "ICICIBANK": 12, "TATAMOTORS": -9, "LT": -4},
		ReferenceURL:  "https://www.rbi.org.in/Scripts/BS_ViewMonetaryPolicy.aspx",
		AgencyReport:  "RBI Monetary Policy Report",
	},
	{
		Name:     "global demand shock",
		Keywords: nil,
		Chain: []domain.CausalLink{
			{FromEvent: "%s", ToEvent: "Global Risk Sentiment Weakens", Relationship: "Investors reduce exposure to emerging-market risk assets", Confidence: 0.8},
			{FromEvent: "Global Risk Sentiment Weakens", ToEvent: "Export Demand Softens", Relationship: "Slower developed-market spending trims orders for Indian exporters", Confidence: 0.76},
			{FromEvent: "Export Demand Softens", ToEvent: "Sector-Specific Stock Impacts", Relationship: "Defensive domestic consumption names outperform export-led sectors", Confidence: 0.74},
		},
		Channels:      []string{"services exports", "portfolio flows", "rupee volatility"},
		Beneficiaries: []string{"ITC", "SUNPHARMA"},
		Losers:        []string{"TCS", "INFY"},
		Precedent:     "2020 global slowdown: export-led IT lagged domestic defensives",
		PrecedentMove: map[string]float64{"ITC": 7, "SUNPHARMA": 11, "TCS": -8, "INFY": -10},
		ReferenceURL:  "https://www.imf.org/en/Publications/WEO",
		AgencyReport:  "IMF World Economic Outlook",
	},
}

// ThemeFor picks the transmission template matching the event text. The last
// theme is the fallback.
func ThemeFor(event string) Theme {
	lower := strings.ToLower(event)
	for _, th := range themes {
		for _, k := range th.Keywords {
			if strings.Contains(lower, k) {
				return th
			}
		}
	}
	return themes[len(themes)-1]
}

type Chain struct {
	Event string              `json:"event"`
	Theme string              `json:"theme"`
	Links []domain.CausalLink `json:"links"`
}

type macroChainBuilder struct{ sim }

func (macroChainBuilder) Name() string { return MacroChainBuilder }
func (macroChainBuilder) Description() string {
	return "Builds the causal transmission chain from a macro event to market impact"
}

func (t macroChainBuilder) Execute(ctx context.Context, p tool.Params) (*tool.Result, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	event := p.String("topic")
	if event == "" {
		return nil, fmt.Errorf("topic is required")
	}
	th := ThemeFor(event)
	links := make([]domain.CausalLink, len(th.Chain))
	for i, l := range th.Chain {
		if strings.Contains(l.FromEvent, "%s") {
			l.FromEvent = fmt.Sprintf(l.FromEvent, event)
		}
		links[i] = l
	}
	return result(Chain{Event: event, Theme: th.Name, Links: links},
		citation.Source{
			Type:    domain.SourceNews,
			Name:    "Reuters - " + event,
			URL:     "https://www.reuters.com/markets/" + slug(event),
			Snippet: th.Chain[0].Relationship,
		},
		citation.Source{
			Type:    domain.SourceWeb,
			Name:    th.AgencyReport,
			URL:     th.ReferenceURL,
			Snippet: th.Chain[len(th.Chain)-1].Relationship,
		},
	), nil
}

type Exposure struct {
	Theme            string   `json:"theme"`
	Channels         []string `json:"channels"`
	ImportDependency float64  `json:"import_dependency"`
}

type indiaExposureMapper struct{ sim }

func (indiaExposureMapper) Name() string { return IndiaExposureMapper }
func (indiaExposureMapper) Description() string {
	return "Maps a global event onto India's trade, currency and fiscal exposure channels"
}

func (t indiaExposureMapper) Execute(ctx context.Context, p tool.Params) (*tool.Result, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	event := p.String("topic")
	if event == "" {
		return nil, fmt.Errorf("topic is required")
	}
	th := ThemeFor(event)
	r := rng("exposure:" + th.Name)
	out := Exposure{
		Theme:            th.Name,
		Channels:         th.Channels,
		ImportDependency: round(0.6+r.Float64()*0.3, 2),
	}
	return result(out, citation.Source{
		Type:       domain.SourcePDF,
		Name:       th.AgencyReport + " (PDF)",
		URL:        th.ReferenceURL + "/report.pdf",
		Snippet:    "Exposure channels: " + strings.Join(th.Channels, ", "),
		PageNumber: intPtr(4 + r.Intn(30)),
	}), nil
}

type Screen struct {
	Theme     string   `json:"theme"`
	Companies []Ratios `json:"companies"`
}

type sectorScreener struct{ sim }

func (sectorScreener) Name() string { return SectorScreener }
func (sectorScreener) Description() string {
	return "Screens listed companies exposed to a theme and returns their headline ratios"
}

func (t sectorScreener) Execute(ctx context.Context, p tool.Params) (*tool.Result, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	event := p.String("topic")
	if event == "" {
		return nil, fmt.Errorf("topic is required")
	}
	th := ThemeFor(event)
	tickers := append(append([]string{}, th.Beneficiaries...), th.Losers...)
	out := Screen{Theme: th.Name}
	for _, tk := range tickers {
		c := Lookup(tk)
		r := rng("ratios:" + c.Ticker)
		out.Companies = append(out.Companies, Ratios{
			Company:     c,
			PE:          round(8+r.Float64()*40, 1),
			MarketCapCr: round(c.Price*(50+r.Float64()*700), 0),
		})
	}
	return result(out, citation.Source{
		Type:    domain.SourceScreener,
		Name:    "Screener.in - " + th.Name + " screen",
		URL:     "https://www.screener.in/screens/" + slug(th.Name) + "/",
		Snippet: fmt.Sprintf("%d companies matched", len(out.Companies)),
	}), nil
}

type companyImpactScorer struct{ sim }

func (companyImpactScorer) Name() string { return CompanyImpactScorer }
func (companyImpactScorer) Description() string {
	return "Scores company-level impact direction, magnitude and confidence for a screened universe"
}

func (t companyImpactScorer) Execute(ctx context.Context, p tool.Params) (*tool.Result, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	screen, ok := p["screen"].(Screen)
	if !ok {
		return nil, fmt.Errorf("screen is required")
	}
	th := ThemeFor(p.String("topic"))
	positive := make(map[string]bool, len(th.Beneficiaries))
	for _, b := range th.Beneficiaries {
		positive[b] = true
	}

	var out []domain.CompanyExposure
	for i, c := range screen.Companies {
		r := rng("impact:" + th.Name + ":" + c.Ticker)
		dir := "negative"
		if positive[c.Ticker] {
			dir = "positive"
		}
		magnitude := "moderate"
		if i == 0 || r.Float64() > 0.6 {
			magnitude = "strong"
		}
		out = append(out, domain.CompanyExposure{
			Ticker:          c.Ticker,
			CompanyName:     c.Name,
			ExposureType:    fmt.Sprintf("%s exposure via %s", c.Sector, th.Channels[i%len(th.Channels)]),
			ImpactDirection: dir,
			ImpactMagnitude: magnitude,
			CurrentMetrics:  map[string]any{"pe": c.PE, "market_cap_cr": c.MarketCapCr, "beta": c.Beta},
			ProjectedImpact: fmt.Sprintf("%s earnings sensitivity to %s rated %s", c.Name, th.Name, magnitude),
			Confidence:      round(0.7+r.Float64()*0.25, 2),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return result(out), nil
}

type Precedent struct {
	Summary string             `json:"summary"`
	Moves   map[string]float64 `json:"moves"`
}

type historicalAnalyzer struct{ sim }

func (historicalAnalyzer) Name() string { return HistoricalAnalyzer }
func (historicalAnalyzer) Description() string {
	return "Cross-validates projected impacts against the closest historical precedent"
}

func (t historicalAnalyzer) Execute(ctx context.Context, p tool.Params) (*tool.Result, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	event := p.String("topic")
	if event == "" {
		return nil, fmt.Errorf("topic is required")
	}
	th := ThemeFor(event)
	return result(Precedent{Summary: th.Precedent, Moves: th.PrecedentMove},
		citation.Source{
			Type:    domain.SourceNews,
			Name:    "Business Standard archive - " + th.Precedent,
			URL:     "https://www.business-standard.com/markets/" + slug(th.Precedent),
			Snippet: th.Precedent,
		},
	), nil
}
