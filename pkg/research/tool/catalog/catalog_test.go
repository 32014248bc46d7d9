package catalog

import (
	"context"
	"testing"
	"time"

	"slingshot-be/pkg/research/domain"
	"slingshot-be/pkg/research/tool"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registry(t *testing.T) *tool.Registry {
	t.Helper()
	r := tool.NewRegistry(time.Second)
	RegisterAll(r, Options{})
	return r
}

func TestRegisterAllListsEveryTool(t *testing.T) {
	r := registry(t)
	names := []string{
		FinancialRatios, FilingParser, NewsAggregator, WebSearch, ValuationModel,
		MacroChainBuilder, IndiaExposureMapper, SectorScreener, CompanyImpactScorer,
		HistoricalAnalyzer, PortfolioAnalyzer, StressSimulator,
	}
	assert.Len(t, r.List(), len(names))
	for _, n := range names {
		assert.True(t, r.Has(n), n)
	}
}

func TestFinancialRatiosDeterministic(t *testing.T) {
	r := registry(t)
	ctx := context.Background()

	a, _, err := r.Invoke(ctx, FinancialRatios, tool.Params{"ticker": "hdfcbank"})
	require.NoError(t, err)
	b, _, err := r.Invoke(ctx, FinancialRatios, tool.Params{"ticker": "HDFCBANK"})
	require.NoError(t, err)

	ra, ok := Payload[Ratios](a)
	require.True(t, ok)
	rb, _ := Payload[Ratios](b)
	assert.Equal(t, ra, rb)
	assert.Equal(t, "HDFC Bank", ra.Name)
	require.Len(t, a.Sources, 1)
	assert.Equal(t, domain.SourceScreener, a.Sources[0].Type)
	assert.Equal(t, a.Sources[0].URL, b.Sources[0].URL)
}

func TestToolsRejectMissingParams(t *testing.T) {
	r := registry(t)
	for _, name := range []string{FinancialRatios, FilingParser, NewsAggregator, WebSearch, ValuationModel, MacroChainBuilder, PortfolioAnalyzer, StressSimulator} {
		_, _, err := r.Invoke(context.Background(), name, tool.Params{})
		assert.Error(t, err, name)
	}
}

func TestValuationUsesRatios(t *testing.T) {
	r := registry(t)
	res, _, err := r.Invoke(context.Background(), FinancialRatios, tool.Params{"ticker": "TCS"})
	require.NoError(t, err)
	ratios, _ := Payload[Ratios](res)

	res, _, err = r.Invoke(context.Background(), ValuationModel, tool.Params{"ratios": ratios})
	require.NoError(t, err)
	v, ok := Payload[Valuation](res)
	require.True(t, ok)
	assert.Equal(t, "TCS", v.Ticker)
	assert.Greater(t, v.FairValue, 0.0)
	assert.Empty(t, res.Sources)
}

func TestLookupSynthesisesUnknownTicker(t *testing.T) {
	c := Lookup("zzz")
	assert.Equal(t, "ZZZ", c.Ticker)
	assert.Equal(t, "ZZZ Ltd", c.Name)
	assert.False(t, Known("ZZZ"))
	assert.True(t, Known("tcs"))
	assert.Equal(t, c, Lookup("ZZZ"))
}

func TestThemeFor(t *testing.T) {
	tests := []struct {
		event string
		want  string
	}{
		{"Russia oil sanctions tighten", "energy supply shock"},
		{"RBI hikes repo rate", "rate tightening"},
		{"US recession fears", "global demand shock"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ThemeFor(tt.event).Name, tt.event)
	}
}

func TestMacroChainSubstitutesEvent(t *testing.T) {
	r := registry(t)
	res, _, err := r.Invoke(context.Background(), MacroChainBuilder, tool.Params{"topic": "Russia oil sanctions"})
	require.NoError(t, err)
	chain, ok := Payload[Chain](res)
	require.True(t, ok)
	require.NotEmpty(t, chain.Links)
	assert.Equal(t, "Russia oil sanctions", chain.Links[0].FromEvent)
	for i := 1; i < len(chain.Links); i++ {
		assert.Equal(t, chain.Links[i-1].ToEvent, chain.Links[i].FromEvent)
	}
	assert.Len(t, res.Sources, 2)
}

func TestImpactScorerDirections(t *testing.T) {
	r := registry(t)
	ctx := context.Background()
	topic := tool.Params{"topic": "crude spike"}

	res, _, err := r.Invoke(ctx, SectorScreener, topic)
	require.NoError(t, err)
	screen, _ := Payload[Screen](res)

	res, _, err = r.Invoke(ctx, CompanyImpactScorer, tool.Params{"topic": "crude spike", "screen": screen})
	require.NoError(t, err)
	exposures, ok := Payload[[]domain.CompanyExposure](res)
	require.True(t, ok)
	require.Len(t, exposures, len(screen.Companies))

	dirs := map[string]string{}
	for _, e := range exposures {
		dirs[e.Ticker] = e.ImpactDirection
	}
	assert.Equal(t, "positive", dirs["ONGC"])
	assert.Equal(t, "negative", dirs["INDIGO"])
}

func TestPortfolioAnalyzerMetrics(t *testing.T) {
	r := registry(t)
	hs := []domain.Holding{
		{Ticker: "TCS", Quantity: 10, AvgBuyPrice: 3000},
		{Ticker: "INFY", Quantity: 20, AvgBuyPrice: 1500},
		{Ticker: "ONGC", Quantity: 100, AvgBuyPrice: 200},
	}
	res, _, err := r.Invoke(context.Background(), PortfolioAnalyzer, tool.Params{"holdings": hs})
	require.NoError(t, err)
	a, ok := Payload[Analysis](res)
	require.True(t, ok)

	wantValue := 10*4012.0 + 20*1865.3 + 100*268.3
	wantInvested := 10*3000.0 + 20*1500.0 + 100*200.0
	assert.InDelta(t, wantValue, a.Metrics.TotalValue, 0.01)
	assert.InDelta(t, wantInvested, a.Metrics.TotalInvested, 0.01)
	assert.Greater(t, a.Metrics.TotalReturnPct, 0.0)
	require.Len(t, a.Allocation, 2)
	assert.Equal(t, "IT Services", a.Allocation[0].Sector)
	assert.Len(t, res.Sources, 3)

	var weight float64
	for _, s := range a.Allocation {
		weight += s.Weight
	}
	assert.InDelta(t, 100, weight, 0.2)
}

func TestStressSimulator(t *testing.T) {
	r := registry(t)
	hs := []domain.Holding{{Ticker: "INDIGO", Quantity: 10}, {Ticker: "ONGC", Quantity: 10}}
	res, _, err := r.Invoke(context.Background(), StressSimulator, tool.Params{"holdings": hs})
	require.NoError(t, err)
	out, ok := Payload[[]domain.StressTestResult](res)
	require.True(t, ok)
	require.Len(t, out, 3)
	assert.Equal(t, "Crude Oil Spike", out[0].ScenarioName)
	assert.Less(t, out[0].ImpactPercentage, 0.0)
	require.Len(t, res.Sources, 1)
	assert.Equal(t, domain.SourcePDF, res.Sources[0].Type)
}

func TestStressSimulatorCustomScenario(t *testing.T) {
	r := registry(t)
	hs := []domain.Holding{
		{Ticker: "INDIGO", Quantity: 10, CurrentPrice: 100, Sector: "Aviation"},
		{Ticker: "ONGC", Quantity: 10, CurrentPrice: 100, Sector: "Energy"},
	}
	custom := Scenario{
		Name:            "Jet fuel shock",
		SectorShocks:    map[string]float64{"Aviation": -50},
		MarketChangePct: 10,
		Parameters:      map[string]any{"note": "desk scenario"},
	}

	res, _, err := r.Invoke(context.Background(), StressSimulator, tool.Params{"holdings": hs, ScenarioParam: custom})
	require.NoError(t, err)
	out, ok := Payload[[]domain.StressTestResult](res)
	require.True(t, ok)
	require.Len(t, out, 1)
	assert.Equal(t, "Jet fuel shock", out[0].ScenarioName)
	assert.Equal(t, -20.0, out[0].ImpactPercentage)
	assert.Equal(t, "high", out[0].Severity)
	assert.Equal(t, "desk scenario", out[0].Parameters["note"])
	assert.Equal(t, 1600.0, out[0].Results["stressed_value"])

	// Without sector shocks every holding follows the market, scaled by beta.
	res, _, err = r.Invoke(context.Background(), StressSimulator, tool.Params{"holdings": hs, ScenarioParam: Scenario{Name: "Sell-off", MarketChangePct: -10}})
	require.NoError(t, err)
	out, _ = Payload[[]domain.StressTestResult](res)
	require.Len(t, out, 1)
	assert.Less(t, out[0].ImpactPercentage, 0.0)
}

func TestSeverity(t *testing.T) {
	assert.Equal(t, "high", severity(-20))
	assert.Equal(t, "medium", severity(-8))
	assert.Equal(t, "low", severity(-1))
}

func TestLatencyHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := sim{latency: time.Hour}.wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTickerFrom(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"Analyze HDFCBANK", "HDFCBANK"},
		{"deep dive into hdfc bank margins", "HDFCBANK"},
		{"Is infy a buy?", "INFY"},
		{"Should I hold ZOMATO now", "ZOMATO"},
		{"research adani ports", "PORTS"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TickerFrom(tt.query), tt.query)
	}
}
