package step

import (
	"context"
	"testing"
	"time"

	"slingshot-be/pkg/research/domain"
	"slingshot-be/pkg/research/report"
	"slingshot-be/pkg/research/tool"
	"slingshot-be/pkg/research/tool/catalog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var order = []domain.StepType{
	domain.StepPlanning,
	domain.StepResearching,
	domain.StepAnalyzing,
	domain.StepReflecting,
	domain.StepReporting,
}

func runPlaybook(t *testing.T, mode domain.Mode, st *State) {
	t.Helper()
	reg := tool.NewRegistry(time.Second)
	catalog.RegisterAll(reg, catalog.Options{})
	pb, err := ForMode(mode)
	require.NoError(t, err)
	ex := NewExecutor(reg, Policy{MinCitations: 3, RequiredSourceTypes: []string{domain.SourceScreener, domain.SourcePDF}})

	for _, typ := range order {
		out, err := ex.Run(context.Background(), pb, typ, st)
		require.NoError(t, err, typ)
		if typ == domain.StepReflecting {
			require.NotNil(t, out.Verdict)
			require.True(t, out.Verdict.Complete, "%+v", out.Verdict)
		}
		st.Steps = append(st.Steps, out.Step)
	}
	require.NotNil(t, st.Report)

	texts := append([]string{st.Report.ExecutiveSummary, st.Report.FullReport}, report.ExtensionTexts(st.Extensions)...)
	assert.NoError(t, report.Verify(st.Citations.List(), texts...))
	assert.NotEmpty(t, report.Keys(st.Report.ExecutiveSummary))

	for i := 1; i < len(st.Steps); i++ {
		assert.Equal(t, st.Steps[i-1].StepNumber+1, st.Steps[i].StepNumber)
		if up, ok := st.Steps[i].StepType.Upstream(); ok {
			prev, _ := st.Latest(up)
			assert.LessOrEqual(t, st.Steps[i].Confidence, prev.Confidence)
		}
	}
}

func TestEquityPlaybook(t *testing.T) {
	st := NewState("s", domain.ModeResearch, "Analyze HDFCBANK", "HDFCBANK", domain.Options{IncludeNews: true}, nil, nil)
	runPlaybook(t, domain.ModeResearch, st)

	assert.Contains(t, st.Report.FullReport, "## Valuation")
	assert.Contains(t, st.Report.FullReport, "## Sources")
	assert.Contains(t, st.Report.ExecutiveSummary, "HDFC Bank")
	assert.Contains(t, st.Report.ExecutiveSummary, "[cite-1]")
}

func TestMacroPlaybook(t *testing.T) {
	st := NewState("s", domain.ModeMacro, "Russia oil sanctions", "Russia oil sanctions", domain.Options{IncludeNews: true}, nil, nil)
	runPlaybook(t, domain.ModeMacro, st)

	ext := st.Extensions
	require.NotEmpty(t, ext.CausalChain)
	assert.Equal(t, "Russia oil sanctions", ext.CausalChain[0].FromEvent)
	assert.NotEmpty(t, report.Keys(ext.CausalChain[0].Evidence))
	require.NotEmpty(t, ext.AffectedCompanies)
	require.NotEmpty(t, ext.TradeIdeas)

	var buys, sells int
	for _, ti := range ext.TradeIdeas {
		switch ti.Action {
		case "BUY":
			buys++
			require.NotNil(t, ti.EntryPrice)
			assert.Greater(t, *ti.TargetPrice, *ti.EntryPrice)
			assert.Less(t, *ti.StopLoss, *ti.EntryPrice)
		case "SELL":
			sells++
		}
	}
	assert.Equal(t, 2, buys)
	assert.Equal(t, 1, sells)
}

func TestPortfolioPlaybook(t *testing.T) {
	opts := domain.Options{
		PortfolioName: "Core",
		Holdings: []domain.Holding{
			{Ticker: "INDIGO", Quantity: 50, AvgBuyPrice: 3000},
			{Ticker: "TCS", Quantity: 5, AvgBuyPrice: 3500},
		},
	}
	st := NewState("s", domain.ModePortfolio, "Core", "Core", opts, nil, nil)
	runPlaybook(t, domain.ModePortfolio, st)

	ext := st.Extensions
	require.NotNil(t, ext.Metrics)
	assert.Greater(t, ext.Metrics.TotalValue, 0.0)
	assert.Len(t, ext.Holdings, 2)
	assert.Len(t, ext.StressTests, 3)
	assert.NotEmpty(t, ext.SectorAllocation)
	assert.NotEmpty(t, ext.Recommendations)
}

func TestRetryCallsTargetGaps(t *testing.T) {
	st := newState()
	st.Pass = 2
	st.Gaps = []string{domain.SourceWeb, domain.SourcePDF, domain.SourcePDF}

	calls := Equity{}.Calls(domain.StepResearching, st)
	names := make([]string, 0, len(calls))
	for _, c := range calls {
		names = append(names, c.Tool)
	}
	assert.Equal(t, []string{catalog.WebSearch, catalog.FilingParser}, names)
}

func TestEquityAnalyzingSkipsValuationWithoutRatios(t *testing.T) {
	assert.Empty(t, Equity{}.Calls(domain.StepAnalyzing, newState()))
}

func TestForModeUnknown(t *testing.T) {
	_, err := ForMode("crypto")
	assert.Error(t, err)
}
