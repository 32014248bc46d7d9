package step

import (
	"fmt"
	"strings"

	"slingshot-be/pkg/research/domain"
	"slingshot-be/pkg/research/report"
	"slingshot-be/pkg/research/tool"
	"slingshot-be/pkg/research/tool/catalog"
)

// Equity is the deep-research playbook for a single listed company.
type Equity struct{}

func (Equity) Mode() domain.Mode { return domain.ModeResearch }

func (Equity) Calls(t domain.StepType, st *State) []Call {
	ticker := tool.Params{"ticker": st.Subject}
	switch t {
	case domain.StepResearching:
		if st.Pass > 1 {
			return retryCalls(st, tool.Params{"query": st.Query, "ticker": st.Subject}, map[string]Call{
				domain.SourceScreener: {Tool: catalog.FinancialRatios, Params: ticker},
				domain.SourcePDF:      {Tool: catalog.FilingParser, Params: ticker},
				domain.SourceNews:     {Tool: catalog.NewsAggregator, Params: ticker},
			})
		}
		calls := []Call{
			{Tool: catalog.FinancialRatios, Params: ticker},
			{Tool: catalog.FilingParser, Params: ticker},
		}
		if st.Options.IncludeNews {
			calls = append(calls, Call{Tool: catalog.NewsAggregator, Params: ticker})
		}
		return calls
	case domain.StepAnalyzing:
		if r, ok := found[catalog.Ratios](st, catalog.FinancialRatios); ok {
			return []Call{{Tool: catalog.ValuationModel, Params: tool.Params{"ratios": r}}}
		}
	}
	return nil
}

func (e Equity) Compose(t domain.StepType, st *State, v *Verdict) (Draft, error) {
	c := catalog.Lookup(st.Subject)
	switch t {
	case domain.StepPlanning:
		plan := []string{
			"1. Pull valuation and profitability ratios from the screener",
			"2. Parse the latest annual report and investor presentation",
		}
		if st.Options.IncludeNews {
			plan = append(plan, "3. Aggregate recent news and sentiment")
		}
		plan = append(plan, fmt.Sprintf("%d. Build a valuation and review evidence coverage", len(plan)+1))
		return Draft{
			Title:      "Planning research approach",
			Content:    fmt.Sprintf("Breaking down the analysis of %s (%s):\n%s", c.Name, c.Ticker, strings.Join(plan, "\n")),
			Confidence: 0.95,
		}, nil

	case domain.StepResearching:
		title := "Gathering financial data"
		if st.Pass > 1 {
			title = fmt.Sprintf("Filling research gaps (pass %d)", st.Pass)
		}
		return Draft{Title: title, Content: e.findings(st), Confidence: 0.9}, nil

	case domain.StepAnalyzing:
		var lines []string
		if val, ok := found[catalog.Valuation](st, catalog.ValuationModel); ok {
			lines = append(lines, sentence("Fair value estimate of INR %.1f implies %.1f%% upside using a %s %s.",
				val.FairValue, val.UpsidePct, val.Method, st.Cite(catalog.FinancialRatios)))
		}
		if f, ok := found[catalog.Filing](st, catalog.FilingParser); ok {
			margin := 0.0
			if f.RevenueCr > 0 {
				margin = f.NetProfitCr / f.RevenueCr * 100
			}
			lines = append(lines, sentence("Net margin of %.1f%% on %s revenue %s.", margin, f.FiscalYear, st.Cite(catalog.FilingParser)))
		}
		if len(lines) == 0 {
			lines = append(lines, "Screener ratios were unavailable; analysis relies on qualitative findings only.")
		}
		return Draft{Title: "Analyzing fundamentals and valuation", Content: strings.Join(lines, " "), Confidence: 0.87}, nil

	case domain.StepReflecting:
		return reflectDraft(st, v), nil

	case domain.StepReporting:
		st.Report = e.report(st, c)
		return Draft{
			Title:      "Synthesizing final report",
			Content:    fmt.Sprintf("Compiled executive summary and full report for %s backed by %d citations.", c.Ticker, st.Citations.Len()),
			Confidence: 0.9,
		}, nil
	}
	return Draft{}, fmt.Errorf("unsupported step %q", t)
}

func (Equity) findings(st *State) string {
	var lines []string
	if r, ok := found[catalog.Ratios](st, catalog.FinancialRatios); ok {
		lines = append(lines, sentence("P/E %.1f, P/B %.1f, ROE %.1f%%, debt/equity %.2f %s.", r.PE, r.PB, r.ROE, r.DebtToEquity, st.Cite(catalog.FinancialRatios)))
	}
	if f, ok := found[catalog.Filing](st, catalog.FilingParser); ok {
		lines = append(lines, sentence("%s revenue INR %.0f Cr, net profit INR %.0f Cr %s.", f.FiscalYear, f.RevenueCr, f.NetProfitCr, st.Cite(catalog.FilingParser)))
	}
	if n, ok := found[catalog.NewsDigest](st, catalog.NewsAggregator); ok {
		lines = append(lines, sentence("News sentiment %+.2f: %s %s.", n.Sentiment, n.Headlines[0], st.Cite(catalog.NewsAggregator)))
	}
	if w, ok := found[catalog.WebDigest](st, catalog.WebSearch); ok {
		lines = append(lines, sentence("%s %s.", strings.Join(w.Findings, "; "), st.Cite(catalog.WebSearch)))
	}
	if len(lines) == 0 {
		return "No new data gathered."
	}
	return strings.Join(lines, "\n")
}

func (Equity) report(st *State, c catalog.Company) *domain.Report {
	var (
		summary []string
		risks   []string
		b       strings.Builder
	)

	if r, ok := found[catalog.Ratios](st, catalog.FinancialRatios); ok {
		cite := st.Cite(catalog.FinancialRatios)
		summary = append(summary, sentence("%s (%s) trades at %.1fx earnings with a %.1f%% return on equity %s.",
			c.Name, c.Ticker, r.PE, r.ROE, cite))
		section(&b, "Company Overview",
			sentence("%s operates in the %s sector with a market capitalisation of INR %.0f Cr %s.", c.Name, c.Sector, r.MarketCapCr, cite),
			sentence("Revenue growth of %.1f%% and EPS of INR %.2f.", r.RevenueGrowth, r.EPS),
		)
	}

	if f, ok := found[catalog.Filing](st, catalog.FilingParser); ok {
		cite := st.Cite(catalog.FilingParser)
		summary = append(summary, sentence("%s revenue reached INR %.0f Cr with net profit of INR %.0f Cr %s.", f.FiscalYear, f.RevenueCr, f.NetProfitCr, cite))
		lines := []string{sentence("Revenue INR %.0f Cr, net profit INR %.0f Cr %s.", f.RevenueCr, f.NetProfitCr, cite)}
		for _, h := range f.Highlights {
			lines = append(lines, "- "+h)
		}
		section(&b, "Financial Performance", lines...)
		for _, rk := range f.Risks {
			risks = append(risks, "- "+rk+" "+cite)
		}
	}

	if val, ok := found[catalog.Valuation](st, catalog.ValuationModel); ok {
		summary = append(summary, sentence("Our fair value of INR %.1f implies %.1f%% upside.", val.FairValue, val.UpsidePct))
		section(&b, "Valuation",
			sentence("Method: %s.", val.Method),
			sentence("Fair value INR %.1f against a market price of INR %.1f %s.", val.FairValue, c.Price, st.Cite(catalog.FinancialRatios)),
		)
	}

	if n, ok := found[catalog.NewsDigest](st, catalog.NewsAggregator); ok {
		lines := []string{sentence("Aggregate sentiment %+.2f %s.", n.Sentiment, st.Cite(catalog.NewsAggregator))}
		for _, h := range n.Headlines {
			lines = append(lines, "- "+h)
		}
		section(&b, "News & Sentiment", lines...)
	}

	if w, ok := found[catalog.WebDigest](st, catalog.WebSearch); ok {
		lines := make([]string, 0, len(w.Findings))
		for _, f := range w.Findings {
			lines = append(lines, "- "+f+" "+st.Cite(catalog.WebSearch))
		}
		section(&b, "Additional Research", lines...)
	}

	section(&b, "Risks", risks...)
	sourcesSection(&b, st)

	if len(summary) == 0 {
		summary = append(summary, sentence("%s (%s) research drew on %d sources %s.", c.Name, c.Ticker, st.Citations.Len(), firstMarker(st)))
	}
	return &domain.Report{
		ExecutiveSummary: strings.Join(summary, " "),
		FullReport:       "# " + c.Name + " (" + c.Ticker + ") Research Report\n\n" + b.String(),
	}
}

func firstMarker(st *State) string {
	list := st.Citations.List()
	if len(list) == 0 {
		return ""
	}
	return report.Marker(list[0].Key)
}
