package step

import (
	"fmt"
	"strings"

	"slingshot-be/pkg/research/domain"
	"slingshot-be/pkg/research/tool"
	"slingshot-be/pkg/research/tool/catalog"
)

// Portfolio audits a set of holdings: pricing, concentration and stress.
type Portfolio struct{}

func (Portfolio) Mode() domain.Mode { return domain.ModePortfolio }

func (Portfolio) Calls(t domain.StepType, st *State) []Call {
	holdings := tool.Params{"holdings": st.Options.Holdings}
	var lead tool.Params
	if len(st.Options.Holdings) > 0 {
		lead = tool.Params{"ticker": st.Options.Holdings[0].Ticker}
	}

	switch t {
	case domain.StepResearching:
		if st.Pass > 1 {
			byType := map[string]Call{
				domain.SourceScreener: {Tool: catalog.PortfolioAnalyzer, Params: holdings},
				domain.SourcePDF:      {Tool: catalog.StressSimulator, Params: holdings},
			}
			if lead != nil {
				byType[domain.SourceNews] = Call{Tool: catalog.NewsAggregator, Params: lead}
			}
			return retryCalls(st, tool.Params{"query": st.Subject + " portfolio"}, byType)
		}
		calls := []Call{{Tool: catalog.PortfolioAnalyzer, Params: holdings}}
		if st.Options.IncludeNews && lead != nil {
			calls = append(calls, Call{Tool: catalog.NewsAggregator, Params: lead})
		}
		return calls
	case domain.StepAnalyzing:
		if a, ok := found[catalog.Analysis](st, catalog.PortfolioAnalyzer); ok {
			holdings = tool.Params{"holdings": a.Holdings}
		}
		return []Call{{Tool: catalog.StressSimulator, Params: holdings}}
	}
	return nil
}

func (p Portfolio) Compose(t domain.StepType, st *State, v *Verdict) (Draft, error) {
	switch t {
	case domain.StepPlanning:
		tickers := make([]string, 0, len(st.Options.Holdings))
		for _, h := range st.Options.Holdings {
			tickers = append(tickers, strings.ToUpper(h.Ticker))
		}
		return Draft{
			Title: "Planning portfolio audit",
			Content: fmt.Sprintf("Auditing %q with %d holdings (%s): price positions, measure sector concentration "+
				"and beta, then run oil, rate and market stress scenarios.", st.Subject, len(tickers), strings.Join(tickers, ", ")),
			Confidence: 0.95,
		}, nil

	case domain.StepResearching:
		var lines []string
		if a, ok := found[catalog.Analysis](st, catalog.PortfolioAnalyzer); ok {
			m := a.Metrics
			lines = append(lines, sentence("Portfolio value INR %.0f against INR %.0f invested (%+.2f%%), beta %.2f %s.",
				m.TotalValue, m.TotalInvested, m.TotalReturnPct, m.PortfolioBeta, st.Cite(catalog.PortfolioAnalyzer)))
		}
		if n, ok := found[catalog.NewsDigest](st, catalog.NewsAggregator); ok {
			lines = append(lines, sentence("Largest position news: %s %s.", n.Headlines[0], st.Cite(catalog.NewsAggregator)))
		}
		if w, ok := found[catalog.WebDigest](st, catalog.WebSearch); ok {
			lines = append(lines, sentence("%s %s.", strings.Join(w.Findings, "; "), st.Cite(catalog.WebSearch)))
		}
		if r, ok := found[[]domain.StressTestResult](st, catalog.StressSimulator); ok && st.Pass > 1 {
			lines = append(lines, sentence("Refreshed %d stress scenarios %s.", len(r), st.Cite(catalog.StressSimulator)))
		}
		title := "Pricing holdings"
		if st.Pass > 1 {
			title = fmt.Sprintf("Filling research gaps (pass %d)", st.Pass)
		}
		return Draft{Title: title, Content: joinLines(lines), Confidence: 0.9}, nil

	case domain.StepAnalyzing:
		var lines []string
		if a, ok := found[catalog.Analysis](st, catalog.PortfolioAnalyzer); ok && len(a.Allocation) > 0 {
			top := a.Allocation[0]
			lines = append(lines, sentence("Largest sector weight is %s at %.1f%%; risk score %.1f/10.", top.Sector, top.Weight, a.Metrics.RiskScore))
		}
		if r, ok := found[[]domain.StressTestResult](st, catalog.StressSimulator); ok {
			worst := r[0]
			for _, s := range r[1:] {
				if s.ImpactPercentage < worst.ImpactPercentage {
					worst = s
				}
			}
			lines = append(lines, sentence("Worst scenario %q moves the portfolio %+.2f%% %s.", worst.ScenarioName, worst.ImpactPercentage, st.Cite(catalog.StressSimulator)))
		}
		return Draft{Title: "Stress testing the portfolio", Content: joinLines(lines), Confidence: 0.86}, nil

	case domain.StepReflecting:
		return reflectDraft(st, v), nil

	case domain.StepReporting:
		p.finalize(st)
		return Draft{
			Title:      "Synthesizing audit report",
			Content:    fmt.Sprintf("Compiled metrics, %d stress scenarios and %d recommendations.", len(st.Extensions.StressTests), len(st.Extensions.Recommendations)),
			Confidence: 0.89,
		}, nil
	}
	return Draft{}, fmt.Errorf("unsupported step %q", t)
}

func (Portfolio) finalize(st *State) {
	ext := &st.Extensions
	var summary []string
	var b strings.Builder

	a, hasAnalysis := found[catalog.Analysis](st, catalog.PortfolioAnalyzer)
	if hasAnalysis {
		cite := st.Cite(catalog.PortfolioAnalyzer)
		m := a.Metrics
		ext.Holdings = a.Holdings
		ext.Metrics = &m
		ext.SectorAllocation = a.Allocation
		summary = append(summary, sentence("%s is worth INR %.0f, a %+.2f%% return on capital, with portfolio beta %.2f %s.",
			st.Subject, m.TotalValue, m.TotalReturnPct, m.PortfolioBeta, cite))

		lines := make([]string, 0, len(a.Allocation))
		for _, s := range a.Allocation {
			lines = append(lines, fmt.Sprintf("- %s: %.1f%% (INR %.0f)", s.Sector, s.Weight, s.Value))
		}
		section(&b, "Portfolio Overview",
			sentence("Total value INR %.0f, invested INR %.0f, risk score %.1f/10 %s.", m.TotalValue, m.TotalInvested, m.RiskScore, cite))
		section(&b, "Sector Allocation", lines...)

		if len(a.Allocation) > 0 && a.Allocation[0].Weight > 40 {
			ext.Recommendations = append(ext.Recommendations, sentence("Reduce %s concentration from %.1f%% towards 30%% %s.", a.Allocation[0].Sector, a.Allocation[0].Weight, cite))
		}
		if m.PortfolioBeta > 1.1 {
			ext.Recommendations = append(ext.Recommendations, sentence("Add low-beta defensives to bring portfolio beta of %.2f closer to 1.0 %s.", m.PortfolioBeta, cite))
		}
	}

	if r, ok := found[[]domain.StressTestResult](st, catalog.StressSimulator); ok {
		cite := st.Cite(catalog.StressSimulator)
		lines := make([]string, 0, len(r))
		for _, s := range r {
			s.Description = strings.TrimSpace(s.Description + " " + cite)
			ext.StressTests = append(ext.StressTests, s)
			lines = append(lines, fmt.Sprintf("- %s: %+.2f%% (%s severity)", s.ScenarioName, s.ImpactPercentage, s.Severity))
			if s.Severity == "high" {
				ext.Recommendations = append(ext.Recommendations, sentence("Hedge exposure to the %s scenario, which would cost %.1f%% %s.", strings.ToLower(s.ScenarioName), -s.ImpactPercentage, cite))
			}
		}
		section(&b, "Stress Tests", lines...)
		summary = append(summary, sentence("Across %d stress scenarios the worst drawdown is %.2f%% %s.", len(r), worstImpact(r), cite))
	}

	if len(ext.Recommendations) == 0 {
		ext.Recommendations = append(ext.Recommendations, "Maintain current allocation; no concentration or stress limits are breached.")
	}
	lines := make([]string, 0, len(ext.Recommendations))
	for _, r := range ext.Recommendations {
		lines = append(lines, "- "+r)
	}
	section(&b, "Recommendations", lines...)
	sourcesSection(&b, st)

	if len(summary) == 0 {
		summary = append(summary, sentence("%s audit drew on %d sources %s.", st.Subject, st.Citations.Len(), firstMarker(st)))
	}
	st.Report = &domain.Report{
		ExecutiveSummary: strings.Join(summary, " "),
		FullReport:       "# Portfolio Audit: " + st.Subject + "\n\n" + b.String(),
	}
}

func worstImpact(r []domain.StressTestResult) float64 {
	worst := 0.0
	for _, s := range r {
		if s.ImpactPercentage < worst {
			worst = s.ImpactPercentage
		}
	}
	return worst
}
