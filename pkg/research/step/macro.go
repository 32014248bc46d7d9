package step

import (
	"fmt"
	"sort"
	"strings"

	"slingshot-be/pkg/research/domain"
	"slingshot-be/pkg/research/tool"
	"slingshot-be/pkg/research/tool/catalog"
)

// Macro traces a global event through India's exposure channels to
// company-level impacts and trade ideas.
type Macro struct{}

func (Macro) Mode() domain.Mode { return domain.ModeMacro }

func (Macro) Calls(t domain.StepType, st *State) []Call {
	topic := tool.Params{"topic": st.Subject}
	switch t {
	case domain.StepResearching:
		if st.Pass > 1 {
			return retryCalls(st, tool.Params{"query": st.Subject}, map[string]Call{
				domain.SourceNews:     {Tool: catalog.NewsAggregator, Params: topic},
				domain.SourcePDF:      {Tool: catalog.IndiaExposureMapper, Params: topic},
				domain.SourceScreener: {Tool: catalog.SectorScreener, Params: topic},
			})
		}
		calls := []Call{
			{Tool: catalog.MacroChainBuilder, Params: topic},
			{Tool: catalog.IndiaExposureMapper, Params: topic},
			{Tool: catalog.SectorScreener, Params: topic},
		}
		if st.Options.IncludeNews {
			calls = append(calls, Call{Tool: catalog.NewsAggregator, Params: topic})
		}
		return calls
	case domain.StepAnalyzing:
		calls := []Call{{Tool: catalog.HistoricalAnalyzer, Params: topic}}
		if screen, ok := found[catalog.Screen](st, catalog.SectorScreener); ok {
			calls = append(calls, Call{Tool: catalog.CompanyImpactScorer, Params: tool.Params{"topic": st.Subject, "screen": screen}})
		}
		return calls
	}
	return nil
}

func (m Macro) Compose(t domain.StepType, st *State, v *Verdict) (Draft, error) {
	theme := catalog.ThemeFor(st.Subject)
	switch t {
	case domain.StepPlanning:
		return Draft{
			Title: "Parsing macro event",
			Content: fmt.Sprintf("Classified %q as a %s. Plan: build the transmission chain, map India's exposure "+
				"channels, screen affected sectors, score company impacts and cross-check against precedent.", st.Subject, theme.Name),
			Confidence: 0.93,
		}, nil

	case domain.StepResearching:
		var lines []string
		if c, ok := found[catalog.Chain](st, catalog.MacroChainBuilder); ok {
			lines = append(lines, sentence("Built a %d-link causal chain from %q %s.", len(c.Links), c.Event, st.Cite(catalog.MacroChainBuilder)))
		}
		if e, ok := found[catalog.Exposure](st, catalog.IndiaExposureMapper); ok {
			lines = append(lines, sentence("India exposure channels: %s; import dependency %.0f%% %s.",
				strings.Join(e.Channels, ", "), e.ImportDependency*100, st.Cite(catalog.IndiaExposureMapper)))
		}
		if s, ok := found[catalog.Screen](st, catalog.SectorScreener); ok {
			lines = append(lines, sentence("Screened %d exposed companies %s.", len(s.Companies), st.Cite(catalog.SectorScreener)))
		}
		if n, ok := found[catalog.NewsDigest](st, catalog.NewsAggregator); ok {
			lines = append(lines, sentence("News flow: %s %s.", n.Headlines[0], st.Cite(catalog.NewsAggregator)))
		}
		if w, ok := found[catalog.WebDigest](st, catalog.WebSearch); ok {
			lines = append(lines, sentence("%s %s.", strings.Join(w.Findings, "; "), st.Cite(catalog.WebSearch)))
		}
		title := "Tracing transmission channels"
		if st.Pass > 1 {
			title = fmt.Sprintf("Filling research gaps (pass %d)", st.Pass)
		}
		return Draft{Title: title, Content: joinLines(lines), Confidence: 0.88}, nil

	case domain.StepAnalyzing:
		var lines []string
		if ex, ok := found[[]domain.CompanyExposure](st, catalog.CompanyImpactScorer); ok {
			pos, neg := split(ex)
			lines = append(lines, sentence("Beneficiaries: %s. Under pressure: %s.", joinOr(pos, "none"), joinOr(neg, "none")))
		}
		if p, ok := found[catalog.Precedent](st, catalog.HistoricalAnalyzer); ok {
			lines = append(lines, sentence("Closest precedent: %s %s.", p.Summary, st.Cite(catalog.HistoricalAnalyzer)))
		}
		return Draft{Title: "Scoring company impacts", Content: joinLines(lines), Confidence: 0.85}, nil

	case domain.StepReflecting:
		return reflectDraft(st, v), nil

	case domain.StepReporting:
		m.finalize(st, theme)
		return Draft{
			Title: "Synthesizing macro report",
			Content: fmt.Sprintf("Compiled %d causal links, %d company exposures and %d trade ideas.",
				len(st.Extensions.CausalChain), len(st.Extensions.AffectedCompanies), len(st.Extensions.TradeIdeas)),
			Confidence: 0.88,
		}, nil
	}
	return Draft{}, fmt.Errorf("unsupported step %q", t)
}

func (Macro) finalize(st *State, theme catalog.Theme) {
	ext := &st.Extensions
	var summary []string
	var b strings.Builder

	if c, ok := found[catalog.Chain](st, catalog.MacroChainBuilder); ok {
		cite := st.Cite(catalog.MacroChainBuilder)
		lines := make([]string, 0, len(c.Links))
		for i, l := range c.Links {
			l.Evidence = cite
			ext.CausalChain = append(ext.CausalChain, l)
			lines = append(lines, fmt.Sprintf("%d. %s -> %s: %s %s", i+1, l.FromEvent, l.ToEvent, l.Relationship, cite))
		}
		section(&b, "Causal Chain", lines...)
		last := c.Links[len(c.Links)-1]
		summary = append(summary, sentence("%s feeds through %d steps to %s %s.", c.Event, len(c.Links), strings.ToLower(last.ToEvent), cite))
	}

	if e, ok := found[catalog.Exposure](st, catalog.IndiaExposureMapper); ok {
		cite := st.Cite(catalog.IndiaExposureMapper)
		summary = append(summary, sentence("India is exposed through %s %s.", strings.Join(e.Channels, ", "), cite))
		section(&b, "India Exposure", sentence("Import dependency %.0f%% across %s %s.", e.ImportDependency*100, strings.Join(e.Channels, ", "), cite))
	}

	prec, hasPrec := found[catalog.Precedent](st, catalog.HistoricalAnalyzer)
	screen, _ := found[catalog.Screen](st, catalog.SectorScreener)
	prices := make(map[string]float64, len(screen.Companies))
	for _, c := range screen.Companies {
		prices[c.Ticker] = c.Price
	}

	if ex, ok := found[[]domain.CompanyExposure](st, catalog.CompanyImpactScorer); ok {
		screenCite := st.Cite(catalog.SectorScreener)
		var lines []string
		for _, e := range ex {
			e.ProjectedImpact = strings.TrimSpace(e.ProjectedImpact + " " + screenCite)
			if move, ok := prec.Moves[e.Ticker]; hasPrec && ok {
				e.HistoricalPrecedent = sentence("%s: %+.0f%% %s", prec.Summary, move, st.Cite(catalog.HistoricalAnalyzer))
			}
			ext.AffectedCompanies = append(ext.AffectedCompanies, e)
			lines = append(lines, fmt.Sprintf("- %s (%s): %s, %s impact, confidence %.2f", e.CompanyName, e.Ticker, e.ImpactDirection, e.ImpactMagnitude, e.Confidence))
		}
		section(&b, "Affected Companies", lines...)
		ext.TradeIdeas = tradeIdeas(ext.AffectedCompanies, prices)
		pos, neg := split(ext.AffectedCompanies)
		summary = append(summary, sentence("Likely beneficiaries are %s while %s face pressure %s.", joinOr(pos, "none"), joinOr(neg, "none"), screenCite))
	}

	if len(ext.TradeIdeas) > 0 {
		lines := make([]string, 0, len(ext.TradeIdeas))
		for _, ti := range ext.TradeIdeas {
			lines = append(lines, fmt.Sprintf("- %s %s (%s conviction): %s", ti.Action, ti.Ticker, ti.Conviction, ti.Rationale))
		}
		section(&b, "Trade Ideas", lines...)
	}
	if hasPrec {
		section(&b, "Historical Precedent", sentence("%s %s.", prec.Summary, st.Cite(catalog.HistoricalAnalyzer)))
	}
	sourcesSection(&b, st)

	if len(summary) == 0 {
		summary = append(summary, sentence("%s analysed as a %s %s.", st.Subject, theme.Name, firstMarker(st)))
	}
	st.Report = &domain.Report{
		ExecutiveSummary: strings.Join(summary, " "),
		FullReport:       "# Macro Analysis: " + st.Subject + "\n\n" + b.String(),
	}
}

// tradeIdeas takes the two strongest beneficiaries long and the strongest
// loser short.
func tradeIdeas(ex []domain.CompanyExposure, prices map[string]float64) []domain.TradeIdea {
	ranked := append([]domain.CompanyExposure(nil), ex...)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Confidence > ranked[j].Confidence })

	var out []domain.TradeIdea
	longs, shorts := 0, 0
	for _, e := range ranked {
		action, up := "BUY", 1.0
		if e.ImpactDirection != "positive" {
			action, up = "SELL", -1.0
		}
		if (up > 0 && longs == 2) || (up < 0 && shorts == 1) {
			continue
		}
		idea := domain.TradeIdea{
			Action:     action,
			Ticker:     e.Ticker,
			Conviction: "medium",
			Rationale:  e.ProjectedImpact,
		}
		if e.Confidence >= 0.85 {
			idea.Conviction = "high"
		}
		if p, ok := prices[e.Ticker]; ok && p > 0 {
			entry := p
			target := round2(p * (1 + up*0.15))
			stop := round2(p * (1 - up*0.07))
			idea.EntryPrice, idea.TargetPrice, idea.StopLoss = &entry, &target, &stop
		}
		out = append(out, idea)
		if up > 0 {
			longs++
		} else {
			shorts++
		}
	}
	return out
}

func split(ex []domain.CompanyExposure) (pos, neg []string) {
	for _, e := range ex {
		if e.ImpactDirection == "positive" {
			pos = append(pos, e.Ticker)
		} else {
			neg = append(neg, e.Ticker)
		}
	}
	return pos, neg
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return "No new data gathered."
	}
	return strings.Join(lines, "\n")
}
