package catalog

import (
	"context"
	"fmt"
	"strings"

	"slingshot-be/pkg/research/citation"
	"slingshot-be/pkg/research/domain"
	"slingshot-be/pkg/research/tool"
)

// PayloadKey is the Result.Data key holding a tool's typed payload.
const PayloadKey = "payload"

// Payload extracts the typed payload of a result.
func Payload[T any](res *tool.Result) (T, bool) {
	var zero T
	if res == nil {
		return zero, false
	}
	v, ok := res.Data[PayloadKey].(T)
	if !ok {
		return zero, false
	}
	return v, true
}

func result(payload any, sources ...citation.Source) *tool.Result {
	return &tool.Result{
		Data:    map[string]any{PayloadKey: payload},
		Sources: sources,
	}
}

type Ratios struct {
	Company
	PE            float64 `json:"pe"`
	PB            float64 `json:"pb"`
	ROE           float64 `json:"roe"`
	DebtToEquity  float64 `json:"debt_to_equity"`
	MarketCapCr   float64 `json:"market_cap_cr"`
	RevenueGrowth float64 `json:"revenue_growth"`
	EPS           float64 `json:"eps"`
}

type financialRatios struct{ sim }

func (financialRatios) Name() string { return FinancialRatios }
func (financialRatios) Description() string {
	return "Key valuation and profitability ratios from the screener for a listed ticker"
}

func (t financialRatios) Execute(ctx context.Context, p tool.Params) (*tool.Result, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	ticker := p.String("ticker")
	if ticker == "" {
		return nil, fmt.Errorf("ticker is required")
	}
	c := Lookup(ticker)
	r := rng("ratios:" + c.Ticker)
	out := Ratios{
		Company:       c,
		PE:            round(8+r.Float64()*40, 1),
		PB:            round(1+r.Float64()*8, 1),
		ROE:           round(8+r.Float64()*20, 1),
		DebtToEquity:  round(r.Float64()*1.5, 2),
		RevenueGrowth: round(-2+r.Float64()*24, 1),
	}
	out.EPS = round(c.Price/out.PE, 2)
	out.MarketCapCr = round(c.Price*(50+r.Float64()*700), 0)

	return result(out, citation.Source{
		Type:    domain.SourceScreener,
		Name:    fmt.Sprintf("Screener.in - %s consolidated financials", c.Name),
		URL:     fmt.Sprintf("https://www.screener.in/company/%s/consolidated/", c.Ticker),
		Snippet: fmt.Sprintf("P/E %.1f, ROE %.1f%%, D/E %.2f", out.PE, out.ROE, out.DebtToEquity),
	}), nil
}

type Filing struct {
	Ticker      string   `json:"ticker"`
	FiscalYear  string   `json:"fiscal_year"`
	RevenueCr   float64  `json:"revenue_cr"`
	NetProfitCr float64  `json:"net_profit_cr"`
	Highlights  []string `json:"highlights"`
	Risks       []string `json:"risks"`
}

type filingParser struct{ sim }

func (filingParser) Name() string { return FilingParser }
func (filingParser) Description() string {
	return "Extracts headline numbers, highlights and risk factors from annual reports and investor presentations"
}

func (t filingParser) Execute(ctx context.Context, p tool.Params) (*tool.Result, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	ticker := p.String("ticker")
	if ticker == "" {
		return nil, fmt.Errorf("ticker is required")
	}
	c := Lookup(ticker)
	r := rng("filing:" + c.Ticker)
	revenue := round(5000+r.Float64()*250000, 0)
	out := Filing{
		Ticker:      c.Ticker,
		FiscalYear:  "FY25",
		RevenueCr:   revenue,
		NetProfitCr: round(revenue*(0.06+r.Float64()*0.18), 0),
		Highlights: []string{
			fmt.Sprintf("%s segment revenue grew ahead of the industry", c.Sector),
			"Management guided for margin stability over the next four quarters",
		},
		Risks: []string{
			"Regulatory changes affecting pricing",
			fmt.Sprintf("Concentration risk in the %s segment", strings.ToLower(c.Sector)),
		},
	}

	base := fmt.Sprintf("https://www.bseindia.com/xml-data/corpfiling/%s", c.Ticker)
	return result(out,
		citation.Source{
			Type:       domain.SourcePDF,
			Name:       fmt.Sprintf("%s Annual Report FY25", c.Name),
			URL:        base + "_AR_FY25.pdf",
			Snippet:    fmt.Sprintf("Revenue from operations of INR %.0f Cr", out.RevenueCr),
			PageNumber: intPtr(40 + r.Intn(80)),
		},
		citation.Source{
			Type:       domain.SourcePDF,
			Name:       fmt.Sprintf("%s Q3 FY25 Investor Presentation", c.Name),
			URL:        base + "_Q3FY25_IP.pdf",
			Snippet:    out.Highlights[1],
			PageNumber: intPtr(3 + r.Intn(20)),
		},
	), nil
}

type NewsDigest struct {
	Topic     string   `json:"topic"`
	Sentiment float64  `json:"sentiment"`
	Headlines []string `json:"headlines"`
}

type newsAggregator struct{ sim }

func (newsAggregator) Name() string { return NewsAggregator }
func (newsAggregator) Description() string {
	return "Aggregates recent financial news for a ticker or macro topic and scores sentiment"
}

func (t newsAggregator) Execute(ctx context.Context, p tool.Params) (*tool.Result, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	topic := p.String("ticker")
	label := topic
	if topic != "" {
		label = Lookup(topic).Name
	} else {
		topic = p.String("topic")
		label = topic
	}
	if topic == "" {
		return nil, fmt.Errorf("ticker or topic is required")
	}
	r := rng("news:" + topic)
	out := NewsDigest{
		Topic:     label,
		Sentiment: round(-0.4+r.Float64()*1.1, 2),
		Headlines: []string{
			fmt.Sprintf("%s: analysts weigh outlook after latest quarter", label),
			fmt.Sprintf("Foreign investors adjust positions in %s", label),
		},
	}
	return result(out,
		citation.Source{
			Type:    domain.SourceNews,
			Name:    "The Economic Times - " + out.Headlines[0],
			URL:     "https://economictimes.indiatimes.com/markets/stocks/news/" + slug(out.Headlines[0]),
			Snippet: out.Headlines[0],
		},
		citation.Source{
			Type:    domain.SourceNews,
			Name:    "Mint - " + out.Headlines[1],
			URL:     "https://www.livemint.com/market/stock-market-news/" + slug(out.Headlines[1]),
			Snippet: out.Headlines[1],
		},
	), nil
}

type WebDigest struct {
	Query    string   `json:"query"`
	Findings []string `json:"findings"`
}

type webSearch struct{ sim }

func (webSearch) Name() string { return WebSearch }
func (webSearch) Description() string {
	return "General web search over exchange pages and market portals"
}

func (t webSearch) Execute(ctx context.Context, p tool.Params) (*tool.Result, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	q := p.String("query")
	if q == "" {
		return nil, fmt.Errorf("query is required")
	}
	ticker := p.String("ticker")
	out := WebDigest{Query: q, Findings: []string{
		"Exchange filings show no pending corporate actions",
		"Promoter holding unchanged over the last two quarters",
	}}
	src := citation.Source{
		Type:    domain.SourceWeb,
		Name:    "NSE India - market data for " + q,
		URL:     "https://www.nseindia.com/search?q=" + slug(q),
		Snippet: out.Findings[0],
	}
	if ticker != "" {
		src.Name = "NSE India - " + Lookup(ticker).Name + " quote"
		src.URL = "https://www.nseindia.com/get-quotes/equity?symbol=" + Lookup(ticker).Ticker
	}
	return result(out, src, citation.Source{
		Type:    domain.SourceWeb,
		Name:    "Moneycontrol - shareholding pattern",
		URL:     "https://www.moneycontrol.com/stocks/shareholding/" + slug(q),
		Snippet: out.Findings[1],
	}), nil
}

type Valuation struct {
	Ticker    string  `json:"ticker"`
	FairValue float64 `json:"fair_value"`
	UpsidePct float64 `json:"upside_pct"`
	Method    string  `json:"method"`
}

type valuationModel struct{ sim }

func (valuationModel) Name() string { return ValuationModel }
func (valuationModel) Description() string {
	return "Growth-adjusted earnings multiple valuation from screener ratios"
}

func (t valuationModel) Execute(ctx context.Context, p tool.Params) (*tool.Result, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	ratios, ok := p["ratios"].(Ratios)
	if !ok {
		return nil, fmt.Errorf("ratios are required")
	}
	multiple := 10 + ratios.RevenueGrowth*0.8 + ratios.ROE*0.3
	fair := round(ratios.EPS*multiple, 1)
	out := Valuation{
		Ticker:    ratios.Ticker,
		FairValue: fair,
		UpsidePct: round((fair/ratios.Price-1)*100, 1),
		Method:    fmt.Sprintf("%.1fx growth-adjusted P/E on trailing EPS", multiple),
	}
	return result(out), nil
}
