// Package catalog holds the built-in research tools. They are deterministic
// stand-ins for market-data vendors: outputs derive from the ticker or event
// text, so repeated runs cite the same sources.
package catalog

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"strings"
	"time"

	"slingshot-be/pkg/research/tool"
)

// Tool names.
const (
	FinancialRatios     = "financial_ratios"
	FilingParser        = "filing_parser"
	NewsAggregator      = "news_aggregator"
	WebSearch           = "web_search"
	ValuationModel      = "valuation_model"
	MacroChainBuilder   = "macro_chain_builder"
	IndiaExposureMapper = "india_exposure_mapper"
	SectorScreener      = "sector_screener"
	CompanyImpactScorer = "company_impact_scorer"
	HistoricalAnalyzer  = "historical_analyzer"
	PortfolioAnalyzer   = "portfolio_analyzer"
	StressSimulator     = "stress_simulator"
)

// Options tune the simulated behaviour of the catalog.
type Options struct {
	// Latency is the simulated round trip of every call.
	Latency time.Duration
}

// RegisterAll adds every built-in tool to r.
func RegisterAll(r *tool.Registry, opts Options) {
	for _, t := range All(opts) {
		r.Register(t)
	}
}

// All returns the built-in tools.
func All(opts Options) []tool.Tool {
	s := sim{latency: opts.Latency}
	return []tool.Tool{
		financialRatios{s},
		filingParser{s},
		newsAggregator{s},
		webSearch{s},
		valuationModel{s},
		macroChainBuilder{s},
		indiaExposureMapper{s},
		sectorScreener{s},
		companyImpactScorer{s},
		historicalAnalyzer{s},
		portfolioAnalyzer{s},
		stressSimulator{s},
	}
}

type sim struct {
	latency time.Duration
}

// wait simulates the network round trip and aborts on cancellation.
func (s sim) wait(ctx context.Context) error {
	if s.latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(s.latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Company is one entry of the covered universe.
type Company struct {
	Ticker string  `json:"ticker"`
	Name   string  `json:"company_name"`
	Sector string  `json:"sector"`
	Price  float64 `json:"price"`
	Beta   float64 `json:"beta"`
}

var universe = map[string]Company{
	"HDFCBANK":   {"HDFCBANK", "HDFC Bank", "Banking", 1642.5, 0.92},
	"ICICIBANK":  {"ICICIBANK", "ICICI Bank", "Banking", 1238.0, 1.05},
	"RELIANCE":   {"RELIANCE", "Reliance Industries", "Energy", 2895.4, 1.01},
	"ONGC":       {"ONGC", "Oil & Natural Gas Corp", "Energy", 268.3, 0.88},
	"IOC":        {"IOC", "Indian Oil Corporation", "Energy", 165.2, 1.12},
	"BPCL":       {"BPCL", "Bharat Petroleum", "Energy", 301.7, 1.15},
	"COALINDIA":  {"COALINDIA", "Coal India", "Mining", 452.9, 0.79},
	"TCS":        {"TCS", "Tata Consultancy Services", "IT Services", 4012.0, 0.71},
	"INFY":       {"INFY", "Infosys", "IT Services", 1865.3, 0.83},
	"INDIGO":     {"INDIGO", "InterGlobe Aviation", "Aviation", 4320.5, 1.24},
	"ASIANPAINT": {"ASIANPAINT", "Asian Paints", "Consumer", 2854.1, 0.74},
	"ITC":        {"ITC", "ITC Ltd", "Consumer", 468.6, 0.62},
	"SUNPHARMA":  {"SUNPHARMA", "Sun Pharmaceutical", "Pharma", 1712.8, 0.58},
	"TATAMOTORS": {"TATAMOTORS", "Tata Motors", "Automobile", 982.4, 1.34},
	"LT":         {"LT", "Larsen & Toubro", "Infrastructure", 3580.0, 1.09},
}

// Lookup returns the covered company for ticker, synthesising one for tickers
// outside the universe.
func Lookup(ticker string) Company {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if c, ok := universe[ticker]; ok {
		return c
	}
	r := rng(ticker)
	return Company{
		Ticker: ticker,
		Name:   ticker + " Ltd",
		Sector: "Diversified",
		Price:  round(100+r.Float64()*2400, 1),
		Beta:   round(0.6+r.Float64()*0.8, 2),
	}
}

// Known reports whether ticker is in the covered universe.
func Known(ticker string) bool {
	_, ok := universe[strings.ToUpper(ticker)]
	return ok
}

func rng(seed string) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(strings.ToUpper(seed)))
	return rand.New(rand.NewSource(int64(h.Sum64())))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func slug(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	dash := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func intPtr(v int) *int { return &v }

var aliases = []struct{ name, ticker string }{
	{"RELIANCE INDUSTRIES", "RELIANCE"},
	{"TATA CONSULTANCY", "TCS"},
	{"ASIAN PAINTS", "ASIANPAINT"},
	{"TATA MOTORS", "TATAMOTORS"},
	{"INDIAN OIL", "IOC"},
	{"COAL INDIA", "COALINDIA"},
	{"ICICI BANK", "ICICIBANK"},
	{"HDFC BANK", "HDFCBANK"},
	{"SUN PHARMA", "SUNPHARMA"},
	{"INTERGLOBE", "INDIGO"},
	{"INFOSYS", "INFY"},
	{"LARSEN", "LT"},
}

// TickerFrom picks the ticker a free-text equity query is about: a known
// company name, then a covered ticker, then the first all-caps token, then
// the last word.
func TickerFrom(query string) string {
	upper := strings.ToUpper(query)
	for _, a := range aliases {
		if strings.Contains(upper, a.name) {
			return a.ticker
		}
	}

	words := strings.FieldsFunc(query, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '&')
	})
	for _, w := range words {
		if Known(w) {
			return strings.ToUpper(w)
		}
	}
	for _, w := range words {
		if len(w) >= 2 && w == strings.ToUpper(w) && strings.ToLower(w) != w {
			return w
		}
	}
	if len(words) == 0 {
		return ""
	}
	return strings.ToUpper(words[len(words)-1])
}
