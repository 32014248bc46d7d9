package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"slingshot-be/internal/dto"
	"slingshot-be/pkg/research/broadcast"
	"slingshot-be/pkg/research/domain"
	"slingshot-be/pkg/research/pipeline"
	"slingshot-be/pkg/research/session"
	"slingshot-be/pkg/research/tool"
	"slingshot-be/pkg/research/tool/catalog"
)

const stopTimeout = 5 * time.Second

type IResearchService interface {
	StartResearch(ctx context.Context, userID string, req *dto.StartResearchRequest) (domain.Snapshot, error)
	StartMacro(ctx context.Context, userID string, req *dto.StartMacroRequest) (domain.Snapshot, error)
	StartPortfolio(ctx context.Context, userID string, req *dto.PortfolioAuditRequest) (domain.Snapshot, error)

	// The mode-scoped readers report a session of another mode as not found.
	Get(ctx context.Context, mode domain.Mode, id string) (domain.Snapshot, error)
	Report(ctx context.Context, mode domain.Mode, id string) (domain.Report, error)
	Stop(ctx context.Context, mode domain.Mode, id string) (domain.Snapshot, error)
	Subscribe(ctx context.Context, mode domain.Mode, id string, since uint64) (*broadcast.Subscription, error)
	Touch(id string)

	// StressTest runs a caller-defined scenario against a portfolio session's
	// holdings. The session itself is not changed.
	StressTest(ctx context.Context, id string, req *dto.StressTestRequest) (domain.StressTestResult, error)

	Tools() []tool.Info
	RunTool(ctx context.Context, name string, params tool.Params) (*tool.Result, time.Duration, error)
	ActiveSessions() int
}

type researchService struct {
	orchestrator *pipeline.Orchestrator
	sessions     *session.Registry
	tools        *tool.Registry
}

func NewResearchService(o *pipeline.Orchestrator, sessions *session.Registry, tools *tool.Registry) IResearchService {
	return &researchService{orchestrator: o, sessions: sessions, tools: tools}
}

func includeNews(v *bool) bool {
	return v == nil || *v
}

func (s *researchService) StartResearch(_ context.Context, userID string, req *dto.StartResearchRequest) (domain.Snapshot, error) {
	return s.orchestrator.Start(pipeline.Request{
		Mode:      domain.ModeResearch,
		Query:     req.Query,
		SessionID: req.SessionId,
		Options: domain.Options{
			MaxIterations: req.MaxIterations,
			IncludeNews:   includeNews(req.IncludeNews),
			UserID:        userID,
		},
	})
}

func (s *researchService) StartMacro(_ context.Context, userID string, req *dto.StartMacroRequest) (domain.Snapshot, error) {
	return s.orchestrator.Start(pipeline.Request{
		Mode:      domain.ModeMacro,
		Query:     req.Query,
		SessionID: req.SessionId,
		Options: domain.Options{
			MaxIterations: req.MaxIterations,
			IncludeNews:   includeNews(req.IncludeNews),
			UserID:        userID,
		},
	})
}

func (s *researchService) StartPortfolio(_ context.Context, userID string, req *dto.PortfolioAuditRequest) (domain.Snapshot, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "My Portfolio"
	}
	holdings := make([]domain.Holding, 0, len(req.Holdings))
	for _, h := range req.Holdings {
		holdings = append(holdings, domain.Holding{
			Ticker:      strings.ToUpper(strings.TrimSpace(h.Ticker)),
			Quantity:    h.Quantity,
			AvgBuyPrice: h.AvgBuyPrice,
			Sector:      h.Sector,
		})
	}
	return s.orchestrator.Start(pipeline.Request{
		Mode:      domain.ModePortfolio,
		Query:     fmt.Sprintf("Audit %s (%d holdings)", name, len(holdings)),
		SessionID: req.SessionId,
		Options: domain.Options{
			MaxIterations: req.MaxIterations,
			IncludeNews:   includeNews(req.IncludeNews),
			Holdings:      holdings,
			PortfolioName: name,
			UserID:        userID,
		},
	})
}

func (s *researchService) Get(ctx context.Context, mode domain.Mode, id string) (domain.Snapshot, error) {
	snap, err := s.orchestrator.Status(ctx, id)
	if err != nil {
		return domain.Snapshot{}, err
	}
	if snap.Mode != mode {
		return domain.Snapshot{}, fmt.Errorf("%s session %s: %w", mode, id, domain.ErrNotFound)
	}
	return snap, nil
}

func (s *researchService) Report(ctx context.Context, mode domain.Mode, id string) (domain.Report, error) {
	if _, err := s.Get(ctx, mode, id); err != nil {
		return domain.Report{}, err
	}
	return s.orchestrator.Report(ctx, id)
}

func (s *researchService) Stop(ctx context.Context, mode domain.Mode, id string) (domain.Snapshot, error) {
	if _, err := s.Get(ctx, mode, id); err != nil {
		return domain.Snapshot{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, stopTimeout)
	defer cancel()
	return s.orchestrator.Stop(ctx, id, "")
}

func (s *researchService) Subscribe(ctx context.Context, mode domain.Mode, id string, since uint64) (*broadcast.Subscription, error) {
	if _, err := s.Get(ctx, mode, id); err != nil {
		return nil, err
	}
	return s.orchestrator.Subscribe(id, since)
}

func (s *researchService) Touch(id string) {
	s.orchestrator.Touch(id)
}

func (s *researchService) StressTest(ctx context.Context, id string, req *dto.StressTestRequest) (domain.StressTestResult, error) {
	snap, err := s.Get(ctx, domain.ModePortfolio, id)
	if err != nil {
		return domain.StressTestResult{}, err
	}
	holdings := snap.Extensions.Holdings
	if sess, err := s.sessions.Get(id); err == nil {
		holdings = sess.Options.Holdings
	}
	if len(holdings) == 0 {
		return domain.StressTestResult{}, &domain.ValidationError{Field: "holdings", Message: "session has no holdings"}
	}

	sc, err := customScenario(req)
	if err != nil {
		return domain.StressTestResult{}, err
	}

	res, _, err := s.tools.Invoke(ctx, catalog.StressSimulator, tool.Params{
		"holdings":            holdings,
		catalog.ScenarioParam: sc,
	})
	if err != nil {
		return domain.StressTestResult{}, err
	}
	out, ok := catalog.Payload[[]domain.StressTestResult](res)
	if !ok || len(out) == 0 {
		return domain.StressTestResult{}, fmt.Errorf("stress test %s: simulator returned no result", id)
	}
	return out[0], nil
}

// customScenario reads market_change_pct and sector_shocks from the request
// parameters. Other parameters are echoed back untouched.
func customScenario(req *dto.StressTestRequest) (catalog.Scenario, error) {
	sc := catalog.Scenario{Name: strings.TrimSpace(req.ScenarioName), Parameters: req.Parameters}
	if sc.Parameters == nil {
		sc.Parameters = map[string]any{}
	}

	if v, ok := req.Parameters["market_change_pct"]; ok {
		pct, err := percent("parameters.market_change_pct", v)
		if err != nil {
			return sc, err
		}
		sc.MarketChangePct = pct
	}
	if v, ok := req.Parameters["sector_shocks"]; ok {
		shocks, ok := v.(map[string]any)
		if !ok {
			return sc, &domain.ValidationError{Field: "parameters.sector_shocks", Message: "must map sector names to percentages"}
		}
		sc.SectorShocks = make(map[string]float64, len(shocks))
		for sector, raw := range shocks {
			pct, err := percent("parameters.sector_shocks."+sector, raw)
			if err != nil {
				return sc, err
			}
			sc.SectorShocks[sector] = pct
		}
	}

	if sc.MarketChangePct == 0 && len(sc.SectorShocks) == 0 {
		return sc, &domain.ValidationError{Field: "parameters", Message: "must set market_change_pct or sector_shocks"}
	}
	return sc, nil
}

func percent(field string, v any) (float64, error) {
	pct, ok := v.(float64)
	if !ok || pct < -100 || pct > 100 {
		return 0, &domain.ValidationError{Field: field, Message: "must be a number between -100 and 100"}
	}
	return pct, nil
}

func (s *researchService) Tools() []tool.Info {
	return s.tools.List()
}

func (s *researchService) RunTool(ctx context.Context, name string, params tool.Params) (*tool.Result, time.Duration, error) {
	return s.tools.Invoke(ctx, name, params)
}

func (s *researchService) ActiveSessions() int {
	return len(s.sessions.Running())
}
