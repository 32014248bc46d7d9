package controller

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"slingshot-be/internal/dto"
	"slingshot-be/internal/pkg/logger"
	"slingshot-be/internal/pkg/serverutils"
	"slingshot-be/internal/service"
	"slingshot-be/pkg/research/broadcast"
	"slingshot-be/pkg/research/domain"
	"slingshot-be/pkg/research/pipeline"
	"slingshot-be/pkg/research/session"
	"slingshot-be/pkg/research/step"
	"slingshot-be/pkg/research/tool"
	"slingshot-be/pkg/research/tool/catalog"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()

	tools := tool.NewRegistry(time.Second)
	catalog.RegisterAll(tools, catalog.Options{Latency: time.Millisecond})
	sessions := session.NewRegistry(time.Minute)
	policy := step.Policy{MinCitations: 3, RequiredSourceTypes: []string{"screener", "pdf"}}
	o := pipeline.New(pipeline.Config{RetryBudget: 2}, sessions, broadcast.New(64), step.NewExecutor(tools, policy), logger.NewNop())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, o.Shutdown(ctx))
	})

	svc := service.NewResearchService(o, sessions, tools)
	pass := func(c *fiber.Ctx) error { return c.Next() }

	app := fiber.New(fiber.Config{ErrorHandler: serverutils.ErrorHandler})
	NewHealthController(svc, "slingshot-test").RegisterRoutes(app)
	api := app.Group("/api/v1")
	NewResearchController(svc, pass).RegisterRoutes(api)
	NewMacroController(svc, pass).RegisterRoutes(api)
	NewPortfolioController(svc, pass).RegisterRoutes(api)
	NewToolController(svc).RegisterRoutes(api)
	NewHistoryController(nil).RegisterRoutes(api)
	return app
}

func do(t *testing.T, app *fiber.App, method, path, body string) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func errorType(t *testing.T, body []byte) string {
	t.Helper()
	var e struct {
		Success   bool   `json:"success"`
		ErrorType string `json:"error_type"`
	}
	require.NoError(t, json.Unmarshal(body, &e))
	assert.False(t, e.Success)
	return e.ErrorType
}

func startSession(t *testing.T, app *fiber.App, path, body string) dto.SessionResponse {
	t.Helper()
	code, data := do(t, app, http.MethodPost, path, body)
	require.Equal(t, http.StatusOK, code, string(data))
	var res dto.SessionResponse
	require.NoError(t, json.Unmarshal(data, &res))
	require.NotEmpty(t, res.SessionId)
	return res
}

func waitStatus(t *testing.T, app *fiber.App, path string, want domain.Status) dto.SessionResponse {
	t.Helper()
	var res dto.SessionResponse
	require.Eventually(t, func() bool {
		code, data := do(t, app, http.MethodGet, path, "")
		if code != http.StatusOK {
			return false
		}
		res = dto.SessionResponse{}
		return json.Unmarshal(data, &res) == nil && res.Status == want
	}, 5*time.Second, 10*time.Millisecond)
	return res
}

func TestResearch_StartValidation(t *testing.T) {
	app := newTestApp(t)

	code, body := do(t, app, http.MethodPost, "/api/v1/research", `{"query":""}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "validation_error", errorType(t, body))

	code, body = do(t, app, http.MethodPost, "/api/v1/research", `{"query":"Analyze TCS","max_iterations":9}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "validation_error", errorType(t, body))

	code, body = do(t, app, http.MethodPost, "/api/v1/research", `{"query":`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "validation_error", errorType(t, body))
}

func TestResearch_RunsToCompletion(t *testing.T) {
	app := newTestApp(t)

	started := startSession(t, app, "/api/v1/research", `{"query":"Analyze ONGC"}`)
	assert.Equal(t, domain.ModeResearch, started.Mode)

	done := waitStatus(t, app, "/api/v1/research/"+started.SessionId, domain.StatusComplete)
	assert.NotEmpty(t, done.ThoughtSteps)
	assert.NotEmpty(t, done.Citations)
	require.NotNil(t, done.ExecutiveSummary)

	code, data := do(t, app, http.MethodGet, "/api/v1/research/"+started.SessionId+"/report", "")
	require.Equal(t, http.StatusOK, code)
	var report dto.ReportResponse
	require.NoError(t, json.Unmarshal(data, &report))
	assert.NotEmpty(t, report.ExecutiveSummary)
	assert.Contains(t, report.ExecutiveSummary+report.FullReport, "[cite-")

	// Stopping a finished session leaves it untouched.
	code, data = do(t, app, http.MethodDelete, "/api/v1/research/"+started.SessionId, "")
	require.Equal(t, http.StatusOK, code)
	var stopped dto.SessionResponse
	require.NoError(t, json.Unmarshal(data, &stopped))
	assert.Equal(t, domain.StatusComplete, stopped.Status)
	assert.Empty(t, stopped.Error)
}

func TestSession_ModeScoped(t *testing.T) {
	app := newTestApp(t)

	started := startSession(t, app, "/api/v1/research", `{"query":"Analyze TCS"}`)

	code, body := do(t, app, http.MethodGet, "/api/v1/macro/"+started.SessionId, "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", errorType(t, body))

	code, _ = do(t, app, http.MethodGet, "/api/v1/research/nope", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestPortfolio_Audit(t *testing.T) {
	app := newTestApp(t)

	code, body := do(t, app, http.MethodPost, "/api/v1/portfolio/audit", `{"holdings":[]}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "validation_error", errorType(t, body))

	started := startSession(t, app, "/api/v1/portfolio/audit",
		`{"name":"Core","holdings":[{"ticker":"tcs","quantity":10,"avg_buy_price":3500},{"ticker":"ONGC","quantity":100,"avg_buy_price":250}]}`)
	assert.Equal(t, domain.ModePortfolio, started.Mode)

	waitStatus(t, app, "/api/v1/portfolio/"+started.SessionId, domain.StatusComplete)
}

func TestPortfolio_StressTest(t *testing.T) {
	app := newTestApp(t)

	started := startSession(t, app, "/api/v1/portfolio/audit",
		`{"name":"Core","holdings":[{"ticker":"INDIGO","quantity":10,"avg_buy_price":3000},{"ticker":"ONGC","quantity":100,"avg_buy_price":250}]}`)
	path := "/api/v1/portfolio/" + started.SessionId + "/stress-test"

	code, body := do(t, app, http.MethodPost, path,
		`{"scenario_name":"Jet fuel spike","parameters":{"market_change_pct":-15,"sector_shocks":{"Aviation":-30}}}`)
	require.Equal(t, http.StatusOK, code, string(body))

	var resp dto.StressTestResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, started.SessionId, resp.SessionId)
	assert.Equal(t, "Core", resp.PortfolioName)
	assert.Equal(t, "Jet fuel spike", resp.StressTest.ScenarioName)
	assert.Less(t, resp.StressTest.ImpactPercentage, 0.0)

	code, body = do(t, app, http.MethodPost, path, `{"scenario_name":"Nothing","parameters":{}}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "validation_error", errorType(t, body))

	code, _ = do(t, app, http.MethodPost, path, `{"parameters":{"market_change_pct":-15}}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, app, http.MethodPost, path, `{"scenario_name":"Wipeout","parameters":{"market_change_pct":-250}}`)
	assert.Equal(t, http.StatusBadRequest, code)

	research := startSession(t, app, "/api/v1/research", `{"query":"Analyze TCS"}`)
	code, body = do(t, app, http.MethodPost, "/api/v1/portfolio/"+research.SessionId+"/stress-test",
		`{"scenario_name":"Jet fuel spike","parameters":{"market_change_pct":-15}}`)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", errorType(t, body))
}

func TestEvents_ReplaysFinishedSession(t *testing.T) {
	app := newTestApp(t)

	started := startSession(t, app, "/api/v1/macro/analyze", `{"query":"Impact of crude oil spike on India"}`)
	waitStatus(t, app, "/api/v1/macro/"+started.SessionId, domain.StatusComplete)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/macro/"+started.SessionId+"/events", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	stream := string(data)
	assert.True(t, strings.HasPrefix(stream, "id: 1\nevent: status_change\n"), stream)
	assert.Contains(t, stream, "event: thought_step")

	frames := strings.Split(strings.TrimSpace(stream), "\n\n")
	assert.Contains(t, frames[len(frames)-1], "event: report_ready")
}

func TestTools(t *testing.T) {
	app := newTestApp(t)

	code, data := do(t, app, http.MethodGet, "/api/v1/tools", "")
	require.Equal(t, http.StatusOK, code)
	var list struct {
		Tools []tool.Info `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(data, &list))
	names := make([]string, 0, len(list.Tools))
	for _, info := range list.Tools {
		names = append(names, info.Name)
	}
	assert.Contains(t, names, catalog.FinancialRatios)
	assert.Contains(t, names, catalog.MacroChainBuilder)

	code, data = do(t, app, http.MethodPost, "/api/v1/tools/financial_ratios/run", `{"ticker":"TCS"}`)
	require.Equal(t, http.StatusOK, code, string(data))
	var run toolRunResponse
	require.NoError(t, json.Unmarshal(data, &run))
	assert.Equal(t, catalog.FinancialRatios, run.Tool)
	require.Len(t, run.Sources, 1)
	assert.Equal(t, domain.SourceScreener, run.Sources[0].Type)

	code, body := do(t, app, http.MethodPost, "/api/v1/tools/financial_ratios/run", `{}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "tool_error", errorType(t, body))

	code, _ = do(t, app, http.MethodPost, "/api/v1/tools/crystal_ball/run", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestHistory_WithoutArchive(t *testing.T) {
	app := newTestApp(t)

	code, body := do(t, app, http.MethodGet, "/api/v1/sessions", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "http_error", errorType(t, body))
}

func TestHealth(t *testing.T) {
	app := newTestApp(t)

	code, data := do(t, app, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, code)
	var res dto.HealthResponse
	require.NoError(t, json.Unmarshal(data, &res))
	assert.Equal(t, "ok", res.Status)
	assert.Equal(t, "slingshot-test", res.Service)
}
