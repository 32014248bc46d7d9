package serverutils

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"slingshot-be/pkg/ratelimit"
	"slingshot-be/pkg/research/domain"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		kind string
	}{
		{"validation", &domain.ValidationError{Field: "query", Message: "is required"}, 400, "validation_error"},
		{"not found wrapped", fmt.Errorf("session x: %w", domain.ErrNotFound), 404, "not_found"},
		{"report not ready", domain.ErrReportNotReady, 404, "not_found"},
		{"busy", domain.ErrSessionBusy, 409, "conflict"},
		{"finalized", domain.ErrSessionFinalized, 409, "conflict"},
		{"unknown tool", fmt.Errorf("x: %w", domain.ErrUnknownTool), 404, "not_found"},
		{"tool timeout", &domain.ToolFailure{Tool: "x", TimedOut: true}, 504, "tool_timeout"},
		{"tool error", &domain.ToolFailure{Tool: "x", Err: assert.AnError}, 422, "tool_error"},
		{"rate limited", ErrRateLimited, 429, "rate_limited"},
		{"unauthorized", ErrUnauthorized, 401, "unauthorized"},
		{"fiber", fiber.ErrUpgradeRequired, 426, "http_error"},
		{"other", assert.AnError, 500, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, kind := StatusOf(tt.err)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.kind, kind)
		})
	}
}

func decode(t *testing.T, body io.Reader) ErrorResponseBody {
	t.Helper()
	var out ErrorResponseBody
	require.NoError(t, json.NewDecoder(body).Decode(&out))
	return out
}

func TestErrorHandlerMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(ErrorHandlerMiddleware())
	app.Get("/busy", func(c *fiber.Ctx) error { return domain.ErrSessionBusy })
	app.Get("/boom", func(c *fiber.Ctx) error { return assert.AnError })

	resp, err := app.Test(httptest.NewRequest("GET", "/busy", nil))
	require.NoError(t, err)
	assert.Equal(t, 409, resp.StatusCode)
	body := decode(t, resp.Body)
	assert.False(t, body.Success)
	assert.Equal(t, "conflict", body.ErrorType)

	resp, err = app.Test(httptest.NewRequest("GET", "/boom", nil))
	require.NoError(t, err)
	assert.Equal(t, 500, resp.StatusCode)
	assert.Equal(t, "internal server error", decode(t, resp.Body).Message)
}

type startRequest struct {
	Query string `json:"query" validate:"required,max=5"`
	Max   int    `json:"max_iterations" validate:"gte=0,lte=5"`
}

func TestValidateRequest(t *testing.T) {
	assert.NoError(t, ValidateRequest(startRequest{Query: "abc"}))

	err := ValidateRequest(startRequest{})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "query", verr.Field)
	assert.Equal(t, "is required", verr.Message)

	err = ValidateRequest(startRequest{Query: "a", Max: 9})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "max_iterations", verr.Field)
}

func sign(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestJwtMiddleware(t *testing.T) {
	newApp := func(required bool) *fiber.App {
		app := fiber.New()
		app.Use(ErrorHandlerMiddleware())
		app.Use(JwtMiddleware("secret", required))
		app.Get("/", func(c *fiber.Ctx) error { return c.SendString("user=" + UserID(c)) })
		return app
	}
	get := func(app *fiber.App, auth string) (int, string) {
		req := httptest.NewRequest("GET", "/", nil)
		if auth != "" {
			req.Header.Set("Authorization", "Bearer "+auth)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		b, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, string(b)
	}

	good := sign(t, "secret", jwt.MapClaims{"user_id": "u-1"})

	code, body := get(newApp(false), "")
	assert.Equal(t, 200, code)
	assert.Equal(t, "user=", body)

	code, body = get(newApp(false), good)
	assert.Equal(t, 200, code)
	assert.Equal(t, "user=u-1", body)

	code, _ = get(newApp(false), sign(t, "other", jwt.MapClaims{"user_id": "u-1"}))
	assert.Equal(t, 401, code)

	code, _ = get(newApp(true), "")
	assert.Equal(t, 401, code)
}

func TestRateLimitMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(ErrorHandlerMiddleware())
	app.Use(RateLimitMiddleware(ratelimit.NewMemoryLimiter(2, time.Hour)))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(204) })

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
		require.NoError(t, err)
		assert.Equal(t, 204, resp.StatusCode)
	}
	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, 429, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
	assert.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining"))
}
