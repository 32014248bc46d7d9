package controller

import (
	"slingshot-be/internal/dto"
	"slingshot-be/internal/mapper"
	"slingshot-be/internal/pkg/serverutils"
	"slingshot-be/internal/service"
	"slingshot-be/pkg/research/domain"

	"github.com/gofiber/fiber/v2"
)

type IPortfolioController interface {
	RegisterRoutes(r fiber.Router)
	Audit(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	Stop(ctx *fiber.Ctx) error
	StressTest(ctx *fiber.Ctx) error
}

type portfolioController struct {
	sessionHandlers
	limiter fiber.Handler
}

func NewPortfolioController(service service.IResearchService, limiter fiber.Handler) IPortfolioController {
	return &portfolioController{
		sessionHandlers: sessionHandlers{service: service, mode: domain.ModePortfolio},
		limiter:         limiter,
	}
}

func (c *portfolioController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/portfolio")
	h.Post("audit", c.limiter, c.Audit)
	h.Get(":id", c.Show)
	h.Get(":id/report", c.Report)
	h.Get(":id/events", c.Events)
	h.Post(":id/stress-test", c.limiter, c.StressTest)
	h.Delete(":id", c.Stop)
}

func (c *portfolioController) Audit(ctx *fiber.Ctx) error {
	var req dto.PortfolioAuditRequest
	if err := ctx.BodyParser(&req); err != nil {
		return &domain.ValidationError{Message: "malformed JSON body"}
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	snap, err := c.service.StartPortfolio(ctx.UserContext(), serverutils.UserID(ctx), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(mapper.ToPortfolioResponse(snap))
}

// StressTest runs a custom scenario against the session's holdings.
func (c *portfolioController) StressTest(ctx *fiber.Ctx) error {
	var req dto.StressTestRequest
	if err := ctx.BodyParser(&req); err != nil {
		return &domain.ValidationError{Message: "malformed JSON body"}
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	id := ctx.Params("id")
	result, err := c.service.StressTest(ctx.UserContext(), id, &req)
	if err != nil {
		return err
	}

	snap, err := c.service.Get(ctx.UserContext(), domain.ModePortfolio, id)
	if err != nil {
		return err
	}
	return ctx.JSON(dto.StressTestResponse{
		SessionId:     snap.ID,
		PortfolioName: snap.Subject,
		StressTest:    result,
	})
}
