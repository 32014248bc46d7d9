package controller

import (
	"slingshot-be/internal/dto"
	"slingshot-be/internal/mapper"
	"slingshot-be/internal/pkg/serverutils"
	"slingshot-be/internal/service"
	"slingshot-be/pkg/research/domain"

	"github.com/gofiber/fiber/v2"
)

type IMacroController interface {
	RegisterRoutes(r fiber.Router)
	Analyze(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	Chain(ctx *fiber.Ctx) error
	Stop(ctx *fiber.Ctx) error
}

type macroController struct {
	sessionHandlers
	limiter fiber.Handler
}

func NewMacroController(service service.IResearchService, limiter fiber.Handler) IMacroController {
	return &macroController{
		sessionHandlers: sessionHandlers{service: service, mode: domain.ModeMacro},
		limiter:         limiter,
	}
}

func (c *macroController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/macro")
	h.Post("analyze", c.limiter, c.Analyze)
	h.Get(":id", c.Show)
	h.Get(":id/chain", c.Chain)
	h.Get(":id/report", c.Report)
	h.Get(":id/events", c.Events)
	h.Delete(":id", c.Stop)
}

func (c *macroController) Analyze(ctx *fiber.Ctx) error {
	var req dto.StartMacroRequest
	if err := ctx.BodyParser(&req); err != nil {
		return &domain.ValidationError{Message: "malformed JSON body"}
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	snap, err := c.service.StartMacro(ctx.UserContext(), serverutils.UserID(ctx), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(mapper.ToMacroResponse(snap))
}

// Chain returns only the causal chain. It is empty until the report is ready.
func (c *macroController) Chain(ctx *fiber.Ctx) error {
	snap, err := c.service.Get(ctx.UserContext(), domain.ModeMacro, ctx.Params("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(mapper.ToCausalChainResponse(snap))
}
