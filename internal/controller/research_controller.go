package controller

import (
	"slingshot-be/internal/dto"
	"slingshot-be/internal/mapper"
	"slingshot-be/internal/pkg/serverutils"
	"slingshot-be/internal/service"
	"slingshot-be/pkg/research/domain"

	"github.com/gofiber/fiber/v2"
)

type IResearchController interface {
	RegisterRoutes(r fiber.Router)
	Start(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	Report(ctx *fiber.Ctx) error
	Stop(ctx *fiber.Ctx) error
	Events(ctx *fiber.Ctx) error
}

type researchController struct {
	sessionHandlers
	limiter fiber.Handler
}

func NewResearchController(service service.IResearchService, limiter fiber.Handler) IResearchController {
	return &researchController{
		sessionHandlers: sessionHandlers{service: service, mode: domain.ModeResearch},
		limiter:         limiter,
	}
}

func (c *researchController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/research")
	h.Post("", c.limiter, c.Start)
	h.Get(":id", c.Show)
	h.Get(":id/report", c.Report)
	h.Get(":id/events", c.Events)
	h.Delete(":id", c.Stop)
}

func (c *researchController) Start(ctx *fiber.Ctx) error {
	var req dto.StartResearchRequest
	if err := ctx.BodyParser(&req); err != nil {
		return &domain.ValidationError{Message: "malformed JSON body"}
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	snap, err := c.service.StartResearch(ctx.UserContext(), serverutils.UserID(ctx), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(mapper.ToSessionResponse(snap))
}
