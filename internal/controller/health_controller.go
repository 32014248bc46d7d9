package controller

import (
	"slingshot-be/internal/dto"
	"slingshot-be/internal/metrics"
	"slingshot-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IHealthController interface {
	RegisterRoutes(r fiber.Router)
	Health(ctx *fiber.Ctx) error
}

type healthController struct {
	service     service.IResearchService
	serviceName string
}

func NewHealthController(service service.IResearchService, serviceName string) IHealthController {
	return &healthController{service: service, serviceName: serviceName}
}

// RegisterRoutes mounts on the app root, outside /api/v1.
func (c *healthController) RegisterRoutes(r fiber.Router) {
	r.Get("/health", c.Health)
	r.Get("/metrics", metrics.Handler())
}

func (c *healthController) Health(ctx *fiber.Ctx) error {
	return ctx.JSON(dto.HealthResponse{
		Status:         "ok",
		Service:        c.serviceName,
		ActiveSessions: c.service.ActiveSessions(),
	})
}
