package controller

import (
	"slingshot-be/internal/dto"
	"slingshot-be/internal/pkg/serverutils"
	"slingshot-be/internal/service"
	"slingshot-be/pkg/research/domain"

	"github.com/gofiber/fiber/v2"
)

type IHistoryController interface {
	RegisterRoutes(r fiber.Router)
	List(ctx *fiber.Ctx) error
}

// historyController lists archived sessions. Without a database it serves
// 503.
type historyController struct {
	archive service.IArchiveService
}

func NewHistoryController(archive service.IArchiveService) IHistoryController {
	return &historyController{archive: archive}
}

func (c *historyController) RegisterRoutes(r fiber.Router) {
	r.Get("/sessions", c.List)
}

func (c *historyController) List(ctx *fiber.Ctx) error {
	if c.archive == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "session archive is not configured")
	}

	var q dto.ListSessionsQuery
	if err := ctx.QueryParser(&q); err != nil {
		return &domain.ValidationError{Message: "malformed query string"}
	}
	if err := serverutils.ValidateRequest(q); err != nil {
		return err
	}

	res, err := c.archive.List(ctx.UserContext(), serverutils.UserID(ctx), q)
	if err != nil {
		return err
	}
	return ctx.JSON(res)
}
