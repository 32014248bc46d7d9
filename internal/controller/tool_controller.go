package controller

import (
	"slingshot-be/internal/service"
	"slingshot-be/pkg/research/citation"
	"slingshot-be/pkg/research/domain"
	"slingshot-be/pkg/research/tool"

	"github.com/gofiber/fiber/v2"
)

type IToolController interface {
	RegisterRoutes(r fiber.Router)
	List(ctx *fiber.Ctx) error
	Run(ctx *fiber.Ctx) error
}

type toolController struct {
	service service.IResearchService
}

func NewToolController(service service.IResearchService) IToolController {
	return &toolController{service: service}
}

func (c *toolController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/tools")
	h.Get("", c.List)
	h.Post(":name/run", c.Run)
}

func (c *toolController) List(ctx *fiber.Ctx) error {
	return ctx.JSON(fiber.Map{"tools": c.service.Tools()})
}

type toolRunResponse struct {
	Tool            string            `json:"tool"`
	ExecutionTimeMs int64             `json:"execution_time_ms"`
	Data            map[string]any    `json:"data"`
	Sources         []citation.Source `json:"sources"`
}

// Run invokes one tool outside any session, for inspecting its output.
func (c *toolController) Run(ctx *fiber.Ctx) error {
	params := tool.Params{}
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&params); err != nil {
			return &domain.ValidationError{Message: "body must be a JSON object of tool parameters"}
		}
	}

	name := ctx.Params("name")
	res, elapsed, err := c.service.RunTool(ctx.UserContext(), name, params)
	if err != nil {
		return err
	}

	sources := res.Sources
	if sources == nil {
		sources = []citation.Source{}
	}
	return ctx.JSON(toolRunResponse{
		Tool:            name,
		ExecutionTimeMs: elapsed.Milliseconds(),
		Data:            res.Data,
		Sources:         sources,
	})
}
