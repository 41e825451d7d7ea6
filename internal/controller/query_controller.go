package controller

import (
	"ai-finagent-be/internal/dto"
	"ai-finagent-be/internal/pkg/serverutils"
	"ai-finagent-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IQueryController interface {
	RegisterRoutes(r fiber.Router)
	Process(ctx *fiber.Ctx) error
	ShowSession(ctx *fiber.Ctx) error
	Health(ctx *fiber.Ctx) error
}

type queryController struct {
	queryService service.IQueryService
}

func NewQueryController(queryService service.IQueryService) IQueryController {
	return &queryController{
		queryService: queryService,
	}
}

func (c *queryController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/query/v1")
	h.Post("", c.Process)
	h.Get("health", c.Health)
	h.Get("session/:id", c.ShowSession)
}

func (c *queryController) Process(ctx *fiber.Ctx) error {
	var req dto.ProcessQueryRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	err := serverutils.ValidateRequest(req)
	if err != nil {
		return err
	}

	res, err := c.queryService.ProcessQuery(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success process query", res))
}

func (c *queryController) ShowSession(ctx *fiber.Ctx) error {
	idParam := ctx.Params("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		return serverutils.NewApiError(fiber.StatusBadRequest, "Invalid session id")
	}

	res, err := c.queryService.GetSession(ctx.Context(), id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success show session", res))
}

func (c *queryController) Health(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Service healthy", fiber.Map{
		"status": "ok",
	}))
}
