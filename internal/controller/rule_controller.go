package controller

import (
	"transcript-review-be/internal/dto"
	"transcript-review-be/internal/pkg/serverutils"
	"transcript-review-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IRuleController interface {
	RegisterRoutes(r fiber.Router)
	Create(ctx *fiber.Ctx) error
	Seed(ctx *fiber.Ctx) error
	List(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
}

type ruleController struct {
	service service.IRuleService
}

func NewRuleController(service service.IRuleService) IRuleController {
	return &ruleController{service: service}
}

func (c *ruleController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/rule/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Get("", c.List)
	h.Post("", c.Create)
	h.Post("seed", c.Seed)
	h.Delete(":id", c.Delete)
}

func (c *ruleController) Create(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	var req dto.CreateRuleRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Create(ctx.Context(), userId, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success create rule", res))
}

func (c *ruleController) Seed(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	var req dto.SeedRulesRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Seed(ctx.Context(), userId, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success seed rules", res))
}

func (c *ruleController) List(ctx *fiber.Ctx) error {
	domain := ctx.Query("domain")

	res, err := c.service.List(ctx.Context(), domain)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get all rule", res))
}

func (c *ruleController) Delete(ctx *fiber.Ctx) error {
	idParam := ctx.Params("id")
	id, _ := uuid.Parse(idParam)

	if err := c.service.Delete(ctx.Context(), id); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success delete rule", nil))
}
