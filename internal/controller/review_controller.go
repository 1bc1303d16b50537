package controller

import (
	"transcript-review-be/internal/dto"
	"transcript-review-be/internal/pkg/serverutils"
	"transcript-review-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IReviewController interface {
	RegisterRoutes(r fiber.Router)
	CreateSession(ctx *fiber.Ctx) error
	GetSession(ctx *fiber.Ctx) error
	RebindSession(ctx *fiber.Ctx) error
	CaptureSelection(ctx *fiber.Ctx) error
	RemoveSelection(ctx *fiber.Ctx) error
	CancelBatch(ctx *fiber.Ctx) error
	CommitBatch(ctx *fiber.Ctx) error
	DiscardSession(ctx *fiber.Ctx) error
}

type reviewController struct {
	service service.IReviewService
}

func NewReviewController(service service.IReviewService) IReviewController {
	return &reviewController{service: service}
}

func (c *reviewController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/review/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Post("sessions", c.CreateSession)
	h.Get("sessions/:id", c.GetSession)
	h.Put("sessions/:id/conversation", c.RebindSession)
	h.Post("sessions/:id/selections", c.CaptureSelection)
	h.Delete("sessions/:id/selections/:index", c.RemoveSelection)
	h.Delete("sessions/:id/batch", c.CancelBatch)
	h.Post("sessions/:id/commit", c.CommitBatch)
	h.Delete("sessions/:id", c.DiscardSession)
}

func (c *reviewController) CreateSession(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	var req dto.CreateSessionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.CreateSession(ctx.Context(), userId, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success create review session", res))
}

func (c *reviewController) GetSession(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)
	sessionId := ctx.Params("id")

	res, err := c.service.GetSession(ctx.Context(), userId, sessionId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get review session", res))
}

func (c *reviewController) RebindSession(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)
	sessionId := ctx.Params("id")

	var req dto.RebindSessionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.RebindSession(ctx.Context(), userId, sessionId, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success rebind review session", res))
}

func (c *reviewController) CaptureSelection(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)
	sessionId := ctx.Params("id")

	var req dto.CaptureSelectionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	res, err := c.service.CaptureSelection(ctx.Context(), userId, sessionId, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success capture selection", res))
}

func (c *reviewController) RemoveSelection(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)
	sessionId := ctx.Params("id")

	index, err := ctx.ParamsInt("index")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid selection index")
	}

	res, err := c.service.RemovePendingSelection(ctx.Context(), userId, sessionId, index)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success remove selection", res))
}

func (c *reviewController) CancelBatch(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)
	sessionId := ctx.Params("id")

	res, err := c.service.CancelBatch(ctx.Context(), userId, sessionId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success cancel batch", res))
}

func (c *reviewController) CommitBatch(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)
	sessionId := ctx.Params("id")

	var req dto.CommitBatchRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.CommitBatch(ctx.Context(), userId, sessionId, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success commit batch", res))
}

func (c *reviewController) DiscardSession(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)
	sessionId := ctx.Params("id")

	if err := c.service.DiscardSession(ctx.Context(), userId, sessionId); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success discard review session", nil))
}
