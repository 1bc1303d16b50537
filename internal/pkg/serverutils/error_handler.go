// FILE: internal/pkg/serverutils/error_handler.go
package serverutils

import (
	"errors"

	"transcript-review-be/internal/dto"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// ErrorHandlerMiddleware translates errors bubbling out of handlers into
// stable JSON responses, so controllers can just `return err`.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		if err == nil {
			return nil
		}

		var notFound *dto.NotFoundError
		if errors.As(err, &notFound) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse(fiber.StatusNotFound, notFound.Error()))
		}

		var inFlight *dto.CommitInFlightError
		if errors.As(err, &inFlight) {
			return c.Status(fiber.StatusConflict).JSON(ErrorResponse(fiber.StatusConflict, inFlight.Error()))
		}

		var invalid validator.ValidationErrors
		if errors.As(err, &invalid) {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse(fiber.StatusBadRequest, invalid.Error()))
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return c.Status(fiberErr.Code).JSON(ErrorResponse(fiberErr.Code, fiberErr.Message))
		}

		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse(fiber.StatusInternalServerError, "internal server error"))
	}
}
