package serverutils

import (
	"errors"

	"ai-docqa-be/pkg/docqa/errs"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandlerMiddleware converts domain errors escaping a handler into a
// consistent JSON response. NoResult never reaches this layer on the answer
// path because the router escalates it internally; if it does show up, it
// means every strategy was exhausted and 404 is honest.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return ctx.Status(fiberErr.Code).JSON(ErrorResponse(fiberErr.Code, fiberErr.Message))
		}

		switch {
		case errors.Is(err, errs.ErrNotFound), errors.Is(err, errs.ErrNoResult):
			return ctx.Status(fiber.StatusNotFound).JSON(ErrorResponse(fiber.StatusNotFound, err.Error()))
		case errors.Is(err, errs.ErrConfig), errors.Is(err, errs.ErrSizeMismatch):
			return ctx.Status(fiber.StatusBadRequest).JSON(ErrorResponse(fiber.StatusBadRequest, err.Error()))
		case errors.Is(err, errs.ErrDimensionMismatch):
			// Configuration drift between ingestion and query embeddings.
			// Surface the explanatory message verbatim, never retry.
			return ctx.Status(fiber.StatusInternalServerError).JSON(ErrorResponse(fiber.StatusInternalServerError, err.Error()))
		default:
			return ctx.Status(fiber.StatusInternalServerError).JSON(ErrorResponse(fiber.StatusInternalServerError, "Internal server error"))
		}
	}
}
