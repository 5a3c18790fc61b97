package serverutils

import (
	"errors"
	"fmt"

	"pdf-qa-be/internal/constant"
	"pdf-qa-be/pkg/processor"
	"pdf-qa-be/pkg/session"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

type Response[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    T      `json:"data,omitempty"`
}

func SuccessResponse[T any](message string, data T) Response[T] {
	return Response[T]{
		Success: true,
		Message: message,
		Data:    data,
	}
}

func ErrorResponse(message string) Response[any] {
	return Response[any]{
		Success: false,
		Message: message,
	}
}

var validate = validator.New()

// ValidateRequest runs struct-tag validation and converts failures into
// client-facing 400s naming the first offending field.
func ValidateRequest(req interface{}) error {
	if err := validate.Struct(req); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			return err
		}
		for _, fieldErr := range err.(validator.ValidationErrors) {
			return fiber.NewError(fiber.StatusBadRequest,
				fmt.Sprintf("validation failed on field '%s' (rule: %s)", fieldErr.Field(), fieldErr.Tag()))
		}
	}
	return nil
}

// ErrorHandlerMiddleware maps domain errors onto HTTP statuses in one place
// so services and controllers just return errors.
//
//	no document for id        -> 404
//	expired / retired session -> 410
//	unprocessable document    -> 422
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		switch {
		case errors.Is(err, session.ErrNoDocumentUploaded):
			return ctx.Status(fiber.StatusNotFound).JSON(ErrorResponse(constant.MsgNoDocumentUploaded))

		case errors.Is(err, session.ErrSessionExpired), errors.Is(err, session.ErrSessionInvalidated):
			return ctx.Status(fiber.StatusGone).JSON(ErrorResponse(constant.MsgSessionExpired))

		case errors.Is(err, processor.ErrEmptyDocument),
			errors.Is(err, processor.ErrUnsupportedFormat),
			errors.Is(err, processor.ErrProcessingFailed):
			return ctx.Status(fiber.StatusUnprocessableEntity).JSON(ErrorResponse(constant.MsgProcessingFailed))
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return ctx.Status(fiberErr.Code).JSON(ErrorResponse(fiberErr.Message))
		}

		return ctx.Status(fiber.StatusInternalServerError).JSON(ErrorResponse("internal server error"))
	}
}
