package controller

import (
	"pdf-qa-be/internal/dto"
	"pdf-qa-be/internal/pkg/serverutils"
	"pdf-qa-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IDocumentController interface {
	RegisterRoutes(r fiber.Router)
	Process(ctx *fiber.Ctx) error
	Reset(ctx *fiber.Ctx) error
	Status(ctx *fiber.Ctx) error
}

type documentController struct {
	service service.IDocumentService
}

func NewDocumentController(service service.IDocumentService) IDocumentController {
	return &documentController{service: service}
}

func (c *documentController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/document/v1")
	h.Post("/process", c.Process)
	h.Post("/reset", c.Reset)
	h.Get("/status/:sessionId", c.Status)
}

func (c *documentController) Process(ctx *fiber.Ctx) error {
	var req dto.ProcessDocumentRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Process(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success process document", res))
}

func (c *documentController) Reset(ctx *fiber.Ctx) error {
	var req dto.ResetSessionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Reset(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success reset session", res))
}

func (c *documentController) Status(ctx *fiber.Ctx) error {
	sessionId := ctx.Params("sessionId")

	res, err := c.service.Status(ctx.Context(), sessionId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get session status", res))
}
