package handler

import (
	"github.com/dax-side/ecommerce-microservices-api/pkg/mylogger"
	"github.com/dax-side/ecommerce-microservices-api/pkg/server"
	"github.com/dax-side/ecommerce-microservices-api/pkg/utils"
	"github.com/dax-side/ecommerce-microservices-api/services/product/internal/domain"
	"github.com/dax-side/ecommerce-microservices-api/services/product/internal/service"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type ProductHandler struct {
	service service.ProductService
	logger  *zap.Logger
}

func NewProductHandler(service service.ProductService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{service: service, logger: logger}
}

func (h *ProductHandler) Create(c *fiber.Ctx) error {
	var input domain.CreateProductInput
	if err := c.BodyParser(&input); err != nil {
		mylogger.Warn(c.UserContext(), h.logger, "failed to parse body in create", zap.Error(err))

		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "error parsing body",
		})
	}

	if err := utils.ValidateStruct(&input); err != nil {
		return server.WriteError(c, h.logger, err)
	}

	product, err := h.service.Create(c.UserContext(), &input)
	if err != nil {
		return server.WriteError(c, h.logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Product created successfully",
		"product": product,
	})
}

func (h *ProductHandler) List(c *fiber.Ctx) error {
	page, err := h.service.List(c.UserContext(), domain.ListFilter{
		Category: c.Query("category"),
		Search:   c.Query("search"),
		Page:     c.QueryInt("page"),
		Limit:    c.QueryInt("limit"),
	})
	if err != nil {
		return server.WriteError(c, h.logger, err)
	}

	return c.JSON(page)
}

func (h *ProductHandler) Get(c *fiber.Ctx) error {
	product, err := h.service.FindByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return server.WriteError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{"product": product})
}

func (h *ProductHandler) Update(c *fiber.Ctx) error {
	var input domain.UpdateProductInput
	if err := c.BodyParser(&input); err != nil {
		mylogger.Warn(c.UserContext(), h.logger, "failed to parse body in update", zap.Error(err))

		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "error parsing body",
		})
	}

	if err := utils.ValidateStruct(&input); err != nil {
		return server.WriteError(c, h.logger, err)
	}

	product, err := h.service.Update(c.UserContext(), c.Params("id"), &input)
	if err != nil {
		return server.WriteError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{
		"message": "Product updated successfully",
		"product": product,
	})
}

func (h *ProductHandler) Delete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), c.Params("id")); err != nil {
		return server.WriteError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{"message": "Product deleted successfully"})
}
