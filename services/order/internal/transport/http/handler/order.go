package handler

import (
	"github.com/dax-side/ecommerce-microservices-api/pkg/mylogger"
	"github.com/dax-side/ecommerce-microservices-api/pkg/server"
	"github.com/dax-side/ecommerce-microservices-api/pkg/utils"
	"github.com/dax-side/ecommerce-microservices-api/services/order/internal/domain"
	"github.com/dax-side/ecommerce-microservices-api/services/order/internal/service"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type OrderHandler struct {
	service service.OrderService
	logger  *zap.Logger
}

func NewOrderHandler(service service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{service: service, logger: logger}
}

type createOrderRequest struct {
	UserID string               `json:"userId" validate:"required"`
	Items  []domain.LineRequest `json:"items" validate:"required,min=1,dive"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending confirmed shipped delivered cancelled"`
}

func (h *OrderHandler) Create(c *fiber.Ctx) error {
	var input createOrderRequest
	if err := c.BodyParser(&input); err != nil {
		mylogger.Warn(c.UserContext(), h.logger, "failed to parse body in create", zap.Error(err))

		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "error parsing body",
		})
	}

	if err := utils.ValidateStruct(&input); err != nil {
		return server.WriteError(c, h.logger, err)
	}

	order, err := h.service.Create(c.UserContext(), input.UserID, input.Items)
	if err != nil {
		return server.WriteError(c, h.logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Order created successfully",
		"order":   order,
	})
}

func (h *OrderHandler) List(c *fiber.Ctx) error {
	page, err := h.service.List(c.UserContext(), domain.ListFilter{
		UserID: c.Query("userId"),
		Status: domain.OrderStatus(c.Query("status")),
		Page:   c.QueryInt("page"),
		Limit:  c.QueryInt("limit"),
	})
	if err != nil {
		return server.WriteError(c, h.logger, err)
	}

	return c.JSON(page)
}

func (h *OrderHandler) Get(c *fiber.Ctx) error {
	order, err := h.service.GetByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return server.WriteError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{"order": order})
}

func (h *OrderHandler) Items(c *fiber.Ctx) error {
	items, err := h.service.GetItems(c.UserContext(), c.Params("id"))
	if err != nil {
		return server.WriteError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{"items": items})
}

func (h *OrderHandler) UpdateStatus(c *fiber.Ctx) error {
	var input updateStatusRequest
	if err := c.BodyParser(&input); err != nil {
		mylogger.Warn(c.UserContext(), h.logger, "failed to parse body in update status", zap.Error(err))

		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "error parsing body",
		})
	}

	if err := utils.ValidateStruct(&input); err != nil {
		return server.WriteError(c, h.logger, err)
	}

	order, err := h.service.UpdateStatus(c.UserContext(), c.Params("id"), domain.OrderStatus(input.Status))
	if err != nil {
		return server.WriteError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{
		"message": "Order status updated successfully",
		"order":   order,
	})
}

func (h *OrderHandler) Cancel(c *fiber.Ctx) error {
	order, err := h.service.Cancel(c.UserContext(), c.Params("id"))
	if err != nil {
		return server.WriteError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{
		"message": "Order cancelled successfully",
		"order":   order,
	})
}

func (h *OrderHandler) Delete(c *fiber.Ctx) error {
	if _, err := h.service.Delete(c.UserContext(), c.Params("id")); err != nil {
		return server.WriteError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{"message": "Order deleted successfully"})
}
