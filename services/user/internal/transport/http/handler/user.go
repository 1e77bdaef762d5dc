package handler

import (
	"github.com/dax-side/ecommerce-microservices-api/pkg/mylogger"
	"github.com/dax-side/ecommerce-microservices-api/pkg/server"
	"github.com/dax-side/ecommerce-microservices-api/pkg/utils"
	"github.com/dax-side/ecommerce-microservices-api/services/user/internal/domain"
	"github.com/dax-side/ecommerce-microservices-api/services/user/internal/service"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type UserHandler struct {
	service service.UserService
	logger  *zap.Logger
}

func NewUserHandler(service service.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{service: service, logger: logger}
}

func (h *UserHandler) Create(c *fiber.Ctx) error {
	var input domain.CreateUserInput
	if err := c.BodyParser(&input); err != nil {
		mylogger.Warn(c.UserContext(), h.logger, "failed to parse body in create", zap.Error(err))

		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "error parsing body",
		})
	}

	if err := utils.ValidateStruct(&input); err != nil {
		return server.WriteError(c, h.logger, err)
	}

	user, err := h.service.Create(c.UserContext(), &input)
	if err != nil {
		return server.WriteError(c, h.logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "User created successfully",
		"user":    user,
	})
}

func (h *UserHandler) List(c *fiber.Ctx) error {
	page, err := h.service.List(c.UserContext(), domain.ListFilter{
		Page:  c.QueryInt("page"),
		Limit: c.QueryInt("limit"),
	})
	if err != nil {
		return server.WriteError(c, h.logger, err)
	}

	return c.JSON(page)
}

func (h *UserHandler) Get(c *fiber.Ctx) error {
	user, err := h.service.FindByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return server.WriteError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{"user": user})
}

func (h *UserHandler) Update(c *fiber.Ctx) error {
	var input domain.UpdateUserInput
	if err := c.BodyParser(&input); err != nil {
		mylogger.Warn(c.UserContext(), h.logger, "failed to parse body in update", zap.Error(err))

		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "error parsing body",
		})
	}

	if err := utils.ValidateStruct(&input); err != nil {
		return server.WriteError(c, h.logger, err)
	}

	user, err := h.service.Update(c.UserContext(), c.Params("id"), &input)
	if err != nil {
		return server.WriteError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{
		"message": "User updated successfully",
		"user":    user,
	})
}

func (h *UserHandler) Delete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), c.Params("id")); err != nil {
		return server.WriteError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{"message": "User deleted successfully"})
}
