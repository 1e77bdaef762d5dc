package http

import (
	"github.com/dax-side/ecommerce-microservices-api/services/user/internal/transport/http/handler"
	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(app *fiber.App, h *handler.UserHandler) {
	users := app.Group("/users")

	users.Post("/", h.Create)
	users.Get("/", h.List)
	users.Get("/:id", h.Get)
	users.Put("/:id", h.Update)
	users.Delete("/:id", h.Delete)
}
