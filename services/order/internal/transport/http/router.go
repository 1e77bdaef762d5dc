package http

import (
	"github.com/dax-side/ecommerce-microservices-api/services/order/internal/transport/http/handler"
	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(app *fiber.App, h *handler.OrderHandler) {
	orders := app.Group("/orders")

	orders.Post("/", h.Create)
	orders.Get("/", h.List)
	orders.Get("/:id", h.Get)
	orders.Get("/:id/items", h.Items)
	orders.Patch("/:id/status", h.UpdateStatus)
	orders.Delete("/:id", h.Cancel)

	admin := app.Group("/admin/orders")
	admin.Delete("/:id", h.Delete)
}
