package http

import (
	"github.com/dax-side/ecommerce-microservices-api/services/product/internal/transport/http/handler"
	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(app *fiber.App, h *handler.ProductHandler) {
	products := app.Group("/products")

	products.Post("/", h.Create)
	products.Get("/", h.List)
	products.Get("/:id", h.Get)
	products.Put("/:id", h.Update)
	products.Delete("/:id", h.Delete)
}
