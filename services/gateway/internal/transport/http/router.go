package http

import (
	"github.com/dax-side/ecommerce-microservices-api/services/gateway/internal/transport/http/handler"
	"github.com/dax-side/ecommerce-microservices-api/services/gateway/middleware"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func RegisterRoutes(app *fiber.App, h *handler.GatewayHandler, up handler.Upstreams, secret string, logger *zap.Logger) {
	app.Get("/health/deps", h.Deps)

	authn := middleware.NewAuthMiddleware(secret, logger)
	admin := middleware.NewAdminMiddleware()
	self := middleware.NewSelfOrAdminMiddleware("id")

	api := app.Group("/api")

	users := api.Group("/users")
	users.Post("/", middleware.NewOptionalAuthMiddleware(secret, logger), h.CreateUser)
	users.Get("/", authn, admin, h.Forward(up.Users))
	users.Get("/:id", authn, self, h.Forward(up.Users))
	users.Put("/:id", authn, self, h.UpdateUser)
	users.Delete("/:id", authn, self, h.Forward(up.Users))

	products := api.Group("/products", authn)
	products.Get("/", h.Forward(up.Products))
	products.Get("/:id", h.Forward(up.Products))
	products.Post("/", admin, h.Forward(up.Products))
	products.Put("/:id", admin, h.Forward(up.Products))
	products.Delete("/:id", admin, h.Forward(up.Products))

	orders := api.Group("/orders", authn)
	orders.Post("/", h.CreateOrder)
	orders.Get("/", h.ListOrders)
	orders.Get("/:id", h.RequireOrderOwner, h.Forward(up.Orders))
	orders.Get("/:id/items", h.RequireOrderOwner, h.Forward(up.Orders))
	orders.Patch("/:id/status", admin, h.Forward(up.Orders))
	orders.Delete("/:id", h.RequireOrderOwner, h.Forward(up.Orders))

	adminOrders := api.Group("/admin/orders", authn, admin)
	adminOrders.Delete("/:id", h.Forward(up.Orders))
}
