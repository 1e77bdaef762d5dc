package handler

import (
	"encoding/json"
	"strings"

	"github.com/dax-side/ecommerce-microservices-api/pkg/mylogger"
	"github.com/dax-side/ecommerce-microservices-api/services/gateway/internal/upstream"
	"github.com/dax-side/ecommerce-microservices-api/services/gateway/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

type Upstreams struct {
	Users    *upstream.Upstream
	Products *upstream.Upstream
	Orders   *upstream.Upstream
}

func (u Upstreams) all() []*upstream.Upstream {
	return []*upstream.Upstream{u.Users, u.Products, u.Orders}
}

type GatewayHandler struct {
	upstreams Upstreams
	logger    *zap.Logger
}

func NewGatewayHandler(upstreams Upstreams, logger *zap.Logger) *GatewayHandler {
	return &GatewayHandler{upstreams: upstreams, logger: logger}
}

// upstreamPath maps /api/products/1 to /products/1.
func upstreamPath(c *fiber.Ctx) string {
	return strings.TrimPrefix(c.Path(), "/api")
}

func (h *GatewayHandler) Forward(to *upstream.Upstream) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return to.Forward(c, upstreamPath(c))
	}
}

func (h *GatewayHandler) Deps(c *fiber.Ctx) error {
	status := "OK"
	deps := fiber.Map{}
	for _, u := range h.upstreams.all() {
		state := u.State()
		if state == gobreaker.StateOpen {
			status = "DEGRADED"
		}
		deps[u.Name()] = state.String()
	}

	return c.JSON(fiber.Map{
		"status":       status,
		"dependencies": deps,
	})
}

// rejectRoleChange answers 403 when a non-admin body asks for a role other
// than the default one. It returns false when the request may go on.
func (h *GatewayHandler) rejectRoleChange(c *fiber.Ctx, allowUser bool) (bool, error) {
	if middleware.IsAdmin(c) {
		return false, nil
	}

	var body struct {
		Role *string `json:"role"`
	}
	if err := json.Unmarshal(c.Body(), &body); err != nil || body.Role == nil {
		return false, nil
	}
	if allowUser && *body.Role == "user" {
		return false, nil
	}

	mylogger.Warn(c.UserContext(), h.logger, "role change rejected", zap.String("user_id", middleware.UserID(c)))

	return true, c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden: only admins can assign roles"})
}

func (h *GatewayHandler) CreateUser(c *fiber.Ctx) error {
	if rejected, err := h.rejectRoleChange(c, true); rejected {
		return err
	}

	return h.upstreams.Users.Forward(c, upstreamPath(c))
}

func (h *GatewayHandler) UpdateUser(c *fiber.Ctx) error {
	if rejected, err := h.rejectRoleChange(c, false); rejected {
		return err
	}

	return h.upstreams.Users.Forward(c, upstreamPath(c))
}

// CreateOrder places the order for the caller. Admins may name another user.
func (h *GatewayHandler) CreateOrder(c *fiber.Ctx) error {
	var body map[string]any
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "error parsing body"})
	}
	if body == nil {
		body = map[string]any{}
	}

	if requested, _ := body["userId"].(string); !middleware.IsAdmin(c) || requested == "" {
		body["userId"] = middleware.UserID(c)
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	c.Request().SetBody(raw)
	c.Request().Header.SetContentType(fiber.MIMEApplicationJSON)

	return h.upstreams.Orders.Forward(c, upstreamPath(c))
}

// ListOrders limits non-admin callers to their own orders.
func (h *GatewayHandler) ListOrders(c *fiber.Ctx) error {
	if !middleware.IsAdmin(c) {
		c.Request().URI().QueryArgs().Set("userId", middleware.UserID(c))
	}

	return h.upstreams.Orders.Forward(c, upstreamPath(c))
}

// RequireOrderOwner looks the order up before letting a non-admin caller
// read or cancel it.
func (h *GatewayHandler) RequireOrderOwner(c *fiber.Ctx) error {
	if middleware.IsAdmin(c) {
		return c.Next()
	}

	orders := h.upstreams.Orders
	resp, err := orders.Get(c.UserContext(), "/orders/"+c.Params("id"))
	if err != nil {
		return orders.Unavailable(c, err)
	}

	if resp.Status != fiber.StatusOK {
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Status(resp.Status).Send(resp.Body)
	}

	var body struct {
		Order struct {
			UserID string `json:"userId"`
		} `json:"order"`
	}
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		mylogger.Error(c.UserContext(), h.logger, "undecodable order answer", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "order service answered with an invalid body"})
	}

	if body.Order.UserID != middleware.UserID(c) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden: not your order"})
	}

	return c.Next()
}
