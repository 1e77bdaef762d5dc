package server

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/dax-side/ecommerce-microservices-api/pkg/apperr"
	"github.com/dax-side/ecommerce-microservices-api/pkg/config"
	"github.com/dax-side/ecommerce-microservices-api/pkg/metrics"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()

	app := New(Options{
		Service:  "order-service",
		HTTP:     config.HTTP{},
		Logger:   zap.NewNop(),
		Registry: metrics.NewRegistry(),
	})
	app.Get("/boom/:kind", func(c *fiber.Ctx) error {
		switch c.Params("kind") {
		case "missing":
			return apperr.NotFound("order o1 not found")
		case "state":
			return apperr.StateConflict("cannot cancel order in status shipped")
		case "store":
			return apperr.StoreFailure("insert order", io.ErrUnexpectedEOF)
		default:
			return fiber.NewError(fiber.StatusTeapot, "teapot")
		}
	})

	return app
}

func decodeError(t *testing.T, body io.Reader) string {
	t.Helper()

	var payload map[string]string
	require.NoError(t, json.NewDecoder(body).Decode(&payload))
	return payload["error"]
}

func TestHealth(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "OK", body["status"])
	assert.Equal(t, "order-service", body["service"])
}

func TestErrorMapping(t *testing.T) {
	app := newTestApp(t)

	cases := []struct {
		path    string
		code    int
		message string
	}{
		{"/boom/missing", fiber.StatusNotFound, "order o1 not found"},
		{"/boom/state", fiber.StatusBadRequest, "cannot cancel order in status shipped"},
		{"/boom/store", fiber.StatusInternalServerError, "internal error"},
		{"/boom/other", fiber.StatusTeapot, "teapot"},
	}

	for _, tc := range cases {
		resp, err := app.Test(httptest.NewRequest("GET", tc.path, nil))
		require.NoError(t, err)
		assert.Equal(t, tc.code, resp.StatusCode, tc.path)
		assert.Equal(t, tc.message, decodeError(t, resp.Body), tc.path)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	app := newTestApp(t)

	_, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `http_requests_total{method="GET",route="/health",service="order-service",status="200"} 1`)
}
