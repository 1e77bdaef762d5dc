package upstream

import (
	"context"
	"errors"
	"time"

	"github.com/dax-side/ecommerce-microservices-api/pkg/config"
	"github.com/dax-side/ecommerce-microservices-api/pkg/mylogger"
	"github.com/dax-side/ecommerce-microservices-api/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/proxy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
	"github.com/valyala/fasthttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var errServerStatus = errors.New("upstream answered with a server error")

type Metrics struct {
	state *prometheus.GaugeVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gateway_upstream_breaker_state",
			Help: "Circuit breaker state per upstream (0 closed, 1 half-open, 2 open).",
		}, []string{"upstream"}),
	}
	reg.MustRegister(m.state)

	return m
}

func (m *Metrics) setState(name string, state gobreaker.State) {
	if m == nil {
		return
	}
	m.state.WithLabelValues(name).Set(float64(state))
}

// Upstream forwards requests to one backend service through its own
// circuit breaker. 5xx answers and transport errors count as failures.
type Upstream struct {
	name    string
	baseURL string
	timeout time.Duration
	client  *fasthttp.Client
	cb      *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

func New(name, baseURL string, settings config.Breaker, timeout time.Duration, logger *zap.Logger, metrics *Metrics) *Upstream {
	u := &Upstream{
		name:    name,
		baseURL: baseURL,
		timeout: timeout,
		client: &fasthttp.Client{
			Name:                     "gateway",
			MaxConnsPerHost:          256,
			MaxIdleConnDuration:      90 * time.Second,
			NoDefaultUserAgentHeader: true,
		},
		logger: logger,
	}

	u.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    settings.Interval,
		Timeout:     settings.CoolDown,
		ReadyToTrip: utils.TripOnFailureRatio(settings.MinRequests, settings.FailureRatio),
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn(
				"Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			metrics.setState(name, to)
		},
	})
	metrics.setState(name, gobreaker.StateClosed)

	return u
}

func (u *Upstream) Name() string { return u.name }

func (u *Upstream) State() gobreaker.State { return u.cb.State() }

// Forward proxies the current request to path on the upstream, keeping the
// query string. Upstream answers, 5xx included, are passed through as is.
func (u *Upstream) Forward(c *fiber.Ctx, path string) error {
	url := u.baseURL + path
	if args := c.Request().URI().QueryArgs(); args.Len() > 0 {
		url += "?" + string(args.QueryString())
	}

	otel.GetTextMapPropagator().Inject(c.UserContext(), headerCarrier{&c.Request().Header})

	_, err := u.cb.Execute(func() (any, error) {
		if err := proxy.DoTimeout(c, url, u.timeout, u.client); err != nil {
			return nil, err
		}
		if c.Response().StatusCode() >= fiber.StatusInternalServerError {
			return nil, errServerStatus
		}
		return nil, nil
	})
	if err == nil || errors.Is(err, errServerStatus) {
		return nil
	}

	return u.unavailable(c.UserContext(), c, err)
}

// Response is an upstream answer read by the gateway itself.
type Response struct {
	Status int
	Body   []byte
}

// Get fetches path from the upstream under the breaker. The Authorization
// header is not sent.
func (u *Upstream) Get(ctx context.Context, path string) (*Response, error) {
	res, err := u.cb.Execute(func() (any, error) {
		req := fasthttp.AcquireRequest()
		defer fasthttp.ReleaseRequest(req)
		resp := fasthttp.AcquireResponse()
		defer fasthttp.ReleaseResponse(resp)

		req.SetRequestURI(u.baseURL + path)
		req.Header.SetMethod(fasthttp.MethodGet)
		req.Header.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
		otel.GetTextMapPropagator().Inject(ctx, headerCarrier{&req.Header})

		if err := u.client.DoTimeout(req, resp, u.timeout); err != nil {
			return nil, err
		}

		r := &Response{
			Status: resp.StatusCode(),
			Body:   append([]byte(nil), resp.Body()...),
		}
		if r.Status >= fiber.StatusInternalServerError {
			return r, errServerStatus
		}
		return r, nil
	})
	if err != nil {
		if r, ok := res.(*Response); ok && errors.Is(err, errServerStatus) {
			return r, nil
		}
		return nil, err
	}

	return res.(*Response), nil
}

// Unavailable writes the answer for a request the upstream could not serve:
// 504 on timeout, 503 otherwise.
func (u *Upstream) Unavailable(c *fiber.Ctx, err error) error {
	return u.unavailable(c.UserContext(), c, err)
}

func (u *Upstream) unavailable(ctx context.Context, c *fiber.Ctx, err error) error {
	// proxy.Do may have copied a partial answer before failing.
	c.Response().Reset()

	if errors.Is(err, fasthttp.ErrTimeout) {
		mylogger.Warn(ctx, u.logger, "upstream timed out", zap.String("upstream", u.name), zap.Error(err))

		return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{
			"error": u.name + " service timed out",
		})
	}

	if utils.BreakerOpen(err) {
		mylogger.Debug(ctx, u.logger, "upstream breaker open", zap.String("upstream", u.name))
	} else {
		mylogger.Warn(ctx, u.logger, "upstream unreachable", zap.String("upstream", u.name), zap.Error(err))
	}

	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error": u.name + " service unavailable",
	})
}

type headerCarrier struct {
	h *fasthttp.RequestHeader
}

func (c headerCarrier) Get(key string) string { return string(c.h.Peek(key)) }

func (c headerCarrier) Set(key, value string) { c.h.Set(key, value) }

func (c headerCarrier) Keys() []string {
	var keys []string
	c.h.VisitAll(func(key, _ []byte) {
		keys = append(keys, string(key))
	})
	return keys
}
