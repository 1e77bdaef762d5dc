package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/dax-side/ecommerce-microservices-api/pkg/apperr"
	"github.com/dax-side/ecommerce-microservices-api/pkg/mylogger"
	"github.com/dax-side/ecommerce-microservices-api/pkg/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type Settings struct {
	MinRequests  uint32
	FailureRatio float64
	Interval     time.Duration
	CoolDown     time.Duration
	CallTimeout  time.Duration
	MaxRetries   uint
	RetryBackoff time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		MinRequests:  10,
		FailureRatio: 0.5,
		Interval:     time.Minute,
		CoolDown:     30 * time.Second,
		CallTimeout:  5 * time.Second,
		MaxRetries:   2,
		RetryBackoff: 100 * time.Millisecond,
	}
}

// Client issues downstream requests through one circuit breaker per
// dependency. Breakers are created on first use and live for the process.
type Client struct {
	http     *http.Client
	settings Settings
	logger   *zap.Logger
	state    *prometheus.GaugeVec

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

func New(settings Settings, logger *zap.Logger, reg prometheus.Registerer) *Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        200,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
	}

	state := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "downstream_breaker_state",
		Help: "Circuit breaker state per downstream dependency (0 closed, 1 half-open, 2 open).",
	}, []string{"dependency"})
	if reg != nil {
		reg.MustRegister(state)
	}

	return &Client{
		http:     &http.Client{Transport: otelhttp.NewTransport(transport)},
		settings: settings,
		logger:   logger,
		state:    state,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (c *Client) breaker(dependency string) *gobreaker.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cb, ok := c.breakers[dependency]; ok {
		return cb
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        dependency,
		MaxRequests: 1,
		Interval:    c.settings.Interval,
		Timeout:     c.settings.CoolDown,
		ReadyToTrip: utils.TripOnFailureRatio(c.settings.MinRequests, c.settings.FailureRatio),
		IsSuccessful: func(err error) bool {
			return err == nil || isClientError(err)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			c.logger.Warn(
				"Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			c.state.WithLabelValues(name).Set(float64(to))
		},
	})
	c.breakers[dependency] = cb
	c.state.WithLabelValues(dependency).Set(float64(gobreaker.StateClosed))

	return cb
}

// State reports the breaker state of a dependency. Unknown dependencies
// are closed.
func (c *Client) State(dependency string) gobreaker.State {
	return c.breaker(dependency).State()
}

// Call runs op through the dependency's breaker. Each attempt gets its own
// CallTimeout. Failed attempts are retried with exponential backoff unless
// the breaker is open or the dependency answered with a client error.
// Anything that is not a client error surfaces as DependencyUnavailable.
func Call[T any](ctx context.Context, c *Client, dependency string, op func(ctx context.Context) (T, error)) (T, error) {
	cb := c.breaker(dependency)

	attempt := func() (T, error) {
		res, err := utils.ExecuteWithBreaker(cb, func() (T, error) {
			callCtx, cancel := context.WithTimeout(ctx, c.settings.CallTimeout)
			defer cancel()

			return op(callCtx)
		})
		if err != nil && (utils.BreakerOpen(err) || isClientError(err) || ctx.Err() != nil) {
			return res, backoff.Permanent(err)
		}

		return res, err
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.settings.RetryBackoff

	res, err := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(c.settings.MaxRetries+1),
		backoff.WithNotify(func(err error, next time.Duration) {
			mylogger.Debug(ctx, c.logger, "retrying downstream call",
				zap.String("dependency", dependency),
				zap.Duration("backoff", next),
				zap.Error(err),
			)
		}),
	)
	if err != nil {
		if isClientError(err) {
			return res, err
		}

		mylogger.Warn(ctx, c.logger, "downstream call failed",
			zap.String("dependency", dependency),
			zap.Error(err),
		)

		return res, apperr.DependencyUnavailable(dependency, err)
	}

	return res, nil
}

// GetJSON fetches url and decodes the body into out. 404 becomes NotFound
// and any other 4xx becomes a validation error carrying the body's message.
func (c *Client) GetJSON(ctx context.Context, dependency, url string, out any) error {
	_, err := Call(ctx, c, dependency, func(ctx context.Context) (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return struct{}{}, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return struct{}{}, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return struct{}{}, fmt.Errorf("read body: %w", err)
		}

		if err := statusError(resp.StatusCode, body); err != nil {
			return struct{}{}, err
		}

		if err := json.Unmarshal(body, out); err != nil {
			return struct{}{}, fmt.Errorf("decode body: %w", err)
		}

		return struct{}{}, nil
	})

	return err
}

func statusError(code int, body []byte) error {
	if code < 400 {
		return nil
	}

	var payload struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(body, &payload)
	msg := payload.Error
	if msg == "" {
		msg = http.StatusText(code)
	}

	switch {
	case code == http.StatusNotFound:
		return apperr.NotFound("%s", msg)
	case code < 500:
		return apperr.Validation("%s", msg)
	default:
		return fmt.Errorf("downstream status %d: %s", code, msg)
	}
}

func isClientError(err error) bool {
	kind := apperr.KindOf(err)
	return kind == apperr.KindNotFound || kind == apperr.KindValidation
}

// IsOpen reports whether err comes from a call rejected by an open breaker.
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState)
}
