package everstox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"shopsync/pkg/logging"
)

var (
	// ErrNotArmed is returned on any attempt to transmit a dry-run request.
	ErrNotArmed = errors.New("request was prepared in dry-run mode")

	// ErrValidationIssues blocks transport of a request that materialized
	// with validation problems.
	ErrValidationIssues = errors.New("request has validation issues")
)

// APIError is a non-2xx answer from the order-creation endpoint.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("everstox returned status %d: %s", e.StatusCode, e.Body)
}

type CreateOrderResponse struct {
	ID string `json:"id"`
}

// Client is the live transport collaborator. The core pipeline never calls
// it in dry-run mode; it exists for armed runs only. Outbound requests are
// paced and circuit-broken since the destination has its own rate limits.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	logger  *logging.ZapLogger
}

const defaultRequestsPerSecond = 2

func NewClient(logger *logging.ZapLogger) *Client {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "everstox-orders",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WarnCtx(context.Background(), "circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return &Client{
		http:    resty.New().SetTimeout(30 * time.Second),
		limiter: rate.NewLimiter(rate.Limit(defaultRequestsPerSecond), 1),
		breaker: breaker,
		logger:  logger,
	}
}

// Send transmits a prepared request. It refuses dry-run requests and
// requests that carry validation issues.
func (c *Client) Send(ctx context.Context, prepared *PreparedRequest) (*CreateOrderResponse, error) {
	if prepared.DryRun {
		return nil, fmt.Errorf("order %s: %w", prepared.OrderNumber, ErrNotArmed)
	}
	if !prepared.Valid() {
		return nil, fmt.Errorf("order %s: %w: %s",
			prepared.OrderNumber, ErrValidationIssues, strings.Join(prepared.ValidationIssues, "; "))
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.post(ctx, prepared)
	})
	if err != nil {
		return nil, err
	}
	return result.(*CreateOrderResponse), nil
}

func (c *Client) post(ctx context.Context, prepared *PreparedRequest) (*CreateOrderResponse, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(prepared.Headers).
		SetBody(prepared.Body).
		Execute(prepared.Method, prepared.URL)
	if err != nil {
		return nil, fmt.Errorf("order %s: request failed: %w", prepared.OrderNumber, err)
	}
	if resp.StatusCode() >= 400 {
		return nil, &APIError{StatusCode: resp.StatusCode(), Body: string(resp.Body())}
	}

	var created CreateOrderResponse
	if err := json.Unmarshal(resp.Body(), &created); err != nil {
		return nil, fmt.Errorf("order %s: decode response: %w", prepared.OrderNumber, err)
	}
	c.logger.InfoCtx(ctx, "order created",
		zap.String("order_number", prepared.OrderNumber),
		zap.String("everstox_id", created.ID),
	)
	return &created, nil
}
