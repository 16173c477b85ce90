package shopify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"shopsync/internal/common/shopifyprotocol"
	"shopsync/pkg/logging"
	"shopsync/pkg/timeutils"
)

const (
	maxRetriesPerPage  = 5
	maxBackoff         = 60 * time.Second
	estimatedQueryCost = 100
	requestTimeout     = 30 * time.Second
)

// Sleeper is the single point where the fetcher blocks. Injected so tests
// can observe waits instead of serving them.
type Sleeper func(ctx context.Context, d time.Duration) error

type Config struct {
	ShopURL    string
	APIToken   string
	APIVersion string
}

// GraphQLURL builds the Admin API endpoint. A ShopURL that already carries
// a scheme is used verbatim, which keeps test servers reachable.
func (c Config) GraphQLURL() string {
	base := strings.TrimRight(c.ShopURL, "/")
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	return fmt.Sprintf("%s/admin/api/%s/graphql.json", base, c.APIVersion)
}

// Client issues the paginated orders query. It is the only component in the
// pipeline doing network I/O and the only one that sleeps.
type Client struct {
	cfg    Config
	http   *resty.Client
	logger *logging.ZapLogger
	sleep  Sleeper
	jitter func() float64
}

func NewClient(cfg Config, logger *logging.ZapLogger) *Client {
	httpClient := resty.New().
		SetTimeout(requestTimeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Shopify-Access-Token", cfg.APIToken)
	return &Client{
		cfg:    cfg,
		http:   httpClient,
		logger: logger,
		sleep:  timeutils.SleepCtx,
		jitter: rand.Float64,
	}
}

// Request lifecycle of a single page.
type pageState int

const (
	stateIdle pageState = iota
	stateRequesting
	stateBackoffRetry
)

// fetchSession owns the cursor and the rate budget for one ForEachOrder
// call. Sessions are never shared, so repeated or overlapping fetches stay
// isolated.
type fetchSession struct {
	client *Client
	budget RateBudget
	page   int
}

// ForEachOrder runs the windowed orders query, yielding every order node in
// page order. The sequence is finite and restartable from the beginning
// only: call again for a fresh session. A non-nil error from yield stops
// the fetch and is returned as-is.
func (c *Client) ForEachOrder(ctx context.Context, opts FetchOptions, yield func(shopifyprotocol.Order) error) error {
	session := &fetchSession{
		client: c,
		budget: newSessionBudget(time.Now()),
	}
	filter := BuildOrdersFilter(opts)
	ctx = logging.WithContextFields(ctx, zap.String("query_filter", filter))
	c.logger.InfoCtx(ctx, "starting order fetch")

	cursor := ""
	total := 0
	for {
		session.page++
		variables := map[string]any{"query": filter}
		if cursor != "" {
			variables["cursor"] = cursor
		}

		response, err := session.fetchPage(ctx, variables)
		if err != nil {
			return err
		}
		if response.Data == nil {
			return fmt.Errorf("%w: missing data block on page %d", ErrMalformedResponse, session.page)
		}

		connection := response.Data.Orders
		for _, edge := range connection.Edges {
			total++
			if err := yield(edge.Node); err != nil {
				return err
			}
		}

		if !connection.PageInfo.HasNextPage {
			c.logger.InfoCtx(ctx, "order fetch complete",
				zap.Int("pages", session.page),
				zap.Int("orders", total),
			)
			return nil
		}
		cursor = connection.PageInfo.EndCursor
	}
}

// FetchAll collects the whole window into a slice.
func (c *Client) FetchAll(ctx context.Context, opts FetchOptions) ([]shopifyprotocol.Order, error) {
	var orders []shopifyprotocol.Order
	err := c.ForEachOrder(ctx, opts, func(order shopifyprotocol.Order) error {
		orders = append(orders, order)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// fetchPage drives one page request through its states: a proactive budget
// wait, the request itself, and on a throttle or transport fault an exponential-backoff retry
// of the same page. Every wait goes through the injected sleeper and is
// canceled by the run deadline.
func (s *fetchSession) fetchPage(ctx context.Context, variables map[string]any) (*shopifyprotocol.Response, error) {
	retries := 0
	state := stateIdle
	var retryErr error
	for {
		switch state {
		case stateIdle:
			if wait := s.budget.WaitFor(estimatedQueryCost); wait > 0 {
				s.client.logger.InfoCtx(ctx, "proactive throttle wait",
					zap.Duration("wait", wait),
					zap.Float64("available", s.budget.Available),
				)
				if err := s.client.sleep(ctx, wait); err != nil {
					return nil, fmt.Errorf("proactive wait: %w", err)
				}
			}
			state = stateRequesting

		case stateRequesting:
			response, err := s.client.execute(ctx, variables)
			switch {
			case err == nil:
				if response.Extensions != nil && response.Extensions.Cost != nil {
					s.budget.Update(response.Extensions.Cost.ThrottleStatus, time.Now())
					s.client.logger.DebugCtx(ctx, "budget updated",
						zap.Float64("available", s.budget.Available),
						zap.Float64("restore_rate", s.budget.RestoreRate),
					)
				}
				return response, nil
			case errors.Is(err, errThrottled), errors.Is(err, errTransient):
				retryErr = err
				state = stateBackoffRetry
			default:
				return nil, err
			}

		case stateBackoffRetry:
			retries++
			if retries > maxRetriesPerPage {
				if errors.Is(retryErr, errTransient) {
					return nil, fmt.Errorf("page %d still failing after %d retries: %w",
						s.page, maxRetriesPerPage, retryErr)
				}
				return nil, &ThrottledError{Page: s.page, Retries: maxRetriesPerPage}
			}
			delay := timeutils.BackoffDelay(retries, maxBackoff, s.client.jitter)
			s.client.logger.WarnCtx(ctx, "request failed, backing off",
				zap.Int("retry", retries),
				zap.Duration("delay", delay),
				zap.Error(retryErr),
			)
			if err := s.client.sleep(ctx, delay); err != nil {
				return nil, fmt.Errorf("backoff wait: %w", err)
			}
			state = stateIdle
		}
	}
}

// execute performs a single POST and classifies the outcome.
func (c *Client) execute(ctx context.Context, variables map[string]any) (*shopifyprotocol.Response, error) {
	body := map[string]any{"query": ordersQuery, "variables": variables}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Post(c.cfg.GraphQLURL())
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("graphql request failed: %w", err)
		}
		return nil, fmt.Errorf("%w: %w", errTransient, err)
	}

	switch code := resp.StatusCode(); {
	case code == http.StatusTooManyRequests:
		return nil, errThrottled
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return nil, fmt.Errorf("%w: status %d", ErrAuth, code)
	case code >= 400:
		return nil, fmt.Errorf("unexpected status %d: %s", code, resp.Status())
	}

	var parsed shopifyprotocol.Response
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(parsed.Errors) > 0 {
		messages := make([]string, len(parsed.Errors))
		for i, item := range parsed.Errors {
			messages[i] = item.Message
		}
		return nil, &GraphQLError{Messages: messages}
	}
	return &parsed, nil
}
