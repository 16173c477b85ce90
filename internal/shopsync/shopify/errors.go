package shopify

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAuth covers 401/403 responses. Terminal: the whole window would be
	// under-reported, so the fetch must not continue.
	ErrAuth = errors.New("shopify rejected credentials")

	// ErrMalformedResponse means the response body did not match the
	// expected GraphQL envelope. Terminal for the same reason.
	ErrMalformedResponse = errors.New("malformed shopify response")

	errThrottled = errors.New("rate limited")

	// errTransient covers request-level transport failures (timeouts,
	// dropped connections). Retried like throttling; the run deadline is
	// checked separately and stays terminal.
	errTransient = errors.New("transient request failure")
)

// ThrottledError is returned when a single page stayed throttled past the
// retry cap. Skipping the page silently would drop orders, so the caller
// must treat this as fatal for the run.
type ThrottledError struct {
	Page    int
	Retries int
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("page %d still throttled after %d retries", e.Page, e.Retries)
}

// GraphQLError carries error messages reported inside an HTTP 200 body.
type GraphQLError struct {
	Messages []string
}

func (e *GraphQLError) Error() string {
	return "graphql errors: " + strings.Join(e.Messages, "; ")
}
