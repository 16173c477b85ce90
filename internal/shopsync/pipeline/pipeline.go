package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"shopsync/internal/common/shopifyprotocol"
	"shopsync/internal/shopsync/everstox"
	"shopsync/internal/shopsync/filter"
	"shopsync/internal/shopsync/fulfillment"
	"shopsync/internal/shopsync/shopify"
	"shopsync/internal/shopsync/transform"
	"shopsync/pkg/logging"
	"shopsync/pkg/threadsafe"
)

const reasonFullyFulfilled = "fully fulfilled"

type Fetcher interface {
	ForEachOrder(ctx context.Context, opts shopify.FetchOptions, yield func(shopifyprotocol.Order) error) error
}

type Config struct {
	// Workers bounds the concurrent transform stage. The stages after the
	// fetch are pure per-order functions, so running them in parallel is
	// an optimization, not a correctness requirement; 0 or 1 keeps the
	// run fully sequential.
	Workers int
}

// Pipeline wires fetch → tag filter → reconcile → priority + transform →
// prepare. Only the fetcher touches the network.
type Pipeline struct {
	cfg         Config
	fetcher     Fetcher
	tagFilter   *filter.TagFilter
	transformer *transform.Transformer
	preparer    *everstox.Preparer
	logger      *logging.ZapLogger
}

func New(
	cfg Config,
	fetcher Fetcher,
	tagFilter *filter.TagFilter,
	transformer *transform.Transformer,
	preparer *everstox.Preparer,
	logger *logging.ZapLogger,
) *Pipeline {
	return &Pipeline{
		cfg:         cfg,
		fetcher:     fetcher,
		tagFilter:   tagFilter,
		transformer: transformer,
		preparer:    preparer,
		logger:      logger,
	}
}

// outcome of one order moving through the pure stages. Exactly one of
// prepared / excludedReason / skipErr is set.
type outcome struct {
	index          int
	orderNumber    string
	prepared       *everstox.PreparedRequest
	excludedReason string
	skipErr        error
	warnings       []string
}

type indexedOrder struct {
	index int
	order shopifyprotocol.Order
}

// Run executes one pipeline pass over the window. A fetch-layer error
// aborts the run (a falsely-complete result would under-report orders);
// per-order defects are contained and reported in the summary.
func (p *Pipeline) Run(ctx context.Context, opts shopify.FetchOptions) (*Summary, []*everstox.PreparedRequest, error) {
	summary := newSummary()

	seen := threadsafe.NewHashSet[string]()
	var orders []indexedOrder
	err := p.fetcher.ForEachOrder(ctx, opts, func(order shopifyprotocol.Order) error {
		if !seen.Add(order.ID) {
			p.logger.WarnCtx(ctx, "duplicate order in fetch stream, ignoring",
				zap.String("order_id", order.ID))
			return nil
		}
		orders = append(orders, indexedOrder{index: len(orders), order: order})
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("fetch failed: %w", err)
	}
	summary.Fetched = len(orders)

	outcomes, err := p.processAll(ctx, orders)
	if err != nil {
		return nil, nil, err
	}

	prepared := make([]*everstox.PreparedRequest, 0, len(outcomes))
	for _, out := range outcomes {
		summary.Warnings = append(summary.Warnings, out.warnings...)
		switch {
		case out.excludedReason != "":
			summary.Excluded++
			summary.ExclusionReasons[out.excludedReason]++
		case out.skipErr != nil:
			summary.Skipped++
			summary.Warnings = append(summary.Warnings,
				fmt.Sprintf("order %s skipped: %v", out.orderNumber, out.skipErr))
		default:
			summary.Included++
			summary.Prepared++
			prepared = append(prepared, out.prepared)
			if out.prepared.Valid() {
				summary.Valid++
			} else {
				summary.Invalid++
			}
			payload := out.prepared.Payload
			summary.TotalItems += len(payload.OrderItems)
			for _, item := range payload.OrderItems {
				summary.TotalGross = summary.TotalGross.Add(
					item.PriceSet.PriceGross.Mul(decimal.NewFromInt(int64(item.Quantity))))
			}
			if summary.Currency == "" {
				summary.Currency = payload.Currency
			}
		}
	}

	p.logger.InfoCtx(ctx, "pipeline run complete",
		zap.Int("fetched", summary.Fetched),
		zap.Int("included", summary.Included),
		zap.Int("excluded", summary.Excluded),
		zap.Int("skipped", summary.Skipped),
		zap.Int("valid", summary.Valid),
		zap.Int("invalid", summary.Invalid),
	)
	return summary, prepared, nil
}

// processAll runs the pure stages, optionally across a bounded worker
// pool. Results are re-sorted by fetch position so the output order stays
// deterministic either way.
func (p *Pipeline) processAll(ctx context.Context, orders []indexedOrder) ([]outcome, error) {
	workers := p.cfg.Workers
	if workers <= 1 || len(orders) < 2 {
		outcomes := make([]outcome, 0, len(orders))
		for _, item := range orders {
			out, err := p.process(ctx, item)
			if err != nil {
				return nil, err
			}
			outcomes = append(outcomes, out)
		}
		return outcomes, nil
	}

	tasks := make(chan indexedOrder)
	collected := threadsafe.NewSafeSlice[outcome](len(orders))

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for item := range tasks {
				out, err := p.process(ctx, item)
				if err != nil {
					return err
				}
				collected.Append(out)
			}
			return nil
		})
	}
	g.Go(func() error {
		defer close(tasks)
		for _, item := range orders {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case tasks <- item:
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	outcomes := collected.Items()
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].index < outcomes[j].index })
	return outcomes, nil
}

// process runs one order through the pure stages. Only infrastructure
// failures (payload marshaling) return an error; order defects land in the
// outcome.
func (p *Pipeline) process(ctx context.Context, item indexedOrder) (outcome, error) {
	order := item.order
	out := outcome{index: item.index, orderNumber: order.Name}
	ctx = logging.WithContextFields(ctx, zap.String("order_number", order.Name))

	decision := p.tagFilter.Decide(order.ID, order.Tags)
	if !decision.Include {
		p.logger.DebugCtx(ctx, "order excluded by tag policy", zap.String("reason", decision.Reason))
		out.excludedReason = decision.Reason
		return out, nil
	}

	reconciled := fulfillment.Reconcile(order)
	if !reconciled.HasRemainingWork {
		p.logger.DebugCtx(ctx, "order excluded", zap.String("reason", reasonFullyFulfilled))
		out.excludedReason = reasonFullyFulfilled
		return out, nil
	}
	fulfillSummary := fulfillment.Summarize(order)
	if fulfillSummary.PartiallyFulfilled() {
		p.logger.InfoCtx(ctx, "partial fulfillment detected",
			zap.Int("fulfillable", fulfillSummary.TotalFulfillable),
			zap.Int("ordered", fulfillSummary.TotalOrdered),
		)
	}

	priority := filter.ResolvePriority(order.Tags)
	for _, warning := range priority.Warnings {
		p.logger.WarnCtx(ctx, warning)
		out.warnings = append(out.warnings, fmt.Sprintf("order %s: %s", order.Name, warning))
	}

	payload, err := p.transformer.Transform(order, reconciled.Items, priority.Value)
	if err != nil {
		var transformErr *transform.TransformationError
		if errors.As(err, &transformErr) {
			p.logger.WarnCtx(ctx, "order not transformable, skipping", zap.Error(err))
			out.skipErr = err
			return out, nil
		}
		return out, err
	}

	prepared, err := p.preparer.Prepare(payload)
	if err != nil {
		return out, err
	}
	out.prepared = prepared
	return out, nil
}
