package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopsync/internal/common/shopifyprotocol"
	"shopsync/internal/shopsync/everstox"
	"shopsync/internal/shopsync/filter"
	"shopsync/internal/shopsync/shopify"
	"shopsync/internal/shopsync/transform"
	"shopsync/pkg/logging"
)

// fakeFetcher replays a fixed order stream.
type fakeFetcher struct {
	orders []shopifyprotocol.Order
	err    error
}

func (f *fakeFetcher) ForEachOrder(_ context.Context, _ shopify.FetchOptions, yield func(shopifyprotocol.Order) error) error {
	for _, order := range f.orders {
		if err := yield(order); err != nil {
			return err
		}
	}
	return f.err
}

func testOrder(id, name string, tags []string, fulfillable int) shopifyprotocol.Order {
	return shopifyprotocol.Order{
		ID:                     "gid://shopify/Order/" + id,
		Name:                   name,
		CreatedAt:              time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		DisplayFinancialStatus: "PAID",
		Tags:                   tags,
		Email:                  "customer@example.com",
		CurrencyCode:           "EUR",
		ShippingAddress: &shopifyprotocol.Address{
			FirstName:   "Erika",
			LastName:    "Mustermann",
			Address1:    "Musterstr. 1",
			City:        "Berlin",
			CountryCode: "DE",
			Zip:         "10115",
		},
		LineItems: shopifyprotocol.LineItemConnection{
			Edges: []shopifyprotocol.LineItemEdge{
				{Node: shopifyprotocol.LineItem{
					ID:                  "gid://shopify/LineItem/" + id,
					SKU:                 "SKU-" + id,
					Name:                "Widget",
					Quantity:            2,
					FulfillableQuantity: fulfillable,
					OriginalUnitPriceSet: &shopifyprotocol.MoneySet{
						ShopMoney: shopifyprotocol.Money{
							Amount:       decimal.RequireFromString("10.00"),
							CurrencyCode: "EUR",
						},
					},
				}},
			},
		},
	}
}

func newPipeline(t *testing.T, fetcher Fetcher, cfg Config, whitelist, blacklist []string) *Pipeline {
	t.Helper()
	logger := logging.NewNopZapLogger()

	tagFilter, warnings := filter.NewTagFilter(whitelist, blacklist, filter.MatchExact, logger)
	require.Empty(t, warnings)

	transformer, err := transform.New(transform.Options{ShopInstanceID: "shop-instance-1"}, logger)
	require.NoError(t, err)

	preparer := everstox.NewPreparer(everstox.Config{
		BaseURL: "https://api.demo.everstox.com",
		ShopID:  "shop-1",
		DryRun:  true,
	}, logger)

	return New(cfg, fetcher, tagFilter, transformer, preparer, logger)
}

func TestRunCountsOutcomes(t *testing.T) {
	fetcher := &fakeFetcher{orders: []shopifyprotocol.Order{
		testOrder("1", "#1001", []string{"vip"}, 2),
		testOrder("2", "#1002", []string{"hold"}, 2),
		testOrder("3", "#1003", nil, 0),
		testOrder("4", "#1004", nil, 1),
	}}
	p := newPipeline(t, fetcher, Config{}, nil, []string{"hold"})

	summary, prepared, err := p.Run(context.Background(), shopify.FetchOptions{})
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Fetched)
	assert.Equal(t, 2, summary.Included)
	assert.Equal(t, 2, summary.Excluded)
	assert.Equal(t, 1, summary.ExclusionReasons["blacklisted: hold"])
	assert.Equal(t, 1, summary.ExclusionReasons["fully fulfilled"])
	assert.Equal(t, 0, summary.Skipped)
	assert.Equal(t, 2, summary.Prepared)
	assert.Equal(t, 2, summary.Valid)
	assert.Equal(t, 0, summary.Invalid)
	assert.Equal(t, 2, summary.TotalItems)
	// #1001 ships 2 x 10.00, #1004 ships 1 x 10.00.
	assert.True(t, summary.TotalGross.Equal(decimal.RequireFromString("30.00")), "gross %s", summary.TotalGross)
	assert.Equal(t, "EUR", summary.Currency)

	require.Len(t, prepared, 2)
	assert.Equal(t, "#1001", prepared[0].OrderNumber)
	assert.Equal(t, "#1004", prepared[1].OrderNumber)
	assert.True(t, prepared[0].DryRun)
}

func TestRunSkipsUntransformableOrders(t *testing.T) {
	broken := testOrder("2", "#1002", nil, 2)
	broken.ShippingAddress = nil

	fetcher := &fakeFetcher{orders: []shopifyprotocol.Order{
		testOrder("1", "#1001", nil, 2),
		broken,
	}}
	p := newPipeline(t, fetcher, Config{}, nil, nil)

	summary, prepared, err := p.Run(context.Background(), shopify.FetchOptions{})
	require.NoError(t, err, "a single defective order never aborts the run")

	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.Included)
	require.Len(t, prepared, 1)
	assert.Equal(t, "#1001", prepared[0].OrderNumber)
	require.NotEmpty(t, summary.Warnings)
	assert.Contains(t, summary.Warnings[0], "#1002")
}

func TestRunCollectsPriorityWarnings(t *testing.T) {
	fetcher := &fakeFetcher{orders: []shopifyprotocol.Order{
		testOrder("1", "#1001", []string{"priority:150"}, 2),
	}}
	p := newPipeline(t, fetcher, Config{}, nil, nil)

	summary, prepared, err := p.Run(context.Background(), shopify.FetchOptions{})
	require.NoError(t, err)

	require.Len(t, prepared, 1)
	assert.Equal(t, filter.MaxPriority, prepared[0].Payload.OrderPriority)
	require.Len(t, summary.Warnings, 1)
	assert.Contains(t, summary.Warnings[0], "clamped")
}

func TestRunDeduplicatesOrders(t *testing.T) {
	order := testOrder("1", "#1001", nil, 2)
	fetcher := &fakeFetcher{orders: []shopifyprotocol.Order{order, order, order}}
	p := newPipeline(t, fetcher, Config{}, nil, nil)

	summary, prepared, err := p.Run(context.Background(), shopify.FetchOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Fetched)
	assert.Len(t, prepared, 1)
}

func TestRunAbortsOnFetchError(t *testing.T) {
	fetchErr := errors.New("window fetch broke")
	fetcher := &fakeFetcher{
		orders: []shopifyprotocol.Order{testOrder("1", "#1001", nil, 2)},
		err:    fetchErr,
	}
	p := newPipeline(t, fetcher, Config{}, nil, nil)

	_, _, err := p.Run(context.Background(), shopify.FetchOptions{})

	require.ErrorIs(t, err, fetchErr)
}

func TestRunWorkerPoolKeepsOrderDeterministic(t *testing.T) {
	var orders []shopifyprotocol.Order
	names := []string{"#1001", "#1002", "#1003", "#1004", "#1005", "#1006", "#1007", "#1008"}
	for i, name := range names {
		orders = append(orders, testOrder(string(rune('a'+i)), name, nil, 1))
	}
	fetcher := &fakeFetcher{orders: orders}

	sequential := newPipeline(t, fetcher, Config{Workers: 1}, nil, nil)
	seqSummary, seqPrepared, err := sequential.Run(context.Background(), shopify.FetchOptions{})
	require.NoError(t, err)

	parallel := newPipeline(t, fetcher, Config{Workers: 4}, nil, nil)
	parSummary, parPrepared, err := parallel.Run(context.Background(), shopify.FetchOptions{})
	require.NoError(t, err)

	assert.Equal(t, seqSummary.Included, parSummary.Included)
	require.Len(t, parPrepared, len(seqPrepared))
	for i := range seqPrepared {
		assert.Equal(t, seqPrepared[i].OrderNumber, parPrepared[i].OrderNumber)
	}
	assert.Equal(t, names, preparedNames(parPrepared))
}

func preparedNames(prepared []*everstox.PreparedRequest) []string {
	names := make([]string, len(prepared))
	for i, p := range prepared {
		names[i] = p.OrderNumber
	}
	return names
}

func TestRunWhitelistExclusion(t *testing.T) {
	fetcher := &fakeFetcher{orders: []shopifyprotocol.Order{
		testOrder("1", "#1001", []string{"vip"}, 2),
		testOrder("2", "#1002", []string{"express"}, 2),
	}}
	p := newPipeline(t, fetcher, Config{}, []string{"vip"}, nil)

	summary, prepared, err := p.Run(context.Background(), shopify.FetchOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Included)
	assert.Equal(t, 1, summary.ExclusionReasons["not whitelisted"])
	require.Len(t, prepared, 1)
	assert.Equal(t, "#1001", prepared[0].OrderNumber)
}
