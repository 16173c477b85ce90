package transform

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopsync/internal/common/everstoxprotocol"
	"shopsync/internal/common/shopifyprotocol"
	"shopsync/internal/shopsync/fulfillment"
	"shopsync/pkg/logging"
)

func moneySet(amount, currency string) *shopifyprotocol.MoneySet {
	return &shopifyprotocol.MoneySet{
		ShopMoney: shopifyprotocol.Money{
			Amount:       decimal.RequireFromString(amount),
			CurrencyCode: currency,
		},
	}
}

func taxLines(fractionalRate string) []shopifyprotocol.TaxLine {
	return []shopifyprotocol.TaxLine{
		{Rate: decimal.RequireFromString(fractionalRate)},
	}
}

func sampleOrder() shopifyprotocol.Order {
	return shopifyprotocol.Order{
		ID:                     "gid://shopify/Order/42",
		Name:                   "#1042",
		CreatedAt:              time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		DisplayFinancialStatus: "PAID",
		Tags:                   []string{"vip", "priority:80"},
		Email:                  "customer@example.com",
		CurrencyCode:           "EUR",
		TotalPriceSet:          moneySet("121.00", "EUR"),
		ShippingLine: &shopifyprotocol.ShippingLine{
			Title:            "DHL Express",
			OriginalPriceSet: moneySet("5.95", "EUR"),
			TaxLines:         taxLines("0.19"),
		},
		ShippingAddress: &shopifyprotocol.Address{
			FirstName:   "Erika",
			LastName:    "Mustermann",
			Address1:    "Musterstr. 1",
			City:        "Berlin",
			CountryCode: "DE",
			Zip:         "10115",
		},
	}
}

func sampleRemaining() []fulfillment.RemainingItem {
	return []fulfillment.RemainingItem{
		{
			Line: shopifyprotocol.LineItem{
				ID:                   "gid://shopify/LineItem/7",
				SKU:                  "SKU-1",
				Name:                 "Widget",
				Quantity:             3,
				FulfillableQuantity:  2,
				OriginalUnitPriceSet: moneySet("121.00", "EUR"),
				TaxLines:             taxLines("0.21"),
			},
			Quantity: 2,
		},
	}
}

func newTransformer(t *testing.T) *Transformer {
	t.Helper()
	tr, err := New(Options{ShopInstanceID: "shop-instance-1"}, logging.NewNopZapLogger())
	require.NoError(t, err)
	return tr
}

func TestNewRejectsUnknownMoneySource(t *testing.T) {
	_, err := New(Options{MoneySource: "presentment"}, logging.NewNopZapLogger())
	require.Error(t, err)
}

func TestTransformNetFromGross(t *testing.T) {
	tr := newTransformer(t)

	payload, err := tr.Transform(sampleOrder(), sampleRemaining(), 80)
	require.NoError(t, err)
	require.Len(t, payload.OrderItems, 1)

	// 121.00 gross at 21% yields 100.00 net and 21.00 tax.
	price := payload.OrderItems[0].PriceSet
	assert.True(t, price.PriceNet.Equal(decimal.RequireFromString("100.00")), "net %s", price.PriceNet)
	assert.True(t, price.PriceTax.Equal(decimal.RequireFromString("21.00")), "tax %s", price.PriceTax)
	assert.True(t, price.PriceGross.Equal(decimal.RequireFromString("121.00")))
	assert.True(t, price.TaxRate.Equal(decimal.RequireFromString("21")))
	assert.Equal(t, "EUR", price.Currency)
}

func TestTransformHeaderFields(t *testing.T) {
	tr := newTransformer(t)

	payload, err := tr.Transform(sampleOrder(), sampleRemaining(), 80)
	require.NoError(t, err)

	assert.Equal(t, "shop-instance-1", payload.ShopInstanceID)
	assert.Equal(t, "#1042", payload.OrderNumber)
	assert.Equal(t, "2024-01-15T10:30:00Z", payload.OrderDate)
	assert.Equal(t, "customer@example.com", payload.CustomerEmail)
	assert.Equal(t, "paid", payload.FinancialStatus)
	assert.Equal(t, 80, payload.OrderPriority)
	assert.Equal(t, "DHL Express", payload.ShippingMethod)
	assert.True(t, payload.RequestedWarehouseID.Placeholder)
	assert.True(t, payload.PaymentMethodID.Placeholder)
	assert.True(t, payload.RequestedDeliveryDate.Placeholder)
	assert.Nil(t, payload.BillingAddress)

	assert.Equal(t, []everstoxprotocol.CustomAttribute{
		{Key: "source_order_id", Value: "gid://shopify/Order/42"},
		{Key: "source_tags", Value: "vip,priority:80"},
	}, payload.CustomAttributes)

	item := payload.OrderItems[0]
	assert.Equal(t, 2, item.Quantity)
	assert.Equal(t, "SKU-1", item.Product.SKU)
	assert.Equal(t, []everstoxprotocol.CustomAttribute{
		{Key: "source_line_item_id", Value: "gid://shopify/LineItem/7"},
		{Key: "ordered_quantity", Value: "3"},
	}, item.CustomAttributes)
}

func TestTransformPrefersDiscountedUnitPrice(t *testing.T) {
	tr := newTransformer(t)
	remaining := sampleRemaining()
	remaining[0].Line.DiscountedUnitPriceSet = moneySet("100.00", "EUR")

	payload, err := tr.Transform(sampleOrder(), remaining, 50)
	require.NoError(t, err)

	price := payload.OrderItems[0].PriceSet
	assert.True(t, price.PriceGross.Equal(decimal.RequireFromString("100.00")))
	assert.True(t, price.DiscountGross.Equal(decimal.RequireFromString("21.00")))
}

func TestTransformMissingAddressFields(t *testing.T) {
	tr := newTransformer(t)

	order := sampleOrder()
	order.ShippingAddress.City = ""
	order.ShippingAddress.Zip = " "

	_, err := tr.Transform(order, sampleRemaining(), 50)

	var transformErr *TransformationError
	require.ErrorAs(t, err, &transformErr)
	assert.Equal(t, "#1042", transformErr.OrderNumber)
	assert.ElementsMatch(t,
		[]string{"shipping_address.city", "shipping_address.zip"},
		transformErr.MissingFields,
	)
}

func TestTransformMissingAddressEntirely(t *testing.T) {
	tr := newTransformer(t)

	order := sampleOrder()
	order.ShippingAddress = nil

	_, err := tr.Transform(order, sampleRemaining(), 50)

	var transformErr *TransformationError
	require.ErrorAs(t, err, &transformErr)
	assert.Equal(t, []string{"shipping_address"}, transformErr.MissingFields)
}

func TestTransformDeterministic(t *testing.T) {
	tr := newTransformer(t)

	first, err := tr.Transform(sampleOrder(), sampleRemaining(), 80)
	require.NoError(t, err)
	second, err := tr.Transform(sampleOrder(), sampleRemaining(), 80)
	require.NoError(t, err)

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(firstJSON), string(secondJSON))

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("payloads differ (-first +second):\n%s", diff)
	}
}

func TestTransformZeroTaxRate(t *testing.T) {
	tr := newTransformer(t)
	remaining := sampleRemaining()
	remaining[0].Line.TaxLines = nil

	payload, err := tr.Transform(sampleOrder(), remaining, 50)
	require.NoError(t, err)

	price := payload.OrderItems[0].PriceSet
	assert.True(t, price.PriceNet.Equal(price.PriceGross))
	assert.True(t, price.PriceTax.IsZero())
}

func TestTransformBillingAddress(t *testing.T) {
	tr := newTransformer(t)
	order := sampleOrder()
	order.BillingAddress = &shopifyprotocol.Address{
		FirstName:    "Max",
		LastName:     "Mustermann",
		Address1:     "Rechnungsweg 2",
		City:         "Hamburg",
		ProvinceCode: "HH",
		CountryCode:  "DE",
		Zip:          "20095",
	}

	payload, err := tr.Transform(order, sampleRemaining(), 50)
	require.NoError(t, err)

	require.NotNil(t, payload.BillingAddress)
	assert.Equal(t, "Rechnungsweg 2", payload.BillingAddress.Street)
	assert.Equal(t, "HH", payload.BillingAddress.State)
	assert.Equal(t, "20095", payload.BillingAddress.PostalCode)
}

func TestMapFinancialStatus(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"PAID", "paid"},
		{"PARTIALLY_PAID", "partially_paid"},
		{"PENDING", "pending"},
		{"AUTHORIZED", "authorized"},
		{"REFUNDED", "refunded"},
		{"VOIDED", "voided"},
		{"", "unknown"},
		{"EXPIRED", "expired"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, mapFinancialStatus(tt.input), "input %q", tt.input)
	}
}

func TestShippingMethodDefault(t *testing.T) {
	assert.Equal(t, "Standard", shippingMethod(nil))
	assert.Equal(t, "Standard", shippingMethod(&shopifyprotocol.ShippingLine{}))
	assert.Equal(t, "DHL", shippingMethod(&shopifyprotocol.ShippingLine{Title: "DHL"}))
}
