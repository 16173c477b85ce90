package transform

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"shopsync/internal/common/everstoxprotocol"
	"shopsync/internal/common/shopifyprotocol"
	"shopsync/internal/shopsync/fulfillment"
	"shopsync/pkg/logging"
)

// MoneySource selects which upstream money field amounts are read from.
// Only the shop-reporting currency is implemented; presentment currencies
// are the documented extension point.
type MoneySource string

const MoneyShop MoneySource = "shop"

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

type Options struct {
	ShopInstanceID string
	MoneySource    MoneySource
}

// TransformationError reports required destination fields absent on the
// source order. Not recoverable by substitution; the order is skipped.
type TransformationError struct {
	OrderNumber   string
	MissingFields []string
}

func (e *TransformationError) Error() string {
	return fmt.Sprintf("order %s: missing required fields: %s",
		e.OrderNumber, strings.Join(e.MissingFields, ", "))
}

type Transformer struct {
	opts   Options
	logger *logging.ZapLogger
}

func New(opts Options, logger *logging.ZapLogger) (*Transformer, error) {
	if opts.MoneySource == "" {
		opts.MoneySource = MoneyShop
	}
	if opts.MoneySource != MoneyShop {
		return nil, fmt.Errorf("money source %q not supported", opts.MoneySource)
	}
	return &Transformer{opts: opts, logger: logger}, nil
}

// Transform builds the destination payload from an order, its reconciled
// remaining items and the resolved priority. Deterministic: the same input
// always produces the same payload.
//
// Tax model: the shop-currency gross is authoritative, the rate is the
// first tax line (a single tax line per position is an explicit
// simplification; further jurisdictions are ignored), and
// net = gross / (1 + rate/100).
func (t *Transformer) Transform(
	order shopifyprotocol.Order,
	remaining []fulfillment.RemainingItem,
	priority int,
) (*everstoxprotocol.OrderPayload, error) {
	if err := t.checkRequiredFields(order); err != nil {
		return nil, err
	}

	currency := t.currency(order)
	items := make([]everstoxprotocol.OrderItem, 0, len(remaining))
	for _, item := range remaining {
		items = append(items, t.transformItem(item, currency))
	}

	payload := &everstoxprotocol.OrderPayload{
		ShopInstanceID:        t.opts.ShopInstanceID,
		OrderNumber:           order.Name,
		OrderDate:             order.CreatedAt.UTC().Format(time.RFC3339),
		CustomerEmail:         order.Email,
		FinancialStatus:       mapFinancialStatus(order.DisplayFinancialStatus),
		Currency:              currency,
		OrderPriority:         priority,
		RequestedWarehouseID:  everstoxprotocol.NewPlaceholder(),
		PaymentMethodID:       everstoxprotocol.NewPlaceholder(),
		RequestedDeliveryDate: everstoxprotocol.NewPlaceholder(),
		ShippingMethod:        shippingMethod(order.ShippingLine),
		ShippingAddress:       transformAddress(order.ShippingAddress),
		ShippingPrice:         t.transformShippingPrice(order.ShippingLine, currency),
		CustomAttributes: []everstoxprotocol.CustomAttribute{
			{Key: "source_order_id", Value: order.ID},
			{Key: "source_tags", Value: strings.Join(order.Tags, ",")},
		},
		OrderItems:  items,
		Attachments: []everstoxprotocol.Attachment{},
	}
	if order.BillingAddress != nil {
		billing := transformAddress(order.BillingAddress)
		payload.BillingAddress = &billing
	}

	t.logger.DebugCtx(context.Background(), "order transformed",
		zap.String("order_number", order.Name),
		zap.Int("items", len(items)),
		zap.Int("priority", priority),
	)
	return payload, nil
}

func (t *Transformer) checkRequiredFields(order shopifyprotocol.Order) error {
	var missing []string
	addr := order.ShippingAddress
	if addr == nil {
		missing = []string{"shipping_address"}
	} else {
		required := []struct {
			name  string
			value string
		}{
			{"shipping_address.first_name", addr.FirstName},
			{"shipping_address.last_name", addr.LastName},
			{"shipping_address.country_code", addr.CountryCode},
			{"shipping_address.city", addr.City},
			{"shipping_address.zip", addr.Zip},
			{"shipping_address.address1", addr.Address1},
		}
		for _, field := range required {
			if strings.TrimSpace(field.value) == "" {
				missing = append(missing, field.name)
			}
		}
	}
	if len(missing) > 0 {
		return &TransformationError{OrderNumber: order.Name, MissingFields: missing}
	}
	return nil
}

func (t *Transformer) transformItem(item fulfillment.RemainingItem, currency string) everstoxprotocol.OrderItem {
	line := item.Line

	gross := shopAmount(line.OriginalUnitPriceSet)
	discounted := gross
	if line.DiscountedUnitPriceSet != nil {
		discounted = shopAmount(line.DiscountedUnitPriceSet)
	}
	discountGross := gross.Sub(discounted)
	if discountGross.IsNegative() {
		discountGross = decimal.Zero
	}

	rate := firstTaxRate(line.TaxLines)
	priceSet := buildPriceSet(discounted, rate, discountGross, currency)

	return everstoxprotocol.OrderItem{
		Quantity: item.Quantity,
		Product: everstoxprotocol.Product{
			SKU:  line.SKU,
			Name: line.Name,
		},
		PriceSet: priceSet,
		CustomAttributes: []everstoxprotocol.CustomAttribute{
			{Key: "source_line_item_id", Value: line.ID},
			{Key: "ordered_quantity", Value: strconv.Itoa(line.Quantity)},
		},
	}
}

func (t *Transformer) transformShippingPrice(line *shopifyprotocol.ShippingLine, currency string) everstoxprotocol.PriceSet {
	if line == nil {
		return buildPriceSet(decimal.Zero, decimal.Zero, decimal.Zero, currency)
	}
	gross := shopAmount(line.OriginalPriceSet)
	rate := firstTaxRate(line.TaxLines)
	return buildPriceSet(gross, rate, decimal.Zero, currency)
}

// buildPriceSet derives the net/tax split from a gross amount and a
// percentage rate. All amounts round to cents.
func buildPriceSet(gross, rate, discountGross decimal.Decimal, currency string) everstoxprotocol.PriceSet {
	net := gross
	if rate.IsPositive() {
		net = gross.Div(one.Add(rate.Div(hundred)))
	}
	net = net.Round(2)
	gross = gross.Round(2)

	discount := discountGross
	if rate.IsPositive() && discountGross.IsPositive() {
		discount = discountGross.Div(one.Add(rate.Div(hundred)))
	}

	return everstoxprotocol.PriceSet{
		Currency:      currency,
		PriceNet:      net,
		PriceTax:      gross.Sub(net),
		TaxRate:       rate,
		PriceGross:    gross,
		Discount:      discount.Round(2),
		DiscountGross: discountGross.Round(2),
	}
}

func shippingMethod(line *shopifyprotocol.ShippingLine) string {
	if line == nil || line.Title == "" {
		return "Standard"
	}
	return line.Title
}

func transformAddress(addr *shopifyprotocol.Address) everstoxprotocol.Address {
	if addr == nil {
		return everstoxprotocol.Address{}
	}
	state := addr.ProvinceCode
	if state == "" {
		state = addr.Province
	}
	return everstoxprotocol.Address{
		FirstName:   addr.FirstName,
		LastName:    addr.LastName,
		Company:     addr.Company,
		Street:      addr.Address1,
		Street2:     addr.Address2,
		City:        addr.City,
		State:       state,
		CountryCode: addr.CountryCode,
		PostalCode:  addr.Zip,
		Phone:       addr.Phone,
	}
}

func (t *Transformer) currency(order shopifyprotocol.Order) string {
	if order.TotalPriceSet != nil && order.TotalPriceSet.ShopMoney.CurrencyCode != "" {
		return order.TotalPriceSet.ShopMoney.CurrencyCode
	}
	return order.CurrencyCode
}

// shopAmount reads the shop-currency amount of a price set; zero when the
// set is absent.
func shopAmount(set *shopifyprotocol.MoneySet) decimal.Decimal {
	if set == nil {
		return decimal.Zero
	}
	return set.ShopMoney.Amount
}

// firstTaxRate converts Shopify's fractional rate (0.19) to a percentage (19).
func firstTaxRate(lines []shopifyprotocol.TaxLine) decimal.Decimal {
	if len(lines) == 0 {
		return decimal.Zero
	}
	return lines[0].Rate.Mul(hundred)
}

func mapFinancialStatus(status string) string {
	switch strings.ToUpper(status) {
	case "PAID":
		return "paid"
	case "PARTIALLY_PAID":
		return "partially_paid"
	case "PENDING":
		return "pending"
	case "AUTHORIZED":
		return "authorized"
	case "PARTIALLY_REFUNDED":
		return "partially_refunded"
	case "REFUNDED":
		return "refunded"
	case "VOIDED":
		return "voided"
	case "":
		return "unknown"
	default:
		return strings.ToLower(status)
	}
}
