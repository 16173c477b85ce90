package everstoxprotocol

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Wire types for the Everstox order-creation endpoint
// (POST /shops/{shop_id}/orders). Field names are part of the external
// contract and must not drift.

func init() {
	// The endpoint expects JSON numbers, not quoted decimals.
	decimal.MarshalJSONWithoutQuotes = true
}

// PlaceholderValue is what a placeholder Ref serializes to. It is a fixed
// marker, never a usable identifier, so validators can tell "explicitly not
// configured" apart from both an empty string and a real id.
const PlaceholderValue = "__PLACEHOLDER__"

// Ref is an optional reference field (warehouse id, payment method id, ...)
// that is either a real value or an explicit placeholder.
type Ref struct {
	Value       string
	Placeholder bool
}

func NewRef(value string) Ref {
	return Ref{Value: value}
}

func NewPlaceholder() Ref {
	return Ref{Placeholder: true}
}

func (r Ref) MarshalJSON() ([]byte, error) {
	if r.Placeholder {
		return json.Marshal(PlaceholderValue)
	}
	return json.Marshal(r.Value)
}

func (r *Ref) UnmarshalJSON(data []byte) error {
	var value string
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	if value == PlaceholderValue {
		*r = Ref{Placeholder: true}
		return nil
	}
	*r = Ref{Value: value}
	return nil
}

type Address struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Company     string `json:"company"`
	Street      string `json:"street"`
	Street2     string `json:"street_2"`
	City        string `json:"city"`
	State       string `json:"state"`
	CountryCode string `json:"country_code"`
	PostalCode  string `json:"postal_code"`
	Phone       string `json:"phone"`
}

// PriceSet is the per-position price breakdown. All amounts are in the
// order's shop-reporting currency; TaxRate is a percentage.
type PriceSet struct {
	Currency      string          `json:"currency"`
	PriceNet      decimal.Decimal `json:"price_net"`
	PriceTax      decimal.Decimal `json:"price_tax"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	PriceGross    decimal.Decimal `json:"price_gross"`
	Discount      decimal.Decimal `json:"discount"`
	DiscountGross decimal.Decimal `json:"discount_gross"`
}

type Product struct {
	SKU  string `json:"sku"`
	Name string `json:"name"`
}

type CustomAttribute struct {
	Key   string `json:"attribute_key"`
	Value string `json:"attribute_value"`
}

type Attachment struct {
	FileName string `json:"file_name"`
	URL      string `json:"url"`
}

type OrderItem struct {
	// Quantity is the remaining fulfillable quantity, never the
	// originally ordered one.
	Quantity         int               `json:"quantity"`
	Product          Product           `json:"product"`
	PriceSet         PriceSet          `json:"price_set"`
	CustomAttributes []CustomAttribute `json:"custom_attributes"`
	BatchNumber      *string           `json:"batch_number,omitempty"`
	PickingHint      *string           `json:"picking_hint,omitempty"`
}

type OrderPayload struct {
	ShopInstanceID        string            `json:"shop_instance_id"`
	OrderNumber           string            `json:"order_number"`
	OrderDate             string            `json:"order_date"`
	CustomerEmail         string            `json:"customer_email"`
	FinancialStatus       string            `json:"financial_status"`
	Currency              string            `json:"currency"`
	OrderPriority         int               `json:"order_priority"`
	RequestedWarehouseID  Ref               `json:"requested_warehouse_id"`
	PaymentMethodID       Ref               `json:"payment_method_id"`
	RequestedDeliveryDate Ref               `json:"requested_delivery_date"`
	ShippingMethod        string            `json:"shipping_method"`
	ShippingAddress       Address           `json:"shipping_address"`
	BillingAddress        *Address          `json:"billing_address"`
	ShippingPrice         PriceSet          `json:"shipping_price"`
	CustomAttributes      []CustomAttribute `json:"custom_attributes"`
	OrderItems            []OrderItem       `json:"order_items"`
	Attachments           []Attachment      `json:"attachments"`
}
