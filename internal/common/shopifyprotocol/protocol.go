package shopifyprotocol

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wire types for the Shopify Admin GraphQL orders query. Field names and
// nesting mirror the GraphQL response exactly; optional objects are pointers
// so a missing object is distinguishable from a zero one.

type Money struct {
	Amount       decimal.Decimal `json:"amount"`
	CurrencyCode string          `json:"currencyCode"`
}

type MoneySet struct {
	ShopMoney Money `json:"shopMoney"`
}

type TaxLine struct {
	Rate     decimal.Decimal `json:"rate"`
	PriceSet MoneySet        `json:"priceSet"`
}

type Address struct {
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Company      string `json:"company"`
	Address1     string `json:"address1"`
	Address2     string `json:"address2"`
	City         string `json:"city"`
	Province     string `json:"province"`
	ProvinceCode string `json:"provinceCode"`
	Country      string `json:"country"`
	CountryCode  string `json:"countryCodeV2"`
	Zip          string `json:"zip"`
	Phone        string `json:"phone"`
}

type ShippingLine struct {
	Title            string    `json:"title"`
	OriginalPriceSet *MoneySet `json:"originalPriceSet"`
	TaxLines         []TaxLine `json:"taxLines"`
}

type LineItem struct {
	ID                     string    `json:"id"`
	SKU                    string    `json:"sku"`
	Name                   string    `json:"name"`
	Quantity               int       `json:"quantity"`
	FulfillableQuantity    int       `json:"fulfillableQuantity"`
	OriginalUnitPriceSet   *MoneySet `json:"originalUnitPriceSet"`
	DiscountedUnitPriceSet *MoneySet `json:"discountedUnitPriceSet"`
	TaxLines               []TaxLine `json:"taxLines"`
}

type LineItemEdge struct {
	Node LineItem `json:"node"`
}

type LineItemConnection struct {
	Edges []LineItemEdge `json:"edges"`
}

type Order struct {
	ID                       string             `json:"id"`
	Name                     string             `json:"name"`
	CreatedAt                time.Time          `json:"createdAt"`
	DisplayFinancialStatus   string             `json:"displayFinancialStatus"`
	DisplayFulfillmentStatus string             `json:"displayFulfillmentStatus"`
	Tags                     []string           `json:"tags"`
	Email                    string             `json:"email"`
	CurrencyCode             string             `json:"currencyCode"`
	TotalPriceSet            *MoneySet          `json:"totalPriceSet"`
	TotalTaxSet              *MoneySet          `json:"totalTaxSet"`
	ShippingLine             *ShippingLine      `json:"shippingLine"`
	ShippingAddress          *Address           `json:"shippingAddress"`
	BillingAddress           *Address           `json:"billingAddress"`
	LineItems                LineItemConnection `json:"lineItems"`
}

type OrderEdge struct {
	Node Order `json:"node"`
}

type PageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

type OrderConnection struct {
	PageInfo PageInfo    `json:"pageInfo"`
	Edges    []OrderEdge `json:"edges"`
}

type OrdersData struct {
	Orders OrderConnection `json:"orders"`
}

type GraphQLErrorItem struct {
	Message string `json:"message"`
}

// ThrottleStatus is the server-reported cost bucket state. The budget model
// trusts these values over any local estimate.
type ThrottleStatus struct {
	CurrentlyAvailable float64 `json:"currentlyAvailable"`
	RestoreRate        float64 `json:"restoreRate"`
	MaximumAvailable   float64 `json:"maximumAvailable"`
}

type CostExtension struct {
	RequestedQueryCost float64        `json:"requestedQueryCost"`
	ActualQueryCost    float64        `json:"actualQueryCost"`
	ThrottleStatus     ThrottleStatus `json:"throttleStatus"`
}

type Extensions struct {
	Cost *CostExtension `json:"cost"`
}

type Response struct {
	Data       *OrdersData        `json:"data"`
	Errors     []GraphQLErrorItem `json:"errors"`
	Extensions *Extensions        `json:"extensions"`
}
