package everstox

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"shopsync/internal/common/everstoxprotocol"
	"shopsync/pkg/logging"
)

type Config struct {
	BaseURL  string
	ShopID   string
	APIToken string
	// DryRun prepared requests are never handed to live transport.
	DryRun bool
}

// PreparedRequest is a fully materialized order-creation request. It is
// constructed once per order and never sent by the preparer itself; only an
// external transport acts on the DryRun flag.
type PreparedRequest struct {
	OrderNumber      string
	Method           string
	URL              string
	Headers          map[string]string
	Body             []byte
	Payload          *everstoxprotocol.OrderPayload
	ValidationIssues []string
	DryRun           bool
	CreatedAt        time.Time
}

func (r *PreparedRequest) Valid() bool {
	return len(r.ValidationIssues) == 0
}

// MarshalJSON is the persisted form of a prepared request. The auth header
// is dropped so dumped batches never carry live credentials, and the body
// stays readable JSON instead of base64.
func (r *PreparedRequest) MarshalJSON() ([]byte, error) {
	headers := make(map[string]string, len(r.Headers))
	for key, value := range r.Headers {
		if strings.EqualFold(key, "Authorization") {
			continue
		}
		headers[key] = value
	}
	return json.Marshal(struct {
		OrderNumber      string            `json:"order_number"`
		Method           string            `json:"method"`
		URL              string            `json:"url"`
		Headers          map[string]string `json:"headers"`
		Body             json.RawMessage   `json:"body"`
		ValidationIssues []string          `json:"validation_issues"`
		DryRun           bool              `json:"dry_run"`
		CreatedAt        time.Time         `json:"created_at"`
	}{
		OrderNumber:      r.OrderNumber,
		Method:           r.Method,
		URL:              r.URL,
		Headers:          headers,
		Body:             r.Body,
		ValidationIssues: r.ValidationIssues,
		DryRun:           r.DryRun,
		CreatedAt:        r.CreatedAt,
	})
}

// AsCurl renders an equivalent shell command for inspection.
func (r *PreparedRequest) AsCurl() string {
	keys := make([]string, 0, len(r.Headers))
	for key := range r.Headers {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("curl -X " + r.Method)
	for _, key := range keys {
		fmt.Fprintf(&b, " -H %q", key+": "+r.Headers[key])
	}
	fmt.Fprintf(&b, " -d '%s' '%s'", r.Body, r.URL)
	return b.String()
}

type Preparer struct {
	cfg    Config
	logger *logging.ZapLogger
}

func NewPreparer(cfg Config, logger *logging.ZapLogger) *Preparer {
	return &Preparer{cfg: cfg, logger: logger}
}

// Prepare converts a payload into an inspectable outbound request and
// collects validation issues instead of failing: an invalid request is
// still materialized, it just must never be armed.
func (p *Preparer) Prepare(payload *everstoxprotocol.OrderPayload) (*PreparedRequest, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload for order %s: %w", payload.OrderNumber, err)
	}

	headers := map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json",
	}
	if p.cfg.APIToken != "" {
		headers["Authorization"] = "Bearer " + p.cfg.APIToken
	}

	prepared := &PreparedRequest{
		OrderNumber:      payload.OrderNumber,
		Method:           "POST",
		URL:              fmt.Sprintf("%s/shops/%s/orders", strings.TrimRight(p.cfg.BaseURL, "/"), p.cfg.ShopID),
		Headers:          headers,
		Body:             body,
		Payload:          payload,
		ValidationIssues: validate(payload, p.cfg.ShopID),
		DryRun:           p.cfg.DryRun,
		CreatedAt:        time.Now().UTC(),
	}

	p.logger.DebugCtx(context.Background(), "request prepared",
		zap.String("order_number", prepared.OrderNumber),
		zap.Bool("valid", prepared.Valid()),
		zap.Strings("validation_issues", prepared.ValidationIssues),
	)
	return prepared, nil
}

func validate(payload *everstoxprotocol.OrderPayload, shopID string) []string {
	var issues []string

	if strings.TrimSpace(payload.OrderNumber) == "" {
		issues = append(issues, "missing order number")
	}
	if strings.TrimSpace(shopID) == "" || shopID == everstoxprotocol.PlaceholderValue {
		issues = append(issues, "shop id is not configured")
	}
	if payload.ShopInstanceID == "" || payload.ShopInstanceID == everstoxprotocol.PlaceholderValue {
		issues = append(issues, "shop_instance_id is not configured")
	}

	if len(payload.OrderItems) == 0 {
		issues = append(issues, "no order items")
	}
	for i, item := range payload.OrderItems {
		if item.Product.SKU == "" {
			issues = append(issues, fmt.Sprintf("item %d: missing sku", i+1))
		}
		if item.Quantity <= 0 {
			issues = append(issues, fmt.Sprintf("item %d: invalid quantity %d", i+1, item.Quantity))
		}
		issues = append(issues, negativeAmounts(fmt.Sprintf("item %d", i+1), item.PriceSet)...)
	}

	issues = append(issues, missingAddressFields(payload.ShippingAddress)...)
	issues = append(issues, negativeAmounts("shipping", payload.ShippingPrice)...)

	return issues
}

func missingAddressFields(addr everstoxprotocol.Address) []string {
	var issues []string
	required := []struct {
		name  string
		value string
	}{
		{"first_name", addr.FirstName},
		{"last_name", addr.LastName},
		{"country_code", addr.CountryCode},
		{"city", addr.City},
		{"postal_code", addr.PostalCode},
		{"street", addr.Street},
	}
	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			issues = append(issues, "shipping address: missing "+field.name)
		}
	}
	return issues
}

func negativeAmounts(prefix string, set everstoxprotocol.PriceSet) []string {
	var issues []string
	amounts := []struct {
		name  string
		value decimal.Decimal
	}{
		{"price_net", set.PriceNet},
		{"price_tax", set.PriceTax},
		{"tax_rate", set.TaxRate},
		{"price_gross", set.PriceGross},
		{"discount", set.Discount},
		{"discount_gross", set.DiscountGross},
	}
	for _, amount := range amounts {
		if amount.value.IsNegative() {
			issues = append(issues, fmt.Sprintf("%s: negative %s (%s)", prefix, amount.name, amount.value))
		}
	}
	return issues
}
