package shopify

import (
	"fmt"
	"strings"
	"time"
)

const pageSize = 50

var ordersQuery = fmt.Sprintf(`
query FetchOrders($cursor: String, $query: String!) {
  orders(first: %d, after: $cursor, query: $query) {
    pageInfo {
      hasNextPage
      endCursor
    }
    edges {
      node {
        id
        name
        createdAt
        displayFinancialStatus
        displayFulfillmentStatus
        tags
        email
        currencyCode
        totalPriceSet {
          shopMoney {
            amount
            currencyCode
          }
        }
        totalTaxSet {
          shopMoney {
            amount
            currencyCode
          }
        }
        shippingLine {
          title
          originalPriceSet {
            shopMoney {
              amount
              currencyCode
            }
          }
          taxLines {
            rate
            priceSet {
              shopMoney {
                amount
              }
            }
          }
        }
        shippingAddress {
          firstName
          lastName
          company
          address1
          address2
          city
          province
          provinceCode
          country
          countryCodeV2
          zip
          phone
        }
        billingAddress {
          firstName
          lastName
          company
          address1
          address2
          city
          province
          provinceCode
          country
          countryCodeV2
          zip
          phone
        }
        lineItems(first: 100) {
          edges {
            node {
              id
              sku
              name
              quantity
              fulfillableQuantity
              originalUnitPriceSet {
                shopMoney {
                  amount
                  currencyCode
                }
              }
              discountedUnitPriceSet {
                shopMoney {
                  amount
                  currencyCode
                }
              }
              taxLines {
                rate
                priceSet {
                  shopMoney {
                    amount
                  }
                }
              }
            }
          }
        }
      }
    }
  }
}
`, pageSize)

// FetchOptions selects the order window. TagQuery optionally narrows the
// Shopify search expression to a single tag.
type FetchOptions struct {
	WindowStart time.Time
	WindowEnd   time.Time
	TagQuery    string
}

// BuildOrdersFilter renders the Shopify search expression for paid orders
// that still have something to ship inside the window.
func BuildOrdersFilter(opts FetchOptions) string {
	parts := []string{
		fmt.Sprintf("created_at:>=%s", opts.WindowStart.UTC().Format("2006-01-02")),
	}
	if !opts.WindowEnd.IsZero() {
		parts = append(parts, fmt.Sprintf("created_at:<=%s", opts.WindowEnd.UTC().Format("2006-01-02")))
	}
	parts = append(parts,
		"financial_status:paid",
		"(fulfillment_status:unfulfilled OR fulfillment_status:partial)",
	)
	if opts.TagQuery != "" {
		parts = append(parts, fmt.Sprintf("tag:%s", opts.TagQuery))
	}
	return strings.Join(parts, " AND ")
}
