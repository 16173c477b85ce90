package fulfillment

import (
	"shopsync/internal/common/shopifyprotocol"
)

// RemainingItem pairs a line item with the quantity still to ship.
type RemainingItem struct {
	Line     shopifyprotocol.LineItem
	Quantity int
}

type Result struct {
	Items            []RemainingItem
	HasRemainingWork bool
}

// Reconcile derives the still-fulfillable subset of an order's line items.
// fulfillableQuantity from the source is authoritative; shipment history is
// never consulted, so there is no second source of truth to drift.
// Exhausted items are dropped entirely, never emitted as zero-quantity rows.
func Reconcile(order shopifyprotocol.Order) Result {
	items := make([]RemainingItem, 0, len(order.LineItems.Edges))
	for _, edge := range order.LineItems.Edges {
		if edge.Node.FulfillableQuantity <= 0 {
			continue
		}
		items = append(items, RemainingItem{
			Line:     edge.Node,
			Quantity: edge.Node.FulfillableQuantity,
		})
	}
	return Result{
		Items:            items,
		HasRemainingWork: len(items) > 0,
	}
}

// Summary aggregates an order's fulfillment state for reporting.
type Summary struct {
	TotalLineItems          int
	TotalOrdered            int
	TotalFulfillable        int
	FullyFulfilledItems     int
	PartiallyFulfilledItems int
}

func Summarize(order shopifyprotocol.Order) Summary {
	s := Summary{TotalLineItems: len(order.LineItems.Edges)}
	for _, edge := range order.LineItems.Edges {
		s.TotalOrdered += edge.Node.Quantity
		s.TotalFulfillable += edge.Node.FulfillableQuantity
		switch {
		case edge.Node.FulfillableQuantity == 0:
			s.FullyFulfilledItems++
		case edge.Node.FulfillableQuantity < edge.Node.Quantity:
			s.PartiallyFulfilledItems++
		}
	}
	return s
}

func (s Summary) FullyFulfilled() bool {
	return s.TotalFulfillable == 0
}

func (s Summary) PartiallyFulfilled() bool {
	return s.TotalFulfillable > 0 && s.TotalFulfillable < s.TotalOrdered
}
