package pipeline

import (
	"time"

	"github.com/shopspring/decimal"
)

// Summary reports one pipeline run. A defect in a single order never aborts
// the batch, so skipped and invalid orders show up here instead.
type Summary struct {
	Fetched          int             `json:"fetched"`
	Included         int             `json:"included"`
	Excluded         int             `json:"excluded"`
	ExclusionReasons map[string]int  `json:"exclusion_reasons"`
	Skipped          int             `json:"skipped"`
	Prepared         int             `json:"prepared"`
	Valid            int             `json:"valid"`
	Invalid          int             `json:"invalid"`
	TotalItems       int             `json:"total_items"`
	TotalGross       decimal.Decimal `json:"total_gross"`
	Currency         string          `json:"currency"`
	Warnings         []string        `json:"warnings,omitempty"`
	PreparedAt       time.Time       `json:"prepared_at"`
}

func newSummary() *Summary {
	return &Summary{
		ExclusionReasons: make(map[string]int),
		TotalGross:       decimal.Zero,
		PreparedAt:       time.Now().UTC(),
	}
}
