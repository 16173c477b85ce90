package shopify

import (
	"time"

	"shopsync/internal/common/shopifyprotocol"
)

// Defaults assumed until the first response reports real bucket values.
const (
	defaultAvailablePoints = 1000
	defaultRestoreRate     = 50

	// Safety margin on the proactive wait so a marginal bucket refill
	// does not still trip the server-side limit.
	proactiveWaitBuffer = 1.1
)

// RateBudget tracks the server-reported query-cost bucket. It belongs to a
// single fetch session, is reset at session start and is only written right
// after the response that produced the values.
type RateBudget struct {
	Available   float64
	RestoreRate float64
	ObservedAt  time.Time
}

func newSessionBudget(now time.Time) RateBudget {
	return RateBudget{
		Available:   defaultAvailablePoints,
		RestoreRate: defaultRestoreRate,
		ObservedAt:  now,
	}
}

// Update replaces the local state with the server-reported values. The
// server wins over any local estimate.
func (b *RateBudget) Update(status shopifyprotocol.ThrottleStatus, now time.Time) {
	b.Available = status.CurrentlyAvailable
	if status.RestoreRate > 0 {
		b.RestoreRate = status.RestoreRate
	}
	b.ObservedAt = now
}

// WaitFor returns how long to sleep before a request of the given cost can
// run without being rejected, or zero when the bucket already covers it.
func (b *RateBudget) WaitFor(nextQueryCost float64) time.Duration {
	if b.Available >= nextQueryCost {
		return 0
	}
	if b.RestoreRate <= 0 {
		return 0
	}
	needed := nextQueryCost - b.Available
	seconds := needed / b.RestoreRate * proactiveWaitBuffer
	return time.Duration(seconds * float64(time.Second))
}
