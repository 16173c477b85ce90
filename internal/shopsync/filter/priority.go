package filter

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	MinPriority     = 1
	MaxPriority     = 99
	DefaultPriority = 50
)

// Tags like "priority:80", "prio-7", "PRIORITY_12".
var numericPriorityPattern = regexp.MustCompile(`(?i)^(?:priority|prio)[:_-](-?\d+)$`)

// Keyword matching is a case-insensitive substring check, first keyword in
// this order wins within a tag.
var keywordPriorities = []struct {
	Keyword string
	Value   int
}{
	{"urgent", 90},
	{"critical", 90},
	{"asap", 90},
	{"high", 75},
	{"important", 75},
	{"normal", 50},
	{"standard", 50},
	{"low", 25},
}

// PriorityResult always carries a value in [MinPriority, MaxPriority].
// Warnings annotate clamped out-of-range tags; they are never failures.
type PriorityResult struct {
	Value     int
	SourceTag string
	Warnings  []string
}

// ResolvePriority derives an order priority from its tags. Resolution order:
// numeric pattern (first tag in sequence wins, value clamped), then keyword
// mapping, then the default. Total: it always returns a usable value.
func ResolvePriority(tags []string) PriorityResult {
	for _, tag := range tags {
		trimmed := strings.TrimSpace(tag)
		match := numericPriorityPattern.FindStringSubmatch(trimmed)
		if match == nil {
			continue
		}
		// On a range error Atoi returns the saturated int, so the clamp
		// below still applies; anything else cannot happen for a \d+ match.
		value, err := strconv.Atoi(match[1])
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			continue
		}
		result := PriorityResult{Value: value, SourceTag: trimmed}
		if value < MinPriority {
			result.Value = MinPriority
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("priority %d below minimum, clamped to %d (tag %q)", value, MinPriority, trimmed))
		} else if value > MaxPriority {
			result.Value = MaxPriority
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("priority %d above maximum, clamped to %d (tag %q)", value, MaxPriority, trimmed))
		}
		return result
	}

	for _, tag := range tags {
		lowered := strings.ToLower(strings.TrimSpace(tag))
		for _, kw := range keywordPriorities {
			if strings.Contains(lowered, kw.Keyword) {
				return PriorityResult{Value: kw.Value, SourceTag: strings.TrimSpace(tag)}
			}
		}
	}

	return PriorityResult{Value: DefaultPriority}
}
