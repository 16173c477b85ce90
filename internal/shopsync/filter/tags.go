package filter

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"shopsync/pkg/logging"
)

type MatchMode string

const (
	MatchExact    MatchMode = "exact"
	MatchContains MatchMode = "contains"
	MatchRegex    MatchMode = "regex"
)

func ParseMatchMode(value string) (MatchMode, error) {
	switch MatchMode(strings.ToLower(value)) {
	case MatchExact:
		return MatchExact, nil
	case MatchContains:
		return MatchContains, nil
	case MatchRegex:
		return MatchRegex, nil
	}
	return "", fmt.Errorf("unknown tag match mode %q", value)
}

// Decision is the per-order filter outcome.
type Decision struct {
	OrderID    string
	Include    bool
	Reason     string
	MatchedTag string
}

// matcher compares one configured pattern against one tag. Patterns and
// tags arrive lowercased except for regex mode, which compiles with (?i).
type matcher interface {
	matches(pattern, tag string) bool
}

type exactMatcher struct{}

func (exactMatcher) matches(pattern, tag string) bool {
	return pattern == tag
}

type containsMatcher struct{}

func (containsMatcher) matches(pattern, tag string) bool {
	return strings.Contains(tag, pattern) || strings.Contains(pattern, tag)
}

type regexMatcher struct {
	compiled map[string]*regexp.Regexp
}

func (m regexMatcher) matches(pattern, tag string) bool {
	re, ok := m.compiled[pattern]
	if !ok {
		// Malformed pattern: never matches.
		return false
	}
	return re.MatchString(tag)
}

// TagFilter decides order inclusion from its tag set. Blacklist wins over
// whitelist; an empty whitelist means no whitelist constraint.
type TagFilter struct {
	whitelist []string
	blacklist []string
	mode      MatchMode
	matcher   matcher
	logger    *logging.ZapLogger
}

// NewTagFilter builds the filter. Malformed regex patterns are a
// configuration problem of that pattern only: each one is reported once in
// the returned warnings and then never matches.
func NewTagFilter(whitelist, blacklist []string, mode MatchMode, logger *logging.ZapLogger) (*TagFilter, []string) {
	f := &TagFilter{
		whitelist: lowerAll(whitelist),
		blacklist: lowerAll(blacklist),
		mode:      mode,
		logger:    logger,
	}

	var warnings []string
	switch mode {
	case MatchRegex:
		compiled := make(map[string]*regexp.Regexp)
		for _, pattern := range append(append([]string{}, f.whitelist...), f.blacklist...) {
			if _, ok := compiled[pattern]; ok {
				continue
			}
			re, err := regexp.Compile("(?i)" + pattern)
			if err != nil {
				warning := fmt.Sprintf("malformed tag pattern %q: %v", pattern, err)
				warnings = append(warnings, warning)
				logger.WarnCtx(context.Background(), "skipping malformed tag pattern",
					zap.String("pattern", pattern),
					zap.Error(err),
				)
				continue
			}
			compiled[pattern] = re
		}
		f.matcher = regexMatcher{compiled: compiled}
	case MatchContains:
		f.matcher = containsMatcher{}
	default:
		f.matcher = exactMatcher{}
	}
	return f, warnings
}

// Decide applies the deny-first policy to one order's tags.
func (f *TagFilter) Decide(orderID string, tags []string) Decision {
	if tag := f.findMatch(f.blacklist, tags); tag != "" {
		return Decision{
			OrderID:    orderID,
			Include:    false,
			Reason:     fmt.Sprintf("blacklisted: %s", tag),
			MatchedTag: tag,
		}
	}

	if len(f.whitelist) > 0 {
		if tag := f.findMatch(f.whitelist, tags); tag != "" {
			return Decision{
				OrderID:    orderID,
				Include:    true,
				Reason:     fmt.Sprintf("whitelisted: %s", tag),
				MatchedTag: tag,
			}
		}
		return Decision{
			OrderID: orderID,
			Include: false,
			Reason:  "not whitelisted",
		}
	}

	return Decision{
		OrderID: orderID,
		Include: true,
		Reason:  "no whitelist constraint",
	}
}

// findMatch returns the first order tag (original casing) hit by any
// configured pattern.
func (f *TagFilter) findMatch(patterns []string, tags []string) string {
	for _, tag := range tags {
		lowered := strings.ToLower(strings.TrimSpace(tag))
		if lowered == "" {
			// A blank tag would match every contains pattern and its
			// empty trimmed form reads as "no match" to callers.
			continue
		}
		for _, pattern := range patterns {
			if f.matcher.matches(pattern, lowered) {
				return strings.TrimSpace(tag)
			}
		}
	}
	return ""
}

func lowerAll(values []string) []string {
	result := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		result = append(result, strings.ToLower(trimmed))
	}
	return result
}
