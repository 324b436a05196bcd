package timeframe

import (
	"errors"
	"fmt"
	"strings"
)

var ErrConstraintViolation = errors.New("timeframe constraint violation")

// Anchor periods accepted for cumulative indicators. These are aggregation
// windows, not chart resolutions, so they form their own closed set.
var anchorPeriods = []string{"Session", "Week", "Month", "Quarter", "Year"}

// Result is the outcome of a constraint check. Reason is empty when Valid.
type Result struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

func ok() Result { return Result{Valid: true} }

func fail(format string, args ...any) Result {
	return Result{Valid: false, Reason: fmt.Sprintf(format, args...)}
}

// Err converts an invalid result into an ErrConstraintViolation-classed
// error. Valid results yield nil.
func (r Result) Err() error {
	if r.Valid {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrConstraintViolation, r.Reason)
}

// IsAnchorPeriod reports whether the token names a known anchor period.
// Matching is case-insensitive.
func IsAnchorPeriod(token string) bool {
	for _, a := range anchorPeriods {
		if strings.EqualFold(a, token) {
			return true
		}
	}
	return false
}

// AnchorPeriods lists the accepted anchor period names.
func AnchorPeriods() []string {
	out := make([]string, len(anchorPeriods))
	copy(out, anchorPeriods)
	return out
}

// Validate checks an indicator configuration against the chart resolution.
// The delta is optional; pass "" when the indicator carries no custom delta.
// Rules, checked in order:
//
//	1. the chart resolution must parse
//	2. the anchor period must be one of the known aggregation windows
//	3. a supplied delta must be a parseable resolution token
//	4. a supplied delta must be strictly finer than the chart resolution;
//	   an equal timeframe is rejected, not passed through
func Validate(chart, anchor, delta string) Result {
	if _, parses := ParseToMinutes(Normalize(chart)); !parses {
		return fail("unparseable chart timeframe %q", chart)
	}
	if !IsAnchorPeriod(anchor) {
		return fail("unknown anchor period %q, expected one of %s", anchor, strings.Join(anchorPeriods, ", "))
	}
	if delta == "" {
		return ok()
	}
	if _, parses := ParseToMinutes(Normalize(delta)); !parses {
		return fail("unknown delta timeframe %q", delta)
	}
	if !IsValidDelta(delta, chart) {
		return fail("delta %q is not strictly below chart timeframe %q, valid deltas: %s",
			delta, chart, strings.Join(ValidDeltasFor(chart), ", "))
	}
	return ok()
}
