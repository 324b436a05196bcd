package timeframe

import (
	"strconv"
	"strings"
)

// Canonical resolution tokens in ascending duration order. Seconds tokens
// carry an "S" suffix, minute tokens are bare integers, "D" and "W" stand
// for one day and one week.
var canonical = []string{
	"1S", "5S", "10S", "15S", "30S",
	"1", "3", "5", "15", "30", "45", "60", "120", "180", "240",
	"D", "W",
}

var ordinals = func() map[string]int {
	m := make(map[string]int, len(canonical))
	for i, tok := range canonical {
		m[tok] = i
	}
	return m
}()

const (
	minutesPerDay   = 24 * 60
	minutesPerWeek  = 7 * minutesPerDay
	minutesPerMonth = 30 * minutesPerDay
)

// Normalize maps token aliases onto the canonical spelling: "1D" and "D"
// are the same resolution, as are "1W" and "W". Unknown tokens pass through
// unchanged.
func Normalize(token string) string {
	switch token {
	case "1D":
		return "D"
	case "1W":
		return "W"
	case "1M":
		return "M"
	}
	return token
}

// ParseToMinutes converts a resolution token to its duration in minutes.
// Supported forms: "<n>S" seconds, bare "<n>" minutes, "<n>D" days,
// "<n>W" weeks, "<n>M" months, with the count defaulting to 1 when the
// suffix stands alone ("D" == "1D"). Unrecognized tokens report ok=false.
func ParseToMinutes(token string) (float64, bool) {
	token = strings.ToUpper(strings.TrimSpace(token))
	if token == "" {
		return 0, false
	}

	suffix := token[len(token)-1]
	digits := token
	switch suffix {
	case 'S', 'D', 'W', 'M':
		digits = token[:len(token)-1]
	default:
		suffix = 0
	}

	n := 1
	if digits != "" {
		var err error
		n, err = strconv.Atoi(digits)
		if err != nil || n <= 0 {
			return 0, false
		}
	}

	switch suffix {
	case 'S':
		return float64(n) / 60.0, true
	case 'D':
		return float64(n) * minutesPerDay, true
	case 'W':
		return float64(n) * minutesPerWeek, true
	case 'M':
		return float64(n) * minutesPerMonth, true
	}
	return float64(n), true
}

// IsValidDelta reports whether delta is strictly finer than chart. Both
// tokens canonical: compare table ordinals. Otherwise fall back to minute
// arithmetic so custom integer-minute charts (75, 188, ...) still order
// correctly. Tokens that parse to nothing are never valid.
func IsValidDelta(delta, chart string) bool {
	delta, chart = Normalize(delta), Normalize(chart)
	di, dok := ordinals[delta]
	ci, cok := ordinals[chart]
	if dok && cok {
		return di < ci
	}
	dm, dok := ParseToMinutes(delta)
	cm, cok := ParseToMinutes(chart)
	if !dok || !cok {
		return false
	}
	return dm < cm
}

// ValidDeltasFor returns the canonical tokens strictly finer than the given
// chart resolution, finest first. An unparseable chart yields nil.
func ValidDeltasFor(chart string) []string {
	if _, ok := ParseToMinutes(Normalize(chart)); !ok {
		return nil
	}
	var out []string
	for _, tok := range canonical {
		if IsValidDelta(tok, chart) {
			out = append(out, tok)
		}
	}
	return out
}

// RecommendedDelta picks a default delta for the chart resolution: the
// finest available (seconds) for intraday charts up to 30 minutes, the
// 1-minute token for anything coarser. Empty when no delta fits.
func RecommendedDelta(chart string) string {
	valid := ValidDeltasFor(chart)
	if len(valid) == 0 {
		return ""
	}
	minutes, ok := ParseToMinutes(Normalize(chart))
	if ok && minutes <= 30 {
		return valid[0]
	}
	for _, tok := range valid {
		if !strings.HasSuffix(tok, "S") {
			return tok
		}
	}
	return valid[0]
}
