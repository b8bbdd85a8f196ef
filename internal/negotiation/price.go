package negotiation

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	priceNoise  = strings.NewReplacer("₹", "", ",", "")
	digitRun    = regexp.MustCompile(`\d+`)
	whitespaces = regexp.MustCompile(`\s+`)
)

// ParsePrice turns a stored or displayed price into whole rupees.
// Numbers pass through (fractions truncated); strings lose "₹", commas and
// whitespace and are parsed as a number, falling back to the first digit run.
// A minus sign is kept, so callers rejecting non-positive prices see it.
// Anything else is absent.
func ParsePrice(v any) (int64, bool) {
	switch p := v.(type) {
	case nil:
		return 0, false
	case int:
		return int64(p), true
	case int32:
		return int64(p), true
	case int64:
		return p, true
	case *int64:
		if p == nil {
			return 0, false
		}
		return *p, true
	case float32:
		return floatPrice(float64(p))
	case float64:
		return floatPrice(p)
	case json.Number:
		if n, err := p.Int64(); err == nil {
			return n, true
		}
		f, err := p.Float64()
		if err != nil {
			return 0, false
		}
		return floatPrice(f)
	case string:
		cleaned := whitespaces.ReplaceAllString(priceNoise.Replace(p), "")
		if n, err := strconv.ParseInt(cleaned, 10, 64); err == nil {
			return n, true
		}
		if f, err := strconv.ParseFloat(cleaned, 64); err == nil {
			return floatPrice(f)
		}
		loc := digitRun.FindStringIndex(cleaned)
		if loc == nil {
			return 0, false
		}
		n, err := strconv.ParseInt(cleaned[loc[0]:loc[1]], 10, 64)
		if err != nil {
			return 0, false
		}
		if loc[0] > 0 && cleaned[loc[0]-1] == '-' {
			n = -n
		}
		return n, true
	}
	return 0, false
}

func floatPrice(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int64(f), true
}
