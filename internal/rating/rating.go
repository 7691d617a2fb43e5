package rating

import (
	"math"
	"strconv"
	"strings"

	"github.com/danielpatrickdp/soil-risk/go-engine/internal/catalog"
)

// #region reasons
// Reasons attached to unrated values.
const (
	ReasonNotNumeric      = "not_numeric"
	ReasonUnknownCategory = "unknown_category"
	ReasonUnknownCode     = "unknown_parameter"
	ReasonRejected        = "rejected"
	ReasonEmpty           = "empty"
)
// #endregion reasons

// #region rating
// Rating is the score of one parameter reading. An unrated reading carries
// Value 0 and a Reason so callers can warn about it.
type Rating struct {
	Code    string `json:"code"`
	Value   int    `json:"value"`
	Unrated bool   `json:"unrated,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Clamped bool   `json:"clamped,omitempty"` // value was outside the bucket domain
}

func unrated(code, reason string) Rating {
	return Rating{Code: code, Unrated: true, Reason: reason}
}
// #endregion rating

// #region rate
// Rate maps a raw reading to the parameter's rating. It never fails:
// unusable input yields an unrated Rating. Formula parameters are scored by
// their formula, not here, and always rate 0, as do plain measurements.
func Rate(p catalog.Parameter, raw string) Rating {
	if p.Rejected != "" {
		return unrated(p.Code, ReasonRejected)
	}
	switch p.Kind {
	case catalog.KindBucket:
		return rateBucket(p, raw)
	case catalog.KindCategorical:
		return rateCategory(p, raw)
	case catalog.KindFormula, catalog.KindMeasurement:
		return Rating{Code: p.Code}
	default:
		return unrated(p.Code, ReasonRejected)
	}
}

func rateBucket(p catalog.Parameter, raw string) Rating {
	if strings.TrimSpace(raw) == "" {
		return unrated(p.Code, ReasonEmpty)
	}
	v, ok := ParseNumber(raw)
	if !ok {
		return unrated(p.Code, ReasonNotNumeric)
	}
	if len(p.Buckets) == 0 {
		return unrated(p.Code, ReasonRejected)
	}

	first := p.Buckets[0]
	last := p.Buckets[len(p.Buckets)-1]
	switch {
	case v < first.Lower:
		return Rating{Code: p.Code, Value: first.Rating, Clamped: true}
	case v > last.Upper:
		return Rating{Code: p.Code, Value: last.Rating, Clamped: true}
	}
	for i, b := range p.Buckets {
		if b.Contains(v, i == len(p.Buckets)-1) {
			return Rating{Code: p.Code, Value: b.Rating}
		}
	}
	// unreachable for validated buckets
	return unrated(p.Code, ReasonRejected)
}

func rateCategory(p catalog.Parameter, raw string) Rating {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return unrated(p.Code, ReasonEmpty)
	}
	for name, r := range p.Categories {
		if strings.ToLower(name) == key {
			return Rating{Code: p.Code, Value: r}
		}
	}
	return unrated(p.Code, ReasonUnknownCategory)
}
// #endregion rate

// #region parse
// ParseNumber reads a field-entered number. A single comma is accepted as
// decimal separator, except before exactly three digits with a non-zero
// integer part ("1,200"), which could be a thousands separator and is
// refused. NaN and infinities are refused.
func ParseNumber(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	if strings.Contains(s, ",") && !strings.Contains(s, ".") {
		if ambiguousComma(s) {
			return 0, false
		}
		s = strings.Replace(s, ",", ".", 1)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func ambiguousComma(s string) bool {
	whole, frac, _ := strings.Cut(s, ",")
	whole = strings.TrimLeft(whole, "+-")
	if len(frac) != 3 || whole == "" || strings.TrimLeft(whole, "0") == "" {
		return false
	}
	for _, r := range frac {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
// #endregion parse
