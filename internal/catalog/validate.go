package catalog

import (
	"fmt"
	"math"
	"strings"
)

// #region validate-parameter
// validateParameter returns an empty string when the parameter can be served.
func validateParameter(p Parameter) string {
	if strings.TrimSpace(p.Code) == "" {
		return "missing code"
	}
	switch p.Kind {
	case KindBucket:
		return validateBuckets(p.Buckets)
	case KindCategorical:
		if len(p.Categories) == 0 {
			return "categorical parameter has no categories"
		}
		folded := make(map[string]string, len(p.Categories))
		for name := range p.Categories {
			key := strings.ToLower(strings.TrimSpace(name))
			if other, dup := folded[key]; dup {
				return fmt.Sprintf("categories %q and %q differ only in case", other, name)
			}
			folded[key] = name
		}
		return ""
	case KindFormula:
		if p.Formula != FormulaCoatingLoss {
			return fmt.Sprintf("unknown formula %q", p.Formula)
		}
		return ""
	case KindMeasurement:
		return ""
	default:
		return fmt.Sprintf("unknown kind %q", p.Kind)
	}
}

// validateBuckets checks that buckets are ordered, contiguous and non-overlapping.
func validateBuckets(buckets []Bucket) string {
	if len(buckets) == 0 {
		return "bucket parameter has no buckets"
	}
	for i, b := range buckets {
		if math.IsNaN(b.Lower) || math.IsNaN(b.Upper) {
			return fmt.Sprintf("bucket %d has NaN bound", i)
		}
		if b.Lower >= b.Upper {
			return fmt.Sprintf("bucket %d is empty: [%g, %g)", i, b.Lower, b.Upper)
		}
		if i == 0 {
			continue
		}
		prev := buckets[i-1]
		switch {
		case b.Lower < prev.Upper:
			return fmt.Sprintf("bucket %d overlaps bucket %d at %g", i, i-1, b.Lower)
		case b.Lower > prev.Upper:
			return fmt.Sprintf("gap between bucket %d and %d: [%g, %g)", i-1, i, prev.Upper, b.Lower)
		}
	}
	return ""
}

// validateCoatingLoss checks the constants a coating_loss formula reads.
func validateCoatingLoss(c CoatingLoss) string {
	fields := []struct {
		name     string
		v        float64
		positive bool
	}{
		{"resistivity_floor", c.ResistivityFloor, false},
		{"chloride_ceiling", c.ChlorideCeiling, false},
		{"ph_min", c.PHMin, false},
		{"ph_max", c.PHMax, false},
		{"aggressive_mean", c.AggressiveMean, true},
		{"aggressive_spread", c.AggressiveSpread, false},
		{"non_aggressive_mean", c.NonAggressiveMean, true},
		{"non_aggressive_spread", c.NonAggressiveSpread, false},
		{"base_material_loss_rate", c.BaseMaterialLossRate, false},
		{"default_thickness", c.DefaultThickness, true},
	}
	for _, f := range fields {
		switch {
		case math.IsNaN(f.v) || math.IsInf(f.v, 0):
			return fmt.Sprintf("coating_loss %s is not finite", f.name)
		case f.positive && f.v <= 0:
			return fmt.Sprintf("coating_loss %s must be positive", f.name)
		case f.v < 0:
			return fmt.Sprintf("coating_loss %s must not be negative", f.name)
		}
	}
	if c.PHMin >= c.PHMax {
		return fmt.Sprintf("coating_loss ph_min %g is not below ph_max %g", c.PHMin, c.PHMax)
	}
	return ""
}
// #endregion validate-parameter

// #region validate-thresholds
// validateThresholds requires strictly descending minimums and a trailing catch-all.
func validateThresholds(t Thresholds) string {
	if len(t) == 0 {
		return "empty threshold table"
	}
	for i, row := range t {
		if row.Class == "" {
			return fmt.Sprintf("threshold %d has no class", i)
		}
		last := i == len(t)-1
		if last {
			if row.Min != nil {
				return "last threshold must be the catch-all (no min)"
			}
			continue
		}
		if row.Min == nil {
			return fmt.Sprintf("threshold %d has no min but is not last", i)
		}
		if i > 0 && *row.Min >= *t[i-1].Min {
			return fmt.Sprintf("threshold %d min %g is not below %g", i, *row.Min, *t[i-1].Min)
		}
	}
	return ""
}
// #endregion validate-thresholds

// #region validate-standard
// validate checks a standard and marks rejected parameters in place.
// It returns the issues found and whether the standard as a whole is usable.
func validate(std *Standard) ([]Issue, bool) {
	var issues []Issue
	if strings.TrimSpace(std.ID) == "" {
		return []Issue{{Reason: "standard has no id"}}, false
	}
	if reason := validateThresholds(std.Thresholds); reason != "" {
		return []Issue{{StandardID: std.ID, Reason: reason}}, false
	}

	seen := make(map[string]bool, len(std.Parameters))
	for i := range std.Parameters {
		p := &std.Parameters[i]
		reason := validateParameter(*p)
		if reason == "" && p.Kind == KindFormula {
			reason = validateCoatingLoss(std.CoatingLoss)
		}
		if reason == "" && seen[p.Code] {
			reason = "duplicate parameter code"
		}
		seen[p.Code] = true
		if reason != "" {
			p.Rejected = reason
			issues = append(issues, Issue{StandardID: std.ID, Code: p.Code, Reason: reason})
		}
	}
	return issues, true
}
// #endregion validate-standard
