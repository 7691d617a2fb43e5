package rating

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/soil-risk/go-engine/internal/catalog"
)

func resistivity() catalog.Parameter {
	return catalog.Parameter{
		Code: "RESISTIVITY",
		Kind: catalog.KindBucket,
		Buckets: []catalog.Bucket{
			{Lower: 0, Upper: 10, Rating: -6},
			{Lower: 10, Upper: 50, Rating: -2},
			{Lower: 50, Upper: 500, Rating: 0},
			{Lower: 500, Upper: 1000, Rating: 4},
		},
	}
}

func TestRateBucketBoundaries(t *testing.T) {
	p := resistivity()
	tests := []struct {
		raw     string
		want    int
		clamped bool
	}{
		{"0", -6, false},
		{"9.999", -6, false},
		{"10", -2, false},   // lower bound inclusive
		{"49.9", -2, false}, // upper bound exclusive
		{"50", 0, false},
		{"1000", 4, false}, // last bucket closed
		{"-3", -6, true},
		{"1500", 4, true},
		{" 75 ", 0, false},
		{"12,5", -2, false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			r := Rate(p, tt.raw)
			assert.False(t, r.Unrated)
			assert.Equal(t, tt.want, r.Value)
			assert.Equal(t, tt.clamped, r.Clamped)
		})
	}
}

func TestRateBucketUnrated(t *testing.T) {
	p := resistivity()
	for raw, reason := range map[string]string{
		"wet":    ReasonNotNumeric,
		"":       ReasonEmpty,
		"NaN":    ReasonNotNumeric,
		"+Inf":   ReasonNotNumeric,
		"1,200":  ReasonNotNumeric,
		"-3,000": ReasonNotNumeric,
	} {
		r := Rate(p, raw)
		assert.True(t, r.Unrated, raw)
		assert.Equal(t, 0, r.Value, raw)
		assert.Equal(t, reason, r.Reason, raw)
	}
}

func TestParseNumberCommas(t *testing.T) {
	cases := []struct {
		raw  string
		want float64
		ok   bool
	}{
		{"9,0", 9, true},
		{"12,55", 12.55, true},
		{"0,125", 0.125, true},
		{"1,2345", 1.2345, true},
		{"1,200", 0, false},
		{"1,000", 0, false},
		{"1,200.5", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseNumber(tc.raw)
		assert.Equal(t, tc.ok, ok, tc.raw)
		assert.InDelta(t, tc.want, got, 1e-9, tc.raw)
	}
}

func TestRateCategorical(t *testing.T) {
	p := catalog.Parameter{
		Code:       "GROUNDWATER",
		Kind:       catalog.KindCategorical,
		Categories: map[string]int{"never": 0, "intermittent": -1, "constant": -2},
	}
	assert.Equal(t, -1, Rate(p, "intermittent").Value)
	assert.Equal(t, -2, Rate(p, " Constant ").Value)

	r := Rate(p, "sometimes")
	assert.True(t, r.Unrated)
	assert.Equal(t, ReasonUnknownCategory, r.Reason)
}

func TestRateRejectedFailsClosed(t *testing.T) {
	p := resistivity()
	p.Rejected = "gap between bucket 0 and 1"
	r := Rate(p, "5")
	assert.True(t, r.Unrated)
	assert.Equal(t, ReasonRejected, r.Reason)
}

func TestRateFormulaIsNeutral(t *testing.T) {
	r := Rate(catalog.Parameter{Code: "COATING_LOSS", Kind: catalog.KindFormula, Formula: catalog.FormulaCoatingLoss}, "anything")
	assert.False(t, r.Unrated)
	assert.Equal(t, 0, r.Value)

	r = Rate(catalog.Parameter{Code: CodeCoatingThickness, Kind: catalog.KindMeasurement}, "86")
	assert.False(t, r.Unrated)
	assert.Equal(t, 0, r.Value)
}

func TestCoatingLossAggressiveWithDefaultThickness(t *testing.T) {
	cfg := catalog.DefaultCoatingLoss()
	res := CoatingLoss(map[string]string{
		CodeResistivity: "20",
		CodeChlorides:   "400",
		CodeSoilType:    "undrained",
		CodePH:          "9.0",
	}, cfg)

	require.True(t, res.Computable)
	assert.True(t, res.Aggressive)
	assert.ElementsMatch(t, []string{CodeResistivity, CodeChlorides, CodeSoilType, CodePH}, res.Triggers)
	assert.Equal(t, cfg.AggressiveMean, res.MeanLossRate)
	assert.Equal(t, cfg.AggressiveSpread, res.SpreadLossRate)
	assert.True(t, res.DefaultedThickness)
	assert.Equal(t, cfg.DefaultThickness, res.Thickness)
	assert.Equal(t, 10, res.ServiceLife) // floor(86 / 8)
	assert.Equal(t, 0.12, res.Reserve)   // 12 * 10 / 1000
}

func TestCoatingLossNonAggressive(t *testing.T) {
	cfg := catalog.DefaultCoatingLoss()
	res := CoatingLoss(map[string]string{
		CodeResistivity: "80",
		CodeChlorides:   "50",
		CodeSoilType:    "drained",
		CodePH:          "7.0",
	}, cfg)

	require.True(t, res.Computable)
	assert.False(t, res.Aggressive)
	assert.Empty(t, res.Triggers)
	assert.Equal(t, cfg.NonAggressiveMean, res.MeanLossRate)
	assert.Equal(t, cfg.NonAggressiveSpread, res.SpreadLossRate)
	assert.Equal(t, 43, res.ServiceLife) // floor(86 / 2)
	assert.Equal(t, 0.516, res.Reserve)
}

func TestCoatingLossSingleTriggerIsEnough(t *testing.T) {
	res := CoatingLoss(map[string]string{
		CodeResistivity: "80",
		CodeChlorides:   "50",
		CodeSoilType:    "drained",
		CodePH:          "5.5",
	}, catalog.DefaultCoatingLoss())
	assert.True(t, res.Aggressive)
	assert.Equal(t, []string{CodePH}, res.Triggers)
}

func TestCoatingLossExplicitThickness(t *testing.T) {
	res := CoatingLoss(map[string]string{
		CodeResistivity:      "80",
		CodeChlorides:        "50",
		CodePH:               "7",
		CodeCoatingThickness: "45",
	}, catalog.DefaultCoatingLoss())
	require.True(t, res.Computable)
	assert.False(t, res.DefaultedThickness)
	assert.Equal(t, 22, res.ServiceLife)
	assert.Equal(t, 0.264, res.Reserve)
}

func TestCoatingLossNotComputable(t *testing.T) {
	cfg := catalog.DefaultCoatingLoss()
	inputs := []map[string]string{
		{CodeChlorides: "50", CodePH: "7"},
		{CodeResistivity: "abc", CodeChlorides: "50", CodePH: "7"},
		{CodeResistivity: "80", CodeChlorides: "50", CodePH: "7", CodeCoatingThickness: "thin"},
		{CodeResistivity: "80", CodeChlorides: "50", CodePH: "7", CodeCoatingThickness: "-4"},
		{CodeResistivity: "80", CodeChlorides: "50", CodeSoilType: "drained", CodePH: "7", CodeCoatingThickness: "1e300"},
	}
	for _, in := range inputs {
		assert.Equal(t, CoatingLossResult{}, CoatingLoss(in, cfg))
	}
}

func TestCoatingLossServiceLifeBound(t *testing.T) {
	cfg := catalog.DefaultCoatingLoss()
	in := map[string]string{CodeResistivity: "80", CodeChlorides: "50", CodeSoilType: "drained", CodePH: "7"}

	in[CodeCoatingThickness] = "1e12"
	assert.Equal(t, CoatingLossResult{}, CoatingLoss(in, cfg))

	in[CodeCoatingThickness] = "4000"
	got := CoatingLoss(in, cfg)
	require.True(t, got.Computable)
	assert.Equal(t, 2000, got.ServiceLife)
	assert.Equal(t, 24.0, got.Reserve)
}

func TestApplyFormulaUnknown(t *testing.T) {
	_, ok := ApplyFormula(catalog.Parameter{Kind: catalog.KindFormula, Formula: "other"}, nil, catalog.DefaultCoatingLoss())
	assert.False(t, ok)
	_, ok = ApplyFormula(catalog.Parameter{Kind: catalog.KindBucket}, nil, catalog.DefaultCoatingLoss())
	assert.False(t, ok)
}
