package catalog

// #region kind
// Kind selects how a parameter is scored.
type Kind string

const (
	KindBucket      Kind = "bucket"
	KindCategorical Kind = "categorical"
	KindFormula     Kind = "formula"
	// KindMeasurement is recorded and fed to formulas but never rated.
	KindMeasurement Kind = "measurement"
)

// FormulaCoatingLoss is the protective-coating loss-rate formula id.
const FormulaCoatingLoss = "coating_loss"
// #endregion kind

// #region bucket
// Bucket maps the half-open interval [Lower, Upper) to a rating.
// The last bucket of a parameter is closed on both ends.
type Bucket struct {
	Lower  float64 `yaml:"lower" json:"lower"`
	Upper  float64 `yaml:"upper" json:"upper"`
	Rating int     `yaml:"rating" json:"rating"`
}

// Contains reports whether v falls in the bucket. closed makes the upper
// bound inclusive, which applies to the last bucket only.
func (b Bucket) Contains(v float64, closed bool) bool {
	if v < b.Lower {
		return false
	}
	if closed {
		return v <= b.Upper
	}
	return v < b.Upper
}
// #endregion bucket

// #region parameter
// Parameter is a measurable quantity defined by a standard.
type Parameter struct {
	Code       string         `yaml:"code" json:"code"`
	Name       string         `yaml:"name" json:"name"`
	Unit       string         `yaml:"unit" json:"unit"`
	Kind       Kind           `yaml:"kind" json:"kind"`
	Buckets    []Bucket       `yaml:"buckets,omitempty" json:"buckets,omitempty"`
	Categories map[string]int `yaml:"categories,omitempty" json:"categories,omitempty"`
	Formula    string         `yaml:"formula,omitempty" json:"formula,omitempty"`

	// Rejected holds the validation failure that took this parameter out of
	// service. Rejected parameters are never rated.
	Rejected string `yaml:"-" json:"rejected,omitempty"`
}
// #endregion parameter

// #region thresholds
// Threshold is one row of a classification table. A nil Min marks the
// catch-all row, which must come last.
type Threshold struct {
	Min    *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Class  string   `yaml:"class" json:"class"`
	Stress string   `yaml:"stress" json:"stress"`
}

// Thresholds is evaluated top-down; the first row whose Min is <= total wins.
type Thresholds []Threshold

// DefaultThresholds returns the four-class soil table (Ia, Ib, II, III).
func DefaultThresholds() Thresholds {
	return Thresholds{
		{Min: floatPtr(0), Class: "Ia", Stress: "very low"},
		{Min: floatPtr(-4), Class: "Ib", Stress: "low"},
		{Min: floatPtr(-10), Class: "II", Stress: "medium"},
		{Class: "III", Stress: "high"},
	}
}

func floatPtr(v float64) *float64 { return &v }
// #endregion thresholds

// #region coating-loss
// CoatingLoss holds the constants of the coating loss-rate formula.
// Rates are in µm per year, thicknesses in µm.
type CoatingLoss struct {
	ResistivityFloor   float64 `yaml:"resistivity_floor" json:"resistivity_floor"`
	ChlorideCeiling    float64 `yaml:"chloride_ceiling" json:"chloride_ceiling"`
	PHMin              float64 `yaml:"ph_min" json:"ph_min"`
	PHMax              float64 `yaml:"ph_max" json:"ph_max"`
	AggressiveSoilType string  `yaml:"aggressive_soil_type" json:"aggressive_soil_type"`

	AggressiveMean       float64 `yaml:"aggressive_mean" json:"aggressive_mean"`
	AggressiveSpread     float64 `yaml:"aggressive_spread" json:"aggressive_spread"`
	NonAggressiveMean    float64 `yaml:"non_aggressive_mean" json:"non_aggressive_mean"`
	NonAggressiveSpread  float64 `yaml:"non_aggressive_spread" json:"non_aggressive_spread"`
	BaseMaterialLossRate float64 `yaml:"base_material_loss_rate" json:"base_material_loss_rate"`
	DefaultThickness     float64 `yaml:"default_thickness" json:"default_thickness"`
}

// DefaultCoatingLoss returns the loss rates for hot-dip galvanized steel in soil.
func DefaultCoatingLoss() CoatingLoss {
	return CoatingLoss{
		ResistivityFloor:     50,
		ChlorideCeiling:      100,
		PHMin:                6.0,
		PHMax:                8.5,
		AggressiveSoilType:   "undrained",
		AggressiveMean:       8.0,
		AggressiveSpread:     4.0,
		NonAggressiveMean:    2.0,
		NonAggressiveSpread:  1.0,
		BaseMaterialLossRate: 12.0,
		DefaultThickness:     86,
	}
}
// #endregion coating-loss

// #region standard
// Standard is a named rule set: parameters plus a classification table.
type Standard struct {
	ID          string      `yaml:"id" json:"id"`
	Name        string      `yaml:"name" json:"name"`
	Revision    string      `yaml:"revision" json:"revision"`
	Parameters  []Parameter `yaml:"parameters" json:"parameters"`
	Thresholds  Thresholds  `yaml:"thresholds" json:"thresholds"`
	CoatingLoss CoatingLoss `yaml:"coating_loss" json:"coating_loss"`
}

// Parameter returns the parameter with the given code.
func (s Standard) Parameter(code string) (Parameter, bool) {
	for _, p := range s.Parameters {
		if p.Code == code {
			return p, true
		}
	}
	return Parameter{}, false
}

// Formulas returns the formula parameters of the standard that are in service.
func (s Standard) Formulas() []Parameter {
	var out []Parameter
	for _, p := range s.Parameters {
		if p.Kind == KindFormula && p.Rejected == "" {
			out = append(out, p)
		}
	}
	return out
}
// #endregion standard

// #region issue
// Issue is a load-time validation finding.
type Issue struct {
	StandardID string
	Code       string // empty for standard-level issues
	Reason     string
}

func (i Issue) String() string {
	if i.Code == "" {
		return i.StandardID + ": " + i.Reason
	}
	return i.StandardID + "/" + i.Code + ": " + i.Reason
}
// #endregion issue
