package rating

import (
	"math"
	"strings"

	"github.com/danielpatrickdp/soil-risk/go-engine/internal/catalog"
)

// Parameter codes read by the coating loss-rate formula.
const (
	CodeResistivity      = "RESISTIVITY"
	CodeChlorides        = "CHLORIDES"
	CodePH               = "PH"
	CodeSoilType         = "SOIL_TYPE"
	CodeCoatingThickness = "COATING_THICKNESS"
)

// #region result
// CoatingLossResult is the outcome of the coating loss-rate formula.
// The zero value with Computable=false means the inputs were unusable and
// must be shown as "not computable", not as a measured zero.
type CoatingLossResult struct {
	Computable         bool     `json:"computable"`
	Aggressive         bool     `json:"aggressive"`
	Triggers           []string `json:"triggers,omitempty"`
	MeanLossRate       float64  `json:"mean_loss_rate"`   // µm/a
	SpreadLossRate     float64  `json:"spread_loss_rate"` // µm/a
	BaseLossRate       float64  `json:"base_loss_rate"`   // µm/a
	Thickness          float64  `json:"thickness"`        // µm
	DefaultedThickness bool     `json:"defaulted_thickness,omitempty"`
	ServiceLife        int      `json:"service_life"` // years
	Reserve            float64  `json:"reserve"`      // mm
}
// #endregion result

// #region apply
// ApplyFormula evaluates a formula parameter against a datapoint's raw values.
// The second return is false when the parameter names no known formula.
func ApplyFormula(p catalog.Parameter, values map[string]string, cfg catalog.CoatingLoss) (CoatingLossResult, bool) {
	if p.Kind != catalog.KindFormula || p.Rejected != "" {
		return CoatingLossResult{}, false
	}
	switch p.Formula {
	case catalog.FormulaCoatingLoss:
		return CoatingLoss(values, cfg), true
	default:
		return CoatingLossResult{}, false
	}
}
// #endregion apply

// #region coating-loss
// CoatingLoss classifies the soil as aggressive when any single trigger
// fires, picks the matching loss-rate pair, and derives service life and the
// base-material reserve.
func CoatingLoss(values map[string]string, cfg catalog.CoatingLoss) CoatingLossResult {
	resistivity, ok1 := ParseNumber(values[CodeResistivity])
	chlorides, ok2 := ParseNumber(values[CodeChlorides])
	ph, ok3 := ParseNumber(values[CodePH])
	if !ok1 || !ok2 || !ok3 {
		return CoatingLossResult{}
	}

	thickness := cfg.DefaultThickness
	defaulted := true
	if raw := strings.TrimSpace(values[CodeCoatingThickness]); raw != "" {
		v, ok := ParseNumber(raw)
		if !ok {
			return CoatingLossResult{}
		}
		thickness, defaulted = v, false
	}
	if thickness <= 0 {
		return CoatingLossResult{}
	}

	var triggers []string
	if resistivity < cfg.ResistivityFloor {
		triggers = append(triggers, CodeResistivity)
	}
	if chlorides > cfg.ChlorideCeiling {
		triggers = append(triggers, CodeChlorides)
	}
	if ph < cfg.PHMin || ph > cfg.PHMax {
		triggers = append(triggers, CodePH)
	}
	soil := strings.ToLower(strings.TrimSpace(values[CodeSoilType]))
	if soil != "" && soil == strings.ToLower(cfg.AggressiveSoilType) {
		triggers = append(triggers, CodeSoilType)
	}
	aggressive := len(triggers) > 0

	mean, spread := cfg.NonAggressiveMean, cfg.NonAggressiveSpread
	if aggressive {
		mean, spread = cfg.AggressiveMean, cfg.AggressiveSpread
	}
	if mean <= 0 {
		return CoatingLossResult{}
	}

	years := math.Floor(thickness / mean)
	if math.IsNaN(years) || math.IsInf(years, 0) || years > maxServiceLife {
		return CoatingLossResult{}
	}
	life := int(years)
	reserve := round3(cfg.BaseMaterialLossRate * float64(life) / 1000)

	return CoatingLossResult{
		Computable:         true,
		Aggressive:         aggressive,
		Triggers:           triggers,
		MeanLossRate:       mean,
		SpreadLossRate:     spread,
		BaseLossRate:       cfg.BaseMaterialLossRate,
		Thickness:          thickness,
		DefaultedThickness: defaulted,
		ServiceLife:        life,
		Reserve:            reserve,
	}
}

// maxServiceLife bounds the years a thickness may imply before the input is
// treated as a data-entry error.
const maxServiceLife = math.MaxInt32

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
// #endregion coating-loss
