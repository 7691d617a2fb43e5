package aggregate

import (
	"sort"
	"time"

	"github.com/danielpatrickdp/soil-risk/go-engine/internal/catalog"
	"github.com/danielpatrickdp/soil-risk/go-engine/internal/rating"
	"github.com/danielpatrickdp/soil-risk/go-engine/internal/survey"
)

// #region types
// Unrated names a reading that contributed 0 because it could not be rated.
type Unrated struct {
	DatapointID string `json:"datapoint_id"`
	Code        string `json:"code"`
	Reason      string `json:"reason"`
}

// DatapointResult is the scored form of one datapoint. Values is a copy of
// the raw readings taken at scoring time.
type DatapointResult struct {
	DatapointID string                              `json:"datapoint_id"`
	Timestamp   time.Time                           `json:"timestamp"`
	Values      map[string]string                   `json:"values"`
	Ratings     map[string]rating.Rating            `json:"ratings"`
	Metrics     map[string]rating.CoatingLossResult `json:"metrics,omitempty"`
	Unrated     []Unrated                           `json:"unrated,omitempty"`
	Total       int                                 `json:"total"`
}

// ZoneResult combines the datapoints of one zone.
type ZoneResult struct {
	Datapoints []DatapointResult `json:"datapoints"`
	Unrated    []Unrated         `json:"unrated,omitempty"`
	Total      int               `json:"total"`
}
// #endregion types

// #region datapoint
// Datapoint sums the ratings of every code in dp.Values. Codes the standard
// does not define contribute 0 and are listed as unrated. Formula parameters
// of the standard are evaluated into Metrics.
func Datapoint(dp survey.Datapoint, std catalog.Standard) DatapointResult {
	res := DatapointResult{
		DatapointID: dp.ID,
		Timestamp:   dp.Timestamp,
		Values:      make(map[string]string, len(dp.Values)),
		Ratings:     make(map[string]rating.Rating, len(dp.Values)),
	}

	for _, code := range sortedKeys(dp.Values) {
		raw := dp.Values[code]
		res.Values[code] = raw

		p, ok := std.Parameter(code)
		if !ok {
			r := rating.Rating{Code: code, Unrated: true, Reason: rating.ReasonUnknownCode}
			res.Ratings[code] = r
			res.Unrated = append(res.Unrated, Unrated{DatapointID: dp.ID, Code: code, Reason: r.Reason})
			continue
		}
		r := rating.Rate(p, raw)
		res.Ratings[code] = r
		if r.Unrated {
			res.Unrated = append(res.Unrated, Unrated{DatapointID: dp.ID, Code: code, Reason: r.Reason})
			continue
		}
		res.Total += r.Value
	}

	for _, p := range std.Formulas() {
		m, ok := rating.ApplyFormula(p, dp.Values, std.CoatingLoss)
		if !ok {
			continue
		}
		if res.Metrics == nil {
			res.Metrics = map[string]rating.CoatingLossResult{}
		}
		res.Metrics[p.Code] = m
	}
	return res
}
// #endregion datapoint

// #region zone
// Zone scores each datapoint and sums their totals. Results are ordered by
// datapoint id so the outcome does not depend on input order.
func Zone(dps []survey.Datapoint, std catalog.Standard) ZoneResult {
	out := ZoneResult{Datapoints: make([]DatapointResult, 0, len(dps))}
	for _, dp := range dps {
		out.Datapoints = append(out.Datapoints, Datapoint(dp, std))
	}
	sort.SliceStable(out.Datapoints, func(i, j int) bool {
		return out.Datapoints[i].DatapointID < out.Datapoints[j].DatapointID
	})
	for _, r := range out.Datapoints {
		out.Total += r.Total
		out.Unrated = append(out.Unrated, r.Unrated...)
	}
	return out
}
// #endregion zone

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
