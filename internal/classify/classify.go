package classify

import "github.com/danielpatrickdp/soil-risk/go-engine/internal/catalog"

// #region classification
// Classification is the risk class derived from a total rating.
// Severity is the row index in the threshold table; 0 is least severe.
type Classification struct {
	Class    string `json:"class"`
	Stress   string `json:"stress"`
	Severity int    `json:"severity"`
}
// #endregion classification

// #region classify
// Classify walks the table top-down and returns the first row whose minimum
// the total reaches. The catch-all row matches anything left over.
// Tables are assumed validated by the catalog; an empty table yields the
// zero Classification.
func Classify(total int, table catalog.Thresholds) Classification {
	v := float64(total)
	for i, row := range table {
		if row.Min == nil || v >= *row.Min {
			return Classification{Class: row.Class, Stress: row.Stress, Severity: i}
		}
	}
	return Classification{}
}

// ForStandard classifies a total with the standard's own table.
func ForStandard(total int, std catalog.Standard) Classification {
	return Classify(total, std.Thresholds)
}
// #endregion classify
