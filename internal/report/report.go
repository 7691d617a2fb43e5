package report

import (
	"sort"
	"time"

	"github.com/danielpatrickdp/soil-risk/go-engine/internal/catalog"
	"github.com/danielpatrickdp/soil-risk/go-engine/internal/classify"
	"github.com/danielpatrickdp/soil-risk/go-engine/internal/evaluation"
	"github.com/danielpatrickdp/soil-risk/go-engine/internal/rating"
	"github.com/danielpatrickdp/soil-risk/go-engine/internal/survey"
)

// #region types
// Context is the live metadata a report is rendered with. Only names and
// units come from here; every number comes from the evaluation snapshot.
type Context struct {
	Project     survey.Project
	Zone        survey.Zone
	Standard    catalog.Standard
	Analyst     survey.User
	GeneratedAt time.Time
}

// Header identifies what the report is about.
type Header struct {
	ProjectID        string    `json:"project_id"`
	ProjectName      string    `json:"project_name"`
	Client           string    `json:"client,omitempty"`
	Place            string    `json:"place,omitempty"`
	ZoneID           string    `json:"zone_id"`
	ZoneName         string    `json:"zone_name"`
	Field            string    `json:"field,omitempty"`
	StandardID       string    `json:"standard_id"`
	StandardName     string    `json:"standard_name"`
	StandardRevision string    `json:"standard_revision,omitempty"`
	OutputID         string    `json:"output_id,omitempty"`
	VersionNumber    int       `json:"version_number,omitempty"`
	CreatedAt        time.Time `json:"created_at,omitempty"`
	CreatedBy        string    `json:"created_by,omitempty"`
}

// Row is one parameter reading of one datapoint. Name and Unit are empty
// when the current standard no longer defines Code.
type Row struct {
	DatapointID string `json:"datapoint_id"`
	Code        string `json:"code"`
	Name        string `json:"name,omitempty"`
	Unit        string `json:"unit,omitempty"`
	Value       string `json:"value"`
	Rating      int    `json:"rating"`
	Unrated     bool   `json:"unrated,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// Metric is a formula result of one datapoint.
type Metric struct {
	DatapointID string                   `json:"datapoint_id"`
	Code        string                   `json:"code"`
	Name        string                   `json:"name,omitempty"`
	Unit        string                   `json:"unit,omitempty"`
	Result      rating.CoatingLossResult `json:"result"`
}

// Footer carries authorship and integrity data.
type Footer struct {
	Analyst     survey.User `json:"analyst"`
	Digest      string      `json:"digest,omitempty"`
	GeneratedAt time.Time   `json:"generated_at"`
}

// Document is the structured report. Serialization to HTML, PDF and so on
// happens elsewhere.
type Document struct {
	Preview         bool                    `json:"preview"`
	Header          Header                  `json:"header"`
	Rows            []Row                   `json:"rows"`
	Total           int                     `json:"total"`
	Classification  classify.Classification `json:"classification"`
	Recommendations string                  `json:"recommendations,omitempty"`
	Metrics         []Metric                `json:"metrics,omitempty"`
	Unrated         []Row                   `json:"unrated,omitempty"`
	Footer          Footer                  `json:"footer"`
}
// #endregion types

// #region assemble
// Assemble renders a stored version. It never fails: codes the current
// standard has dropped render with their raw code and no name or unit.
func Assemble(v evaluation.Version, rc Context) Document {
	doc := build(v.Content, rc)
	doc.Header.OutputID = v.OutputID
	doc.Header.VersionNumber = v.Number
	doc.Header.CreatedAt = v.CreatedAt
	doc.Header.CreatedBy = v.CreatedBy
	doc.Footer.Digest = v.Digest
	if doc.Footer.Analyst.ID == "" {
		doc.Footer.Analyst = survey.User{ID: v.CreatedBy}
	}
	return doc
}

// AssemblePreview renders freshly computed content that was never stored.
// The result is always marked as a preview.
func AssemblePreview(c evaluation.Content, rc Context) Document {
	doc := build(c, rc)
	doc.Preview = true
	return doc
}

func build(c evaluation.Content, rc Context) Document {
	generated := rc.GeneratedAt
	if generated.IsZero() {
		generated = time.Now().UTC()
	}

	// The author frozen in the snapshot signs the report; the live analyst
	// only fills in when the snapshot predates author capture.
	analyst := c.Author
	if analyst.ID == "" {
		analyst = rc.Analyst
	}

	doc := Document{
		Header: Header{
			ProjectID:        rc.Project.ID,
			ProjectName:      rc.Project.Name,
			Client:           rc.Project.Client,
			Place:            rc.Project.Place,
			ZoneID:           rc.Zone.ID,
			ZoneName:         rc.Zone.Name,
			Field:            rc.Zone.Field,
			StandardID:       c.StandardID,
			StandardName:     standardName(c.StandardID, rc.Standard),
			StandardRevision: c.StandardRevision,
		},
		Total:           c.Total,
		Classification:  c.Classification,
		Recommendations: c.Recommendations,
		Footer:          Footer{Analyst: analyst, GeneratedAt: generated},
	}

	std := rc.Standard
	if std.ID != c.StandardID {
		std = catalog.Standard{}
	}

	for _, dp := range c.Datapoints {
		for _, code := range sortedCodes(dp.Values) {
			r := dp.Ratings[code]
			row := Row{
				DatapointID: dp.DatapointID,
				Code:        code,
				Value:       dp.Values[code],
				Rating:      r.Value,
				Unrated:     r.Unrated,
				Reason:      r.Reason,
			}
			if p, ok := std.Parameter(code); ok {
				row.Name, row.Unit = p.Name, p.Unit
			}
			doc.Rows = append(doc.Rows, row)
			if row.Unrated {
				doc.Unrated = append(doc.Unrated, row)
			}
		}
		for _, code := range sortedMetricCodes(dp.Metrics) {
			m := Metric{DatapointID: dp.DatapointID, Code: code, Result: dp.Metrics[code]}
			if p, ok := std.Parameter(code); ok {
				m.Name, m.Unit = p.Name, p.Unit
			}
			doc.Metrics = append(doc.Metrics, m)
		}
	}
	return doc
}
// #endregion assemble

// #region helpers
func standardName(id string, std catalog.Standard) string {
	if std.ID == id && std.Name != "" {
		return std.Name
	}
	return id
}

func sortedCodes(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedMetricCodes(m map[string]rating.CoatingLossResult) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
// #endregion helpers
