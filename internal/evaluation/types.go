package evaluation

import (
	"time"

	"github.com/danielpatrickdp/soil-risk/go-engine/internal/aggregate"
	"github.com/danielpatrickdp/soil-risk/go-engine/internal/catalog"
	"github.com/danielpatrickdp/soil-risk/go-engine/internal/classify"
	"github.com/danielpatrickdp/soil-risk/go-engine/internal/survey"
)

// #region output-ref
// OutputRef names the project and zone a first version is evaluated for.
// Together with the standard it identifies the output.
type OutputRef struct {
	ProjectID string
	ZoneID    string
}

// Output is a persisted version lineage.
type Output struct {
	ID         string    `json:"id"`
	ProjectID  string    `json:"project_id"`
	ZoneID     string    `json:"zone_id"`
	StandardID string    `json:"standard_id"`
	AnalystID  string    `json:"analyst_id"`
	CreatedAt  time.Time `json:"created_at"`
}
// #endregion output-ref

// #region content
// Content is the frozen snapshot stored with a version. Everything needed to
// render the version later is inside it, so catalog changes never alter it.
type Content struct {
	StandardID       string                      `json:"standard_id"`
	StandardRevision string                      `json:"standard_revision,omitempty"`
	Thresholds       catalog.Thresholds          `json:"thresholds"`
	Datapoints       []aggregate.DatapointResult `json:"datapoints"`
	Unrated          []aggregate.Unrated         `json:"unrated,omitempty"`
	Total            int                         `json:"total"`
	Classification   classify.Classification     `json:"classification"`
	Recommendations  string                      `json:"recommendations,omitempty"`
	Author           survey.User                 `json:"author"`
}
// #endregion content

// #region version
// Version is one immutable, numbered evaluation of an output.
type Version struct {
	ID             string                  `json:"id"`
	OutputID       string                  `json:"output_id"`
	Number         int                     `json:"number"`
	Content        Content                 `json:"content"`
	Total          int                     `json:"total"`
	Classification classify.Classification `json:"classification"`
	CreatedBy      string                  `json:"created_by"`
	CreatedAt      time.Time               `json:"created_at"`
	Digest         string                  `json:"digest"`

	// Raw is the stored content exactly as persisted.
	Raw []byte `json:"-"`
}
// #endregion version

// #region compute
// Compute runs the scoring pipeline over the given datapoints. It is pure and
// backs both persisted versions and previews.
func Compute(dps []survey.Datapoint, std catalog.Standard, author survey.User, recommendations string) Content {
	zone := aggregate.Zone(dps, std)
	return Content{
		StandardID:       std.ID,
		StandardRevision: std.Revision,
		Thresholds:       std.Thresholds,
		Datapoints:       zone.Datapoints,
		Unrated:          zone.Unrated,
		Total:            zone.Total,
		Classification:   classify.ForStandard(zone.Total, std),
		Recommendations:  recommendations,
		Author:           author,
	}
}
// #endregion compute
