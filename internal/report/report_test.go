package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/soil-risk/go-engine/internal/catalog"
	"github.com/danielpatrickdp/soil-risk/go-engine/internal/evaluation"
	"github.com/danielpatrickdp/soil-risk/go-engine/internal/survey"
)

func defaultStandard(t *testing.T) catalog.Standard {
	t.Helper()
	c, err := catalog.Default()
	require.NoError(t, err)
	std, err := c.Standard("DIN-50929-3")
	require.NoError(t, err)
	return std
}

var author = survey.User{ID: "u-1", DisplayName: "A. Analyst"}

func sampleVersion(t *testing.T, std catalog.Standard) evaluation.Version {
	t.Helper()
	content := evaluation.Compute([]survey.Datapoint{
		{ID: "dp-1", Values: map[string]string{"RESISTIVITY": "20", "CHLORIDES": "400", "SOIL_TYPE": "undrained", "PH": "9"}},
		{ID: "dp-2", Values: map[string]string{"PH": "7", "LEGACY": "x"}},
	}, std, author, "Apply cathodic protection.")
	return evaluation.Version{
		ID:             "v-1",
		OutputID:       "out-1",
		Number:         2,
		Content:        content,
		Total:          content.Total,
		Classification: content.Classification,
		CreatedBy:      author.ID,
		CreatedAt:      time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Digest:         "abc123",
	}
}

func reportContext(std catalog.Standard) Context {
	return Context{
		Project:     survey.Project{ID: "p1", Name: "Pipeline North"},
		Zone:        survey.Zone{ID: "z1", ProjectID: "p1", Name: "Km 4"},
		Standard:    std,
		Analyst:     survey.User{ID: "someone-else", DisplayName: "Viewer"},
		GeneratedAt: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
	}
}

func TestAssemble(t *testing.T) {
	std := defaultStandard(t)
	v := sampleVersion(t, std)

	doc := Assemble(v, reportContext(std))

	assert.False(t, doc.Preview)
	assert.Equal(t, "Pipeline North", doc.Header.ProjectName)
	assert.Equal(t, "Km 4", doc.Header.ZoneName)
	assert.Equal(t, 2, doc.Header.VersionNumber)
	assert.Equal(t, "out-1", doc.Header.OutputID)
	assert.Equal(t, std.Name, doc.Header.StandardName)
	assert.Equal(t, v.Total, doc.Total)
	assert.Equal(t, v.Classification, doc.Classification)
	assert.Equal(t, "Apply cathodic protection.", doc.Recommendations)
	assert.Equal(t, "abc123", doc.Footer.Digest)
	assert.Equal(t, author, doc.Footer.Analyst)

	// dp-1 has 4 readings, dp-2 has 2.
	require.Len(t, doc.Rows, 6)
	assert.Equal(t, "dp-1", doc.Rows[0].DatapointID)
	assert.Equal(t, "CHLORIDES", doc.Rows[0].Code)
	assert.NotEmpty(t, doc.Rows[0].Name)

	require.Len(t, doc.Unrated, 1)
	assert.Equal(t, "LEGACY", doc.Unrated[0].Code)

	require.NotEmpty(t, doc.Metrics)
	assert.Equal(t, "COATING_LOSS", doc.Metrics[0].Code)
	assert.True(t, doc.Metrics[0].Result.Aggressive)
}

func TestAssembleAfterStandardDroppedCode(t *testing.T) {
	std := defaultStandard(t)
	v := sampleVersion(t, std)

	evolved := std
	evolved.Parameters = nil
	for _, p := range std.Parameters {
		if p.Code != "RESISTIVITY" {
			evolved.Parameters = append(evolved.Parameters, p)
		}
	}

	doc := Assemble(v, reportContext(evolved))

	var found bool
	for _, r := range doc.Rows {
		if r.Code != "RESISTIVITY" {
			continue
		}
		found = true
		assert.Empty(t, r.Name)
		assert.Empty(t, r.Unit)
		assert.Equal(t, "20", r.Value)
		// Rating is the frozen one, not recomputed.
		assert.Equal(t, v.Content.Datapoints[0].Ratings["RESISTIVITY"].Value, r.Rating)
	}
	assert.True(t, found)
	assert.Equal(t, v.Total, doc.Total)
}

func TestAssembleWithoutMatchingStandard(t *testing.T) {
	std := defaultStandard(t)
	v := sampleVersion(t, std)

	doc := Assemble(v, Context{})
	assert.Equal(t, "DIN-50929-3", doc.Header.StandardName)
	for _, r := range doc.Rows {
		assert.Empty(t, r.Name)
	}
	assert.False(t, doc.Footer.GeneratedAt.IsZero())
}

func TestAssemblePreview(t *testing.T) {
	std := defaultStandard(t)
	v := sampleVersion(t, std)

	doc := AssemblePreview(v.Content, reportContext(std))
	assert.True(t, doc.Preview)
	assert.Zero(t, doc.Header.VersionNumber)
	assert.Empty(t, doc.Footer.Digest)
}

func TestWriteText(t *testing.T) {
	std := defaultStandard(t)
	v := sampleVersion(t, std)

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, Assemble(v, reportContext(std))))
	out := buf.String()
	assert.Contains(t, out, "Pipeline North")
	assert.Contains(t, out, "Total rating:")
	assert.Contains(t, out, "abc123")
	assert.Contains(t, out, "could not be rated")
	assert.NotContains(t, out, "PREVIEW")

	buf.Reset()
	require.NoError(t, WriteText(&buf, AssemblePreview(v.Content, reportContext(std))))
	assert.Contains(t, buf.String(), "PREVIEW")
}
