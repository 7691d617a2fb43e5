package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/soil-risk/go-engine/internal/catalog"
	"github.com/danielpatrickdp/soil-risk/go-engine/internal/rating"
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

func dp(id string, values map[string]string) survey.Datapoint {
	return survey.Datapoint{ID: id, ZoneID: "z1", Values: values}
}

func TestDatapointSumsRatings(t *testing.T) {
	std := defaultStandard(t)
	res := Datapoint(dp("d1", map[string]string{
		"RESISTIVITY": "15",        // -4
		"PH":          "5",         // -1
		"CHLORIDES":   "150",       // -1
		"SOIL_TYPE":   "undrained", // -2
		"GROUNDWATER": "never",     // 0
	}), std)

	assert.Equal(t, -8, res.Total)
	assert.Empty(t, res.Unrated)
	assert.Equal(t, -4, res.Ratings["RESISTIVITY"].Value)
	assert.Equal(t, "15", res.Values["RESISTIVITY"])
}

func TestDatapointUnknownCodePassthrough(t *testing.T) {
	std := defaultStandard(t)
	res := Datapoint(dp("d1", map[string]string{
		"RESISTIVITY":  "15",
		"LEGACY_REDOX": "120",
	}), std)

	assert.Equal(t, -4, res.Total)
	require.Len(t, res.Unrated, 1)
	assert.Equal(t, Unrated{DatapointID: "d1", Code: "LEGACY_REDOX", Reason: rating.ReasonUnknownCode}, res.Unrated[0])
	assert.Equal(t, "120", res.Values["LEGACY_REDOX"])
}

func TestDatapointUnratedValueCountsZero(t *testing.T) {
	std := defaultStandard(t)
	res := Datapoint(dp("d1", map[string]string{
		"RESISTIVITY": "n/a",
		"PH":          "5",
	}), std)

	assert.Equal(t, -1, res.Total)
	require.Len(t, res.Unrated, 1)
	assert.Equal(t, rating.ReasonNotNumeric, res.Unrated[0].Reason)
}

func TestDatapointComputesFormulaMetrics(t *testing.T) {
	std := defaultStandard(t)
	res := Datapoint(dp("d1", map[string]string{
		"RESISTIVITY": "20",
		"CHLORIDES":   "400",
		"SOIL_TYPE":   "undrained",
		"PH":          "9.0",
	}), std)

	m, ok := res.Metrics["COATING_LOSS"]
	require.True(t, ok)
	assert.True(t, m.Aggressive)
	assert.Equal(t, 10, m.ServiceLife)
}

func TestDatapointCopiesValues(t *testing.T) {
	std := defaultStandard(t)
	values := map[string]string{"PH": "5"}
	res := Datapoint(dp("d1", values), std)
	values["PH"] = "10"
	assert.Equal(t, "5", res.Values["PH"])
}

func TestZoneTotalIsOrderIndependent(t *testing.T) {
	std := defaultStandard(t)
	points := []survey.Datapoint{
		dp("a", map[string]string{"RESISTIVITY": "5", "PH": "3"}),
		dp("b", map[string]string{"RESISTIVITY": "600", "BUFFER_CAPACITY": "12"}),
		dp("c", map[string]string{"SULFIDE": "7", "UNKNOWN": "x"}),
		dp("d", map[string]string{"SULFATE": "700", "WATER_CONTENT": "25"}),
	}

	want := Zone(points, std)
	assert.Equal(t, -9+6-3-3, want.Total)

	permute(points, 0, func(p []survey.Datapoint) {
		got := Zone(p, std)
		assert.Equal(t, want.Total, got.Total)
		assert.Equal(t, want.Unrated, got.Unrated)
		for i := range got.Datapoints {
			assert.Equal(t, want.Datapoints[i].DatapointID, got.Datapoints[i].DatapointID)
		}
	})
}

func TestZoneEmpty(t *testing.T) {
	res := Zone(nil, defaultStandard(t))
	assert.Equal(t, 0, res.Total)
	assert.Empty(t, res.Datapoints)
}

func permute(a []survey.Datapoint, k int, visit func([]survey.Datapoint)) {
	if k == len(a) {
		cp := append([]survey.Datapoint(nil), a...)
		visit(cp)
		return
	}
	for i := k; i < len(a); i++ {
		a[k], a[i] = a[i], a[k]
		permute(a, k+1, visit)
		a[k], a[i] = a[i], a[k]
	}
}
