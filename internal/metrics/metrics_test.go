package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gatherNames(t *testing.T, reg *prometheus.Registry) map[string]bool {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	return names
}

func TestRegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	require.NoError(t, Register(reg))
}

func TestCollectorsExported(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))

	ObserveEvaluation("DIN-50929-3", 20*time.Millisecond, OutcomeSuccess)
	ObserveEvaluation("DIN-50929-3", -time.Second, "bogus")
	IncVersionConflict()
	AddUnrated("not_numeric", 2)
	AddUnrated("unknown_parameter", 0)
	IncReport(true)
	IncReport(false)

	names := gatherNames(t, reg)
	for _, n := range []string{
		"soilrisk_evaluations_total",
		"soilrisk_evaluation_seconds",
		"soilrisk_version_conflicts_total",
		"soilrisk_unrated_values_total",
		"soilrisk_reports_rendered_total",
	} {
		assert.True(t, names[n], n)
	}
}
