package orcmeta

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Registration(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	require.NotNil(t, m)

	// Vec families are only gathered once a label set exists.
	m.SelectionFailures.WithLabelValues("select_stripes").Add(0)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	require.True(t, names["orc_reader_stripes_selected_total"])
	require.True(t, names["orc_reader_stripe_footers_read_total"])
	require.True(t, names["orc_reader_stripe_footer_bytes_read_total"])
	require.True(t, names["orc_reader_selection_failures_total"])
}

func TestMetrics_Helpers(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.stripesSelected(3)
	m.footerRead(128)
	m.footerRead(64)
	m.failed("select_columns")

	require.Equal(t, float64(3), testutil.ToFloat64(m.StripesSelected))
	require.Equal(t, float64(2), testutil.ToFloat64(m.FootersRead))
	require.Equal(t, float64(192), testutil.ToFloat64(m.FooterBytesRead))
	require.Equal(t, float64(1), testutil.ToFloat64(m.SelectionFailures.WithLabelValues("select_columns")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.stripesSelected(1)
		m.footerRead(1)
		m.failed("select_stripes")
	})
}

func TestMetrics_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	require.Panics(t, func() { NewMetrics(reg) })
}
