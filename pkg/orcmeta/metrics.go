package orcmeta

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus metrics for read planning.
// A nil *Metrics records nothing.
type Metrics struct {
	StripesSelected   prometheus.Counter
	FootersRead       prometheus.Counter
	FooterBytesRead   prometheus.Counter
	SelectionFailures *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics with the provided registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	stripesSelected := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orc_reader_stripes_selected_total",
		Help: "Total stripes selected for reading",
	})

	footersRead := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orc_reader_stripe_footers_read_total",
		Help: "Total stripe footers fetched and decoded",
	})

	footerBytesRead := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orc_reader_stripe_footer_bytes_read_total",
		Help: "Total compressed stripe footer bytes read from sources",
	})

	selectionFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orc_reader_selection_failures_total",
		Help: "Total failed planning operations",
	}, []string{"operation"})

	reg.MustRegister(stripesSelected, footersRead, footerBytesRead, selectionFailures)

	return &Metrics{
		StripesSelected:   stripesSelected,
		FootersRead:       footersRead,
		FooterBytesRead:   footerBytesRead,
		SelectionFailures: selectionFailures,
	}
}

func (m *Metrics) stripesSelected(n int) {
	if m != nil {
		m.StripesSelected.Add(float64(n))
	}
}

func (m *Metrics) footerRead(bytes int) {
	if m != nil {
		m.FootersRead.Inc()
		m.FooterBytesRead.Add(float64(bytes))
	}
}

func (m *Metrics) failed(operation string) {
	if m != nil {
		m.SelectionFailures.WithLabelValues(operation).Inc()
	}
}
