package testsupport

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// GetMetricValue returns the value of the first series of metricName whose
// labels include every pair in labels. Counters and gauges report their value,
// histograms their sample count. A series that does not exist yet reads as 0.
func GetMetricValue(t *testing.T, metricName string, labels map[string]string) float64 {
	t.Helper()

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err, "gather metrics")

	for _, family := range families {
		if family.GetName() != metricName {
			continue
		}
		for _, m := range family.GetMetric() {
			if !hasLabels(m, labels) {
				continue
			}
			switch {
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				return float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return 0
}

func hasLabels(m *dto.Metric, want map[string]string) bool {
	matched := 0
	for _, pair := range m.GetLabel() {
		if v, ok := want[pair.GetName()]; ok {
			if v != pair.GetValue() {
				return false
			}
			matched++
		}
	}
	return matched == len(want)
}

// AssertMetricDelta runs fn and asserts the series moved by exactly delta.
func AssertMetricDelta(t *testing.T, metricName string, labels map[string]string, delta float64, fn func()) {
	t.Helper()

	before := GetMetricValue(t, metricName, labels)
	fn()
	after := GetMetricValue(t, metricName, labels)

	assert.Equal(t, delta, after-before, "metric %s%v delta mismatch", metricName, labels)
}

// AssertMetricDeltaAsync runs fn and waits up to two seconds for the series to
// move by delta. Used for work finished by background goroutines, such as the
// control API's document push.
func AssertMetricDeltaAsync(t *testing.T, metricName string, labels map[string]string, delta float64, fn func()) {
	t.Helper()

	before := GetMetricValue(t, metricName, labels)
	fn()

	require.Eventually(t, func() bool {
		return GetMetricValue(t, metricName, labels) == before+delta
	}, 2*time.Second, 20*time.Millisecond, "metric %s%v never moved by %.0f", metricName, labels, delta)
}

// AssertHistogramRecorded asserts the histogram series has at least one sample.
func AssertHistogramRecorded(t *testing.T, metricName string, labels map[string]string) {
	t.Helper()

	assert.Positive(t, GetMetricValue(t, metricName, labels), "histogram %s%v has no samples", metricName, labels)
}
