package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_ObserveFetch(t *testing.T) {
	rec := NewRecorder(nil)
	rec.ObserveFetch("gif", FetchHit, 10*time.Millisecond)
	rec.ObserveFetch("gif", FetchHit, 10*time.Millisecond)
	rec.ObserveFetch("image", FetchMiss, 2*time.Second)

	families := gather(t, rec, "azsticker_pinterest_fetches_total", "azsticker_pinterest_fetch_duration_seconds")

	hits := findMetric(t, families["azsticker_pinterest_fetches_total"], map[string]string{
		"namespace": "gif",
		"outcome":   "hit",
	})
	assert.Equal(t, 2.0, hits.GetCounter().GetValue())

	miss := findMetric(t, families["azsticker_pinterest_fetch_duration_seconds"], map[string]string{
		"namespace": "image",
		"outcome":   "miss",
	})
	require.NotNil(t, miss.GetHistogram())
	assert.EqualValues(t, 1, miss.GetHistogram().GetSampleCount())
	assert.InDelta(t, 2.0, miss.GetHistogram().GetSampleSum(), 0.001)
}

func TestRecorder_CacheCounters(t *testing.T) {
	rec := NewRecorder(nil)
	rec.ObserveInvalidation("image")
	rec.ObserveSwept("image", 3)
	rec.ObserveSwept("image", 0)
	rec.ObserveDownload("")

	families := gather(t, rec,
		"azsticker_pinterest_invalidations_total",
		"azsticker_pinterest_swept_entries_total",
		"azsticker_instagram_downloads_total",
	)

	swept := findMetric(t, families["azsticker_pinterest_swept_entries_total"], map[string]string{"namespace": "image"})
	assert.Equal(t, 3.0, swept.GetCounter().GetValue())

	downloads := findMetric(t, families["azsticker_instagram_downloads_total"], map[string]string{"outcome": "unknown"})
	assert.Equal(t, 1.0, downloads.GetCounter().GetValue())
}

func TestRecorder_NilIsSafe(t *testing.T) {
	var rec *Recorder
	assert.NotPanics(t, func() {
		rec.ObserveFetch("image", FetchError, time.Second)
		rec.ObserveInvalidation("gif")
		rec.ObserveSwept("gif", 1)
		rec.ObserveDownload("ok")
	})

	rr := httptest.NewRecorder()
	rec.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 503, rr.Code)
}

func TestRecorder_Handler(t *testing.T) {
	rec := NewRecorder(nil)
	rec.ObserveFetch("image", FetchHit, time.Millisecond)

	rr := httptest.NewRecorder()
	rec.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rr.Code)
	assert.Contains(t, rr.Body.String(), "azsticker_pinterest_fetches_total")
}

func gather(t *testing.T, rec *Recorder, names ...string) map[string][]*dto.Metric {
	t.Helper()
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[name] = true
	}
	families, err := rec.Gatherer().Gather()
	require.NoError(t, err)

	collected := make(map[string][]*dto.Metric, len(names))
	for _, mf := range families {
		if wanted[mf.GetName()] {
			collected[mf.GetName()] = append(collected[mf.GetName()], mf.GetMetric()...)
		}
	}
	for _, name := range names {
		require.NotEmpty(t, collected[name], "metric %q not collected", name)
	}
	return collected
}

func findMetric(t *testing.T, metrics []*dto.Metric, labels map[string]string) *dto.Metric {
	t.Helper()
	for _, metric := range metrics {
		if matchLabels(metric, labels) {
			return metric
		}
	}
	t.Fatalf("metric with labels %v not found", labels)
	return nil
}

func matchLabels(metric *dto.Metric, labels map[string]string) bool {
	for key, expected := range labels {
		found := false
		for _, label := range metric.GetLabel() {
			if label.GetName() == key && label.GetValue() == expected {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
