package engine

import (
	"fmt"

	"github.com/VictoriaMetrics/metrics"
)

// engineMetrics holds the counters and histograms exported for one
// engine instance, labeled by store id. They are registered lazily on
// first use via metrics.GetOrCreateCounter/Histogram so repeated opens
// of the same id under the process registry reuse the same series.
type engineMetrics struct {
	sets         *metrics.Counter
	gets         *metrics.Counter
	removes      *metrics.Counter
	crcFailures  *metrics.Counter
	compactions  *metrics.Counter
	growths      *metrics.Counter
	loadDuration *metrics.Histogram
}

func newEngineMetrics(id string) *engineMetrics {
	return &engineMetrics{
		sets:         metrics.GetOrCreateCounter(fmt.Sprintf(`skv_sets_total{id=%q}`, id)),
		gets:         metrics.GetOrCreateCounter(fmt.Sprintf(`skv_gets_total{id=%q}`, id)),
		removes:      metrics.GetOrCreateCounter(fmt.Sprintf(`skv_removes_total{id=%q}`, id)),
		crcFailures:  metrics.GetOrCreateCounter(fmt.Sprintf(`skv_crc_failures_total{id=%q}`, id)),
		compactions:  metrics.GetOrCreateCounter(fmt.Sprintf(`skv_compactions_total{id=%q}`, id)),
		growths:      metrics.GetOrCreateCounter(fmt.Sprintf(`skv_growths_total{id=%q}`, id)),
		loadDuration: metrics.GetOrCreateHistogram(fmt.Sprintf(`skv_load_duration_seconds{id=%q}`, id)),
	}
}
