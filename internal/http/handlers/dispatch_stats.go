package handlers

import (
	"math"
	"net/http"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/klinicq/queue-platform/pkg/logging"
)

const (
	batchDurationMetric    = "klinicq_reminder_batch_duration_seconds"
	clinicsProcessedMetric = "klinicq_reminder_clinics_processed_total"
	messagesSentMetric     = "klinicq_reminder_messages_sent_total"
)

// DispatchStats is an operator snapshot of dispatcher runs, computed from
// the Prometheus registry rather than a second bookkeeping store. Latency
// percentiles are histogram-bucket estimates.
type DispatchStats struct {
	Runs         int64            `json:"runs"`
	P50Ms        float64          `json:"p50_ms"`
	P90Ms        float64          `json:"p90_ms"`
	P99Ms        float64          `json:"p99_ms"`
	Clinics      map[string]int64 `json:"clinics"`
	MessagesSent int64            `json:"messages_sent"`
}

// DispatchStatsHandler serves the admin dispatcher stats endpoint.
type DispatchStatsHandler struct {
	gatherer prometheus.Gatherer
	logger   *logging.Logger
}

// NewDispatchStatsHandler creates the stats handler. A nil gatherer falls
// back to the process default registry.
func NewDispatchStatsHandler(gatherer prometheus.Gatherer, logger *logging.Logger) *DispatchStatsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &DispatchStatsHandler{gatherer: gatherer, logger: logger}
}

// GetStats returns the current dispatcher snapshot.
// GET /admin/dispatch/stats
func (h *DispatchStatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.snapshot(), h.logger)
}

func (h *DispatchStatsHandler) snapshot() DispatchStats {
	stats := DispatchStats{Clinics: map[string]int64{}}

	gatherer := h.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mfs, err := gatherer.Gather()
	if err != nil {
		h.logger.Error("failed to gather metrics", "error", err)
		return stats
	}

	for _, mf := range mfs {
		if mf == nil {
			continue
		}
		switch mf.GetName() {
		case batchDurationMetric:
			fillLatency(&stats, mf)
		case clinicsProcessedMetric:
			for _, m := range mf.Metric {
				status := labelValue(m, "status")
				if status == "" {
					continue
				}
				stats.Clinics[status] += int64(m.GetCounter().GetValue())
			}
		case messagesSentMetric:
			for _, m := range mf.Metric {
				stats.MessagesSent += int64(m.GetCounter().GetValue())
			}
		}
	}

	return stats
}

func fillLatency(stats *DispatchStats, mf *dto.MetricFamily) {
	cumulativeByUpper := map[float64]uint64{}
	var sampleCount uint64

	for _, metric := range mf.Metric {
		if metric == nil {
			continue
		}
		hist := metric.GetHistogram()
		if hist == nil {
			continue
		}
		sampleCount += hist.GetSampleCount()
		for _, b := range hist.Bucket {
			if b == nil {
				continue
			}
			cumulativeByUpper[b.GetUpperBound()] += b.GetCumulativeCount()
		}
	}

	if sampleCount == 0 || len(cumulativeByUpper) == 0 {
		return
	}

	uppers := make([]float64, 0, len(cumulativeByUpper))
	for upper := range cumulativeByUpper {
		uppers = append(uppers, upper)
	}
	sort.Float64s(uppers)

	stats.Runs = int64(sampleCount)
	stats.P50Ms = histogramQuantile(0.50, sampleCount, uppers, cumulativeByUpper) * 1000.0
	stats.P90Ms = histogramQuantile(0.90, sampleCount, uppers, cumulativeByUpper) * 1000.0
	stats.P99Ms = histogramQuantile(0.99, sampleCount, uppers, cumulativeByUpper) * 1000.0
}

func labelValue(metric *dto.Metric, name string) string {
	for _, lp := range metric.Label {
		if lp == nil {
			continue
		}
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

// histogramQuantile estimates a quantile from cumulative bucket counts with
// linear interpolation inside the bucket, the same way promql's
// histogram_quantile does.
func histogramQuantile(q float64, total uint64, uppers []float64, cumulativeByUpper map[float64]uint64) float64 {
	if total == 0 || q <= 0 {
		return 0
	}
	if q >= 1 {
		for i := len(uppers) - 1; i >= 0; i-- {
			if !math.IsInf(uppers[i], 1) {
				return uppers[i]
			}
		}
		return 0
	}

	target := q * float64(total)
	var prevUpper float64
	var prevCum float64

	for _, upper := range uppers {
		cum := float64(cumulativeByUpper[upper])
		if cum < target {
			prevUpper = upper
			prevCum = cum
			continue
		}

		bucketCount := cum - prevCum
		if bucketCount <= 0 || upper == prevUpper {
			return upper
		}
		if math.IsInf(upper, 1) {
			return prevUpper
		}

		fraction := (target - prevCum) / bucketCount
		if fraction < 0 {
			fraction = 0
		}
		if fraction > 1 {
			fraction = 1
		}

		return prevUpper + fraction*(upper-prevUpper)
	}

	return uppers[len(uppers)-1]
}
