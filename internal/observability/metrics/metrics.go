package metrics

import "github.com/prometheus/client_golang/prometheus"

// QueueMetrics exposes counters for token allocation.
type QueueMetrics struct {
	allocationsTotal *prometheus.CounterVec
	conflictsTotal   prometheus.Counter
	sessionFullTotal prometheus.Counter
}

func NewQueueMetrics(reg prometheus.Registerer) *QueueMetrics {
	m := &QueueMetrics{
		allocationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "klinicq",
			Subsystem: "queue",
			Name:      "allocations_total",
			Help:      "Total token allocations by booking channel",
		}, []string{"booked_via"}),
		conflictsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "klinicq",
			Subsystem: "queue",
			Name:      "allocation_conflicts_total",
			Help:      "Allocation transactions retried after losing a race",
		}),
		sessionFullTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "klinicq",
			Subsystem: "queue",
			Name:      "session_full_total",
			Help:      "Allocations rejected because the session reached capacity",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.allocationsTotal, m.conflictsTotal, m.sessionFullTotal)
	return m
}

func (m *QueueMetrics) ObserveAllocation(bookedVia string) {
	if m == nil {
		return
	}
	m.allocationsTotal.WithLabelValues(bookedVia).Inc()
}

func (m *QueueMetrics) ObserveConflict() {
	if m == nil {
		return
	}
	m.conflictsTotal.Inc()
}

func (m *QueueMetrics) ObserveSessionFull() {
	if m == nil {
		return
	}
	m.sessionFullTotal.Inc()
}

// ReminderMetrics exposes counters/histograms for the daily dispatcher.
type ReminderMetrics struct {
	clinicsTotal   *prometheus.CounterVec
	remindersTotal prometheus.Counter
	batchDuration  prometheus.Histogram
}

func NewReminderMetrics(reg prometheus.Registerer) *ReminderMetrics {
	m := &ReminderMetrics{
		clinicsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "klinicq",
			Subsystem: "reminder",
			Name:      "clinics_processed_total",
			Help:      "Clinics processed by the daily dispatcher, by outcome",
		}, []string{"status"}),
		remindersTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "klinicq",
			Subsystem: "reminder",
			Name:      "messages_sent_total",
			Help:      "Reminder messages handed to the outbound sender",
		}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "klinicq",
			Subsystem: "reminder",
			Name:      "batch_duration_seconds",
			Help:      "Duration of a full dispatcher run",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.clinicsTotal, m.remindersTotal, m.batchDuration)
	return m
}

func (m *ReminderMetrics) ObserveClinic(status string) {
	if m == nil {
		return
	}
	m.clinicsTotal.WithLabelValues(status).Inc()
}

func (m *ReminderMetrics) ObserveMessagesSent(n int) {
	if m == nil {
		return
	}
	m.remindersTotal.Add(float64(n))
}

func (m *ReminderMetrics) ObserveBatchDuration(seconds float64) {
	if m == nil {
		return
	}
	m.batchDuration.Observe(seconds)
}

// WebhookMetrics exposes counters for the inbound chat webhook.
type WebhookMetrics struct {
	inboundTotal *prometheus.CounterVec
	repliesTotal *prometheus.CounterVec
}

func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	m := &WebhookMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "klinicq",
			Subsystem: "webhook",
			Name:      "inbound_total",
			Help:      "Inbound chat webhook deliveries by outcome",
		}, []string{"status"}),
		repliesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "klinicq",
			Subsystem: "webhook",
			Name:      "replies_total",
			Help:      "Replies produced by the inbound worker, by intent and outcome",
		}, []string{"intent", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.repliesTotal)
	return m
}

func (m *WebhookMetrics) ObserveInbound(status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(status).Inc()
}

func (m *WebhookMetrics) ObserveReply(intent, status string) {
	if m == nil {
		return
	}
	m.repliesTotal.WithLabelValues(intent, status).Inc()
}
