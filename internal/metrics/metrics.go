package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors updated by the notification store and
// the offline queue. A nil *Metrics is valid and records nothing.
type Metrics struct {
	NotificationsAdded *prometheus.CounterVec
	Unread             prometheus.Gauge
	QueueDepth         prometheus.Gauge
	Flushes            *prometheus.CounterVec
	WriteErrors        *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		NotificationsAdded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pmcore_notifications_total",
			Help: "Notifications added, by kind.",
		}, []string{"kind"}),
		Unread: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pmcore_notifications_unread",
			Help: "Current number of unread notifications.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pmcore_offline_queue_depth",
			Help: "Entries waiting in the offline queue.",
		}),
		Flushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pmcore_offline_flushes_total",
			Help: "Offline queue flushes, by result.",
		}, []string{"result"}),
		WriteErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pmcore_kv_write_errors_total",
			Help: "Failed key-value writes, by storage key.",
		}, []string{"key"}),
	}

	reg.MustRegister(
		m.NotificationsAdded,
		m.Unread,
		m.QueueDepth,
		m.Flushes,
		m.WriteErrors,
	)
	return m
}

// Handler returns an http.Handler serving the metrics in reg.
func Handler(reg prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// NotificationAdded counts a new notification of kind.
func (m *Metrics) NotificationAdded(kind string) {
	if m == nil {
		return
	}
	m.NotificationsAdded.WithLabelValues(kind).Inc()
}

// SetUnread records the current unread count.
func (m *Metrics) SetUnread(n int) {
	if m == nil {
		return
	}
	m.Unread.Set(float64(n))
}

// SetQueueDepth records the current offline queue length.
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}

// Flushed counts a flush with the given result label
// ("ok", "failed" or "dropped").
func (m *Metrics) Flushed(result string) {
	if m == nil {
		return
	}
	m.Flushes.WithLabelValues(result).Inc()
}

// WriteFailed counts a failed write under key.
func (m *Metrics) WriteFailed(key string) {
	if m == nil {
		return
	}
	m.WriteErrors.WithLabelValues(key).Inc()
}
