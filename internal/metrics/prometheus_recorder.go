package metrics

import (
	"strconv"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "timetracker"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	flushes         *prom.CounterVec
	sessionDuration prom.Histogram
	syncOutcomes    *prom.CounterVec
	deliveredSecs   *prom.CounterVec
	accruing        prom.Gauge
	pendingMS       prom.Gauge
	lifecycleEvents *prom.CounterVec
	requestDuration *prom.HistogramVec
	httpDuration    *prom.HistogramVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics on reg.
// A nil registry gets a fresh one.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		flushes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "flushes_total",
			Help:      "Writes of the unsent duration to local storage",
		}, []string{"result"}),
		sessionDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "accrual_session_duration_seconds",
			Help:      "Length of foreground accrual sessions",
			Buckets:   []float64{1, 5, 15, 30, 60, 300, 900, 1800, 3600, 7200},
		}),
		syncOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "sync_outcomes_total",
			Help:      "Reconciliation attempts by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),
		deliveredSecs: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "delivered_seconds_total",
			Help:      "Seconds of usage accepted by the backend",
		}, []string{"endpoint"}),
		accruing: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "accruing",
			Help:      "1 while foreground time is being accumulated",
		}),
		pendingMS: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_milliseconds",
			Help:      "Unsent duration currently persisted locally",
		}),
		lifecycleEvents: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "lifecycle_events_total",
			Help:      "Visibility notifications received by state",
		}, []string{"state"}),
		requestDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Duration of backend API requests",
			Buckets:   prom.DefBuckets,
		}, []string{"path", "status"}),
		httpDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of agent API requests",
			Buckets:   prom.DefBuckets,
		}, []string{"route", "status"}),
	}
	reg.MustRegister(pr.flushes, pr.sessionDuration, pr.syncOutcomes, pr.deliveredSecs,
		pr.accruing, pr.pendingMS, pr.lifecycleEvents, pr.requestDuration, pr.httpDuration)
	return pr
}

func (p *PrometheusRecorder) IncFlush(success bool) {
	if p == nil {
		return
	}
	p.flushes.WithLabelValues(resultLabel(success)).Inc()
}

func (p *PrometheusRecorder) ObserveSessionDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.sessionDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncSyncOutcome(endpoint string, outcome OutcomeLabel) {
	if p == nil {
		return
	}
	p.syncOutcomes.WithLabelValues(endpoint, string(outcome)).Inc()
}

func (p *PrometheusRecorder) AddDeliveredSeconds(endpoint string, seconds int64) {
	if p == nil || seconds <= 0 {
		return
	}
	p.deliveredSecs.WithLabelValues(endpoint).Add(float64(seconds))
}

func (p *PrometheusRecorder) SetAccruing(on bool) {
	if p == nil {
		return
	}
	if on {
		p.accruing.Set(1)
		return
	}
	p.accruing.Set(0)
}

func (p *PrometheusRecorder) SetPendingMilliseconds(ms int64) {
	if p == nil {
		return
	}
	p.pendingMS.Set(float64(ms))
}

func (p *PrometheusRecorder) IncLifecycleEvent(state string) {
	if p == nil {
		return
	}
	p.lifecycleEvents.WithLabelValues(state).Inc()
}

func (p *PrometheusRecorder) ObserveRequestDuration(path string, d time.Duration, status int) {
	if p == nil {
		return
	}
	p.requestDuration.WithLabelValues(path, strconv.Itoa(status)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveHTTPRequest(route string, d time.Duration, status int) {
	if p == nil {
		return
	}
	p.httpDuration.WithLabelValues(route, strconv.Itoa(status)).Observe(d.Seconds())
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failed"
}
