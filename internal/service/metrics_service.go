package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/sma-billing-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the billing API.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheLookups    *prometheus.CounterVec
	dbQueryDuration *prometheus.HistogramVec

	billsCreated      *prometheus.CounterVec
	paymentsApplied   *prometheus.CounterVec
	paymentAmount     *prometheus.CounterVec
	paymentRejections *prometheus.CounterVec
	overdueBills      *prometheus.GaugeVec
	overdueBalance    *prometheus.GaugeVec
}

// NewMetricsService registers the Prometheus collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_lookups_total",
		Help: "Cache lookups by result",
	}, []string{"result"})

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	billsCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_bills_created_total",
		Help: "Bills issued by kind",
	}, []string{"kind"})

	paymentsApplied := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_payments_applied_total",
		Help: "Payments applied by bill kind and method",
	}, []string{"kind", "method"})

	paymentAmount := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_payment_amount_total",
		Help: "Sum of applied payment amounts by currency",
	}, []string{"currency"})

	paymentRejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_payment_rejections_total",
		Help: "Rejected payment attempts by reason",
	}, []string{"reason"})

	overdueBills := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "billing_overdue_bills",
		Help: "Unsettled bills past their due date, by kind",
	}, []string{"kind"})

	overdueBalance := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "billing_overdue_balance",
		Help: "Outstanding balance of overdue bills, by kind",
	}, []string{"kind"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		requestDuration, requestTotal, cacheLatency, cacheWrite, cacheLookups, dbQueryDuration,
		billsCreated, paymentsApplied, paymentAmount, paymentRejections, overdueBills, overdueBalance,
		goroutines,
	)

	return &MetricsService{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		cacheLatency:      cacheLatency,
		cacheWrite:        cacheWrite,
		cacheLookups:      cacheLookups,
		dbQueryDuration:   dbQueryDuration,
		billsCreated:      billsCreated,
		paymentsApplied:   paymentsApplied,
		paymentAmount:     paymentAmount,
		paymentRejections: paymentRejections,
		overdueBills:      overdueBills,
		overdueBalance:    overdueBalance,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry returns the underlying registry.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a cache lookup outcome.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// RecordBillCreated counts an issued bill.
func (m *MetricsService) RecordBillCreated(kind models.BillKind) {
	if m == nil {
		return
	}
	m.billsCreated.WithLabelValues(string(kind)).Inc()
}

// RecordPayment counts an applied payment and adds its amount.
func (m *MetricsService) RecordPayment(kind models.BillKind, method models.PaymentMethod, currency string, amount decimal.Decimal) {
	if m == nil {
		return
	}
	m.paymentsApplied.WithLabelValues(string(kind), string(method)).Inc()
	m.paymentAmount.WithLabelValues(currency).Add(amount.InexactFloat64())
}

// RecordPaymentRejected counts a rejected payment attempt.
func (m *MetricsService) RecordPaymentRejected(reason string) {
	if m == nil {
		return
	}
	m.paymentRejections.WithLabelValues(reason).Inc()
}

// SetOverdue publishes the latest overdue totals. Kinds absent from counts are reset to zero.
func (m *MetricsService) SetOverdue(counts []models.OverdueCount) {
	if m == nil {
		return
	}
	seen := map[models.BillKind]bool{}
	for _, c := range counts {
		seen[c.Kind] = true
		m.overdueBills.WithLabelValues(string(c.Kind)).Set(float64(c.Count))
		m.overdueBalance.WithLabelValues(string(c.Kind)).Set(c.Outstanding.InexactFloat64())
	}
	for _, kind := range []models.BillKind{models.BillKindExam, models.BillKindCertificate} {
		if !seen[kind] {
			m.overdueBills.WithLabelValues(string(kind)).Set(0)
			m.overdueBalance.WithLabelValues(string(kind)).Set(0)
		}
	}
}
