package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the application.
type Metrics struct {
	registry          *prometheus.Registry
	handler           http.Handler
	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	posGenerated      *prometheus.CounterVec
	invoicesProcessed *prometheus.CounterVec
	domainErrors      *prometheus.CounterVec
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pharmos_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pharmos_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	posGenerated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pharmos_purchase_orders_generated_total",
		Help: "Purchase orders generated by type.",
	}, []string{"po_type"})
	invoicesProcessed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pharmos_invoices_processed_total",
		Help: "Invoices processed by PO type and resulting PO status.",
	}, []string{"po_type", "po_status"})
	domainErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pharmos_domain_errors_total",
		Help: "Business-rule violations by error code.",
	}, []string{"code"})
	registry.MustRegister(requests, duration, posGenerated, invoicesProcessed, domainErrors)
	return &Metrics{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:     requests,
		requestDuration:   duration,
		posGenerated:      posGenerated,
		invoicesProcessed: invoicesProcessed,
		domainErrors:      domainErrors,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// CountPOGenerated increments the generation counter for one PO type.
func (m *Metrics) CountPOGenerated(poType string) {
	if m == nil {
		return
	}
	m.posGenerated.WithLabelValues(poType).Inc()
}

// CountInvoiceProcessed increments the invoice counter.
func (m *Metrics) CountInvoiceProcessed(poType, poStatus string) {
	if m == nil {
		return
	}
	m.invoicesProcessed.WithLabelValues(poType, poStatus).Inc()
}

// CountDomainError increments the business-rule violation counter.
func (m *Metrics) CountDomainError(code string) {
	if m == nil {
		return
	}
	m.domainErrors.WithLabelValues(code).Inc()
}

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
