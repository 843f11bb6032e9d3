package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the server exports. A nil *Metrics records nothing.
type Metrics struct {
	reg *prometheus.Registry

	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec

	CheckoutCompleted prometheus.Counter
	CheckoutFailed    *prometheus.CounterVec
	CheckoutReplayed  prometheus.Counter
	CheckoutRetries   prometheus.Counter
	OutboxPublished   prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "storefront",
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"route"}),
		CheckoutCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "checkout_completed_total",
			Help:      "Orders placed.",
		}),
		CheckoutFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "checkout_failed_total",
			Help:      "Checkout completions that failed, by reason.",
		}, []string{"reason"}),
		CheckoutReplayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "checkout_replayed_total",
			Help:      "Completions answered with an order already placed under the same key.",
		}),
		CheckoutRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "checkout_retries_total",
			Help:      "Checkout transactions retried after a store conflict.",
		}),
		OutboxPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "outbox_published_total",
			Help:      "Outbox records delivered to the publisher.",
		}),
	}
	m.reg.MustRegister(
		m.Requests, m.LatencyMS,
		m.CheckoutCompleted, m.CheckoutFailed, m.CheckoutReplayed, m.CheckoutRetries,
		m.OutboxPublished,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Middleware counts requests by matched route pattern, so ids in paths do not
// explode the label set.
func (m *Metrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		if m == nil {
			return err
		}
		status := c.Response().StatusCode()
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		} else if err != nil {
			status = fiber.StatusInternalServerError
		}
		route := c.Route().Path
		m.Requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		m.LatencyMS.WithLabelValues(route).Observe(float64(time.Since(start).Microseconds()) / 1000)
		return err
	}
}

func (m *Metrics) CheckoutDone() {
	if m != nil {
		m.CheckoutCompleted.Inc()
	}
}

func (m *Metrics) CheckoutFail(reason string) {
	if m != nil {
		m.CheckoutFailed.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) CheckoutReplay() {
	if m != nil {
		m.CheckoutReplayed.Inc()
	}
}

func (m *Metrics) CheckoutRetry() {
	if m != nil {
		m.CheckoutRetries.Inc()
	}
}

func (m *Metrics) Published(n int) {
	if m != nil {
		m.OutboxPublished.Add(float64(n))
	}
}
