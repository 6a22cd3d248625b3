package ingest

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the three collectors `Instrument` registers: a count of
// completed requests by method and status code, a latency histogram, and
// an in-flight gauge. It is exported so an embedding application can mount
// it behind its own `/metrics` handler alongside other collectors.
type Metrics struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	Inflight prometheus.Gauge
}

// NewMetrics constructs an unregistered `Metrics` bundle.
func NewMetrics() *Metrics {
	return &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_requests_total",
			Help: "Total requests handled, by method and response code.",
		}, []string{"method", "code"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ingest_request_duration_seconds",
			Help:    "Request handling latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		Inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ingest_inflight_requests",
			Help: "Requests currently being handled.",
		}),
	}
}

// Register adds m's collectors to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.Requests, m.Duration, m.Inflight} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Instrument returns a `PluginFactory` that registers a "request"/"response"
// listener pair on host to record m's collectors around the full request
// lifecycle. Priority is `1<<30` on the "request" listener (so it runs
// before any "request" listener of lower priority) and `-(1<<30)` on
// "response" (so it runs after every "response" listener of higher
// priority and records the code they left behind).
func (m *Metrics) Instrument() PluginFactory {
	var mu sync.Mutex
	starts := map[*Request]time.Time{}

	return func(host *PluginHost) error {
		host.On("request", CallableAction(func(req *Request, res *Response, ctx *PluginHost) (bool, error) {
			m.Inflight.Inc()
			mu.Lock()
			starts[req] = time.Now()
			mu.Unlock()
			return true, nil
		}), 1<<30)

		host.On("response", CallableAction(func(req *Request, res *Response, ctx *PluginHost) (bool, error) {
			defer m.Inflight.Dec()

			code := res.Code
			if code == 0 {
				code = 200
			}
			m.Requests.WithLabelValues(req.Method, strconv.Itoa(code)).Inc()

			mu.Lock()
			start, ok := starts[req]
			delete(starts, req)
			mu.Unlock()
			if ok {
				m.Duration.WithLabelValues(req.Method).Observe(time.Since(start).Seconds())
			}
			return true, nil
		}), -(1 << 30))

		return nil
	}
}
