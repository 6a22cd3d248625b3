package ingest

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstrumentRecordsRequestCountAndDuration(t *testing.T) {
	h := NewPluginHost()
	m := NewMetrics()

	reg := prometheus.NewRegistry()
	require.NoError(t, m.Register(reg))
	h.AddPlugin(m.Instrument())
	h.Get("/ping", func(req *Request, res *Response, ctx *PluginHost) (bool, error) {
		res.SetHTML("pong")
		return true, nil
	}, 0)
	require.NoError(t, h.Bootstrap())

	req := NewRequest()
	req.Method = "GET"
	req.URL.Pathname = "/ping"
	res := NewResponse()
	require.NoError(t, h.Handle(req, res))

	metricFamilies, err := reg.Gather()
	require.NoError(t, err)

	var requestsFamily *dto.MetricFamily
	for _, mf := range metricFamilies {
		if mf.GetName() == "ingest_requests_total" {
			requestsFamily = mf
		}
	}
	require.NotNil(t, requestsFamily)
	require.Len(t, requestsFamily.Metric, 1)
	assert.Equal(t, float64(1), requestsFamily.Metric[0].Counter.GetValue())
}

func TestInstrumentResetsInflightAfterResponse(t *testing.T) {
	h := NewPluginHost()
	m := NewMetrics()

	reg := prometheus.NewRegistry()
	require.NoError(t, m.Register(reg))
	h.AddPlugin(m.Instrument())
	h.Get("/ping", func(req *Request, res *Response, ctx *PluginHost) (bool, error) {
		res.SetHTML("pong")
		return true, nil
	}, 0)
	require.NoError(t, h.Bootstrap())

	req := NewRequest()
	req.Method = "GET"
	req.URL.Pathname = "/ping"
	res := NewResponse()
	require.NoError(t, h.Handle(req, res))

	var inflight dto.Metric
	require.NoError(t, m.Inflight.Write(&inflight))
	assert.Equal(t, float64(0), inflight.Gauge.GetValue())
}
