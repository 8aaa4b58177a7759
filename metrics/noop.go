package metrics

import (
	"sync/atomic"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/saiset-co/sai-proxy/types"
)

// NoopMetrics satisfies types.MetricsManager when metrics are disabled.
type NoopMetrics struct {
	running int32
}

func NewNoopMetrics() *NoopMetrics {
	return &NoopMetrics{}
}

func (n *NoopMetrics) Start() error {
	atomic.StoreInt32(&n.running, 1)
	return nil
}

func (n *NoopMetrics) Stop() error {
	atomic.StoreInt32(&n.running, 0)
	return nil
}

func (n *NoopMetrics) IsRunning() bool {
	return atomic.LoadInt32(&n.running) == 1
}

func (n *NoopMetrics) Counter(string, map[string]string) types.Counter {
	return noopInstrument{}
}

func (n *NoopMetrics) Gauge(string, map[string]string) types.Gauge {
	return noopInstrument{}
}

func (n *NoopMetrics) Histogram(string, []float64, map[string]string) types.Histogram {
	return noopInstrument{}
}

func (n *NoopMetrics) Handler() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusNotFound)
		ctx.SetBodyString("metrics disabled")
	}
}

type noopInstrument struct{}

func (noopInstrument) Inc()                      {}
func (noopInstrument) Dec()                      {}
func (noopInstrument) Add(float64)               {}
func (noopInstrument) Sub(float64)               {}
func (noopInstrument) Set(float64)               {}
func (noopInstrument) Get() float64              { return 0 }
func (noopInstrument) Observe(float64)           {}
func (noopInstrument) ObserveDuration(time.Time) {}
