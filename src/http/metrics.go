// MIT License
//
// Copyright (c) 2025 agrismart-core
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// go/src/http/metrics.go
package httpapi

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the API's Prometheus instruments.
type Metrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	mined    prometheus.Counter
	pending  prometheus.GaugeFunc
}

// NewMetrics registers the API instruments on the given registry.
// pendingCount: Sampled on scrape for the pending-pool gauge
func NewMetrics(reg prometheus.Registerer, pendingCount func() int) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agrismart",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "HTTP requests served, by method, route and status code.",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agrismart",
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency, by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		mined: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agrismart",
			Subsystem: "ledger",
			Name:      "blocks_mined_total",
			Help:      "Blocks mined through the API, automine included.",
		}),
		pending: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "agrismart",
			Subsystem: "ledger",
			Name:      "pending_transactions",
			Help:      "Stage records waiting in the pending pool.",
		}, func() float64 { return float64(pendingCount()) }),
	}
	reg.MustRegister(m.requests, m.latency, m.mined, m.pending)
	return m
}

// Instrument is a gin middleware recording request counts and latency. Routes
// are labeled by their registered pattern, not the raw path, to keep label
// cardinality bounded.
func (m *Metrics) Instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.latency.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}
