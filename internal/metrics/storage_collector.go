package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/osvaldoandrade/flowdb/pkg/persistence"

	"github.com/prometheus/client_golang/prometheus"
)

type storageCollector struct {
	flows  persistence.FlowStorage
	logger *slog.Logger

	flowsDesc *prometheus.Desc
}

func newStorageCollector(flows persistence.FlowStorage, logger *slog.Logger) *storageCollector {
	if logger == nil {
		logger = slog.Default()
	}
	return &storageCollector{
		flows:  flows,
		logger: logger,
		flowsDesc: prometheus.NewDesc(
			"flowdb_flows",
			"Current number of stored flows by status.",
			[]string{"status"},
			nil,
		),
	}
}

func (c *storageCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.flowsDesc
}

func (c *storageCollector) Collect(ch chan<- prometheus.Metric) {
	if c.flows == nil {
		return
	}

	// Keep storage reads bounded so scrapes do not hang.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	counts, err := c.flows.CountByStatus(ctx)
	if err != nil {
		c.logger.Warn("prometheus storage collector failed", "err", err)
		return
	}
	for status, n := range counts {
		emitGauge(ch, c.flowsDesc, float64(n), status)
	}
}

func emitGauge(ch chan<- prometheus.Metric, desc *prometheus.Desc, v float64, labelValues ...string) {
	m, err := prometheus.NewConstMetric(desc, prometheus.GaugeValue, v, labelValues...)
	if err != nil {
		return
	}
	ch <- m
}

var registerStorageCollectorOnce sync.Once

// RegisterStorageCollector exposes flowdb_flows on the default registry.
func RegisterStorageCollector(flows persistence.FlowStorage, logger *slog.Logger) {
	registerStorageCollectorOnce.Do(func() {
		prometheus.MustRegister(newStorageCollector(flows, logger))
	})
}
