package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "bgnc"

type metricDesc struct {
	desc  *prometheus.Desc
	kind  prometheus.ValueType
	value func(*Collector) float64
}

func newDesc(subsystem, name, help string, kind prometheus.ValueType, value func(*Collector) float64) metricDesc {
	return metricDesc{
		desc:  prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, name), help, nil, nil),
		kind:  kind,
		value: value,
	}
}

var descs = []metricDesc{
	newDesc("connections", "active", "Open transport connections.", prometheus.GaugeValue,
		func(c *Collector) float64 { return float64(c.connectionsActive.Load()) }),
	newDesc("connections", "total", "Transports that reached the connected state.", prometheus.CounterValue,
		func(c *Collector) float64 { return float64(c.connectionsTotal.Load()) }),
	newDesc("connections", "failed_total", "Transports that failed to connect.", prometheus.CounterValue,
		func(c *Collector) float64 { return float64(c.connectFailures.Load()) }),
	newDesc("", "bytes_received_total", "Bytes read from the stream.", prometheus.CounterValue,
		func(c *Collector) float64 { return float64(c.bytesIn.Load()) }),
	newDesc("", "bytes_sent_total", "Bytes written to the stream.", prometheus.CounterValue,
		func(c *Collector) float64 { return float64(c.bytesOut.Load()) }),
	newDesc("events", "live_total", "Events delivered to an attached listener without waiting.", prometheus.CounterValue,
		func(c *Collector) float64 { return float64(c.eventsLive.Load()) }),
	newDesc("events", "replayed_total", "Events delivered from the backlog on attach.", prometheus.CounterValue,
		func(c *Collector) float64 { return float64(c.eventsReplayed.Load()) }),
	newDesc("events", "backlog", "Events waiting for a listener.", prometheus.GaugeValue,
		func(c *Collector) float64 { return float64(c.backlog.Load()) }),
	newDesc("reads", "batches_total", "Coalesced data batches delivered.", prometheus.CounterValue,
		func(c *Collector) float64 { return float64(c.batches.Load()) }),
	newDesc("reads", "chunks_total", "Read chunks delivered inside batches.", prometheus.CounterValue,
		func(c *Collector) float64 { return float64(c.chunks.Load()) }),
	newDesc("listener", "attaches_total", "Listener attaches.", prometheus.CounterValue,
		func(c *Collector) float64 { return float64(c.attaches.Load()) }),
	newDesc("listener", "detaches_total", "Listener detaches.", prometheus.CounterValue,
		func(c *Collector) float64 { return float64(c.detaches.Load()) }),
	newDesc("gateway", "reconnects_total", "SSH gateway reconnections.", prometheus.CounterValue,
		func(c *Collector) float64 { return float64(c.gatewayReconnects.Load()) }),
	newDesc("", "errors_total", "Errors recorded.", prometheus.CounterValue,
		func(c *Collector) float64 { return float64(c.errorsTotal.Load()) }),
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range descs {
		ch <- d.desc
	}
}

// Collect implements prometheus.Collector.  Values are read at scrape
// time.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c == nil {
		return
	}
	for _, d := range descs {
		ch <- prometheus.MustNewConstMetric(d.desc, d.kind, d.value(c))
	}
}

var _ prometheus.Collector = (*Collector)(nil)
