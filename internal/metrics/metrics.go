// Package metrics registers the prometheus instruments shared by the relay
// and the consumers. The registry is injected, never global.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Relay instruments the outbox relay.
type Relay struct {
	Pending       prometheus.Gauge
	OldestAge     prometheus.Gauge
	DeadRows      prometheus.Gauge
	Published     prometheus.Counter
	PublishFailed prometheus.Counter
}

// NewRelay registers relay gauges and counters.
func NewRelay(reg prometheus.Registerer) *Relay {
	m := &Relay{
		Pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "outbox_pending_rows",
			Help: "Unpublished outbox rows eligible for relay.",
		}),
		OldestAge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "outbox_oldest_pending_age_seconds",
			Help: "Age of the oldest unpublished outbox row.",
		}),
		DeadRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "outbox_dead_rows",
			Help: "Unpublished rows past the retry ceiling, flagged for manual intervention.",
		}),
		Published: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "outbox_published_total",
			Help: "Outbox rows successfully published and marked.",
		}),
		PublishFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "outbox_publish_failed_total",
			Help: "Attempted-and-failed publish calls.",
		}),
	}
	reg.MustRegister(m.Pending, m.OldestAge, m.DeadRows, m.Published, m.PublishFailed)
	return m
}

// Consumer instruments an idempotent consumer stage.
type Consumer struct {
	Processed  prometheus.Counter
	Duplicates prometheus.Counter
	DeadLetter prometheus.Counter
}

// NewConsumer registers consumer counters labelled by pipeline stage.
func NewConsumer(reg prometheus.Registerer, stage string) *Consumer {
	labels := prometheus.Labels{"stage": stage}
	m := &Consumer{
		Processed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "consumer_processed_total", Help: "Messages whose effect committed.", ConstLabels: labels,
		}),
		Duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "consumer_duplicates_total", Help: "Redeliveries short-circuited by the ledger.", ConstLabels: labels,
		}),
		DeadLetter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "consumer_dead_lettered_total", Help: "Messages routed to the dead-letter topic.", ConstLabels: labels,
		}),
	}
	reg.MustRegister(m.Processed, m.Duplicates, m.DeadLetter)
	return m
}
