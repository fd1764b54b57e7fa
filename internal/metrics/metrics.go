// Package metrics collects and exposes Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the interface the services and the realtime hub record through.
type Recorder interface {
	RecordMessageSent()
	RecordPolicyDenial(entity, op string)
	RecordBroadcast(recipients int)
	RecordDuplicateAck()
	RecordOrphansSwept(count int64)
}

// Collector is the Prometheus-backed Recorder.
type Collector struct {
	messagesSent  prometheus.Counter
	policyDenials *prometheus.CounterVec
	broadcasts    prometheus.Counter
	recipients    prometheus.Counter
	duplicateAcks prometheus.Counter
	orphansSwept  prometheus.Counter
}

// NewCollector creates a Collector and registers its metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		messagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatcore_messages_sent_total",
			Help: "Messages accepted into a conversation log.",
		}),
		policyDenials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatcore_policy_denials_total",
			Help: "Operations rejected by the membership gate, by entity and operation.",
		}, []string{"entity", "op"}),
		broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatcore_broadcasts_total",
			Help: "Change-feed broadcasts triggered by message inserts.",
		}),
		recipients: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatcore_broadcast_recipients_total",
			Help: "Total recipients across all broadcasts.",
		}),
		duplicateAcks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatcore_duplicate_acks_total",
			Help: "Read receipts that hit the (message, user) unique constraint.",
		}),
		orphansSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatcore_orphan_conversations_swept_total",
			Help: "Membership-less conversations removed by the sweeper.",
		}),
	}

	reg.MustRegister(
		c.messagesSent,
		c.policyDenials,
		c.broadcasts,
		c.recipients,
		c.duplicateAcks,
		c.orphansSwept,
	)

	return c
}

func (c *Collector) RecordMessageSent() {
	c.messagesSent.Inc()
}

func (c *Collector) RecordPolicyDenial(entity, op string) {
	c.policyDenials.WithLabelValues(entity, op).Inc()
}

func (c *Collector) RecordBroadcast(recipients int) {
	c.broadcasts.Inc()
	c.recipients.Add(float64(recipients))
}

func (c *Collector) RecordDuplicateAck() {
	c.duplicateAcks.Inc()
}

func (c *Collector) RecordOrphansSwept(count int64) {
	c.orphansSwept.Add(float64(count))
}

// Handler returns the scrape endpoint for the given gatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Nop is a Recorder that discards everything, for tests and wiring without
// a registry.
type Nop struct{}

func (Nop) RecordMessageSent()                   {}
func (Nop) RecordPolicyDenial(entity, op string) {}
func (Nop) RecordBroadcast(recipients int)       {}
func (Nop) RecordDuplicateAck()                  {}
func (Nop) RecordOrphansSwept(count int64)       {}
