// Package metrics exposes Prometheus counters for dispatch, reminders and approvals.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder is what the dispatcher, scheduler and tracker report to.
type Recorder interface {
	RecordDispatch(trigger, outcome string)
	RecordHandlerLatency(trigger string, d time.Duration)
	RecordReminderSent(kind string)
	RecordApproval(status string)
	RecordChatFailure(op string)
}

// Collector is the Prometheus implementation of Recorder.
type Collector struct {
	dispatch      *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	remindersSent *prometheus.CounterVec
	approvals     *prometheus.CounterVec
	chatFailures  *prometheus.CounterVec
}

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		dispatch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tildy_dispatch_total",
			Help: "Messages dispatched, by trigger and outcome",
		}, []string{"trigger", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tildy_handler_latency_seconds",
			Help:    "Trigger handler latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"trigger"}),
		remindersSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tildy_reminders_sent_total",
			Help: "Reminders posted, by kind",
		}, []string{"kind"}),
		approvals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tildy_approvals_total",
			Help: "Pending approvals resolved, by final status",
		}, []string{"status"}),
		chatFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tildy_chat_failures_total",
			Help: "Chat API calls that failed after retries",
		}, []string{"op"}),
	}

	reg.MustRegister(
		c.dispatch,
		c.latency,
		c.remindersSent,
		c.approvals,
		c.chatFailures,
	)

	return c
}

func (c *Collector) RecordDispatch(trigger, outcome string) {
	c.dispatch.WithLabelValues(trigger, outcome).Inc()
}

func (c *Collector) RecordHandlerLatency(trigger string, d time.Duration) {
	c.latency.WithLabelValues(trigger).Observe(d.Seconds())
}

func (c *Collector) RecordReminderSent(kind string) {
	c.remindersSent.WithLabelValues(kind).Inc()
}

func (c *Collector) RecordApproval(status string) {
	c.approvals.WithLabelValues(status).Inc()
}

func (c *Collector) RecordChatFailure(op string) {
	c.chatFailures.WithLabelValues(op).Inc()
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordDispatch(string, string) {}
func (Nop) RecordHandlerLatency(string, time.Duration) {}
func (Nop) RecordReminderSent(string) {}
func (Nop) RecordApproval(string) {}
func (Nop) RecordChatFailure(string) {}
