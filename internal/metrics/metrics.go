// Package metrics exposes Prometheus instrumentation for graphql-ws sessions.
//
// A nil *Collector is valid and records nothing, so callers never need to check
// whether metrics were enabled.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Handshake outcomes recorded by Handshake.
const (
	HandshakeAck     = "ack"
	HandshakeError   = "error"
	HandshakeTimeout = "timeout"
)

// Collector holds the Prometheus metrics of one or more clients.
type Collector struct {
	framesSent       *prometheus.CounterVec
	framesReceived   *prometheus.CounterVec
	frameErrors      prometheus.Counter
	operationsTotal  *prometheus.CounterVec
	operationsActive *prometheus.GaugeVec
	handshakes       *prometheus.CounterVec
}

// New registers the client metrics with reg under namespace.
// It returns nil when reg is nil. Clients sharing a registry share the metrics.
func New(reg prometheus.Registerer, namespace string) *Collector {
	if reg == nil {
		return nil
	}

	return &Collector{
		framesSent: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Total number of graphql-ws frames sent, by type",
		}, []string{"type"})),

		framesReceived: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Total number of graphql-ws frames received, by type",
		}, []string{"type"})),

		frameErrors: register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frame_errors_total",
			Help:      "Total number of inbound messages that could not be decoded",
		})),

		operationsTotal: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Total number of operations started, by kind",
		}, []string{"kind"})),

		operationsActive: register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "operations_active",
			Help:      "Number of operations currently open, by kind",
		}, []string{"kind"})),

		handshakes: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handshakes_total",
			Help:      "Total number of connection_init handshakes, by outcome",
		}, []string{"result"})),
	}
}

// register adds c to reg, reusing an identical collector that is already registered.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	err := reg.Register(c)
	if err == nil {
		return c
	}

	if are, ok := errors.AsType[prometheus.AlreadyRegisteredError](err); ok {
		if existing, ok := are.ExistingCollector.(T); ok {
			return existing
		}
	}

	return c
}

// FrameSent counts an outbound frame.
func (c *Collector) FrameSent(frameType string) {
	if c == nil {
		return
	}

	c.framesSent.WithLabelValues(frameType).Inc()
}

// FrameReceived counts an inbound frame.
func (c *Collector) FrameReceived(frameType string) {
	if c == nil {
		return
	}

	c.framesReceived.WithLabelValues(frameType).Inc()
}

// FrameError counts an inbound message that failed to decode.
func (c *Collector) FrameError() {
	if c == nil {
		return
	}

	c.frameErrors.Inc()
}

// OperationStarted records a newly opened operation.
func (c *Collector) OperationStarted(kind string) {
	if c == nil {
		return
	}

	c.operationsTotal.WithLabelValues(kind).Inc()
	c.operationsActive.WithLabelValues(kind).Inc()
}

// OperationFinished records a closed operation.
func (c *Collector) OperationFinished(kind string) {
	if c == nil {
		return
	}

	c.operationsActive.WithLabelValues(kind).Dec()
}

// Handshake records a handshake outcome.
func (c *Collector) Handshake(result string) {
	if c == nil {
		return
	}

	c.handshakes.WithLabelValues(result).Inc()
}
