package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Aleph-Alpha/amqpconnector/pkg/observability"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// ObserveOperation implements observability.Observer. Failed operations
// count with status "error"; explicit-ack consumes and acks move the
// unacked gauge of their queue, and a recovery resets it since the broker
// requeues whatever the lost channel had outstanding.
func (m *Metrics) ObserveOperation(ctx observability.OperationContext) {
	status := statusSuccess
	if ctx.Error != nil {
		status = statusError
	}

	m.operationsTotal.WithLabelValues(ctx.Component, ctx.Operation, status).Inc()
	m.operationDuration.WithLabelValues(ctx.Component, ctx.Operation).Observe(ctx.Duration.Seconds())

	switch ctx.Operation {
	case observability.OperationConsume, observability.OperationPublish:
		if ctx.Error == nil {
			m.payloadBytes.WithLabelValues(ctx.Component, ctx.Operation).Observe(float64(ctx.Size))
		}
	}

	if mode, _ := ctx.Metadata["ack_mode"].(string); mode == "explicit" {
		switch ctx.Operation {
		case observability.OperationConsume:
			m.unackedDeliveries.WithLabelValues(ctx.Resource).Inc()
		case observability.OperationAck:
			if ctx.Error == nil {
				m.unackedDeliveries.WithLabelValues(ctx.Resource).Dec()
			}
		case observability.OperationRecover:
			m.unackedDeliveries.WithLabelValues(ctx.Resource).Set(0)
		}
	}
}

// CreateCounter registers and returns an additional counter vector.
func (m *Metrics) CreateCounter(name, help string, labels []string) *prometheus.CounterVec {
	counter := createCounterVec("", name, help, labels)
	m.Registry.MustRegister(counter)
	return counter
}

func createCounterVec(namespace, name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

func createHistogramVec(namespace, name, help string, labels []string, buckets []float64) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
			Buckets:   buckets,
		},
		labels,
	)
}

func createGaugeVec(namespace, name, help string, labels []string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		},
		labels,
	)
}
