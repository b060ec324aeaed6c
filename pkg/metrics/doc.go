// Package metrics exposes broker operation metrics to Prometheus.
//
// *Metrics implements observability.Observer. Pass it to the consumer and
// producer and it records, per component and operation:
//
//	rabbit_operations_total{component,operation,status}
//	rabbit_operation_duration_seconds{component,operation}
//	rabbit_payload_bytes{component,operation}
//	rabbit_unacked_deliveries{queue}
//
// All metrics carry a service label and are served on /metrics.
package metrics
