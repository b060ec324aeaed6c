// Package observability defines the hooks through which the connector reports
// broker operations to metrics and tracing backends.
//
// Components accept an optional Observer. When present, it is notified once per
// connect, declare, consume, ack, publish and recover operation with an OperationContext
// describing what happened:
//
//	type countingObserver struct{ n int }
//
//	func (o *countingObserver) ObserveOperation(ctx observability.OperationContext) {
//		if ctx.Operation == observability.OperationPublish && ctx.Error == nil {
//			o.n++
//		}
//	}
//
// The metrics package ships a Prometheus backed implementation.
package observability

import "time"

// Operation names reported by the connector.
const (
	OperationConnect = "connect"
	OperationDeclare = "declare"
	OperationConsume = "consume"
	OperationAck     = "ack"
	OperationPublish = "publish"
	OperationRecover = "recover"
)

// OperationContext describes a single broker operation.
type OperationContext struct {
	// Component is the reporting component, e.g. "consumer" or "producer".
	Component string

	// Operation is one of the Operation* constants.
	Operation string

	// Resource is the primary target, usually a queue or exchange name.
	Resource string

	// SubResource is a secondary target such as the routing key.
	SubResource string

	// Duration is the time the operation took.
	Duration time.Duration

	// Error is the failure, nil on success.
	Error error

	// Size is the payload size in bytes, zero when not applicable.
	Size int64

	// Metadata carries operation specific extras.
	Metadata map[string]interface{}
}

// Observer receives operation notifications. Implementations must be safe for
// concurrent use.
type Observer interface {
	ObserveOperation(ctx OperationContext)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx OperationContext)

// ObserveOperation calls f(ctx).
func (f ObserverFunc) ObserveOperation(ctx OperationContext) {
	f(ctx)
}

// Notify forwards ctx to o when o is not nil.
func Notify(o Observer, ctx OperationContext) {
	if o == nil {
		return
	}
	o.ObserveOperation(ctx)
}
