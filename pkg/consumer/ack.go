package consumer

import (
	"context"

	"github.com/Aleph-Alpha/amqpconnector/pkg/message"
)

// AckMode selects who settles a delivery.
type AckMode int

const (
	// AutoAck lets the broker settle messages as soon as they are delivered.
	AutoAck AckMode = iota
	// ExplicitAck settles a message when its completion handle is invoked.
	ExplicitAck
)

func (m AckMode) String() string {
	switch m {
	case AutoAck:
		return "auto"
	case ExplicitAck:
		return "explicit"
	default:
		return "unknown"
	}
}

// DeliveryState tracks a single delivery from arrival to settlement.
//
//	AwaitingDelivery -> Delivered -> Acked | AckFailed
type DeliveryState int

const (
	AwaitingDelivery DeliveryState = iota
	Delivered
	Acked
	AckFailed
)

func (s DeliveryState) String() string {
	switch s {
	case AwaitingDelivery:
		return "awaiting_delivery"
	case Delivered:
		return "delivered"
	case Acked:
		return "acked"
	case AckFailed:
		return "ack_failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can happen.
func (s DeliveryState) Terminal() bool {
	return s == Acked || s == AckFailed
}

// CompletionHandle is handed to the pipeline with every message. The pipeline
// invokes it once processing has finished; in explicit mode that sends the
// acknowledgment. Not invoking it leaves the message unacknowledged. Handles
// may be called from any goroutine and only the first call has an effect.
type CompletionHandle func(ctx context.Context, final *message.Message)

func noopCompletion(context.Context, *message.Message) {}

// StateHook observes delivery state transitions.
type StateHook func(deliveryTag uint64, state DeliveryState)
