package consumer

import (
	"context"

	"github.com/Aleph-Alpha/amqpconnector/pkg/message"
)

// EventListener is the pipeline entry point. OnEvent is called once per
// delivery, sequentially for a given consumer. Implementations that process
// asynchronously must return quickly and call done later.
type EventListener interface {
	OnEvent(ctx context.Context, msg *message.Message, done CompletionHandle)
}

// ListenerFunc adapts a function to EventListener.
type ListenerFunc func(ctx context.Context, msg *message.Message, done CompletionHandle)

// OnEvent calls f.
func (f ListenerFunc) OnEvent(ctx context.Context, msg *message.Message, done CompletionHandle) {
	f(ctx, msg, done)
}
