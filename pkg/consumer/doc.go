// Package consumer implements the inbound side of the connector: it reads
// deliveries from one queue, turns them into messages and hands them to an
// EventListener.
//
// Every Consumer owns a dedicated connection and channel. Start connects,
// optionally declares the queue and registers with the broker; any failure
// on that path is returned and nothing stays open. Shutdown releases the
// channel and connection and may be called any number of times.
//
// Acknowledgment:
//
// With AutoAck (the default) the broker settles a message on delivery and
// the completion handle passed to OnEvent does nothing. With AutoAck disabled
// the message stays unacknowledged until the handle is invoked; it then sends
// a single basic.ack for that delivery tag. A pipeline signals failure by
// never invoking the handle. Ack errors are logged and never returned.
//
// Basic Usage:
//
//	cfg := consumer.DefaultConfig()
//	cfg.QueueName = "orders"
//	cfg.AutoAck = false
//	cfg.ContentMimeType = "application/json"
//
//	c, err := consumer.New(cfg, log)
//	if err != nil {
//		return err
//	}
//	err = c.Start(ctx, consumer.ListenerFunc(func(ctx context.Context, msg *message.Message, done consumer.CompletionHandle) {
//		if process(msg) == nil {
//			done(ctx, msg)
//		}
//	}))
//	if err != nil {
//		return err
//	}
//	defer c.Shutdown()
//
// FX Integration:
//
//	app := fx.New(
//		logger.FXModule,
//		consumer.FXModule,
//		fx.Provide(newListener),
//	)
//
// The module starts the consumer with the EventListener found in the graph.
package consumer
