// Package producer implements the outbound side of the connector.
//
// A Producer owns one connection and one channel. Initialize opens them and,
// when the queue name is a static string and declaration is requested,
// declares the queue once. Apply then publishes the payload of each message:
//
//	cfg := producer.DefaultConfig()
//	cfg.QueueName = "#[ .attributes.properties.replyTo ]"
//
//	p, err := producer.New(cfg, log)
//	if err != nil {
//		return err
//	}
//	if err := p.Initialize(ctx); err != nil {
//		return err
//	}
//	defer p.Dispose()
//
//	if _, err := p.Apply(ctx, msg); err != nil {
//		log.Error("publish failed", err, nil)
//	}
//
// Exchange and queue names may be #[ ... ] expressions resolved per message
// by a script.Evaluator. The payload is turned into bytes by a
// converter.Converter and every publish carries a new correlation id.
// Concurrent callers are serialized so messages reach the channel one at a
// time in lock order.
package producer
