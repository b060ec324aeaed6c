// Package tracer wraps an OpenTelemetry tracer provider.
//
// The consumer and producer accept any observability.Tracer; *Tracer is the
// implementation used by the bridge. Deliveries carrying a W3C traceparent
// header continue the upstream trace:
//
//	t, err := tracer.New(tracer.Config{ServiceName: "rabbitbridge", EnableExport: true}, log)
//	if err != nil {
//		return err
//	}
//	defer t.Shutdown(context.Background())
//
//	ctx = t.SetCarrierOnContext(ctx, map[string]string{"traceparent": header})
//	ctx, span := t.StartSpan(ctx, "rabbit.consume")
//	defer span.End()
package tracer
