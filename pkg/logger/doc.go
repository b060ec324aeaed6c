// Package logger provides the structured zap logger used by the connector.
//
// Entries are JSON encoded with an ISO8601 "timestamp", capital levels and
// the "pid" and "service" fields. Every method takes a message, an optional
// error and any number of field maps:
//
//	log, err := logger.New(logger.Config{Level: logger.Debug, ServiceName: "rabbitbridge"})
//	if err != nil {
//		return err
//	}
//	log.Info("consumer started", nil, map[string]interface{}{"queue": "in1"})
//
// With EnableTracing the *WithContext variants add the trace_id and span_id
// of the active OpenTelemetry span:
//
//	log.ErrorWithContext(ctx, "publish failed", err, nil)
//
// Configuration is read from ZAP_LOGGER_LEVEL, LOGGER_SERVICE_NAME and
// LOGGER_ENABLE_TRACING when loaded through the config package.
package logger
