package logger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observed(cfg Config) (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewWithCore(core, cfg), logs
}

func spanContext(t *testing.T) context.Context {
	t.Helper()
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	return trace.ContextWithSpanContext(context.Background(), sc)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		Debug:     zap.DebugLevel,
		Info:      zap.InfoLevel,
		Warning:   zap.WarnLevel,
		Error:     zap.ErrorLevel,
		"":        zap.InfoLevel,
		"verbose": zap.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestFields(t *testing.T) {
	log, logs := observed(Config{})

	log.Error("An error occurred while sending ack for tag=[3]", errors.New("channel closed"),
		map[string]interface{}{"queue": "in1", "delivery_tag": uint64(3)},
		map[string]interface{}{"queue": "in2"},
	)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, "channel closed", fields["error"])
	assert.Equal(t, "in2", fields["queue"])
	assert.Equal(t, uint64(3), fields["delivery_tag"])
}

func TestLevels(t *testing.T) {
	log, logs := observed(Config{})

	log.Debug("d", nil)
	log.Info("i", nil, nil)
	log.Warn("w", nil)

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Empty(t, entries[1].ContextMap())
}

func TestWithContext(t *testing.T) {
	t.Run("tracing enabled", func(t *testing.T) {
		log, logs := observed(Config{EnableTracing: true})

		log.InfoWithContext(spanContext(t), "message consumed from rabbit", nil, map[string]interface{}{"queue": "in1"})
		log.ErrorWithContext(spanContext(t), "publish failed", errors.New("boom"))

		entries := logs.All()
		require.Len(t, entries, 2)
		fields := entries[0].ContextMap()
		assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", fields["trace_id"])
		assert.Equal(t, "00f067aa0ba902b7", fields["span_id"])
		assert.Equal(t, "in1", fields["queue"])
		assert.Equal(t, "00f067aa0ba902b7", entries[1].ContextMap()["span_id"])
	})

	t.Run("tracing disabled", func(t *testing.T) {
		log, logs := observed(Config{})

		log.WarnWithContext(spanContext(t), "w", nil)

		assert.NotContains(t, logs.All()[0].ContextMap(), "trace_id")
	})

	t.Run("no span in context", func(t *testing.T) {
		log, logs := observed(Config{EnableTracing: true})

		log.DebugWithContext(context.Background(), "d", nil)

		assert.NotContains(t, logs.All()[0].ContextMap(), "trace_id")
	})
}

func TestNew(t *testing.T) {
	log, err := New(DefaultConfig())
	require.NoError(t, err)
	assert.True(t, log.Zap.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, log.Zap.Core().Enabled(zapcore.DebugLevel))
}
