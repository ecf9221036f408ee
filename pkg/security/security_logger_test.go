package security

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "j***@example.com", MaskEmail("jane@example.com"))
	assert.Equal(t, "***@example.com", MaskEmail("j@example.com"))
	assert.Equal(t, "***", MaskEmail("ab"))
	assert.Equal(t, HashValue("not-an-email"), MaskEmail("not-an-email"))
}

func TestLogInquiryMasksSubmitter(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	sl := NewSecurityLogger(zap.New(core), "truelens-inquiry-api", "test")

	sl.LogInquiry(context.Background(), EventDeliveryFailed, "jane@example.com", "10.0.0.1", "curl", "req-1",
		map[string]interface{}{"op": "send"})

	entries := logs.All()
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, zapcore.ErrorLevel, entry.Level)
	assert.Equal(t, string(EventDeliveryFailed), entry.Message)

	fields := entry.ContextMap()
	assert.Equal(t, "j***@example.com", fields["subject_value"])
	assert.Equal(t, "req-1", fields["request_id"])
	assert.JSONEq(t, `{"op":"send"}`, fields["details"].(string))
}

func TestRateLimitEventIsWarning(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	sl := NewSecurityLogger(zap.New(core), "svc", "test")

	sl.LogRateLimitTriggered(context.Background(), "10.0.0.2", "ua", "req-2", "/api/contact")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, zapcore.WarnLevel, logs.All()[0].Level)
}

func TestEventOmitsEmptyFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	sl := NewSecurityLogger(zap.New(core), "svc", "prod")

	sl.Log(context.Background(), SecurityEvent{Event: EventInquiryReceived, IP: "10.0.0.3"})

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, zapcore.InfoLevel, logs.All()[0].Level)
	assert.Equal(t, "svc", fields["service"])
	assert.Equal(t, "prod", fields["env"])
	assert.Equal(t, "10.0.0.3", fields["ip"])
	assert.NotContains(t, fields, "user_agent")
	assert.NotContains(t, fields, "details")
}
