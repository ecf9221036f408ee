package security

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EventType represents the type of audit event
type EventType string

const (
	EventInquiryReceived    EventType = "inquiry_received"
	EventInquiryRejected    EventType = "inquiry_rejected"
	EventInquiryDelivered   EventType = "inquiry_delivered"
	EventDeliveryFailed     EventType = "delivery_failed"
	EventRateLimitTriggered EventType = "rate_limit_triggered"
)

// SecurityEvent represents an audit event on the public contact endpoint
type SecurityEvent struct {
	Timestamp    time.Time              `json:"timestamp"`
	Service      string                 `json:"service"`
	Environment  string                 `json:"env"`
	Level        string                 `json:"level"`
	Event        EventType              `json:"event"`
	SubjectType  string                 `json:"subject_type,omitempty"`  // "email", "ip"
	SubjectValue string                 `json:"subject_value,omitempty"` // Masked or hashed for PII
	IP           string                 `json:"ip,omitempty"`
	UserAgent    string                 `json:"user_agent,omitempty"`
	RequestID    string                 `json:"request_id,omitempty"`
	Details      map[string]interface{} `json:"details,omitempty"`
}

// SecurityLogger provides structured logging for audit events
type SecurityLogger struct {
	zapLogger   *zap.Logger
	serviceName string
	environment string
}

var (
	defaultLogger *SecurityLogger
	defaultMu     sync.Mutex
)

// InitSecurityLogger builds a JSON zap logger on stdout and installs it as the default
func InitSecurityLogger(serviceName, environment string) *SecurityLogger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stdout"}

	z, err := cfg.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		z = zap.NewExample()
	}

	sl := NewSecurityLogger(z, serviceName, environment)
	defaultMu.Lock()
	defaultLogger = sl
	defaultMu.Unlock()
	return sl
}

// NewSecurityLogger wraps an existing zap logger
func NewSecurityLogger(z *zap.Logger, serviceName, environment string) *SecurityLogger {
	return &SecurityLogger{
		zapLogger:   z,
		serviceName: serviceName,
		environment: environment,
	}
}

// DefaultLogger returns the default security logger instance
func DefaultLogger() *SecurityLogger {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger == nil {
		defaultLogger = NewSecurityLogger(zap.NewNop(), "truelens-inquiry-api", "development")
	}
	return defaultLogger
}

// MarshalLogObject writes the non-empty fields of the event
func (e SecurityEvent) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("service", e.Service)
	enc.AddString("env", e.Environment)
	enc.AddString("event", string(e.Event))

	for _, kv := range [][2]string{
		{"subject_type", e.SubjectType},
		{"subject_value", e.SubjectValue},
		{"ip", e.IP},
		{"user_agent", e.UserAgent},
		{"request_id", e.RequestID},
	} {
		if kv[1] != "" {
			enc.AddString(kv[0], kv[1])
		}
	}

	// Flattened so log pipelines index it as one string column
	if len(e.Details) > 0 {
		raw, err := json.Marshal(e.Details)
		if err != nil {
			return err
		}
		enc.AddString("details", string(raw))
	}
	return nil
}

// levelFor maps an event to its log level
func levelFor(event EventType) zapcore.Level {
	switch event {
	case EventInquiryRejected, EventRateLimitTriggered:
		return zapcore.WarnLevel
	case EventDeliveryFailed:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Log stamps the event with the service identity and writes it
func (sl *SecurityLogger) Log(ctx context.Context, event SecurityEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	event.Service, event.Environment = sl.serviceName, sl.environment

	level := levelFor(event.Event)
	event.Level = level.String()

	sl.zapLogger.Log(level, string(event.Event), zap.Inline(event))
}

// LogInquiry logs an inquiry lifecycle event keyed by the submitter's masked email
func (sl *SecurityLogger) LogInquiry(ctx context.Context, event EventType, email, ip, userAgent, requestID string, details map[string]interface{}) {
	sl.Log(ctx, SecurityEvent{
		Event:        event,
		SubjectType:  "email",
		SubjectValue: MaskEmail(email),
		IP:           ip,
		UserAgent:    userAgent,
		RequestID:    requestID,
		Details:      details,
	})
}

// LogRateLimitTriggered logs when rate limiting is triggered
func (sl *SecurityLogger) LogRateLimitTriggered(ctx context.Context, ip, userAgent, requestID, endpoint string) {
	sl.Log(ctx, SecurityEvent{
		Event:        EventRateLimitTriggered,
		SubjectType:  "ip",
		SubjectValue: ip,
		IP:           ip,
		UserAgent:    userAgent,
		RequestID:    requestID,
		Details:      map[string]interface{}{"endpoint": endpoint},
	})
}

// Sync flushes any buffered log entries
func (sl *SecurityLogger) Sync() error {
	return sl.zapLogger.Sync()
}

// MaskEmail keeps the first character of the local part, e.g. "j***@example.com".
// Values without an @ are hashed instead.
func MaskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	switch {
	case len(email) < 3:
		return "***"
	case !ok:
		return HashValue(email)
	case len(local) <= 1:
		return "***@" + domain
	default:
		return local[:1] + "***@" + domain
	}
}

// HashValue creates a SHA256 hash of a value (for logging without PII)
func HashValue(value string) string {
	hash := sha256.Sum256([]byte(value))
	return hex.EncodeToString(hash[:8])
}
