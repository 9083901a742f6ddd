package otel

import (
	"context"
	"testing"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"authguard/internal/audit"
	"authguard/internal/audit/domain"
)

// recordCapture stores the last Record passed to Emit for assertion.
type recordCapture struct {
	rec otellog.Record
	n   int
}

func (r *recordCapture) Emit(_ context.Context, rec otellog.Record) {
	r.rec = rec
	r.n++
}

func attributes(rec otellog.Record) map[string]string {
	attrs := make(map[string]string)
	rec.WalkAttributes(func(kv otellog.KeyValue) bool {
		if kv.Value.Kind() == otellog.KindBool {
			if kv.Value.AsBool() {
				attrs[kv.Key] = "true"
			} else {
				attrs[kv.Key] = "false"
			}
			return true
		}
		attrs[kv.Key] = kv.Value.AsString()
		return true
	})
	return attrs
}

func TestNewAuditSink_NilProviderDiscards(t *testing.T) {
	s := NewAuditSink(nil)
	if _, ok := s.(audit.Discard); !ok {
		t.Fatalf("NewAuditSink(nil) = %T, want audit.Discard", s)
	}
	provider := sdklog.NewLoggerProvider()
	defer func() { _ = provider.Shutdown(context.Background()) }()
	if err := NewAuditSink(provider).Append(context.Background(), nil); err != nil {
		t.Errorf("Append(nil): %v", err)
	}
}

func TestAuditSink_AttributeAndBodyMapping(t *testing.T) {
	cap := &recordCapture{}
	s := &AuditSink{logger: cap}
	created := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	e := &domain.Entry{
		ID: "a1", Action: "failed_login", Details: map[string]any{"email": "x@y.io"},
		IPAddress: "10.0.0.1", UserAgent: "curl", Success: false, ErrorMessage: "invalid credentials", CreatedAt: created,
	}
	if err := s.Append(context.Background(), e); err != nil {
		t.Fatalf("Append: %v", err)
	}
	rec := cap.rec
	if got := string(rec.Body().AsBytes()); got != `{"email":"x@y.io"}` {
		t.Errorf("body = %q", got)
	}
	if !rec.Timestamp().Equal(created) {
		t.Errorf("timestamp = %v, want %v", rec.Timestamp(), created)
	}
	if rec.Severity() != otellog.SeverityWarn {
		t.Errorf("severity = %v, want WARN for failed event", rec.Severity())
	}
	attrs := attributes(rec)
	want := map[string]string{
		"audit.id": "a1", "audit.action": "failed_login", "audit.success": "false",
		"client.address": "10.0.0.1", "user_agent.original": "curl", "error.message": "invalid credentials",
	}
	for k, v := range want {
		if attrs[k] != v {
			t.Errorf("attr %q = %q, want %q", k, attrs[k], v)
		}
	}
	if _, ok := attrs["user.id"]; ok {
		t.Error("user.id should be omitted when empty")
	}
}

func TestAuditSink_ZeroTimestampUsesNow(t *testing.T) {
	cap := &recordCapture{}
	s := &AuditSink{logger: cap}
	before := time.Now().UTC()
	if err := s.Append(context.Background(), &domain.Entry{Action: "login", Success: true}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	ts := cap.rec.Timestamp()
	if ts.Before(before) || ts.After(time.Now().UTC()) {
		t.Errorf("timestamp = %v, want current time", ts)
	}
	if !cap.rec.Body().Empty() {
		t.Error("body should be empty without details")
	}
	if cap.rec.Severity() != otellog.SeverityInfo {
		t.Errorf("severity = %v, want INFO", cap.rec.Severity())
	}
}
