package otel

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"authguard/internal/audit"
	"authguard/internal/audit/domain"
)

// recordEmitter is the part of otellog.Logger the audit sink uses.
type recordEmitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// AuditSink mirrors audit entries into the OTel log pipeline.
type AuditSink struct {
	logger recordEmitter
}

// NewAuditSink returns a sink emitting through provider, or audit.Discard when provider is nil.
func NewAuditSink(provider *sdklog.LoggerProvider) audit.Sink {
	if provider == nil {
		return audit.Discard{}
	}
	return &AuditSink{logger: provider.Logger("authguard.audit")}
}

// Append converts e to a log record. Failed events are emitted at WARN severity.
func (s *AuditSink) Append(ctx context.Context, e *domain.Entry) error {
	if e == nil {
		return nil
	}
	rec := otellog.Record{}
	ts := e.CreatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	rec.SetTimestamp(ts)
	rec.SetEventName(e.Action)
	if e.Success {
		rec.SetSeverity(otellog.SeverityInfo)
	} else {
		rec.SetSeverity(otellog.SeverityWarn)
	}
	if len(e.Details) > 0 {
		body, err := json.Marshal(e.Details)
		if err != nil {
			return err
		}
		rec.SetBody(otellog.BytesValue(body))
	}
	rec.AddAttributes(
		otellog.String("audit.id", e.ID),
		otellog.String("audit.action", e.Action),
		otellog.Bool("audit.success", e.Success),
		otellog.String("client.address", e.IPAddress),
		otellog.String("user_agent.original", e.UserAgent),
	)
	for k, v := range map[string]string{
		"user.id":           e.UserID,
		"audit.resource":    e.Resource,
		"audit.resource_id": e.ResourceID,
		"error.message":     e.ErrorMessage,
	} {
		if v != "" {
			rec.AddAttributes(otellog.String(k, v))
		}
	}
	s.logger.Emit(ctx, rec)
	return nil
}
