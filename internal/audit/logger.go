// Package audit records security-relevant events. Writes are best-effort:
// a failing sink is logged and never changes the outcome of the audited action.
package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"authguard/internal/audit/domain"
	"authguard/internal/reqctx"
)

// Sink receives audit entries.
type Sink interface {
	Append(ctx context.Context, e *domain.Entry) error
}

// Event is the input to an audit write. Security is the request context the event came from.
type Event struct {
	Action     string
	UserID     string
	Resource   string
	ResourceID string
	Details    map[string]any
	Security   reqctx.Security
	Success    bool
	Error      string
}

// AuditLogger writes a single audit event. Implementations never return errors to the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, ev Event)
}

// NewEntry builds the immutable record for ev with a server timestamp.
func NewEntry(ev Event, now time.Time) *domain.Entry {
	ip, ua := ev.Security.IP, ev.Security.UserAgent
	if ip == "" {
		ip = reqctx.Unknown
	}
	if ua == "" {
		ua = reqctx.Unknown
	}
	return &domain.Entry{
		ID:           uuid.New().String(),
		Action:       ev.Action,
		UserID:       ev.UserID,
		Resource:     ev.Resource,
		ResourceID:   ev.ResourceID,
		Details:      ev.Details,
		IPAddress:    ip,
		UserAgent:    ua,
		Success:      ev.Success,
		ErrorMessage: ev.Error,
		CreatedAt:    now.UTC(),
	}
}

// Logger implements AuditLogger over a Sink.
type Logger struct {
	sink Sink
	now  func() time.Time
}

// NewLogger returns a Logger writing to sink. A nil sink disables auditing.
func NewLogger(sink Sink) *Logger {
	return &Logger{sink: sink, now: time.Now}
}

// LogEvent writes one entry. Sink failures are logged and swallowed.
func (l *Logger) LogEvent(ctx context.Context, ev Event) {
	if l == nil || l.sink == nil || ev.Action == "" {
		return
	}
	e := NewEntry(ev, l.now())
	if err := l.sink.Append(ctx, e); err != nil {
		log.Error().Err(err).Str("action", e.Action).Str("user_id", e.UserID).Msg("audit: write failed")
	}
}

// Fanout appends to every sink in order. One failing sink does not stop the others.
type Fanout []Sink

// Append writes e to all sinks and returns the joined errors.
func (f Fanout) Append(ctx context.Context, e *domain.Entry) error {
	var errs []error
	for _, s := range f {
		if s == nil {
			continue
		}
		if err := s.Append(ctx, e); err != nil {
			log.Warn().Err(err).Str("action", e.Action).Msgf("audit: sink %T failed", s)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard is a Sink that drops every entry.
type Discard struct{}

// Append implements Sink.
func (Discard) Append(context.Context, *domain.Entry) error { return nil }
