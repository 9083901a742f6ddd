package interceptors

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"authguard/internal/audit"
	"authguard/internal/authn"
)

// callRecord carries the pipeline result from AuthUnary back out to AuditUnary,
// which runs outside it in the chain.
type callRecord struct {
	identity *authn.Identity
	outcome  *authn.Outcome
}

type callRecordKey struct{}

// noteOutcome stores the pipeline result on the call record, if AuditUnary installed one.
func noteOutcome(ctx context.Context, id *authn.Identity, out authn.Outcome) {
	if rec, ok := ctx.Value(callRecordKey{}).(*callRecord); ok {
		rec.identity = id
		rec.outcome = &out
	}
}

// AuditUnary returns a unary server interceptor that records an api_access entry after
// each authenticated RPC, with the verb and resource parsed from the method name. It
// must be chained before AuthUnary so that pipeline rejections are recorded as failed
// entries too. Anonymous calls that pass and skipped methods are not recorded.
// Writes are best-effort.
func AuditUnary(logger audit.AuditLogger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if logger == nil || audit.Skip(info.FullMethod) {
			return handler(ctx, req)
		}
		rec := &callRecord{}
		resp, err := handler(context.WithValue(ctx, callRecordKey{}, rec), req)

		ref := audit.ParseFullMethod(info.FullMethod)
		ev := audit.Event{
			Action:   audit.ActionAPIAccess,
			Resource: ref.Resource,
			Details: map[string]any{
				"method": info.FullMethod,
				"verb":   ref.Verb,
				"code":   status.Code(err).String(),
			},
			Security: SecurityFrom(ctx),
			Success:  err == nil,
		}
		id := rec.identity
		if id == nil {
			id, _ = authn.IdentityFrom(ctx)
		}
		switch {
		case rec.outcome != nil && !rec.outcome.OK():
			ev.Details["reason"] = rec.outcome.Reason
			ev.Details["status"] = rec.outcome.Status
		case id == nil:
			return resp, err
		}
		if id != nil {
			ev.UserID = id.ID
		}
		if err != nil {
			ev.Error = status.Convert(err).Message()
		}
		logger.LogEvent(ctx, ev)
		return resp, err
	}
}
