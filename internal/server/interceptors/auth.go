package interceptors

import (
	"context"
	"strconv"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"authguard/internal/audit"
	"authguard/internal/authn"
	"authguard/internal/platform/i18n"
)

// AuthUnary returns a unary server interceptor that runs the authn pipeline for every
// RPC against the authorization metadata and puts the identity in the context.
// policies maps full method names to their policy; other methods run under fallback.
// Health and reflection methods bypass the pipeline.
func AuthUnary(p *authn.Pipeline, policies map[string]authn.Policy, fallback authn.Policy) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if audit.Skip(info.FullMethod) {
			return handler(ctx, req)
		}
		pol, ok := policies[info.FullMethod]
		if !ok {
			pol = fallback
		}
		id, out := p.Authenticate(ctx, pol, RequestFrom(ctx, info.FullMethod))
		noteOutcome(ctx, id, out)
		setRateLimitHeader(ctx, out)
		if !out.OK() {
			if out.Kind == authn.KindInternal {
				log.Error().Str("policy", pol.Name).Str("reason", out.Reason).Str("method", info.FullMethod).Msg("authn: internal error")
			}
			md, _ := metadata.FromIncomingContext(ctx)
			msg := i18n.Localize(metadataHeaders(md).Get("accept-language"), out.Message)
			return nil, status.Error(CodeFor(out), msg)
		}
		if id != nil {
			ctx = authn.WithIdentity(ctx, id)
		}
		return handler(ctx, req)
	}
}

// CodeFor maps a rejected outcome to its gRPC status code.
func CodeFor(out authn.Outcome) codes.Code {
	switch out.Kind {
	case authn.KindAuthenticated, authn.KindAnonymous:
		return codes.OK
	case authn.KindRateLimited:
		return codes.ResourceExhausted
	case authn.KindUnauthenticated:
		return codes.Unauthenticated
	case authn.KindForbidden:
		return codes.PermissionDenied
	default:
		return codes.Internal
	}
}

// setRateLimitHeader mirrors the HTTP X-RateLimit-* headers as response metadata.
func setRateLimitHeader(ctx context.Context, out authn.Outcome) {
	d := out.RateLimit
	if d == nil {
		return
	}
	md := metadata.Pairs(
		"x-ratelimit-limit", strconv.Itoa(d.Limit),
		"x-ratelimit-remaining", strconv.Itoa(d.Remaining),
	)
	if out.Kind == authn.KindRateLimited {
		md.Set("retry-after", strconv.Itoa(d.RetryAfterSeconds()))
	}
	// Fails only outside a real server stream (unit tests).
	_ = grpc.SetHeader(ctx, md)
}
