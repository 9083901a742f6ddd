package interceptors

import (
	"context"
	"net"
	"time"

	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"

	"authguard/internal/authn"
	"authguard/internal/reqctx"
)

// metadataHeaders adapts incoming metadata to reqctx.Headers. Keys are case-insensitive.
type metadataHeaders metadata.MD

func (m metadataHeaders) Get(key string) string {
	if vals := metadata.MD(m).Get(key); len(vals) > 0 {
		return vals[0]
	}
	return ""
}

// SecurityFrom derives the caller context from metadata (x-forwarded-for, x-real-ip,
// user-agent), falling back to the peer address for the IP.
func SecurityFrom(ctx context.Context) reqctx.Security {
	md, _ := metadata.FromIncomingContext(ctx)
	sec := reqctx.DeriveIdentity(metadataHeaders(md), time.Now())
	if sec.IP != reqctx.Unknown {
		return sec
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		if host, _, err := net.SplitHostPort(p.Addr.String()); err == nil {
			sec.IP = host
		} else {
			sec.IP = p.Addr.String()
		}
	}
	return sec
}

// RequestFrom builds the pipeline request for a call to fullMethod.
func RequestFrom(ctx context.Context, fullMethod string) authn.Request {
	md, _ := metadata.FromIncomingContext(ctx)
	return authn.Request{
		Authorization: metadataHeaders(md).Get("authorization"),
		Security:      SecurityFrom(ctx),
		Resource:      fullMethod,
	}
}
