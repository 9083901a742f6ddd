package interceptors

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// LoggingUnary returns a unary server interceptor that logs each RPC with its status
// code, duration and client IP. Server-side failures log at error level.
func LoggingUnary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		var ev *zerolog.Event
		switch code {
		case codes.OK:
			ev = log.Debug()
		case codes.Internal, codes.Unknown, codes.DataLoss, codes.Unavailable:
			ev = log.Error().Err(err)
		default:
			ev = log.Info()
		}
		ev.Str("method", info.FullMethod).
			Str("code", code.String()).
			Dur("duration", time.Since(start)).
			Str("ip", SecurityFrom(ctx).IP).
			Msg("grpc request")
		return resp, err
	}
}
