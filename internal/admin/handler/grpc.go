package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"authguard/internal/authn"
	"authguard/internal/platform/rpc"
	"authguard/internal/server/interceptors"
)

// gRPC service names served by this package.
const (
	RateLimitServiceName = "authguard.v1.RateLimitService"
	SessionServiceName   = "authguard.v1.SessionService"
)

// RateLimitServer is the gRPC surface for rate-limit key management.
type RateLimitServer interface {
	GetStatus(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Block(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Unblock(ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error)
}

// SessionServer is the gRPC surface for session administration.
type SessionServer interface {
	RevokeSession(ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error)
}

// RateLimitServiceDesc describes authguard.v1.RateLimitService.
var RateLimitServiceDesc = grpc.ServiceDesc{
	ServiceName: RateLimitServiceName,
	HandlerType: (*RateLimitServer)(nil),
	Methods: []grpc.MethodDesc{
		rpc.Method(RateLimitServiceName, "GetStatus", func(srv any, ctx context.Context, in *structpb.Struct) (proto.Message, error) {
			return srv.(RateLimitServer).GetStatus(ctx, in)
		}),
		rpc.Method(RateLimitServiceName, "Block", func(srv any, ctx context.Context, in *structpb.Struct) (proto.Message, error) {
			return srv.(RateLimitServer).Block(ctx, in)
		}),
		rpc.Method(RateLimitServiceName, "Unblock", func(srv any, ctx context.Context, in *structpb.Struct) (proto.Message, error) {
			return srv.(RateLimitServer).Unblock(ctx, in)
		}),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "authguard/v1/ratelimit.proto",
}

// SessionServiceDesc describes authguard.v1.SessionService.
var SessionServiceDesc = grpc.ServiceDesc{
	ServiceName: SessionServiceName,
	HandlerType: (*SessionServer)(nil),
	Methods: []grpc.MethodDesc{
		rpc.Method(SessionServiceName, "RevokeSession", func(srv any, ctx context.Context, in *structpb.Struct) (proto.Message, error) {
			return srv.(SessionServer).RevokeSession(ctx, in)
		}),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "authguard/v1/session.proto",
}

// GRPCServer implements RateLimitServer and SessionServer over a Handler.
type GRPCServer struct {
	h *Handler
}

// NewGRPCServer returns the gRPC adapter for h.
func NewGRPCServer(h *Handler) *GRPCServer {
	return &GRPCServer{h: h}
}

// Register adds both admin services to s.
func (g *GRPCServer) Register(s grpc.ServiceRegistrar) {
	s.RegisterService(&RateLimitServiceDesc, g)
	s.RegisterService(&SessionServiceDesc, g)
}

func keyFrom(in *structpb.Struct) (string, error) {
	key, err := ResolveKey(rpc.String(in, "key"), rpc.String(in, "policy"), rpc.String(in, "identifier"))
	if err != nil {
		return "", status.Error(codes.InvalidArgument, err.Error())
	}
	return key, nil
}

// GetStatus returns the limiter entry for {"key"} or {"policy","identifier"}.
func (g *GRPCServer) GetStatus(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	key, err := keyFrom(in)
	if err != nil {
		return nil, err
	}
	e, ok := g.h.limiter.Status(key)
	if !ok {
		return nil, status.Error(codes.NotFound, "no entry for key")
	}
	return rpc.Struct(map[string]any{
		"key":          key,
		"count":        e.Count,
		"resetAt":      e.ResetAt,
		"blocked":      e.Blocked,
		"blockedUntil": e.BlockedUntil,
	})
}

// Block blocks the resolved key for {"durationSeconds"}.
func (g *GRPCServer) Block(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	key, err := keyFrom(in)
	if err != nil {
		return nil, err
	}
	until, err := g.h.Block(key, BlockDuration(rpc.Number(in, "durationSeconds")))
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return rpc.Struct(map[string]any{"key": key, "blocked": true, "blockedUntil": until})
}

// Unblock clears the block on the resolved key.
func (g *GRPCServer) Unblock(_ context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	key, err := keyFrom(in)
	if err != nil {
		return nil, err
	}
	g.h.limiter.Unblock(key)
	return &emptypb.Empty{}, nil
}

// RevokeSession deactivates {"sessionId"}.
func (g *GRPCServer) RevokeSession(ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	id := rpc.String(in, "sessionId")
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "sessionId is required")
	}
	var actorID string
	if ident, ok := authn.IdentityFrom(ctx); ok {
		actorID = ident.ID
	}
	found, err := g.h.RevokeSession(ctx, id, actorID, interceptors.SecurityFrom(ctx))
	if err != nil {
		return nil, status.Error(codes.Internal, authn.MsgInternal)
	}
	if !found {
		return nil, status.Error(codes.NotFound, "session not found")
	}
	return &emptypb.Empty{}, nil
}
