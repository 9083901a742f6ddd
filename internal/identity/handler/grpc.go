package handler

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"authguard/internal/authn"
	"authguard/internal/identity/service"
	"authguard/internal/platform/rpc"
	"authguard/internal/server/interceptors"
)

// IdentityServiceName is the gRPC service served by this package.
const IdentityServiceName = "authguard.v1.IdentityService"

// IdentityServer is the gRPC surface for password login and identity lookup.
type IdentityServer interface {
	Login(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Refresh(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	WhoAmI(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

// IdentityServiceDesc describes authguard.v1.IdentityService.
var IdentityServiceDesc = grpc.ServiceDesc{
	ServiceName: IdentityServiceName,
	HandlerType: (*IdentityServer)(nil),
	Methods: []grpc.MethodDesc{
		rpc.Method(IdentityServiceName, "Login", func(srv any, ctx context.Context, in *structpb.Struct) (proto.Message, error) {
			return srv.(IdentityServer).Login(ctx, in)
		}),
		rpc.Method(IdentityServiceName, "Refresh", func(srv any, ctx context.Context, in *structpb.Struct) (proto.Message, error) {
			return srv.(IdentityServer).Refresh(ctx, in)
		}),
		rpc.Method(IdentityServiceName, "WhoAmI", func(srv any, ctx context.Context, in *structpb.Struct) (proto.Message, error) {
			return srv.(IdentityServer).WhoAmI(ctx, in)
		}),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "authguard/v1/identity.proto",
}

// GRPCServer implements IdentityServer over the identity service.
type GRPCServer struct {
	svc *service.AuthService
}

// NewGRPCServer returns the gRPC adapter for svc.
func NewGRPCServer(svc *service.AuthService) *GRPCServer {
	return &GRPCServer{svc: svc}
}

// Register adds IdentityService to s.
func (g *GRPCServer) Register(s grpc.ServiceRegistrar) {
	s.RegisterService(&IdentityServiceDesc, g)
}

// grpcError maps service errors to status errors.
func grpcError(err error) error {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		return status.Error(codes.InvalidArgument, ve.Error())
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrInvalidRefreshToken):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, service.ErrAccountLocked), errors.Is(err, service.ErrAccountDisabled):
		return status.Error(codes.PermissionDenied, err.Error())
	default:
		log.Error().Err(err).Msg("identity: rpc failed")
		return status.Error(codes.Internal, authn.MsgInternal)
	}
}

func sessionStruct(res *service.AuthResult) (*structpb.Struct, error) {
	return rpc.Struct(map[string]any{
		"userId":           res.User.ID,
		"sessionId":        res.SessionID,
		"token":            res.Token,
		"expiresAt":        res.ExpiresAt,
		"refreshToken":     res.RefreshToken,
		"refreshExpiresAt": res.RefreshExpiresAt,
	})
}

// Login checks {"email","password"} and opens a session.
func (g *GRPCServer) Login(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	res, err := g.svc.Login(ctx, service.LoginInput{Email: rpc.String(in, "email"), Password: rpc.String(in, "password")},
		interceptors.SecurityFrom(ctx))
	if err != nil {
		return nil, grpcError(err)
	}
	return sessionStruct(res)
}

// Refresh rotates {"refreshToken"}.
func (g *GRPCServer) Refresh(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	res, err := g.svc.Refresh(ctx, rpc.String(in, "refreshToken"))
	if err != nil {
		return nil, grpcError(err)
	}
	return sessionStruct(res)
}

// WhoAmI returns the identity the auth interceptor resolved.
func (g *GRPCServer) WhoAmI(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	id, ok := authn.IdentityFrom(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, authn.MsgAuthRequired)
	}
	return rpc.Struct(map[string]any{
		"id":        id.ID,
		"email":     id.Email,
		"name":      id.Name,
		"role":      string(id.Role),
		"sessionId": id.SessionID,
	})
}
