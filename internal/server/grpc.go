package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	adminhandler "authguard/internal/admin/handler"
	"authguard/internal/audit"
	"authguard/internal/authn"
	identityhandler "authguard/internal/identity/handler"
	"authguard/internal/platform/rpc"
	"authguard/internal/ratelimit"
	"authguard/internal/server/interceptors"
)

// GRPCDeps holds the gRPC services and the shared pipeline. Nil services are not registered.
type GRPCDeps struct {
	Pipeline *authn.Pipeline
	Identity *identityhandler.GRPCServer
	Admin    *adminhandler.GRPCServer
	// Audit receives api_access entries for authenticated RPCs and pipeline rejections.
	Audit audit.AuditLogger
	// Health is the standard health service; a fresh one is created when nil.
	Health *health.Server
}

// MethodPolicies returns the policy of every RPC that does not require an admin.
// The interceptor writes api_access entries itself, so pipeline auditing is off.
func MethodPolicies() map[string]authn.Policy {
	return map[string]authn.Policy{
		rpc.FullMethod(identityhandler.IdentityServiceName, "Login"):   authn.LoginAttempt(),
		rpc.FullMethod(identityhandler.IdentityServiceName, "Refresh"): authn.Gate(ratelimit.Sensitive),
		rpc.FullMethod(identityhandler.IdentityServiceName, "WhoAmI"):  authn.RequireAuth().With(""),
	}
}

// NewGRPCServer returns a server with the otelgrpc stats handler, the logging, auth
// and audit interceptors, and the health, identity and admin services registered.
// Methods missing from MethodPolicies require an admin.
func NewGRPCServer(d GRPCDeps, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			interceptors.LoggingUnary(),
			interceptors.AuditUnary(d.Audit),
			interceptors.AuthUnary(d.Pipeline, MethodPolicies(), authn.RequireAdmin().With("")),
		),
	}, opts...)
	s := grpc.NewServer(opts...)

	hs := d.Health
	if hs == nil {
		hs = health.NewServer()
	}
	healthpb.RegisterHealthServer(s, hs)
	if d.Identity != nil {
		d.Identity.Register(s)
	}
	if d.Admin != nil {
		d.Admin.Register(s)
	}
	return s
}
