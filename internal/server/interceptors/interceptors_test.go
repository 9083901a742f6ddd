package interceptors

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"authguard/internal/audit"
	"authguard/internal/authn"
	"authguard/internal/memstore"
	"authguard/internal/platform/rbac"
	"authguard/internal/ratelimit"
	"authguard/internal/security"
	sessiondomain "authguard/internal/session/domain"
	userdomain "authguard/internal/user/domain"
)

type captureLogger struct {
	mu     sync.Mutex
	events []audit.Event
}

func (c *captureLogger) LogEvent(_ context.Context, ev audit.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

const method = "/authguard.v1.RateLimitService/GetStatus"

func incoming(pairs ...string) context.Context {
	return metadata.NewIncomingContext(context.Background(), metadata.Pairs(pairs...))
}

// newPipeline returns a pipeline and a token for an active user with role.
func newPipeline(t *testing.T, role rbac.Role) (*authn.Pipeline, string) {
	t.Helper()
	tokens, err := security.NewTestHMACTokenProvider()
	if err != nil {
		t.Fatalf("NewTestHMACTokenProvider: %v", err)
	}
	users, sessions := memstore.NewUsers(), memstore.NewSessions()
	ctx := context.Background()
	now := time.Now().UTC()
	_ = users.Create(ctx, &userdomain.User{ID: "u1", Email: "u1@example.com", Name: "User", Role: role,
		PasswordHash: "h", IsActive: true, CreatedAt: now})
	tok, err := tokens.Issue(security.Claims{SubjectID: "u1", Email: "u1@example.com", Role: string(role), SessionID: "s1"}, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	_ = sessions.Create(ctx, &sessiondomain.Session{ID: "s1", UserID: "u1", TokenHash: security.HashOpaqueToken(tok),
		IsActive: true, ExpiresAt: now.Add(time.Hour), CreatedAt: now})
	return authn.NewPipeline(ratelimit.New(), tokens, sessions, users), tok
}

func TestCodeFor(t *testing.T) {
	tests := []struct {
		kind authn.Kind
		want codes.Code
	}{
		{authn.KindAuthenticated, codes.OK},
		{authn.KindAnonymous, codes.OK},
		{authn.KindRateLimited, codes.ResourceExhausted},
		{authn.KindUnauthenticated, codes.Unauthenticated},
		{authn.KindForbidden, codes.PermissionDenied},
		{authn.KindInternal, codes.Internal},
	}
	for _, tt := range tests {
		if got := CodeFor(authn.Outcome{Kind: tt.kind}); got != tt.want {
			t.Errorf("CodeFor(%s) = %v, want %v", tt.kind, got, tt.want)
		}
	}
}

func TestSecurityFrom(t *testing.T) {
	sec := SecurityFrom(incoming("x-forwarded-for", "198.51.100.4, 10.0.0.1", "user-agent", "grpc-go/1.78"))
	if sec.IP != "198.51.100.4" || sec.UserAgent != "grpc-go/1.78" {
		t.Errorf("metadata security = %+v", sec)
	}

	ctx := peer.NewContext(context.Background(), &peer.Peer{Addr: &net.TCPAddr{IP: net.ParseIP("192.0.2.10"), Port: 5123}})
	if sec := SecurityFrom(ctx); sec.IP != "192.0.2.10" {
		t.Errorf("peer IP = %q", sec.IP)
	}
}

func TestRequestFrom(t *testing.T) {
	req := RequestFrom(incoming("authorization", "Bearer abc"), method)
	if req.Authorization != "Bearer abc" || req.Resource != method || req.Token() != "abc" {
		t.Errorf("request = %+v", req)
	}
}

func TestAuthUnary(t *testing.T) {
	p, tok := newPipeline(t, rbac.RoleAdmin)
	interceptor := AuthUnary(p, map[string]authn.Policy{}, authn.RequireAdmin().With(""))
	info := &grpc.UnaryServerInfo{FullMethod: method}

	var seen *authn.Identity
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		seen, _ = authn.IdentityFrom(ctx)
		return "ok", nil
	}
	resp, err := interceptor(incoming("authorization", "Bearer "+tok), nil, info, handler)
	if err != nil || resp != "ok" {
		t.Fatalf("resp = %v, err = %v", resp, err)
	}
	if seen == nil || seen.ID != "u1" || seen.SessionID != "s1" {
		t.Errorf("identity = %+v", seen)
	}

	_, err = interceptor(context.Background(), nil, info, handler)
	if status.Code(err) != codes.Unauthenticated {
		t.Errorf("anonymous err = %v", err)
	}
}

func TestAuthUnary_Forbidden(t *testing.T) {
	p, tok := newPipeline(t, rbac.RoleRegular)
	interceptor := AuthUnary(p, nil, authn.RequireAdmin().With(""))
	called := false
	_, err := interceptor(incoming("authorization", "Bearer "+tok), nil, &grpc.UnaryServerInfo{FullMethod: method},
		func(ctx context.Context, req interface{}) (interface{}, error) {
			called = true
			return nil, nil
		})
	if status.Code(err) != codes.PermissionDenied || called {
		t.Errorf("err = %v, handler called = %v", err, called)
	}
}

func TestAuthUnary_HealthBypass(t *testing.T) {
	interceptor := AuthUnary(nil, nil, authn.RequireAdmin())
	resp, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"},
		func(ctx context.Context, req interface{}) (interface{}, error) { return "serving", nil })
	if err != nil || resp != "serving" {
		t.Errorf("resp = %v, err = %v", resp, err)
	}
}

func TestAuditUnary(t *testing.T) {
	logger := &captureLogger{}
	interceptor := AuditUnary(logger)
	info := &grpc.UnaryServerInfo{FullMethod: method}
	ctx := authn.WithIdentity(incoming("x-real-ip", "203.0.113.5"), &authn.Identity{ID: "admin-1", Role: rbac.RoleAdmin})

	_, _ = interceptor(ctx, nil, info, func(ctx context.Context, req interface{}) (interface{}, error) { return "ok", nil })
	_, _ = interceptor(ctx, nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Error(codes.NotFound, "no entry for key")
	})
	// Anonymous and health calls are not recorded.
	_, _ = interceptor(incoming(), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) { return "ok", nil })
	_, _ = interceptor(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"},
		func(ctx context.Context, req interface{}) (interface{}, error) { return "ok", nil })

	if len(logger.events) != 2 {
		t.Fatalf("events = %d, want 2", len(logger.events))
	}
	ok, failed := logger.events[0], logger.events[1]
	if ok.Action != audit.ActionAPIAccess || ok.UserID != "admin-1" || ok.Resource != "rateLimit" || !ok.Success {
		t.Errorf("success event = %+v", ok)
	}
	if ok.Details["verb"] != "get" || ok.Details["code"] != "OK" || ok.Security.IP != "203.0.113.5" {
		t.Errorf("success details = %+v, security = %+v", ok.Details, ok.Security)
	}
	if failed.Success || failed.Error != "no entry for key" || failed.Details["code"] != "NotFound" {
		t.Errorf("failed event = %+v", failed)
	}
}

func TestAuditUnary_RecordsPipelineRejections(t *testing.T) {
	p, tok := newPipeline(t, rbac.RoleRegular)
	logger := &captureLogger{}
	chain := func(ctx context.Context) error {
		auth := AuthUnary(p, nil, authn.RequireAdmin().With(""))
		info := &grpc.UnaryServerInfo{FullMethod: method}
		_, err := AuditUnary(logger)(ctx, nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
			return auth(ctx, req, info, func(ctx context.Context, req interface{}) (interface{}, error) { return "ok", nil })
		})
		return err
	}

	if err := chain(incoming("x-real-ip", "203.0.113.5")); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("anonymous err = %v", err)
	}
	if err := chain(incoming("authorization", "Bearer "+tok, "x-real-ip", "203.0.113.5")); status.Code(err) != codes.PermissionDenied {
		t.Fatalf("regular err = %v", err)
	}
	if len(logger.events) != 2 {
		t.Fatalf("events = %d, want 2", len(logger.events))
	}
	for i, want := range []int{401, 403} {
		ev := logger.events[i]
		if ev.Action != audit.ActionAPIAccess || ev.Success || ev.Details["status"] != want || ev.Security.IP != "203.0.113.5" {
			t.Errorf("event %d = %+v", i, ev)
		}
	}
	if logger.events[0].Details["code"] != "Unauthenticated" || logger.events[1].Details["code"] != "PermissionDenied" {
		t.Errorf("codes = %v, %v", logger.events[0].Details["code"], logger.events[1].Details["code"])
	}
}

func TestAuthUnary_LocalizedMessage(t *testing.T) {
	p, _ := newPipeline(t, rbac.RoleAdmin)
	interceptor := AuthUnary(p, nil, authn.RequireAdmin().With(""))
	_, err := interceptor(incoming("accept-language", "ar"), nil, &grpc.UnaryServerInfo{FullMethod: method},
		func(ctx context.Context, req interface{}) (interface{}, error) { return "ok", nil })
	if status.Code(err) != codes.Unauthenticated || status.Convert(err).Message() != "المصادقة مطلوبة" {
		t.Errorf("err = %v", err)
	}
}
