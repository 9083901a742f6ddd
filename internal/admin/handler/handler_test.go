package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"authguard/internal/audit"
	auditdomain "authguard/internal/audit/domain"
	auditrepo "authguard/internal/audit/repository"
	"authguard/internal/memstore"
	"authguard/internal/platform/rpc"
	"authguard/internal/ratelimit"
	sessiondomain "authguard/internal/session/domain"
)

type env struct {
	now      time.Time
	limiter  *ratelimit.Limiter
	sessions *memstore.Sessions
	entries  *memstore.AuditLog
	h        *Handler
	router   chi.Router
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		now:      time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC),
		sessions: memstore.NewSessions(),
		entries:  memstore.NewAuditLog(),
	}
	e.limiter = ratelimit.New(ratelimit.WithClock(func() time.Time { return e.now }))
	e.h = NewHandler(e.limiter, e.sessions, e.entries, audit.NewLogger(e.entries))
	e.router = chi.NewRouter()
	e.router.Route("/admin", e.h.Routes)
	return e
}

func (e *env) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, r)
	var out map[string]any
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode %q: %v", w.Body.String(), err)
		}
	}
	return w, out
}

func TestBlockStatusUnblock(t *testing.T) {
	e := newEnv(t)
	key := ratelimit.Key("login", "198.51.100.7")

	w, _ := e.do(t, http.MethodGet, "/admin/ratelimit/status?key="+key, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status before block = %d", w.Code)
	}

	w, body := e.do(t, http.MethodPost, "/admin/ratelimit/block", `{"key":"`+key+`","durationSeconds":600}`)
	if w.Code != http.StatusOK || body["blocked"] != true {
		t.Fatalf("block: %d %v", w.Code, body)
	}
	if d := e.limiter.Check(key, ratelimit.Login); d.Allowed {
		t.Fatal("blocked key still allowed")
	}

	w, body = e.do(t, http.MethodGet, "/admin/ratelimit/status?key="+key, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d", w.Code)
	}
	entry, _ := body["entry"].(map[string]any)
	if entry["blocked"] != true {
		t.Errorf("entry = %v", entry)
	}

	w, _ = e.do(t, http.MethodPost, "/admin/ratelimit/unblock", `{"key":"`+key+`"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("unblock: %d", w.Code)
	}
	if d := e.limiter.Check(key, ratelimit.Login); !d.Allowed {
		t.Error("unblocked key still rejected")
	}
}

func TestBlock_Validation(t *testing.T) {
	e := newEnv(t)
	tests := []struct {
		name, body string
	}{
		{"malformed", `{`},
		{"missing key", `{"durationSeconds":60}`},
		{"zero duration", `{"key":"k","durationSeconds":0}`},
		{"unknown policy", `{"policy":"nope","identifier":"1.2.3.4","durationSeconds":60}`},
		{"policy without identifier", `{"policy":"login","durationSeconds":60}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w, _ := e.do(t, http.MethodPost, "/admin/ratelimit/block", tt.body); w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
	if w, _ := e.do(t, http.MethodGet, "/admin/ratelimit/status", ""); w.Code != http.StatusBadRequest {
		t.Errorf("status without key = %d", w.Code)
	}
}

func TestBlock_ClampsDuration(t *testing.T) {
	e := newEnv(t)
	until, err := e.h.Block("k", 365*24*time.Hour)
	if err != nil {
		t.Fatalf("Block: %v", err)
	}
	if want := e.now.Add(MaxBlockDuration); !until.Equal(want) {
		t.Errorf("blockedUntil = %v, want %v", until, want)
	}
}

func TestBlock_HugeDurationSecondsClamped(t *testing.T) {
	e := newEnv(t)
	w, body := e.do(t, http.MethodPost, "/admin/ratelimit/block", `{"key":"k","durationSeconds":9223372036854775807}`)
	if w.Code != http.StatusOK {
		t.Fatalf("block: %d %v", w.Code, body)
	}
	st, _ := e.limiter.Status("k")
	if want := e.now.Add(MaxBlockDuration); !st.BlockedUntil.Equal(want) {
		t.Errorf("BlockedUntil = %v, want %v", st.BlockedUntil, want)
	}
	if d := BlockDuration(1e30); d != MaxBlockDuration {
		t.Errorf("BlockDuration(1e30) = %v", d)
	}
	if d := BlockDuration(-5); d != 0 {
		t.Errorf("BlockDuration(-5) = %v", d)
	}
}

func TestBlock_ByPolicyAndIdentifier(t *testing.T) {
	e := newEnv(t)
	w, body := e.do(t, http.MethodPost, "/admin/ratelimit/block", `{"policy":"login","identifier":"198.51.100.7","durationSeconds":60}`)
	if w.Code != http.StatusOK || body["key"] != "login:198.51.100.7" {
		t.Fatalf("block: %d %v", w.Code, body)
	}
	if d := e.limiter.Check(ratelimit.Key("login", "198.51.100.7"), ratelimit.Login); d.Allowed {
		t.Error("policy key not blocked")
	}
	w, _ = e.do(t, http.MethodGet, "/admin/ratelimit/status?policy=login&identifier=198.51.100.7", "")
	if w.Code != http.StatusOK {
		t.Errorf("status by policy = %d", w.Code)
	}
	w, _ = e.do(t, http.MethodGet, "/admin/ratelimit/status?policy=bogus&identifier=x", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status unknown policy = %d", w.Code)
	}
}

func TestRevokeSession(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_ = e.sessions.Create(ctx, &sessiondomain.Session{ID: "s1", UserID: "u1", IsActive: true, ExpiresAt: e.now.Add(time.Hour)})

	if w, _ := e.do(t, http.MethodPost, "/admin/sessions/nope/revoke", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown session = %d", w.Code)
	}
	w, body := e.do(t, http.MethodPost, "/admin/sessions/s1/revoke", "")
	if w.Code != http.StatusOK || body["revoked"] != true {
		t.Fatalf("revoke: %d %v", w.Code, body)
	}
	if s, _ := e.sessions.GetByID(ctx, "s1"); s.IsActive {
		t.Error("session still active")
	}
	list, _ := e.entries.List(ctx, auditrepo.ListFilter{})
	if len(list) != 1 || list[0].Action != audit.ActionSessionRevoked || list[0].ResourceID != "s1" {
		t.Errorf("audit entries = %+v", list)
	}
}

func TestListAudit(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	for i, action := range []string{audit.ActionLogin, audit.ActionFailedLogin, audit.ActionLogin} {
		_ = e.entries.Append(ctx, &auditdomain.Entry{ID: string(rune('a' + i)), Action: action, CreatedAt: e.now})
	}

	w, body := e.do(t, http.MethodGet, "/admin/audit?limit=2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list: %d", w.Code)
	}
	if got := body["entries"].([]any); len(got) != 2 {
		t.Errorf("entries = %d, want 2", len(got))
	}
	w, body = e.do(t, http.MethodGet, "/admin/audit?action=failed_login", "")
	if got := body["entries"].([]any); w.Code != http.StatusOK || len(got) != 1 {
		t.Errorf("filtered entries = %v", got)
	}
	if w, _ := e.do(t, http.MethodGet, "/admin/audit?limit=-1", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad limit = %d", w.Code)
	}

	noLister := NewHandler(e.limiter, e.sessions, nil, nil)
	r := chi.NewRouter()
	r.Route("/admin", noLister.Routes)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/audit", nil))
	if rec.Code != http.StatusNotImplemented {
		t.Errorf("no lister = %d", rec.Code)
	}
}

func TestGRPCServer(t *testing.T) {
	e := newEnv(t)
	g := NewGRPCServer(e.h)
	ctx := context.Background()
	req := func(m map[string]any) *structpb.Struct {
		s, err := structpb.NewStruct(m)
		if err != nil {
			t.Fatalf("NewStruct: %v", err)
		}
		return s
	}

	if _, err := g.GetStatus(ctx, req(map[string]any{"key": "k"})); status.Code(err) != codes.NotFound {
		t.Errorf("GetStatus unknown = %v", err)
	}
	if _, err := g.Block(ctx, req(map[string]any{"key": "k"})); status.Code(err) != codes.InvalidArgument {
		t.Errorf("Block without duration = %v", err)
	}
	out, err := g.Block(ctx, req(map[string]any{"key": "k", "durationSeconds": 60}))
	if err != nil {
		t.Fatalf("Block: %v", err)
	}
	if rpc.String(out, "blockedUntil") != e.now.Add(time.Minute).Format(time.RFC3339) {
		t.Errorf("blockedUntil = %v", out)
	}
	st, err := g.GetStatus(ctx, req(map[string]any{"key": "k"}))
	if err != nil || !st.GetFields()["blocked"].GetBoolValue() {
		t.Fatalf("GetStatus = %v, %v", st, err)
	}
	if _, err := g.Unblock(ctx, req(map[string]any{"key": "k"})); err != nil {
		t.Fatalf("Unblock: %v", err)
	}
	if _, err := g.GetStatus(ctx, req(map[string]any{"policy": "nope", "identifier": "x"})); status.Code(err) != codes.InvalidArgument {
		t.Errorf("GetStatus unknown policy = %v", err)
	}
	out, err = g.Block(ctx, req(map[string]any{"policy": "register", "identifier": "10.0.0.1", "durationSeconds": 1e300}))
	if err != nil {
		t.Fatalf("Block by policy: %v", err)
	}
	if rpc.String(out, "key") != "register:10.0.0.1" || rpc.String(out, "blockedUntil") != e.now.Add(MaxBlockDuration).Format(time.RFC3339) {
		t.Errorf("Block by policy = %v", out)
	}

	if _, err := g.RevokeSession(ctx, req(map[string]any{})); status.Code(err) != codes.InvalidArgument {
		t.Errorf("RevokeSession without id = %v", err)
	}
	if _, err := g.RevokeSession(ctx, req(map[string]any{"sessionId": "missing"})); status.Code(err) != codes.NotFound {
		t.Errorf("RevokeSession unknown = %v", err)
	}
}
