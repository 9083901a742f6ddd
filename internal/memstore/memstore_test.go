package memstore

import (
	"context"
	"testing"
	"time"

	auditdomain "authguard/internal/audit/domain"
	auditrepo "authguard/internal/audit/repository"
	"authguard/internal/security"
	sessiondomain "authguard/internal/session/domain"
	sessionrepo "authguard/internal/session/repository"
	userdomain "authguard/internal/user/domain"
	userrepo "authguard/internal/user/repository"
)

var (
	_ userrepo.Repository      = (*Users)(nil)
	_ userrepo.TokenRepository = (*Users)(nil)
	_ sessionrepo.Repository   = (*Sessions)(nil)
	_ auditrepo.Repository     = (*AuditLog)(nil)
)

func TestUsers_CreateAndDuplicate(t *testing.T) {
	ctx := context.Background()
	s := NewUsers()
	u := &userdomain.User{ID: "u1", Email: "a@example.com", PasswordHash: "h", IsActive: true}
	if err := s.Create(ctx, u); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Create(ctx, &userdomain.User{ID: "u2", Email: "a@example.com"}); err != ErrDuplicateEmail {
		t.Errorf("duplicate Create = %v, want ErrDuplicateEmail", err)
	}
	got, _ := s.GetByEmail(ctx, "a@example.com")
	if got == nil || got.ID != "u1" {
		t.Fatalf("GetByEmail = %+v", got)
	}
	got.Name = "mutated"
	again, _ := s.GetByID(ctx, "u1")
	if again.Name == "mutated" {
		t.Error("store should return copies")
	}
	if missing, _ := s.GetByID(ctx, "nope"); missing != nil {
		t.Error("missing user should be nil")
	}
}

func TestUsers_ConsumeTokenOnce(t *testing.T) {
	ctx := context.Background()
	s := NewUsers()
	now := time.Now().UTC()
	_ = s.CreateToken(ctx, &userdomain.OneTimeToken{ID: "t1", UserID: "u1", Purpose: "password_reset",
		TokenHash: "h", ExpiresAt: now.Add(time.Hour)})

	if tok, _ := s.ConsumeToken(ctx, "email_verification", "h", now); tok != nil {
		t.Error("purpose mismatch should not consume")
	}
	tok, _ := s.ConsumeToken(ctx, "password_reset", "h", now)
	if tok == nil || tok.UsedAt == nil {
		t.Fatalf("first consume = %+v", tok)
	}
	if tok, _ := s.ConsumeToken(ctx, "password_reset", "h", now); tok != nil {
		t.Error("token must be single use")
	}
}

func TestSessions_LookupAndDeactivate(t *testing.T) {
	ctx := context.Background()
	s := NewSessions()
	now := time.Now().UTC()
	_ = s.Create(ctx, &sessiondomain.Session{ID: "s1", UserID: "u1", TokenHash: security.HashOpaqueToken("tok"),
		IsActive: true, ExpiresAt: now.Add(time.Hour), CreatedAt: now})
	_ = s.Create(ctx, &sessiondomain.Session{ID: "s2", UserID: "u1", TokenHash: "other",
		IsActive: true, ExpiresAt: now.Add(time.Hour), CreatedAt: now.Add(time.Second)})

	got, _ := s.GetByToken(ctx, "tok")
	if got == nil || got.ID != "s1" {
		t.Fatalf("GetByToken = %+v", got)
	}
	list, _ := s.ListActiveByUser(ctx, "u1")
	if len(list) != 2 || list[0].ID != "s2" {
		t.Errorf("ListActiveByUser = %+v", list)
	}
	_ = s.DeactivateAllByUser(ctx, "u1")
	if list, _ := s.ListActiveByUser(ctx, "u1"); len(list) != 0 {
		t.Errorf("after DeactivateAllByUser, %d active", len(list))
	}
}

func TestAuditLog_ListFilters(t *testing.T) {
	ctx := context.Background()
	a := NewAuditLog()
	_ = a.Append(ctx, &auditdomain.Entry{ID: "1", Action: "login", UserID: "u1"})
	_ = a.Append(ctx, &auditdomain.Entry{ID: "2", Action: "failed_login"})
	_ = a.Append(ctx, &auditdomain.Entry{ID: "3", Action: "login", UserID: "u2"})

	list, _ := a.List(ctx, auditrepo.ListFilter{Action: "login"})
	if len(list) != 2 || list[0].ID != "3" {
		t.Errorf("List(login) = %+v", list)
	}
	list, _ = a.List(ctx, auditrepo.ListFilter{Limit: 1})
	if len(list) != 1 || list[0].ID != "3" {
		t.Errorf("List(limit 1) = %+v", list)
	}
}

func TestUsers_IncrementFailedLogins(t *testing.T) {
	ctx := context.Background()
	s := NewUsers()
	_ = s.Create(ctx, &userdomain.User{ID: "u1", Email: "a@example.com"})
	now := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

	for i := 1; i < 3; i++ {
		n, until, err := s.IncrementFailedLogins(ctx, "u1", now, 3, time.Minute)
		if err != nil || n != i || until != nil {
			t.Fatalf("attempt %d: n %d, until %v, err %v", i, n, until, err)
		}
	}
	n, until, _ := s.IncrementFailedLogins(ctx, "u1", now, 3, time.Minute)
	if n != 3 || until == nil || !until.Equal(now.Add(time.Minute)) {
		t.Fatalf("lock: n %d, until %v", n, until)
	}

	// An expired lock restarts the count.
	n, until, _ = s.IncrementFailedLogins(ctx, "u1", now.Add(2*time.Minute), 3, time.Minute)
	if n != 1 || until != nil {
		t.Errorf("after expiry: n %d, until %v", n, until)
	}
	if n, _, _ := s.IncrementFailedLogins(ctx, "missing", now, 3, time.Minute); n != 0 {
		t.Errorf("unknown user n = %d", n)
	}
}
