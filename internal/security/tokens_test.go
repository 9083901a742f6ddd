package security

import (
	"testing"
	"time"
)

func TestTokenProvider_RoundTrip(t *testing.T) {
	es, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	hmac, err := NewTestHMACTokenProvider()
	if err != nil {
		t.Fatalf("NewTestHMACTokenProvider: %v", err)
	}
	in := Claims{SubjectID: "u1", Email: "a@example.com", Role: "editor", SessionID: "s1"}
	for name, p := range map[string]*TokenProvider{"es256": es, "hs256": hmac} {
		t.Run(name, func(t *testing.T) {
			token, err := p.Issue(in, time.Hour)
			if err != nil {
				t.Fatalf("Issue: %v", err)
			}
			got := p.Verify(token)
			if got == nil {
				t.Fatal("Verify returned nil for a fresh token")
			}
			if got.SubjectID != in.SubjectID || got.Email != in.Email || got.Role != in.Role || got.SessionID != in.SessionID {
				t.Errorf("Verify = %+v, want %+v", got, in)
			}
			if got.ExpiresAt.Sub(got.IssuedAt) != time.Hour {
				t.Errorf("ttl = %v, want 1h", got.ExpiresAt.Sub(got.IssuedAt))
			}
		})
	}
}

func TestTokenProvider_Expired(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	now := time.Now()
	issuer := p.WithClock(func() time.Time { return now })
	token, err := issuer.Issue(Claims{SubjectID: "u1"}, time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if issuer.Verify(token) == nil {
		t.Fatal("token should verify before ttl")
	}
	later := p.WithClock(func() time.Time { return now.Add(2 * time.Minute) })
	if later.Verify(token) != nil {
		t.Fatal("token should not verify after ttl")
	}
}

func TestTokenProvider_TamperRejection(t *testing.T) {
	p, err := NewTestHMACTokenProvider()
	if err != nil {
		t.Fatalf("NewTestHMACTokenProvider: %v", err)
	}
	token, err := p.Issue(Claims{SubjectID: "u1", Role: "regular", SessionID: "s1"}, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	for i := range token {
		b := []byte(token)
		if b[i] == 'A' {
			b[i] = 'B'
		} else {
			b[i] = 'A'
		}
		if p.Verify(string(b)) != nil {
			t.Fatalf("Verify accepted token tampered at byte %d", i)
		}
	}
}

func TestTokenProvider_WrongIssuerOrAudience(t *testing.T) {
	secret := []byte("another-secret-another-secret-another!")
	a, _ := NewHMACTokenProvider(secret, "issuer-a", "aud")
	b, _ := NewHMACTokenProvider(secret, "issuer-b", "aud")
	c, _ := NewHMACTokenProvider(secret, "issuer-a", "other-aud")

	token, err := a.Issue(Claims{SubjectID: "u1"}, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if b.Verify(token) != nil {
		t.Error("Verify should reject a token from another issuer")
	}
	if c.Verify(token) != nil {
		t.Error("Verify should reject a token for another audience")
	}
}

func TestTokenProvider_AlgorithmConfusion(t *testing.T) {
	es, _ := NewTestTokenProvider()
	hmac, _ := NewTestHMACTokenProvider()
	token, err := hmac.Issue(Claims{SubjectID: "u1"}, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if es.Verify(token) != nil {
		t.Error("ES256 provider should reject an HS256 token")
	}
	if es.Verify("") != nil || es.Verify("not.a.token") != nil {
		t.Error("Verify should reject garbage")
	}
}

func TestNewHMACTokenProvider_ShortSecret(t *testing.T) {
	if _, err := NewHMACTokenProvider([]byte("short"), "i", "a"); err != ErrInvalidKey {
		t.Errorf("err = %v, want ErrInvalidKey", err)
	}
}
