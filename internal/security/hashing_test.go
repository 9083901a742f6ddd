package security

import (
	"testing"
)

func TestHasher_HashAndVerify(t *testing.T) {
	h := NewHasher(4)
	hash, err := h.Hash("Secret#123")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if hash == "" {
		t.Fatal("Hash returned empty")
	}
	if !h.Verify("Secret#123", hash) {
		t.Fatal("Verify should accept the original password")
	}
	if h.Verify("wrong", hash) {
		t.Fatal("Verify should reject a wrong password")
	}
}

func TestHasher_VerifyMalformedHash(t *testing.T) {
	h := NewHasher(4)
	for _, hash := range []string{"", "not-a-bcrypt-hash", "$2a$10$short"} {
		if h.Verify("anything", hash) {
			t.Errorf("Verify(%q) = true, want false", hash)
		}
	}
}

func TestHasher_Cost(t *testing.T) {
	if h := NewHasher(12); h.Cost != 12 {
		t.Errorf("Cost want 12, got %d", h.Cost)
	}
	if h := NewHasher(0); h.Cost != DefaultCost {
		t.Errorf("zero cost should select DefaultCost, got %d", h.Cost)
	}
	if h := NewHasher(1); h.Cost < 4 {
		t.Errorf("cost should be clamped to at least MinCost, got %d", h.Cost)
	}
	if h := NewHasher(99); h.Cost != 31 {
		t.Errorf("cost should be clamped to MaxCost, got %d", h.Cost)
	}
}
