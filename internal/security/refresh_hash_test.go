package security

import (
	"testing"
)

func TestHashToken_Consistent(t *testing.T) {
	hash1 := HashToken("test-refresh-token-123")
	hash2 := HashToken("test-refresh-token-123")
	if hash1 != hash2 {
		t.Errorf("HashToken not consistent: %q vs %q", hash1, hash2)
	}
	if len(hash1) != 64 {
		t.Errorf("hash length = %d, want 64 (SHA-256 hex)", len(hash1))
	}
	if HashToken("token-1") == HashToken("token-2") {
		t.Error("HashToken produced same hash for different tokens")
	}
}

func TestTokenHashEqual(t *testing.T) {
	stored := HashToken("correct-token")
	if !TokenHashEqual("correct-token", stored) {
		t.Error("TokenHashEqual should match correct token")
	}
	if TokenHashEqual("wrong-token", stored) {
		t.Error("TokenHashEqual should reject incorrect token")
	}
	if TokenHashEqual("correct-token", "a"+stored) {
		t.Error("TokenHashEqual should reject hash with different length")
	}
	if TokenHashEqual("", "") {
		t.Error("TokenHashEqual should not match empty inputs")
	}
}

func TestGenerateToken(t *testing.T) {
	a, err := GenerateToken(32)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if len(a) != 64 {
		t.Errorf("len = %d, want 64", len(a))
	}
	b, _ := GenerateToken(32)
	if a == b {
		t.Error("GenerateToken returned the same value twice")
	}
}
