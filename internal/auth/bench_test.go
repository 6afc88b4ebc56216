package auth

import "testing"

// ─── Password hashing (argon2id is slow on purpose) ─────────────────

func BenchmarkHasher_Hash(b *testing.B) {
	h, err := NewPasswordHasher(HasherOptions{})
	if err != nil {
		b.Fatalf("NewPasswordHasher: %v", err)
	}

	for b.Loop() {
		h.Hash("correct-horse-battery-staple") //nolint:errcheck // benchmark
	}
}

func BenchmarkHasher_Verify(b *testing.B) {
	h, err := NewPasswordHasher(HasherOptions{})
	if err != nil {
		b.Fatalf("NewPasswordHasher: %v", err)
	}
	digest, err := h.Hash("correct-horse-battery-staple")
	if err != nil {
		b.Fatalf("Hash: %v", err)
	}

	for b.Loop() {
		h.Verify("correct-horse-battery-staple", digest) //nolint:errcheck // benchmark
	}
}

// ─── Tokens (per-request hot path) ──────────────────────────────────

func BenchmarkTokenService_Issue(b *testing.B) {
	ts, err := NewTokenService("benchmark-secret-key-32-bytes-xxx", 0)
	if err != nil {
		b.Fatalf("NewTokenService: %v", err)
	}

	for b.Loop() {
		ts.Issue("user-bench") //nolint:errcheck // benchmark
	}
}

func BenchmarkTokenService_Verify(b *testing.B) {
	ts, err := NewTokenService("benchmark-secret-key-32-bytes-xxx", 0)
	if err != nil {
		b.Fatalf("NewTokenService: %v", err)
	}
	token, err := ts.Issue("user-bench")
	if err != nil {
		b.Fatalf("Issue: %v", err)
	}

	for b.Loop() {
		ts.Verify(token) //nolint:errcheck // benchmark
	}
}
