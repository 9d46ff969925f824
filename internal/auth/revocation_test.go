package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type stubRevocationStore struct {
	rows map[string]*RevokedToken
}

func newStubRevocationStore() *stubRevocationStore {
	return &stubRevocationStore{rows: map[string]*RevokedToken{}}
}

func (s *stubRevocationStore) Insert(_ context.Context, tok *RevokedToken) error {
	if _, ok := s.rows[tok.JTI]; ok {
		return nil
	}
	cp := *tok
	s.rows[tok.JTI] = &cp
	return nil
}

func (s *stubRevocationStore) Find(_ context.Context, jti string) (*RevokedToken, error) {
	tok, ok := s.rows[jti]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *tok
	return &cp, nil
}

func (s *stubRevocationStore) Purge(_ context.Context, now time.Time) (int64, error) {
	var n int64
	for jti, tok := range s.rows {
		if !tok.ExpiresAt.After(now) {
			delete(s.rows, jti)
			n++
		}
	}
	return n, nil
}

func claimsWithExpiry(jti string, exp time.Time) *Claims {
	return &Claims{
		TokenType: TokenAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ID:        jti,
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
}

func TestLedgerRevokeAndCheck(t *testing.T) {
	store := newStubRevocationStore()
	ledger, err := NewLedger(store)
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}
	ctx := context.Background()

	revoked, err := ledger.IsRevoked(ctx, "jti-1")
	if err != nil || revoked {
		t.Fatalf("fresh jti should not be revoked: %v %v", revoked, err)
	}

	claims := claimsWithExpiry("jti-1", time.Now().Add(time.Hour))
	if err := ledger.Revoke(ctx, claims); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	revoked, err = ledger.IsRevoked(ctx, "jti-1")
	if err != nil || !revoked {
		t.Fatalf("expected revoked, got %v %v", revoked, err)
	}

	// Revoking again is a no-op, not an error.
	first := store.rows["jti-1"].RevokedAt
	if err := ledger.Revoke(ctx, claims); err != nil {
		t.Fatalf("second Revoke: %v", err)
	}
	if !store.rows["jti-1"].RevokedAt.Equal(first) {
		t.Fatalf("second revoke must keep the original row")
	}
}

func TestLedgerExpiredEntriesAnswerFalse(t *testing.T) {
	store := newStubRevocationStore()
	ledger, err := NewLedger(store)
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}
	ctx := context.Background()

	now := time.Now().UTC()
	ledger.now = func() time.Time { return now }

	if err := ledger.Revoke(ctx, claimsWithExpiry("jti-2", now.Add(time.Minute))); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if revoked, _ := ledger.IsRevoked(ctx, "jti-2"); !revoked {
		t.Fatalf("entry inside lifetime should be revoked")
	}

	// Past expiry the entry is logically dead even before any purge: the
	// token now fails as expired, not revoked.
	now = now.Add(2 * time.Minute)
	if revoked, _ := ledger.IsRevoked(ctx, "jti-2"); revoked {
		t.Fatalf("entry past expiry must answer false")
	}

	n, err := ledger.Purge(ctx)
	if err != nil || n != 1 {
		t.Fatalf("Purge: n=%d err=%v", n, err)
	}
	if len(store.rows) != 0 {
		t.Fatalf("dead entry not removed")
	}
}
