package auth

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Ledger is the durable token revocation ledger. Revocation is keyed by jti;
// entries die together with the token they describe, so a revoked-and-expired
// token is indistinguishable from a never-revoked expired one.
type Ledger struct {
	store RevocationStore
	now   func() time.Time
}

// NewLedger wraps a revocation store.
func NewLedger(store RevocationStore) (*Ledger, error) {
	if store == nil {
		return nil, errors.New("auth: revocation store is required")
	}
	return &Ledger{store: store, now: time.Now}, nil
}

// Revoke records the token identified by the claims. Revoking an already
// revoked jti is a no-op: the store keeps the first row.
func (l *Ledger) Revoke(ctx context.Context, claims *Claims) error {
	if claims == nil || strings.TrimSpace(claims.ID) == "" {
		return ErrInvalidInput
	}
	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	return l.store.Insert(ctx, &RevokedToken{
		JTI:       claims.ID,
		SubjectID: claims.Subject,
		TokenType: claims.TokenType,
		ExpiresAt: expiresAt.UTC(),
		RevokedAt: l.now().UTC(),
	})
}

// IsRevoked reports whether the jti was revoked and is still within its
// lifetime. Entries past their expiry answer false even before the purge
// loop removes them: past expiry the token already fails as expired.
func (l *Ledger) IsRevoked(ctx context.Context, jti string) (bool, error) {
	jti = strings.TrimSpace(jti)
	if jti == "" {
		return false, nil
	}
	tok, err := l.store.Find(ctx, jti)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if !tok.ExpiresAt.IsZero() && !tok.ExpiresAt.After(l.now()) {
		return false, nil
	}
	return true, nil
}

// Purge removes entries whose expiry has passed.
func (l *Ledger) Purge(ctx context.Context) (int64, error) {
	return l.store.Purge(ctx, l.now().UTC())
}

// PurgeLoop purges dead entries on the given interval until the context is
// cancelled. Intended to run in its own goroutine.
func (l *Ledger) PurgeLoop(ctx context.Context, interval time.Duration, report func(int64, error)) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := l.Purge(ctx)
			if report != nil {
				report(n, err)
			}
		}
	}
}
