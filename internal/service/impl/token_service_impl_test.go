package impl

import (
	"errors"
	"testing"
	"time"

	"attendance-auth/internal/domain"

	"github.com/google/uuid"
)

func newTestTokenService(now *time.Time) *TokenServiceImpl {
	ts := NewTokenServiceHS256(TokenConfig{
		Issuer:     "attendance-auth-test",
		Audience:   "attendance-app",
		SessionTTL: 7 * 24 * time.Hour,
		PendingTTL: 5 * time.Minute,
		SigningKey: []byte("test-signing-key-please-rotate"),
	})
	ts.now = func() time.Time { return *now }
	return ts
}

func tokenTestAccount() *domain.Account {
	return &domain.Account{
		ID:    uuid.New(),
		Email: "teacher@example.com",
		Role:  domain.RoleTeacher,
	}
}

func TestSessionTokenRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ts := newTestTokenService(&now)
	acc := tokenTestAccount()

	token, expiresIn, err := ts.IssueSession(acc)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if expiresIn != int64((7 * 24 * time.Hour).Seconds()) {
		t.Fatalf("unexpected expiresIn: %d", expiresIn)
	}

	id, role, err := ts.VerifySession(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id != acc.ID {
		t.Fatalf("expected subject %s, got %s", acc.ID, id)
	}
	if role != domain.RoleTeacher {
		t.Fatalf("expected role teacher, got %s", role)
	}
}

func TestPendingTokenRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ts := newTestTokenService(&now)
	acc := tokenTestAccount()

	token, err := ts.IssuePending(acc)
	if err != nil {
		t.Fatalf("issue pending: %v", err)
	}

	id, err := ts.VerifyPending(token)
	if err != nil {
		t.Fatalf("verify pending: %v", err)
	}
	if id != acc.ID {
		t.Fatalf("expected subject %s, got %s", acc.ID, id)
	}
}

// The two token kinds must never satisfy each other's verifier, regardless of
// signature validity.
func TestTokenKindsAreDisjoint(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ts := newTestTokenService(&now)
	acc := tokenTestAccount()

	session, _, err := ts.IssueSession(acc)
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}
	pending, err := ts.IssuePending(acc)
	if err != nil {
		t.Fatalf("issue pending: %v", err)
	}

	if _, _, err := ts.VerifySession(pending); !errors.Is(err, domain.ErrInvalidOrExpiredToken) {
		t.Fatalf("pending token accepted as session: %v", err)
	}
	if _, err := ts.VerifyPending(session); !errors.Is(err, domain.ErrInvalidOrExpiredToken) {
		t.Fatalf("session token accepted as pending: %v", err)
	}
}

func TestPendingTokenExpires(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ts := newTestTokenService(&now)
	acc := tokenTestAccount()

	token, err := ts.IssuePending(acc)
	if err != nil {
		t.Fatalf("issue pending: %v", err)
	}

	now = now.Add(4 * time.Minute)
	if _, err := ts.VerifyPending(token); err != nil {
		t.Fatalf("expected token still valid at 4m, got %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := ts.VerifyPending(token); !errors.Is(err, domain.ErrInvalidOrExpiredToken) {
		t.Fatalf("expected expired token at 6m, got %v", err)
	}
}

func TestSessionTokenExpires(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ts := newTestTokenService(&now)

	token, _, err := ts.IssueSession(tokenTestAccount())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	now = now.Add(7*24*time.Hour + time.Minute)
	if _, _, err := ts.VerifySession(token); !errors.Is(err, domain.ErrInvalidOrExpiredToken) {
		t.Fatalf("expected expired session, got %v", err)
	}
}

func TestTokenRejectsForeignKeyAndGarbage(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ts := newTestTokenService(&now)

	other := newTestTokenService(&now)
	other.cfg.SigningKey = []byte("a-different-key-entirely")

	token, _, err := other.IssueSession(tokenTestAccount())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, _, err := ts.VerifySession(token); !errors.Is(err, domain.ErrInvalidOrExpiredToken) {
		t.Fatalf("expected foreign-key token rejected, got %v", err)
	}
	if _, _, err := ts.VerifySession("not.a.jwt"); !errors.Is(err, domain.ErrInvalidOrExpiredToken) {
		t.Fatalf("expected garbage rejected, got %v", err)
	}
}
