package impl

import (
	"context"
	"errors"
	"testing"
	"time"

	"attendance-auth/internal/domain"
	"attendance-auth/internal/dto"
	"attendance-auth/internal/store"

	"github.com/pquerna/otp/totp"
)

type noopNotifier struct{}

func (noopNotifier) AccountLocked(context.Context, *domain.Account, time.Time) {}
func (noopNotifier) TwoFactorEnrolled(context.Context, *domain.Account)        {}

type authHarness struct {
	auth   *AuthServiceImpl
	tokens *TokenServiceImpl
	st     *store.Store
	now    *time.Time
}

// newAuthHarness wires the real services against an in-memory database with a
// single controllable clock shared by every component.
func newAuthHarness(t *testing.T) *authHarness {
	t.Helper()

	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	st := newTestStore(t)

	tokens := NewTokenServiceHS256(TokenConfig{
		Issuer:     "attendance-auth-test",
		Audience:   "attendance-app",
		SessionTTL: 7 * 24 * time.Hour,
		PendingTTL: 5 * time.Minute,
		SigningKey: []byte("test-signing-key-please-rotate"),
	})
	tokens.now = clock

	lockout := NewLockoutService(st)
	lockout.now = clock

	twofa := NewTwoFactorService(st)
	twofa.now = clock

	auth := NewAuthServiceImpl(st, NewPasswordServiceArgon2id(), tokens, lockout, twofa, noopNotifier{})
	auth.Now = clock

	return &authHarness{auth: auth, tokens: tokens, st: st, now: &now}
}

func (h *authHarness) advance(d time.Duration) { *h.now = h.now.Add(d) }

func (h *authHarness) register(t *testing.T, email, password, role string) *dto.RegisterResponse {
	t.Helper()
	res, err := h.auth.Register(context.Background(), dto.RegisterRequest{
		FullName: "Some Person",
		Email:    email,
		Password: password,
		Role:     role,
	}, "203.0.113.9", "test-agent")
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return res
}

func TestRegisterValidation(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()

	h.register(t, "dup@example.com", "password123", "student")

	_, err := h.auth.Register(ctx, dto.RegisterRequest{
		Email: "DUP@example.com", Password: "password123", Role: "student",
	}, "", "")
	if !errors.Is(err, domain.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken for case-variant duplicate, got %v", err)
	}

	_, err = h.auth.Register(ctx, dto.RegisterRequest{
		Email: "short@example.com", Password: "short", Role: "student",
	}, "", "")
	if !errors.Is(err, ErrPasswordLength) {
		t.Fatalf("expected ErrPasswordLength, got %v", err)
	}

	_, err = h.auth.Register(ctx, dto.RegisterRequest{
		Email: "role@example.com", Password: "password123", Role: "superuser",
	}, "", "")
	if !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestLoginHappyPath(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()

	h.register(t, "student@example.com", "password123", "student")

	res, err := h.auth.Login(ctx, dto.LoginRequest{
		Email: "Student@Example.com", Password: "password123",
	}, domain.DefaultPolicy(), "203.0.113.9", "test-agent")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Token == "" || res.TwoFARequired || res.TwoFASetupRequired {
		t.Fatalf("expected a finished login, got %+v", res)
	}
	if res.Account == nil || res.Account.Email != "student@example.com" {
		t.Fatalf("unexpected account info: %+v", res.Account)
	}

	id, role, err := h.tokens.VerifySession(res.Token)
	if err != nil {
		t.Fatalf("verify issued session: %v", err)
	}
	if role != domain.RoleStudent {
		t.Fatalf("expected student role in session, got %s", role)
	}
	acc, err := h.st.Accounts().GetByID(ctx, id)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if acc.LastLoginAt == nil {
		t.Fatal("expected last login stamped")
	}
}

func TestLoginGenericRejections(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()
	policy := domain.DefaultPolicy()

	h.register(t, "known@example.com", "password123", "teacher")

	// Unknown address and wrong password answer identically.
	_, err := h.auth.Login(ctx, dto.LoginRequest{Email: "ghost@example.com", Password: "password123"}, policy, "", "")
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("unknown email: expected ErrInvalidCredentials, got %v", err)
	}
	_, err = h.auth.Login(ctx, dto.LoginRequest{Email: "known@example.com", Password: "wrongwrong"}, policy, "", "")
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("wrong password: expected ErrInvalidCredentials, got %v", err)
	}

	// Role hint mismatch stays generic too.
	_, err = h.auth.Login(ctx, dto.LoginRequest{Email: "known@example.com", Password: "password123", Role: "admin"}, policy, "", "")
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("role mismatch: expected ErrInvalidCredentials, got %v", err)
	}

	// Deactivated account as well.
	acc, err := h.st.Accounts().GetByEmail(ctx, "known@example.com")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	acc.IsActive = false
	if err := h.st.Accounts().Save(ctx, acc); err != nil {
		t.Fatalf("save: %v", err)
	}
	_, err = h.auth.Login(ctx, dto.LoginRequest{Email: "known@example.com", Password: "password123"}, policy, "", "")
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("inactive: expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginLockoutLifecycle(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()
	policy := domain.DefaultPolicy()

	h.register(t, "locked@example.com", "password123", "teacher")

	for i := 0; i < policy.MaxLoginAttempts; i++ {
		_, err := h.auth.Login(ctx, dto.LoginRequest{Email: "locked@example.com", Password: "wrongwrong"}, policy, "", "")
		if !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Fatalf("failure %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}

	// Locked now; even the correct password is refused and must not reveal
	// anything about credential validity beyond the lock itself.
	_, err := h.auth.Login(ctx, dto.LoginRequest{Email: "locked@example.com", Password: "password123"}, policy, "", "")
	if !errors.Is(err, domain.ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked, got %v", err)
	}

	h.advance(policy.LockoutDuration + time.Minute)

	res, err := h.auth.Login(ctx, dto.LoginRequest{Email: "locked@example.com", Password: "password123"}, policy, "", "")
	if err != nil {
		t.Fatalf("login after lock expiry: %v", err)
	}
	if res.Token == "" {
		t.Fatalf("expected session after lock expiry, got %+v", res)
	}

	acc, err := h.st.Accounts().GetByEmail(ctx, "locked@example.com")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if acc.FailedLoginAttempts != 0 || acc.LockedUntil != nil {
		t.Fatalf("expected counters cleared after success, got attempts=%d until=%v",
			acc.FailedLoginAttempts, acc.LockedUntil)
	}
}

func adminPolicy() domain.GlobalPolicy {
	p := domain.DefaultPolicy()
	p.Require2FA = true
	return p
}

func TestLoginTwoFactorEnrollmentFlow(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()
	policy := adminPolicy()

	h.register(t, "admin@example.com", "password123", "admin")

	// First gated login: no enrollment yet, so the setup bundle comes back
	// alongside the pending token.
	res, err := h.auth.Login(ctx, dto.LoginRequest{Email: "admin@example.com", Password: "password123"}, policy, "", "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !res.TwoFASetupRequired || res.Setup == nil || res.PendingToken == "" {
		t.Fatalf("expected setup-required response, got %+v", res)
	}
	if res.Token != "" {
		t.Fatal("setup-required response must not carry a session")
	}

	// The pending token alone opens nothing.
	if _, _, err := h.tokens.VerifySession(res.PendingToken); err == nil {
		t.Fatal("pending token accepted as session")
	}

	// Confirming with a live code finishes the login and enables 2FA.
	code, err := totp.GenerateCode(res.Setup.Secret, *h.now)
	if err != nil {
		t.Fatalf("generate code: %v", err)
	}
	done, err := h.auth.VerifySecondFactor(ctx, dto.VerifySecondFactorRequest{
		PendingToken: res.PendingToken, Code: code,
	}, "", "")
	if err != nil {
		t.Fatalf("verify second factor: %v", err)
	}
	if done.Token == "" {
		t.Fatalf("expected session, got %+v", done)
	}

	// Second login: enrolled, so only a challenge comes back.
	res2, err := h.auth.Login(ctx, dto.LoginRequest{Email: "admin@example.com", Password: "password123"}, policy, "", "")
	if err != nil {
		t.Fatalf("second login: %v", err)
	}
	if !res2.TwoFARequired || res2.Setup != nil || res2.PendingToken == "" {
		t.Fatalf("expected challenge response, got %+v", res2)
	}

	code2, err := totp.GenerateCode(res.Setup.Secret, *h.now)
	if err != nil {
		t.Fatalf("generate code: %v", err)
	}
	done2, err := h.auth.VerifySecondFactor(ctx, dto.VerifySecondFactorRequest{
		PendingToken: res2.PendingToken, Code: code2,
	}, "", "")
	if err != nil {
		t.Fatalf("verify second login: %v", err)
	}
	if done2.Token == "" {
		t.Fatal("expected session after TOTP challenge")
	}
}

func TestVerifySecondFactorWithBackupCode(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()
	policy := adminPolicy()

	h.register(t, "admin@example.com", "password123", "admin")

	res, err := h.auth.Login(ctx, dto.LoginRequest{Email: "admin@example.com", Password: "password123"}, policy, "", "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	// Backup codes are not a way around the scanner: before the authenticator
	// is confirmed they are refused outright.
	_, err = h.auth.VerifySecondFactor(ctx, dto.VerifySecondFactorRequest{
		PendingToken: res.PendingToken, BackupCode: res.Setup.BackupCodes[0],
	}, "", "")
	if !errors.Is(err, domain.ErrSetupNotConfirmed) {
		t.Fatalf("expected ErrSetupNotConfirmed before enrollment, got %v", err)
	}

	code, err := totp.GenerateCode(res.Setup.Secret, *h.now)
	if err != nil {
		t.Fatalf("generate code: %v", err)
	}
	if _, err := h.auth.VerifySecondFactor(ctx, dto.VerifySecondFactorRequest{
		PendingToken: res.PendingToken, Code: code,
	}, "", ""); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	// Enrolled: a backup code now completes a fresh challenge, exactly once.
	res2, err := h.auth.Login(ctx, dto.LoginRequest{Email: "admin@example.com", Password: "password123"}, policy, "", "")
	if err != nil {
		t.Fatalf("second login: %v", err)
	}
	done, err := h.auth.VerifySecondFactor(ctx, dto.VerifySecondFactorRequest{
		PendingToken: res2.PendingToken, BackupCode: res.Setup.BackupCodes[0],
	}, "", "")
	if err != nil {
		t.Fatalf("backup code login: %v", err)
	}
	if done.Token == "" {
		t.Fatal("expected session from backup code")
	}

	res3, err := h.auth.Login(ctx, dto.LoginRequest{Email: "admin@example.com", Password: "password123"}, policy, "", "")
	if err != nil {
		t.Fatalf("third login: %v", err)
	}
	_, err = h.auth.VerifySecondFactor(ctx, dto.VerifySecondFactorRequest{
		PendingToken: res3.PendingToken, BackupCode: res.Setup.BackupCodes[0],
	}, "", "")
	if !errors.Is(err, domain.ErrInvalidSecondFactor) {
		t.Fatalf("expected spent backup code rejected, got %v", err)
	}
}

func TestVerifySecondFactorTokenHandling(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()
	policy := adminPolicy()

	h.register(t, "admin@example.com", "password123", "admin")

	res, err := h.auth.Login(ctx, dto.LoginRequest{Email: "admin@example.com", Password: "password123"}, policy, "", "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	// Neither factor supplied.
	_, err = h.auth.VerifySecondFactor(ctx, dto.VerifySecondFactorRequest{PendingToken: res.PendingToken}, "", "")
	if !errors.Is(err, domain.ErrSecondFactorRequired) {
		t.Fatalf("expected ErrSecondFactorRequired, got %v", err)
	}

	// Garbage token.
	_, err = h.auth.VerifySecondFactor(ctx, dto.VerifySecondFactorRequest{PendingToken: "nope", Code: "123456"}, "", "")
	if !errors.Is(err, domain.ErrInvalidOrExpiredToken) {
		t.Fatalf("expected ErrInvalidOrExpiredToken for garbage, got %v", err)
	}

	// The pending window is short; after it passes the handshake restarts.
	h.advance(6 * time.Minute)
	code, err := totp.GenerateCode(res.Setup.Secret, *h.now)
	if err != nil {
		t.Fatalf("generate code: %v", err)
	}
	_, err = h.auth.VerifySecondFactor(ctx, dto.VerifySecondFactorRequest{
		PendingToken: res.PendingToken, Code: code,
	}, "", "")
	if !errors.Is(err, domain.ErrInvalidOrExpiredToken) {
		t.Fatalf("expected expired pending token rejected, got %v", err)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()
	policy := domain.DefaultPolicy()

	h.register(t, "reset@example.com", "oldpassword1", "teacher")

	// Unknown address gets the same message and no token.
	res, err := h.auth.ForgotPassword(ctx, "ghost@example.com")
	if err != nil {
		t.Fatalf("forgot unknown: %v", err)
	}
	if res.ResetToken != "" {
		t.Fatal("expected no token for unknown address")
	}

	res, err = h.auth.ForgotPassword(ctx, "reset@example.com")
	if err != nil {
		t.Fatalf("forgot: %v", err)
	}
	if res.ResetToken == "" {
		t.Fatal("expected a reset token")
	}

	if err := h.auth.ResetPassword(ctx, "bogus-token", "newpassword1"); !errors.Is(err, domain.ErrInvalidResetToken) {
		t.Fatalf("expected bogus token rejected, got %v", err)
	}

	if err := h.auth.ResetPassword(ctx, res.ResetToken, "newpassword1"); err != nil {
		t.Fatalf("reset: %v", err)
	}

	// Token is single-use: the hash is cleared on success.
	if err := h.auth.ResetPassword(ctx, res.ResetToken, "anotherpass1"); !errors.Is(err, domain.ErrInvalidResetToken) {
		t.Fatalf("expected spent token rejected, got %v", err)
	}

	_, err = h.auth.Login(ctx, dto.LoginRequest{Email: "reset@example.com", Password: "oldpassword1"}, policy, "", "")
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected old password refused, got %v", err)
	}
	login, err := h.auth.Login(ctx, dto.LoginRequest{Email: "reset@example.com", Password: "newpassword1"}, policy, "", "")
	if err != nil {
		t.Fatalf("login with new password: %v", err)
	}
	if login.Token == "" {
		t.Fatal("expected session with new password")
	}
}

func TestPasswordResetTokenExpires(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()

	h.register(t, "expire@example.com", "oldpassword1", "teacher")

	res, err := h.auth.ForgotPassword(ctx, "expire@example.com")
	if err != nil {
		t.Fatalf("forgot: %v", err)
	}

	h.advance(61 * time.Minute)

	err = h.auth.ResetPassword(ctx, res.ResetToken, "newpassword1")
	if !errors.Is(err, domain.ErrInvalidResetToken) {
		t.Fatalf("expected expired token rejected, got %v", err)
	}
}

func TestTwoFactorManagement(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()

	reg := h.register(t, "manage@example.com", "password123", "teacher")
	id, _, err := h.tokens.VerifySession(reg.Token)
	if err != nil {
		t.Fatalf("verify session: %v", err)
	}

	setup, err := h.auth.SetupTwoFactor(ctx, id)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	code, err := totp.GenerateCode(setup.Secret, *h.now)
	if err != nil {
		t.Fatalf("generate code: %v", err)
	}
	if err := h.auth.ConfirmTwoFactor(ctx, id, code); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	status, err := h.auth.TwoFactorStatus(ctx, id)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !status.Enabled || status.BackupCodesLeft != BackupCodeCount {
		t.Fatalf("unexpected status: %+v", status)
	}

	// Destructive management re-proves the password.
	if _, err := h.auth.RegenerateBackupCodes(ctx, id, "wrongwrong"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected wrong password rejected, got %v", err)
	}
	fresh, err := h.auth.RegenerateBackupCodes(ctx, id, "password123")
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if len(fresh) != BackupCodeCount {
		t.Fatalf("expected %d codes, got %d", BackupCodeCount, len(fresh))
	}

	if err := h.auth.DisableTwoFactor(ctx, id, "wrongwrong"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected wrong password rejected, got %v", err)
	}
	if err := h.auth.DisableTwoFactor(ctx, id, "password123"); err != nil {
		t.Fatalf("disable: %v", err)
	}

	status, err = h.auth.TwoFactorStatus(ctx, id)
	if err != nil {
		t.Fatalf("status after disable: %v", err)
	}
	if status.Enabled || status.BackupCodesLeft != 0 {
		t.Fatalf("unexpected status after disable: %+v", status)
	}
}
