package impl

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"attendance-auth/internal/domain"
	"attendance-auth/internal/dto"
	"attendance-auth/internal/observability/metrics"
	"attendance-auth/internal/service"
	"attendance-auth/internal/store"
)

const resetTokenTTL = time.Hour

type AuthServiceImpl struct {
	Accounts  accountStore
	TwoFactor twoFactorReader

	PasswordService service.PasswordService
	TokenService    service.TokenService
	Lockout         service.LockoutService
	TwoFA           service.TwoFactorService
	Notifier        service.Notifier

	Now func() time.Time
}

func NewAuthServiceImpl(st *store.Store, pw service.PasswordService, tokens service.TokenService,
	lockout service.LockoutService, twofa service.TwoFactorService, notifier service.Notifier,
) *AuthServiceImpl {
	return &AuthServiceImpl{
		Accounts:        gormAccountAdapter{store: st},
		TwoFactor:       gormTwoFactorAdapter{store: st},
		PasswordService: pw,
		TokenService:    tokens,
		Lockout:         lockout,
		TwoFA:           twofa,
		Notifier:        notifier,
		Now:             time.Now,
	}
}

// Narrow store views so tests can substitute in-memory implementations.

type accountStore interface {
	Create(ctx context.Context, a *domain.Account) error
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	GetByID(ctx context.Context, id domain.AccountID) (*domain.Account, error)
	GetByResetTokenHash(ctx context.Context, hash string, now time.Time) (*domain.Account, error)
	Save(ctx context.Context, a *domain.Account) error
}

type twoFactorReader interface {
	Get(ctx context.Context, accountID domain.AccountID) (*domain.TwoFactorRecord, error)
}

type gormAccountAdapter struct{ store *store.Store }

func (g gormAccountAdapter) Create(ctx context.Context, a *domain.Account) error {
	return g.store.Accounts().Create(ctx, a)
}
func (g gormAccountAdapter) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return g.store.Accounts().GetByEmail(ctx, email)
}
func (g gormAccountAdapter) GetByID(ctx context.Context, id domain.AccountID) (*domain.Account, error) {
	return g.store.Accounts().GetByID(ctx, id)
}
func (g gormAccountAdapter) GetByResetTokenHash(ctx context.Context, hash string, now time.Time) (*domain.Account, error) {
	return g.store.Accounts().GetByResetTokenHash(ctx, hash, now)
}
func (g gormAccountAdapter) Save(ctx context.Context, a *domain.Account) error {
	return g.store.Accounts().Save(ctx, a)
}

type gormTwoFactorAdapter struct{ store *store.Store }

func (g gormTwoFactorAdapter) Get(ctx context.Context, id domain.AccountID) (*domain.TwoFactorRecord, error) {
	return g.store.TwoFactor().Get(ctx, id)
}

func notFound(err error) bool { return errors.Is(err, store.ErrRecordNotFound) }

// ====== Registration ======

func (a *AuthServiceImpl) Register(ctx context.Context, r dto.RegisterRequest, ip, ua string) (*dto.RegisterResponse, error) {
	if r.Email == "" || r.Password == "" {
		return nil, ErrEmptyCredential
	}
	if len(r.Password) < 8 {
		return nil, ErrPasswordLength
	}
	role := domain.Role(r.Role)
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	email := domain.NormalizeEmail(r.Email)
	if _, err := a.Accounts.GetByEmail(ctx, email); err == nil {
		return nil, domain.ErrEmailTaken
	} else if !notFound(err) {
		return nil, err
	}

	now := a.Now().UTC()
	acc := &domain.Account{
		Email:     email,
		FullName:  r.FullName,
		Role:      role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.PasswordService.Apply(acc, r.Password); err != nil {
		return nil, err
	}
	if err := a.Accounts.Create(ctx, acc); err != nil {
		return nil, err
	}

	token, expiresIn, err := a.TokenService.IssueSession(acc)
	if err != nil {
		return nil, err
	}
	metrics.AuthRegistrationsTotal.WithLabelValues("success").Inc()
	slog.Info("account registered", "account_id", acc.ID, "role", acc.Role, "ip", ip)

	return &dto.RegisterResponse{Token: token, ExpiresIn: expiresIn, Account: accountInfo(acc)}, nil
}

// ====== Login state machine ======

// Login checks credentials and decides the outgoing transition: finished
// session, second-factor challenge, or first-time setup.
func (a *AuthServiceImpl) Login(ctx context.Context, r dto.LoginRequest, policy domain.GlobalPolicy, ip, ua string) (*dto.LoginResponse, error) {
	if r.Email == "" || r.Password == "" {
		return nil, ErrEmptyCredential
	}

	acc, err := a.Accounts.GetByEmail(ctx, r.Email)
	if err != nil {
		if notFound(err) {
			metrics.AuthLoginsTotal.WithLabelValues("invalid_credentials").Inc()
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	// A disabled account answers exactly like a bad credential.
	if !acc.IsActive {
		metrics.AuthLoginsTotal.WithLabelValues("invalid_credentials").Inc()
		return nil, domain.ErrInvalidCredentials
	}
	if a.Lockout.IsLocked(acc, a.Now()) {
		metrics.AuthLoginsTotal.WithLabelValues("locked").Inc()
		return nil, domain.ErrAccountLocked
	}

	if _, ok := a.PasswordService.Verify(r.Password, acc); !ok {
		locked, until, err := a.Lockout.RecordFailure(ctx, acc.ID, policy)
		if err != nil {
			return nil, err
		}
		if locked {
			go a.Notifier.AccountLocked(context.WithoutCancel(ctx), acc, until)
		}
		metrics.AuthLoginsTotal.WithLabelValues("invalid_credentials").Inc()
		return nil, domain.ErrInvalidCredentials
	}

	if err := a.Lockout.RecordSuccess(ctx, acc.ID); err != nil {
		return nil, err
	}

	// Optional role hint from the client; a mismatch stays generic.
	if r.Role != "" && acc.Role != domain.Role(r.Role) {
		metrics.AuthLoginsTotal.WithLabelValues("invalid_credentials").Inc()
		return nil, domain.ErrInvalidCredentials
	}

	if !policy.RequiresSecondFactor(acc.Role) {
		token, expiresIn, err := a.TokenService.IssueSession(acc)
		if err != nil {
			return nil, err
		}
		metrics.AuthLoginsTotal.WithLabelValues("success").Inc()
		slog.Info("login succeeded", "account_id", acc.ID, "ip", ip)
		return &dto.LoginResponse{Token: token, ExpiresIn: expiresIn, Account: accountInfo(acc)}, nil
	}

	rec, err := a.TwoFactor.Get(ctx, acc.ID)
	if err != nil && !notFound(err) {
		return nil, err
	}

	pending, err := a.TokenService.IssuePending(acc)
	if err != nil {
		return nil, err
	}

	if rec.Active() {
		metrics.AuthLoginsTotal.WithLabelValues("second_factor_pending").Inc()
		return &dto.LoginResponse{TwoFARequired: true, PendingToken: pending}, nil
	}

	// Policy mandates a second factor but the account never enrolled:
	// provision a disabled record and hand the material back alongside the
	// pending token.
	setup, err := a.TwoFA.BeginSetup(ctx, acc)
	if err != nil {
		return nil, err
	}
	metrics.AuthLoginsTotal.WithLabelValues("second_factor_setup").Inc()
	slog.Info("two-factor setup issued at login", "account_id", acc.ID)
	return &dto.LoginResponse{TwoFASetupRequired: true, PendingToken: pending, Setup: setup}, nil
}

// VerifySecondFactor completes a pending login with either a TOTP code or a
// backup code and issues the session.
func (a *AuthServiceImpl) VerifySecondFactor(ctx context.Context, r dto.VerifySecondFactorRequest, ip, ua string) (*dto.LoginResponse, error) {
	accountID, err := a.TokenService.VerifyPending(r.PendingToken)
	if err != nil {
		metrics.SecondFactorAttemptsTotal.WithLabelValues("token", "failure").Inc()
		return nil, domain.ErrInvalidOrExpiredToken
	}

	acc, err := a.Accounts.GetByID(ctx, accountID)
	if err != nil {
		if notFound(err) {
			return nil, domain.ErrInvalidOrExpiredToken
		}
		return nil, err
	}

	rec, err := a.TwoFactor.Get(ctx, acc.ID)
	if err != nil {
		if notFound(err) {
			return nil, domain.ErrTwoFactorNotSetUp
		}
		return nil, err
	}
	if rec.Secret == nil || *rec.Secret == "" {
		return nil, domain.ErrTwoFactorNotSetUp
	}

	switch {
	case r.Code != "":
		if rec.Enabled {
			ok, err := a.TwoFA.VerifyTOTP(ctx, acc.ID, r.Code)
			if err != nil {
				return nil, err
			}
			if !ok {
				metrics.SecondFactorAttemptsTotal.WithLabelValues("totp", "failure").Inc()
				return nil, domain.ErrInvalidSecondFactor
			}
		} else {
			// First confirmation enables the record.
			if err := a.TwoFA.Confirm(ctx, acc.ID, r.Code); err != nil {
				if errors.Is(err, domain.ErrInvalidSecondFactor) {
					metrics.SecondFactorAttemptsTotal.WithLabelValues("totp", "failure").Inc()
				}
				return nil, err
			}
			go a.Notifier.TwoFactorEnrolled(context.WithoutCancel(ctx), acc)
		}
		metrics.SecondFactorAttemptsTotal.WithLabelValues("totp", "success").Inc()

	case r.BackupCode != "":
		// Backup codes only mean something once the authenticator itself has
		// been confirmed; before that the user is sent back to the scanner.
		if !rec.Enabled {
			return nil, domain.ErrSetupNotConfirmed
		}
		valid, remaining, err := a.TwoFA.ConsumeBackupCode(ctx, acc.ID, r.BackupCode)
		if err != nil {
			return nil, err
		}
		if !valid {
			metrics.SecondFactorAttemptsTotal.WithLabelValues("backup_code", "failure").Inc()
			return nil, domain.ErrInvalidSecondFactor
		}
		metrics.SecondFactorAttemptsTotal.WithLabelValues("backup_code", "success").Inc()
		slog.Info("backup code consumed", "account_id", acc.ID, "remaining", remaining)

	default:
		return nil, domain.ErrSecondFactorRequired
	}

	token, expiresIn, err := a.TokenService.IssueSession(acc)
	if err != nil {
		return nil, err
	}
	metrics.AuthLoginsTotal.WithLabelValues("success").Inc()
	slog.Info("second factor verified", "account_id", acc.ID, "ip", ip)
	return &dto.LoginResponse{Token: token, ExpiresIn: expiresIn, Account: accountInfo(acc)}, nil
}

// ====== Password reset ======

func (a *AuthServiceImpl) ForgotPassword(ctx context.Context, email string) (*dto.ForgotPasswordResponse, error) {
	// The response never reveals whether the address exists.
	generic := &dto.ForgotPasswordResponse{Message: "If the email exists, a reset link will be sent"}

	acc, err := a.Accounts.GetByEmail(ctx, email)
	if err != nil {
		if notFound(err) {
			return generic, nil
		}
		return nil, err
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, err
	}
	token := hex.EncodeToString(raw)
	hashed := sha256Hex(token)
	expires := a.Now().UTC().Add(resetTokenTTL)

	acc.ResetTokenHash = &hashed
	acc.ResetTokenExpires = &expires
	if err := a.Accounts.Save(ctx, acc); err != nil {
		return nil, err
	}

	generic.ResetToken = token
	return generic, nil
}

func (a *AuthServiceImpl) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" || newPassword == "" {
		return ErrEmptyCredential
	}
	if len(newPassword) < 8 {
		return ErrPasswordLength
	}

	acc, err := a.Accounts.GetByResetTokenHash(ctx, sha256Hex(token), a.Now().UTC())
	if err != nil {
		if notFound(err) {
			return domain.ErrInvalidResetToken
		}
		return err
	}

	if err := a.PasswordService.Apply(acc, newPassword); err != nil {
		return err
	}
	acc.ResetTokenHash = nil
	acc.ResetTokenExpires = nil
	return a.Accounts.Save(ctx, acc)
}

// ====== Authenticated 2FA management ======

func (a *AuthServiceImpl) SetupTwoFactor(ctx context.Context, accountID domain.AccountID) (*dto.TwoFactorSetup, error) {
	acc, err := a.Accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return a.TwoFA.BeginSetup(ctx, acc)
}

func (a *AuthServiceImpl) ConfirmTwoFactor(ctx context.Context, accountID domain.AccountID, code string) error {
	acc, err := a.Accounts.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	if err := a.TwoFA.Confirm(ctx, accountID, code); err != nil {
		return err
	}
	go a.Notifier.TwoFactorEnrolled(context.WithoutCancel(ctx), acc)
	return nil
}

func (a *AuthServiceImpl) DisableTwoFactor(ctx context.Context, accountID domain.AccountID, password string) error {
	if err := a.requirePassword(ctx, accountID, password); err != nil {
		return err
	}
	return a.TwoFA.Disable(ctx, accountID)
}

func (a *AuthServiceImpl) RegenerateBackupCodes(ctx context.Context, accountID domain.AccountID, password string) ([]string, error) {
	if err := a.requirePassword(ctx, accountID, password); err != nil {
		return nil, err
	}
	return a.TwoFA.RegenerateBackupCodes(ctx, accountID)
}

func (a *AuthServiceImpl) TwoFactorStatus(ctx context.Context, accountID domain.AccountID) (*dto.TwoFactorStatus, error) {
	return a.TwoFA.Status(ctx, accountID)
}

// ====== Helpers ======

func (a *AuthServiceImpl) requirePassword(ctx context.Context, accountID domain.AccountID, password string) error {
	acc, err := a.Accounts.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	if _, ok := a.PasswordService.Verify(password, acc); !ok {
		return domain.ErrInvalidCredentials
	}
	return nil
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func accountInfo(a *domain.Account) *dto.AccountInfo {
	return &dto.AccountInfo{
		ID:          a.ID.String(),
		Email:       a.Email,
		FullName:    a.FullName,
		Role:        string(a.Role),
		LastLoginAt: a.LastLoginAt,
	}
}
