package impl

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"image/png"
	"strings"
	"time"

	"attendance-auth/internal/domain"
	"attendance-auth/internal/dto"
	"attendance-auth/internal/store"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"
)

const (
	totpIssuer     = "Attendance Management System"
	totpPeriod     = 30
	totpSkew       = 2  // accepted drift: current step plus/minus 2
	totpSecretSize = 20 // bytes; 160 bits of entropy, base32-encoded
	backupCodeLen  = 4  // random bytes per code, 8 hex chars
	backupCodeCost = 10 // bcrypt cost
)

// BackupCodeCount is the batch size issued at enrollment and regeneration.
const BackupCodeCount = 10

type TwoFactorServiceImpl struct {
	store *store.Store
	now   func() time.Time
}

func NewTwoFactorService(st *store.Store) *TwoFactorServiceImpl {
	return &TwoFactorServiceImpl{store: st, now: time.Now}
}

// BeginSetup generates fresh material and persists it in a disabled record.
// Previous secret and backup codes, if any, are replaced wholesale; the
// account stays unprotected until the first code is confirmed.
func (s *TwoFactorServiceImpl) BeginSetup(ctx context.Context, a *domain.Account) (*dto.TwoFactorSetup, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: a.Email,
		Period:      totpPeriod,
		SecretSize:  totpSecretSize,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, err
	}

	qr, err := qrDataURL(key)
	if err != nil {
		return nil, err
	}

	plain, hashes, err := newBackupCodes(BackupCodeCount)
	if err != nil {
		return nil, err
	}

	secret := key.Secret()
	rec := &domain.TwoFactorRecord{
		AccountID:        a.ID,
		Enabled:          false,
		Secret:           &secret,
		BackupCodeHashes: hashes,
		VerifiedAt:       nil,
		LastUsedAt:       nil,
	}
	if err := s.store.TwoFactor().Upsert(ctx, rec); err != nil {
		return nil, err
	}

	return &dto.TwoFactorSetup{
		Secret:      secret,
		OtpauthURL:  key.URL(),
		QRCode:      qr,
		BackupCodes: plain,
	}, nil
}

// Confirm validates the first code and enables the record. Confirmation
// implicitly enables 2FA; there is no separate enable switch.
func (s *TwoFactorServiceImpl) Confirm(ctx context.Context, accountID domain.AccountID, code string) error {
	return s.store.WithTx(ctx, func(tx *store.Store) error {
		rec, err := tx.TwoFactor().GetForUpdate(ctx, accountID)
		if err != nil {
			if errors.Is(err, store.ErrRecordNotFound) {
				return domain.ErrTwoFactorNotSetUp
			}
			return err
		}
		if rec.Secret == nil || *rec.Secret == "" {
			return domain.ErrTwoFactorNotSetUp
		}
		if !s.validateTOTP(code, *rec.Secret) {
			return domain.ErrInvalidSecondFactor
		}
		now := s.now().UTC()
		rec.Enabled = true
		rec.VerifiedAt = &now
		rec.LastUsedAt = &now
		return tx.TwoFactor().Save(ctx, rec)
	})
}

// VerifyTOTP accepts a code matching the current 30s step or any step within
// the tolerance window. Replay of an intercepted code inside that window is
// an accepted property of TOTP, not prevented here.
func (s *TwoFactorServiceImpl) VerifyTOTP(ctx context.Context, accountID domain.AccountID, code string) (bool, error) {
	rec, err := s.store.TwoFactor().Get(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return false, domain.ErrTwoFactorNotEnabled
		}
		return false, err
	}
	if !rec.Active() {
		return false, domain.ErrTwoFactorNotEnabled
	}
	if !s.validateTOTP(code, *rec.Secret) {
		return false, nil
	}
	now := s.now().UTC()
	rec.LastUsedAt = &now
	if err := s.store.TwoFactor().Save(ctx, rec); err != nil {
		return false, err
	}
	return true, nil
}

// ConsumeBackupCode scans the stored hashes for a match and removes exactly
// that entry. The scan cannot be a direct lookup because every code is hashed
// with its own salt. No match leaves the record untouched.
func (s *TwoFactorServiceImpl) ConsumeBackupCode(ctx context.Context, accountID domain.AccountID, code string) (valid bool, remaining int, err error) {
	code = normalizeBackupCode(code)
	err = s.store.WithTx(ctx, func(tx *store.Store) error {
		rec, err := tx.TwoFactor().GetForUpdate(ctx, accountID)
		if err != nil {
			if errors.Is(err, store.ErrRecordNotFound) {
				return domain.ErrTwoFactorNotEnabled
			}
			return err
		}
		remaining = len(rec.BackupCodeHashes)
		if len(rec.BackupCodeHashes) == 0 {
			return nil // invalid, not an error
		}

		match := -1
		for i, h := range rec.BackupCodeHashes {
			if bcrypt.CompareHashAndPassword([]byte(h), []byte(code)) == nil {
				match = i
				break
			}
		}
		if match < 0 {
			return nil
		}

		rec.BackupCodeHashes = append(rec.BackupCodeHashes[:match], rec.BackupCodeHashes[match+1:]...)
		now := s.now().UTC()
		rec.LastUsedAt = &now
		if err := tx.TwoFactor().Save(ctx, rec); err != nil {
			return err
		}
		valid = true
		remaining = len(rec.BackupCodeHashes)
		return nil
	})
	if err != nil {
		return false, 0, err
	}
	return valid, remaining, nil
}

// Disable clears the material but keeps the row.
func (s *TwoFactorServiceImpl) Disable(ctx context.Context, accountID domain.AccountID) error {
	return s.store.WithTx(ctx, func(tx *store.Store) error {
		rec, err := tx.TwoFactor().GetForUpdate(ctx, accountID)
		if err != nil {
			if errors.Is(err, store.ErrRecordNotFound) {
				return domain.ErrTwoFactorNotSetUp
			}
			return err
		}
		rec.Enabled = false
		rec.Secret = nil
		rec.BackupCodeHashes = nil
		rec.VerifiedAt = nil
		return tx.TwoFactor().Save(ctx, rec)
	})
}

func (s *TwoFactorServiceImpl) RegenerateBackupCodes(ctx context.Context, accountID domain.AccountID) ([]string, error) {
	plain, hashes, err := newBackupCodes(BackupCodeCount)
	if err != nil {
		return nil, err
	}
	err = s.store.WithTx(ctx, func(tx *store.Store) error {
		rec, err := tx.TwoFactor().GetForUpdate(ctx, accountID)
		if err != nil {
			if errors.Is(err, store.ErrRecordNotFound) {
				return domain.ErrTwoFactorNotSetUp
			}
			return err
		}
		rec.BackupCodeHashes = hashes
		return tx.TwoFactor().Save(ctx, rec)
	})
	if err != nil {
		return nil, err
	}
	return plain, nil
}

func (s *TwoFactorServiceImpl) Status(ctx context.Context, accountID domain.AccountID) (*dto.TwoFactorStatus, error) {
	rec, err := s.store.TwoFactor().Get(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return &dto.TwoFactorStatus{Enabled: false}, nil
		}
		return nil, err
	}
	return &dto.TwoFactorStatus{
		Enabled:         rec.Enabled,
		VerifiedAt:      rec.VerifiedAt,
		LastUsedAt:      rec.LastUsedAt,
		BackupCodesLeft: len(rec.BackupCodeHashes),
	}, nil
}

// ====== Helpers ======

func (s *TwoFactorServiceImpl) validateTOTP(code, secret string) bool {
	ok, err := totp.ValidateCustom(strings.TrimSpace(code), secret, s.now().UTC(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

// newBackupCodes draws n unique human-readable codes and their bcrypt hashes.
// Plaintext goes back to the caller exactly once; only hashes are stored.
func newBackupCodes(n int) (plain []string, hashes domain.BackupCodeHashes, err error) {
	seen := make(map[string]struct{}, n)
	plain = make([]string, 0, n)
	hashes = make(domain.BackupCodeHashes, 0, n)
	for len(plain) < n {
		buf := make([]byte, backupCodeLen)
		if _, err := rand.Read(buf); err != nil {
			return nil, nil, err
		}
		raw := strings.ToUpper(hex.EncodeToString(buf))
		code := fmt.Sprintf("%s-%s", raw[:4], raw[4:])
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}

		h, err := bcrypt.GenerateFromPassword([]byte(code), backupCodeCost)
		if err != nil {
			return nil, nil, err
		}
		plain = append(plain, code)
		hashes = append(hashes, string(h))
	}
	return plain, hashes, nil
}

func normalizeBackupCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func qrDataURL(key *otp.Key) (string, error) {
	img, err := key.Image(256, 256)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
