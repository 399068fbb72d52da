package impl

import (
	"time"

	"attendance-auth/internal/domain"
	"attendance-auth/internal/observability/metrics"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ====== Config ======

type TokenConfig struct {
	Issuer     string
	Audience   string        // audience of the long-lived session credential
	SessionTTL time.Duration // e.g. 7 * 24h
	PendingTTL time.Duration // e.g. 5 * time.Minute
	SigningKey []byte        // HS256 secret
}

// pendingAudience is deliberately different from the session audience so the
// two token kinds can never satisfy each other's parser, even before the
// marker claims are checked.
const pendingAudience = "second-factor"

// ====== Claims ======

// SessionClaims is the long-lived authenticated credential. The Pending field
// only exists to reject a mis-presented pending token; it is never set on
// tokens this service issues as sessions.
type SessionClaims struct {
	Role    string `json:"role"`
	Pending bool   `json:"twofa_pending,omitempty"`
	jwt.RegisteredClaims
}

// PendingTwoFAClaims binds a credential-validated login to the upcoming
// second-factor verification. It must never be accepted as a session.
type PendingTwoFAClaims struct {
	Pending bool `json:"twofa_pending"`
	jwt.RegisteredClaims
}

// ====== Service ======

type TokenServiceImpl struct {
	cfg TokenConfig
	now func() time.Time
}

func NewTokenServiceHS256(cfg TokenConfig) *TokenServiceImpl {
	return &TokenServiceImpl{cfg: cfg, now: time.Now}
}

func (t *TokenServiceImpl) IssueSession(a *domain.Account) (string, int64, error) {
	now := t.now().UTC()
	claims := SessionClaims{
		Role: string(a.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.cfg.Issuer,
			Subject:   a.ID.String(),
			Audience:  jwt.ClaimStrings{t.cfg.Audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(t.cfg.SessionTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.cfg.SigningKey)
	if err != nil {
		metrics.TokensIssuedTotal.WithLabelValues("session", "failure").Inc()
		return "", 0, err
	}
	metrics.TokensIssuedTotal.WithLabelValues("session", "success").Inc()
	return signed, int64(t.cfg.SessionTTL.Seconds()), nil
}

func (t *TokenServiceImpl) VerifySession(token string) (domain.AccountID, domain.Role, error) {
	claims := &SessionClaims{}
	if err := t.parse(token, claims, t.cfg.Audience); err != nil {
		return uuid.Nil, "", domain.ErrInvalidOrExpiredToken
	}
	// A pending token presented where a full session is required.
	if claims.Pending {
		return uuid.Nil, "", domain.ErrInvalidOrExpiredToken
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, "", domain.ErrInvalidOrExpiredToken
	}
	role := domain.Role(claims.Role)
	if !role.Valid() {
		return uuid.Nil, "", domain.ErrInvalidOrExpiredToken
	}
	return id, role, nil
}

func (t *TokenServiceImpl) IssuePending(a *domain.Account) (string, error) {
	now := t.now().UTC()
	claims := PendingTwoFAClaims{
		Pending: true,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.cfg.Issuer,
			Subject:   a.ID.String(),
			Audience:  jwt.ClaimStrings{pendingAudience},
			ExpiresAt: jwt.NewNumericDate(now.Add(t.cfg.PendingTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.cfg.SigningKey)
	if err != nil {
		metrics.TokensIssuedTotal.WithLabelValues("pending", "failure").Inc()
		return "", err
	}
	metrics.TokensIssuedTotal.WithLabelValues("pending", "success").Inc()
	return signed, nil
}

func (t *TokenServiceImpl) VerifyPending(token string) (domain.AccountID, error) {
	claims := &PendingTwoFAClaims{}
	if err := t.parse(token, claims, pendingAudience); err != nil {
		return uuid.Nil, domain.ErrInvalidOrExpiredToken
	}
	if !claims.Pending {
		return uuid.Nil, domain.ErrInvalidOrExpiredToken
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, domain.ErrInvalidOrExpiredToken
	}
	return id, nil
}

// ====== Helpers ======

func (t *TokenServiceImpl) parse(token string, claims jwt.Claims, audience string) error {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.cfg.Issuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return t.now() }),
	)
	parsed, err := parser.ParseWithClaims(token, claims, func(tok *jwt.Token) (interface{}, error) {
		return t.cfg.SigningKey, nil
	})
	if err != nil {
		return err
	}
	if !parsed.Valid {
		return domain.ErrInvalidOrExpiredToken
	}
	return nil
}
