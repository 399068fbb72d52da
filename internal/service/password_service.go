package service

import "attendance-auth/internal/domain"

// PasswordService owns credential hashing end to end: every caller hands over
// plaintext and only Apply ever writes the credential columns.
type PasswordService interface {
	Apply(a *domain.Account, password string) error
	Verify(password string, cred interface {
		GetAlgo() string
		GetHash() []byte
		GetSalt() []byte
		GetParamsJSON() []byte
		GetPasswordVer() int
	}) (rehashNeeded bool, ok bool)
}
