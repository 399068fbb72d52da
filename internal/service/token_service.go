package service

import (
	"attendance-auth/internal/domain"
)

// TokenService issues and checks the two structurally distinct token kinds:
// the long-lived session credential and the short-lived second-factor-pending
// token. A pending token must never pass VerifySession and vice versa.
type TokenService interface {
	IssueSession(a *domain.Account) (token string, expiresIn int64, err error)
	VerifySession(token string) (accountID domain.AccountID, role domain.Role, err error)

	IssuePending(a *domain.Account) (token string, err error)
	VerifyPending(token string) (accountID domain.AccountID, err error)
}
