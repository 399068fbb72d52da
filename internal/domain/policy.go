package domain

import "time"

const (
	DefaultMaxLoginAttempts = 5
	DefaultLockoutDuration  = 30 * time.Minute
)

// GlobalPolicy is the read-only slice of system settings the authentication
// core needs. It is loaded per request by the transport layer and passed in as
// a value, so the core never queries the settings collaborator itself.
type GlobalPolicy struct {
	Require2FA       bool
	MaxLoginAttempts int
	LockoutDuration  time.Duration
}

func DefaultPolicy() GlobalPolicy {
	return GlobalPolicy{
		Require2FA:       false,
		MaxLoginAttempts: DefaultMaxLoginAttempts,
		LockoutDuration:  DefaultLockoutDuration,
	}
}

// RequiresSecondFactor reports whether the policy mandates a second factor for
// the given role. Only privileged accounts are gated.
func (p GlobalPolicy) RequiresSecondFactor(role Role) bool {
	return p.Require2FA && role == RoleAdmin
}
