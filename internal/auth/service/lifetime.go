package service

import (
	"time"

	"github.com/aussiebroadwan/crm/pkg/jwtx"
)

// LifetimePolicy holds the token lifetimes. Login and refresh both pick
// the access lifetime through LifetimeFor.
type LifetimePolicy struct {
	Staff   time.Duration
	Manager time.Duration
	Refresh time.Duration
}

// DefaultLifetimes are used for any zero field.
var DefaultLifetimes = LifetimePolicy{
	Staff:   jwtx.DefaultAccessTokenTTL,
	Manager: jwtx.DefaultManagerAccessTokenTTL,
	Refresh: jwtx.DefaultRefreshTokenTTL,
}

func (p LifetimePolicy) withDefaults() LifetimePolicy {
	if p.Staff <= 0 {
		p.Staff = DefaultLifetimes.Staff
	}
	if p.Manager <= 0 {
		p.Manager = DefaultLifetimes.Manager
	}
	if p.Refresh <= 0 {
		p.Refresh = DefaultLifetimes.Refresh
	}
	return p
}

// LifetimeFor returns the access-token lifetime for the role.
func (p LifetimePolicy) LifetimeFor(isManager bool) time.Duration {
	if isManager {
		return p.Manager
	}
	return p.Staff
}
