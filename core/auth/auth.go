// Package auth decides whether an idTag may charge. The session only
// consults the Authorizer; the policy itself stays outside the state machine.
package auth

import "github.com/voltgrid/csms/core/ocpp"

// Authorizer maps an idTag to an authorization decision.
type Authorizer interface {
	Authorize(idTag string) ocpp.AuthorizationStatus
}

// AllowAll accepts every tag.
type AllowAll struct{}

func (AllowAll) Authorize(string) ocpp.AuthorizationStatus {
	return ocpp.AuthorizationAccepted
}

// Allowlist accepts only configured tags and reports everything else Invalid.
type Allowlist struct {
	tags map[string]struct{}
}

// NewAllowlist builds an Allowlist from the configured tag list.
func NewAllowlist(tags []string) *Allowlist {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		set[t] = struct{}{}
	}
	return &Allowlist{tags: set}
}

func (a *Allowlist) Authorize(idTag string) ocpp.AuthorizationStatus {
	if _, ok := a.tags[idTag]; ok {
		return ocpp.AuthorizationAccepted
	}
	return ocpp.AuthorizationInvalid
}
