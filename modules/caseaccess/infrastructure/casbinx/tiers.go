// Package casbinx resolves role→tier mappings from casbin policy files, so
// deployments can manage the tier table alongside their other authz policy.
package casbinx

import (
	"strings"

	"github.com/casbin/casbin/v2"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"

	"github.com/clearline-hq/clearline/modules/caseaccess/domain/types"
)

// TierAuthorizer answers role→tier queries from a casbin enforcer. It caps
// every answer at LevelCaseDetails: identity access is grant-only and no
// policy line can change that.
type TierAuthorizer struct {
	enforcer *casbin.Enforcer
}

// NewTierAuthorizer loads the model and policy from files. Policy lines are
// `p, <role>, <level>` with level names matching types.ParseLevel.
func NewTierAuthorizer(modelPath string, policyPath string) (*TierAuthorizer, error) {
	enforcer, err := casbin.NewEnforcer(modelPath)
	if err != nil {
		return nil, err
	}
	enforcer.SetAdapter(fileadapter.NewAdapter(policyPath))
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	return &TierAuthorizer{enforcer: enforcer}, nil
}

// TierFor returns the highest tier the role reaches by policy. Errors from
// the enforcer resolve to LevelNone; ambiguity never widens access.
func (a *TierAuthorizer) TierFor(role string) types.AccessLevel {
	role = strings.ToLower(strings.TrimSpace(role))
	for _, tier := range []types.AccessLevel{types.LevelCaseDetails, types.LevelMetadataOnly} {
		ok, err := a.enforcer.Enforce(role, tier.String())
		if err != nil {
			return types.LevelNone
		}
		if ok {
			return tier
		}
	}
	return types.LevelNone
}
