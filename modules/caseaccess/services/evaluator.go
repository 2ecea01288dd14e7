// Package services resolves a caller's access tier for a confidential case.
// This evaluator is the sole authority for what case data a surface may
// reveal; no caller may override a deny.
package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/clearline-hq/clearline/modules/caseaccess/domain/types"
)

// TierResolver maps a role slug to the highest tier that role reaches by
// membership alone. Implementations must never return LevelIdentityAccess:
// that tier is grant-only.
type TierResolver interface {
	TierFor(role string) types.AccessLevel
}

// StaticTierResolver is a fixed role→tier table.
type StaticTierResolver map[string]types.AccessLevel

func (s StaticTierResolver) TierFor(role string) types.AccessLevel {
	tier := s[strings.ToLower(strings.TrimSpace(role))]
	if tier >= types.LevelIdentityAccess {
		return types.LevelCaseDetails
	}
	return tier
}

// DefaultTierResolver returns the platform's standard role→tier table.
func DefaultTierResolver() StaticTierResolver {
	return StaticTierResolver{
		"case-manager":       types.LevelMetadataOnly,
		"compliance-officer": types.LevelCaseDetails,
	}
}

// Decision is the evaluation outcome.
type Decision struct {
	Allowed bool
	Reason  string
}

// Evaluator combines the static role→tier table with explicit grants.
// Pure and side-effect-free apart from reading the clock.
type Evaluator struct {
	tiers TierResolver
	now   func() time.Time
}

// EvaluatorOption configures an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithClock fixes the evaluator's clock. Test hook.
func WithClock(now func() time.Time) EvaluatorOption {
	return func(e *Evaluator) { e.now = now }
}

func NewEvaluator(tiers TierResolver, opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{tiers: tiers, now: time.Now}
	if e.tiers == nil {
		e.tiers = DefaultTierResolver()
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate decides whether the user may see the case at the requested
// level.
//
//   - LevelNone is always denied: surfaces must request a concrete tier.
//   - LevelMetadataOnly and LevelCaseDetails are satisfied by role
//     membership per the tier table.
//   - LevelIdentityAccess is never satisfied by roles. It requires an
//     active grant for exactly this (user, case, level); grants issued to
//     anyone else never transfer.
func (e *Evaluator) Evaluate(userID string, roles []string, caseID string, requested types.AccessLevel, grants []types.AccessGrant) Decision {
	switch requested {
	case types.LevelMetadataOnly, types.LevelCaseDetails:
		for _, role := range roles {
			if e.tiers.TierFor(role) >= requested {
				return Decision{
					Allowed: true,
					Reason:  fmt.Sprintf("role %q grants %s", strings.ToLower(strings.TrimSpace(role)), requested),
				}
			}
		}
		return Decision{Reason: fmt.Sprintf("no role reaches %s", requested)}

	case types.LevelIdentityAccess:
		now := e.now()
		for _, g := range grants {
			if g.UserID != userID || g.CaseID != caseID || g.Level != types.LevelIdentityAccess {
				continue
			}
			if !g.ActiveAt(now) {
				continue
			}
			return Decision{
				Allowed: true,
				Reason:  fmt.Sprintf("identity access granted by %s", g.GrantedBy),
			}
		}
		return Decision{Reason: "identity access requires an active grant for this user and case"}

	default:
		// LevelNone and anything unrecognized: default-deny.
		return Decision{Reason: "no concrete access level requested"}
	}
}
