// Package services implements the dual-control decision logic and the
// sensitive-action policy set.
package services

import (
	"strings"

	"github.com/clearline-hq/clearline/internal/metrics"
	"github.com/clearline-hq/clearline/modules/dualcontrol/domain/types"
)

// Validate evaluates a request/approval pair under the two-person rule.
// Checks run in order and short-circuit: missing approval, self-approval,
// requester role, approver role. Self-approval is rejected before any role
// logic, unconditionally, for every action — there is no override path.
//
// Pure and side-effect-free; safe for arbitrary concurrent use.
func Validate(req types.Request, approval *types.Approval, requiredRoles, requesterRoles, approverRoles []string) types.Decision {
	d := types.Decision{
		Action:      req.Action,
		CaseID:      req.CaseID,
		RequestedBy: req.RequestedBy,
	}

	if approval == nil || strings.TrimSpace(approval.ApprovedBy) == "" {
		d.Reason = "no approval present"
		return d
	}
	d.ApprovedBy = approval.ApprovedBy

	if approval.ApprovedBy == req.RequestedBy {
		d.Reason = "self-approval rejected: requester and approver must be distinct"
		return d
	}
	if !anyRoleMatches(requesterRoles, requiredRoles) {
		d.Reason = "requester lacks required role"
		return d
	}
	if !anyRoleMatches(approverRoles, requiredRoles) {
		d.Reason = "approver lacks required role"
		return d
	}

	d.Approved = true
	d.Reason = "approved under dual control"
	return d
}

func anyRoleMatches(held, required []string) bool {
	for _, h := range held {
		h = strings.ToLower(strings.TrimSpace(h))
		for _, r := range required {
			if h == strings.ToLower(strings.TrimSpace(r)) {
				return true
			}
		}
	}
	return false
}

// Validator wraps Validate with decision metrics. The decision logic itself
// stays pure.
type Validator struct {
	metrics *metrics.Recorder
}

func NewValidator(m *metrics.Recorder) *Validator {
	return &Validator{metrics: m}
}

func (v *Validator) Validate(req types.Request, approval *types.Approval, requiredRoles, requesterRoles, approverRoles []string) types.Decision {
	d := Validate(req, approval, requiredRoles, requesterRoles, approverRoles)
	outcome := "denied"
	if d.Approved {
		outcome = "approved"
	}
	v.metrics.DualControlDecision(req.Action, outcome)
	return d
}
