package services

import (
	"context"
	"encoding/json"

	"github.com/clearline-hq/clearline/internal/auditchain"
	"github.com/clearline-hq/clearline/modules/dualcontrol/domain/types"
)

// DecisionAppender is the slice of the audit ledger decision recording
// needs. Satisfied by auditchain.PGLedger and auditchain.MemoryLedger.
type DecisionAppender interface {
	Append(ctx context.Context, e auditchain.Entry) (auditchain.Entry, error)
}

// RecordDecision appends the decision itself to the tenant's audit chain,
// approved or denied alike. A denied attempt at a sensitive action is as
// much evidence as an approved one.
func RecordDecision(ctx context.Context, ledger DecisionAppender, orgID string, d types.Decision) (auditchain.Entry, error) {
	state, err := json.Marshal(d)
	if err != nil {
		return auditchain.Entry{}, err
	}
	return ledger.Append(ctx, auditchain.Entry{
		OrgID:      orgID,
		ActorID:    d.RequestedBy,
		Action:     "dual-control:" + d.Action,
		TargetType: "case",
		TargetID:   d.CaseID,
		AfterState: state,
	})
}
