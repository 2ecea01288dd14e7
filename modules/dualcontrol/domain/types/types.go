// Package types holds the dual-control value objects: a sensitive-action
// request, its approval, and the resulting decision.
package types

import "time"

// Request asks for a sensitive action under the two-person rule.
type Request struct {
	Action        string
	CaseID        string
	RequestedBy   string
	RequestedAt   time.Time
	Justification string
}

// Approval is a second actor's sign-off on a request.
type Approval struct {
	RequestID  string
	ApprovedBy string
	ApprovedAt time.Time
}

// Decision is the validation outcome. The caller persists it as an audit
// entry and gates the state change on Approved; a false result is final.
// JSON tags fix the shape the audit chain stores.
type Decision struct {
	Approved    bool   `json:"approved"`
	Reason      string `json:"reason"`
	Action      string `json:"action"`
	CaseID      string `json:"case_id"`
	RequestedBy string `json:"requested_by"`
	ApprovedBy  string `json:"approved_by,omitempty"`
}
