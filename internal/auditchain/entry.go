// Package auditchain is the append-only, hash-chained mutation ledger. One
// chain per tenant: verifying an org's history never reads another org's
// entries.
package auditchain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Entry is one immutable ledger record. Entries are appended, never updated
// or deleted.
type Entry struct {
	ID             string
	OrgID          string
	ActorID        string
	Action         string
	TargetType     string
	TargetID       string
	BeforeState    json.RawMessage
	AfterState     json.RawMessage
	Timestamp      time.Time
	IdempotencyKey string
	PrevHash       string
	Hash           string
}

// hashPayload is the canonical serialization of an entry for hashing. All
// fields are scalars or RawMessage (no maps) so json.Marshal field order is
// deterministic and the hash is reproducible across processes.
type hashPayload struct {
	ID             string          `json:"id"`
	OrgID          string          `json:"org_id"`
	ActorID        string          `json:"actor_id"`
	Action         string          `json:"action"`
	TargetType     string          `json:"target_type"`
	TargetID       string          `json:"target_id"`
	BeforeState    json.RawMessage `json:"before_state"`
	AfterState     json.RawMessage `json:"after_state"`
	Timestamp      string          `json:"ts"`
	IdempotencyKey string          `json:"idempotency_key"`
	PrevHash       string          `json:"prev_hash"`
}

var (
	errEntryOrgRequired    = errors.New("auditchain: entry org id required")
	errEntryActorRequired  = errors.New("auditchain: entry actor id required")
	errEntryActionRequired = errors.New("auditchain: entry action required")
)

func validateEntry(e Entry) error {
	if strings.TrimSpace(e.OrgID) == "" {
		return errEntryOrgRequired
	}
	if strings.TrimSpace(e.ActorID) == "" {
		return errEntryActorRequired
	}
	if strings.TrimSpace(e.Action) == "" {
		return errEntryActionRequired
	}
	return nil
}

// ComputeHash returns the hex SHA-256 of the entry's canonical serialization
// concatenated with the previous entry's hash. Entry.Hash itself is excluded.
func ComputeHash(e Entry) (string, error) {
	payload := hashPayload{
		ID:             e.ID,
		OrgID:          e.OrgID,
		ActorID:        e.ActorID,
		Action:         e.Action,
		TargetType:     e.TargetType,
		TargetID:       e.TargetID,
		BeforeState:    normalizeState(e.BeforeState),
		AfterState:     normalizeState(e.AfterState),
		Timestamp:      e.Timestamp.UTC().Format(time.RFC3339Nano),
		IdempotencyKey: e.IdempotencyKey,
		PrevHash:       e.PrevHash,
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(append(b, []byte(e.PrevHash)...))
	return hex.EncodeToString(sum[:]), nil
}

// normalizeState maps empty state to JSON null so that a nil and an empty
// RawMessage hash identically.
func normalizeState(s json.RawMessage) json.RawMessage {
	if len(s) == 0 {
		return json.RawMessage("null")
	}
	return s
}
