package auditchain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/clearline-hq/clearline/pkg/uuidv7"
)

// ErrDuplicateEntry means an entry with the same (org, idempotency key) is
// already on the chain. A caller retrying a committed mutation hits this
// instead of double-auditing.
var ErrDuplicateEntry = errors.New("auditchain: duplicate idempotency key")

// Ledger is the append-only audit chain surface. There is deliberately no
// update or delete.
type Ledger interface {
	// Append seals the entry onto its org's chain and returns it with ID,
	// Timestamp, PrevHash and Hash populated.
	Append(ctx context.Context, e Entry) (Entry, error)
	// VerifyChain replays an org's entries in append order, recomputing
	// every hash. fromEntryID narrows the replay to entries at or after
	// that id; empty verifies the whole chain.
	VerifyChain(ctx context.Context, orgID string, fromEntryID string) (VerifyResult, error)
}

// VerifyResult reports the outcome of a chain verification.
type VerifyResult struct {
	Clean bool
	// Checked is the number of entries replayed.
	Checked int
	// FirstBadIndex is the replay index of the first entry whose
	// recomputed hash differs from the stored one. -1 when clean.
	FirstBadIndex int
	// FirstBadEntryID identifies the tampered entry, when any.
	FirstBadEntryID string
}

// seal fills generated fields and computes the entry hash. prevHash is the
// current chain head for the entry's org ("" for a genesis entry).
func seal(e Entry, prevHash string, now time.Time) (Entry, error) {
	if err := validateEntry(e); err != nil {
		return Entry{}, err
	}
	if e.ID == "" {
		id, err := uuidv7.NewString()
		if err != nil {
			return Entry{}, err
		}
		e.ID = id
	}
	if e.IdempotencyKey == "" {
		key, err := uuidv7.NewString()
		if err != nil {
			return Entry{}, err
		}
		e.IdempotencyKey = key
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = now
	}
	e.Timestamp = e.Timestamp.UTC()
	e.PrevHash = prevHash
	hash, err := ComputeHash(e)
	if err != nil {
		return Entry{}, err
	}
	e.Hash = hash
	return e, nil
}

// replay verifies a slice of entries already in append order, seeded by the
// first entry's stored PrevHash.
func replay(entries []Entry) VerifyResult {
	prev := ""
	if len(entries) > 0 {
		prev = entries[0].PrevHash
	}
	for i, e := range entries {
		if e.PrevHash != prev {
			return VerifyResult{Checked: i + 1, FirstBadIndex: i, FirstBadEntryID: e.ID}
		}
		recomputed, err := ComputeHash(e)
		if err != nil || recomputed != e.Hash {
			return VerifyResult{Checked: i + 1, FirstBadIndex: i, FirstBadEntryID: e.ID}
		}
		prev = e.Hash
	}
	return VerifyResult{Clean: true, Checked: len(entries), FirstBadIndex: -1}
}

func (r VerifyResult) String() string {
	if r.Clean {
		return fmt.Sprintf("clean (%d entries)", r.Checked)
	}
	return fmt.Sprintf("tampered at index %d (entry %s)", r.FirstBadIndex, r.FirstBadEntryID)
}
