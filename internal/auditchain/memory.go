package auditchain

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
)

// MemoryLedger keeps per-org chains in process memory. It backs tests and
// embedded single-process deployments; production uses PGLedger.
type MemoryLedger struct {
	mu     sync.Mutex
	chains map[string][]Entry
	keys   map[string]map[string]bool
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		chains: make(map[string][]Entry),
		keys:   make(map[string]map[string]bool),
	}
}

func (l *MemoryLedger) Append(ctx context.Context, e Entry) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.appendLocked(e)
}

// AppendTx satisfies the transactional appender contract of the audited
// access client. The memory ledger has no real transaction to join, so the
// append is immediate; tests that exercise rollback use the pg ledger stubs.
func (l *MemoryLedger) AppendTx(ctx context.Context, _ pgx.Tx, e Entry) (Entry, error) {
	return l.Append(ctx, e)
}

func (l *MemoryLedger) appendLocked(e Entry) (Entry, error) {
	if err := validateEntry(e); err != nil {
		return Entry{}, err
	}
	if e.IdempotencyKey != "" && l.keys[e.OrgID][e.IdempotencyKey] {
		return Entry{}, ErrDuplicateEntry
	}
	chain := l.chains[e.OrgID]
	prev := ""
	if len(chain) > 0 {
		prev = chain[len(chain)-1].Hash
	}
	sealed, err := seal(e, prev, time.Now())
	if err != nil {
		return Entry{}, err
	}
	l.chains[sealed.OrgID] = append(chain, sealed)
	if l.keys[sealed.OrgID] == nil {
		l.keys[sealed.OrgID] = make(map[string]bool)
	}
	l.keys[sealed.OrgID][sealed.IdempotencyKey] = true
	return sealed, nil
}

func (l *MemoryLedger) VerifyChain(_ context.Context, orgID string, fromEntryID string) (VerifyResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	chain := l.chains[orgID]
	if fromEntryID != "" {
		for i, e := range chain {
			if e.ID == fromEntryID {
				chain = chain[i:]
				break
			}
		}
	}
	replayed := make([]Entry, len(chain))
	copy(replayed, chain)
	return replay(replayed), nil
}

// Entries returns a copy of an org's chain in append order.
func (l *MemoryLedger) Entries(orgID string) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	chain := l.chains[orgID]
	out := make([]Entry, len(chain))
	copy(out, chain)
	return out
}

// Tamper overwrites the entry at index on an org's chain. Test hook for
// verification coverage; production chains have no mutation path.
func (l *MemoryLedger) Tamper(orgID string, index int, mutate func(*Entry)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	chain := l.chains[orgID]
	if index < 0 || index >= len(chain) {
		return
	}
	mutate(&chain[index])
}
