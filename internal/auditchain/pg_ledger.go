package auditchain

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

// SchemaDDL creates the ledger table. seq orders each org's chain; the
// unique key on (org_id, idempotency_key) makes caller retries safe.
const SchemaDDL = `
CREATE TABLE IF NOT EXISTS audit_entries (
    seq             BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    id              UUID NOT NULL UNIQUE,
    org_id          TEXT NOT NULL,
    actor_id        TEXT NOT NULL,
    action          TEXT NOT NULL,
    target_type     TEXT NOT NULL DEFAULT '',
    target_id       TEXT NOT NULL DEFAULT '',
    before_state    JSONB,
    after_state     JSONB,
    ts              TIMESTAMPTZ NOT NULL,
    idempotency_key TEXT NOT NULL,
    prev_hash       TEXT NOT NULL,
    hash            TEXT NOT NULL,
    UNIQUE (org_id, idempotency_key)
);
CREATE INDEX IF NOT EXISTS audit_entries_org_seq ON audit_entries (org_id, seq);
`

type pgPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PGLedger persists per-org chains in Postgres. Appends serialize per org
// under a transaction-scoped advisory lock so two concurrent writers cannot
// both extend the same predecessor.
type PGLedger struct {
	pool pgPool
}

func NewPGLedger(pool pgPool) *PGLedger {
	return &PGLedger{pool: pool}
}

// Append seals the entry in its own transaction.
func (l *PGLedger) Append(ctx context.Context, e Entry) (Entry, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return Entry{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	sealed, err := l.AppendTx(ctx, tx, e)
	if err != nil {
		return Entry{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Entry{}, err
	}
	return sealed, nil
}

// AppendTx seals the entry inside the caller's transaction. The audited
// access client uses this so a mutation and its audit record commit or abort
// as one unit of work.
func (l *PGLedger) AppendTx(ctx context.Context, tx pgx.Tx, e Entry) (Entry, error) {
	if err := validateEntry(e); err != nil {
		return Entry{}, err
	}

	// Serialize chain extension for this org. Locking the head row alone
	// is not enough: a writer blocked on it re-reads the stale head once
	// the lock clears, and an empty chain has no row to lock, so two
	// concurrent appends would both link to the same predecessor and fork
	// the chain. The lock releases with the transaction.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, e.OrgID); err != nil {
		return Entry{}, err
	}

	if e.IdempotencyKey != "" {
		var existing string
		err := tx.QueryRow(ctx, `
SELECT id FROM audit_entries
WHERE org_id = $1 AND idempotency_key = $2
`, e.OrgID, e.IdempotencyKey).Scan(&existing)
		switch {
		case err == nil:
			return Entry{}, ErrDuplicateEntry
		case !errors.Is(err, pgx.ErrNoRows):
			return Entry{}, err
		}
	}

	var prevHash string
	err := tx.QueryRow(ctx, `
SELECT hash FROM audit_entries
WHERE org_id = $1
ORDER BY seq DESC
LIMIT 1
`, e.OrgID).Scan(&prevHash)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, err
	}

	sealed, err := seal(e, prevHash, time.Now())
	if err != nil {
		return Entry{}, err
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO audit_entries
  (id, org_id, actor_id, action, target_type, target_id,
   before_state, after_state, ts, idempotency_key, prev_hash, hash)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
`,
		sealed.ID, sealed.OrgID, sealed.ActorID, sealed.Action,
		sealed.TargetType, sealed.TargetID,
		normalizeState(sealed.BeforeState), normalizeState(sealed.AfterState),
		sealed.Timestamp, sealed.IdempotencyKey, sealed.PrevHash, sealed.Hash,
	); err != nil {
		return Entry{}, err
	}
	return sealed, nil
}

// VerifyChain replays one org's chain from storage. Only that org's rows are
// read; verification never touches another tenant's history.
func (l *PGLedger) VerifyChain(ctx context.Context, orgID string, fromEntryID string) (VerifyResult, error) {
	query := `
SELECT id, org_id, actor_id, action, target_type, target_id,
       before_state, after_state, ts, idempotency_key, prev_hash, hash
FROM audit_entries
WHERE org_id = $1
ORDER BY seq
`
	args := []any{orgID}
	if fromEntryID != "" {
		query = `
SELECT id, org_id, actor_id, action, target_type, target_id,
       before_state, after_state, ts, idempotency_key, prev_hash, hash
FROM audit_entries
WHERE org_id = $1
  AND seq >= (SELECT seq FROM audit_entries WHERE org_id = $1 AND id = $2)
ORDER BY seq
`
		args = append(args, fromEntryID)
	}

	rows, err := l.pool.Query(ctx, query, args...)
	if err != nil {
		return VerifyResult{}, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(
			&e.ID, &e.OrgID, &e.ActorID, &e.Action, &e.TargetType, &e.TargetID,
			&e.BeforeState, &e.AfterState, &e.Timestamp, &e.IdempotencyKey,
			&e.PrevHash, &e.Hash,
		); err != nil {
			return VerifyResult{}, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return VerifyResult{}, err
	}
	return replay(entries), nil
}
