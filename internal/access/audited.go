package access

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/clearline-hq/clearline/internal/auditchain"
	"github.com/clearline-hq/clearline/internal/metrics"
	"github.com/clearline-hq/clearline/pkg/uuidv7"
)

// ChainAppender seals an audit entry inside the caller's transaction.
// Satisfied by auditchain.PGLedger and auditchain.MemoryLedger.
type ChainAppender interface {
	AppendTx(ctx context.Context, tx pgx.Tx, e auditchain.Entry) (auditchain.Entry, error)
}

// MutationResult reports one committed unit of work. When RowsAffected is
// zero the mutation matched nothing and no audit entry was appended.
type MutationResult struct {
	Entry        auditchain.Entry
	RowsAffected int64
}

// AuditedClient is the sole write path. Every mutation and its audit entry
// commit or abort as one transaction: audit is mandatory, not best-effort.
type AuditedClient struct {
	scoped   *ScopedClient
	ledger   ChainAppender
	actorID  string
	log      logrus.FieldLogger
	metrics  *metrics.Recorder
	attempts int
}

// AuditedOption configures an AuditedClient.
type AuditedOption func(*AuditedClient)

// WithLogger wires a structured logger for append-retry and abort warnings.
func WithLogger(log logrus.FieldLogger) AuditedOption {
	return func(c *AuditedClient) { c.log = log }
}

// WithAuditedMetrics wires a metrics recorder.
func WithAuditedMetrics(m *metrics.Recorder) AuditedOption {
	return func(c *AuditedClient) { c.metrics = m }
}

// WithAppendRetries bounds how many times the unit of work is retried when
// the audit append fails transiently. Minimum 1.
func WithAppendRetries(n int) AuditedOption {
	return func(c *AuditedClient) {
		if n >= 1 {
			c.attempts = n
		}
	}
}

// NewAuditedClient builds the write surface from a scoped client and a
// verified actor id.
func NewAuditedClient(scoped *ScopedClient, ledger ChainAppender, actorID string, opts ...AuditedOption) (*AuditedClient, error) {
	if scoped == nil {
		return nil, &AuditedAccessError{Reason: "nil scoped client"}
	}
	if ledger == nil {
		return nil, &AuditedAccessError{Reason: "nil audit ledger"}
	}
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return nil, &AuditedAccessError{Reason: "empty actor id"}
	}
	c := &AuditedClient{scoped: scoped, ledger: ledger, actorID: actorID, attempts: 3}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Scoped returns the read surface this client writes through.
func (c *AuditedClient) Scoped() *ScopedClient { return c.scoped }

// ActorID returns the verified actor this client is bound to.
func (c *AuditedClient) ActorID() string { return c.actorID }

// MutationOption configures one mutation call.
type MutationOption func(*mutationConfig)

type mutationConfig struct {
	idempotencyKey string
}

// WithIdempotencyKey pins the mutation's idempotency key. A caller retrying
// after a crash passes the same key; if the first attempt committed, the
// retry surfaces auditchain.ErrDuplicateEntry instead of double-applying the
// audit.
func WithIdempotencyKey(key string) MutationOption {
	return func(cfg *mutationConfig) { cfg.idempotencyKey = key }
}

// Insert writes rows to the table. On org-scoped tables the org column of
// every row is forcibly set to the client's org id; caller-supplied values
// are discarded so a row can never be written into another tenant.
func (c *AuditedClient) Insert(ctx context.Context, table string, rows []Row, opts ...MutationOption) (MutationResult, error) {
	table = strings.ToLower(strings.TrimSpace(table))
	if err := c.guardAppendOnly(table); err != nil {
		return MutationResult{}, err
	}
	if len(rows) == 0 {
		return MutationResult{}, &AuditedAccessError{Reason: "insert requires at least one row"}
	}
	orgColumn, err := c.scoped.resolveOrgColumn(table)
	if err != nil {
		return MutationResult{}, err
	}

	owned := make([]Row, len(rows))
	for i, r := range rows {
		cp := make(Row, len(r)+1)
		for k, v := range r {
			cp[strings.ToLower(strings.TrimSpace(k))] = v
		}
		if orgColumn != "" {
			cp[orgColumn] = c.scoped.orgID
		}
		owned[i] = cp
	}

	columns, err := uniformColumns(owned)
	if err != nil {
		return MutationResult{}, err
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO " + quoteIdent(table) + " (")
	for i, col := range columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(quoteIdent(col))
	}
	sb.WriteString(") VALUES ")
	args := make([]any, 0, len(owned)*len(columns))
	for i, r := range owned {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for j, col := range columns {
			if j > 0 {
				sb.WriteString(", ")
			}
			args = append(args, r[col])
			fmt.Fprintf(&sb, "$%d", len(args))
		}
		sb.WriteString(")")
	}
	query := sb.String()

	afterState, err := json.Marshal(owned)
	if err != nil {
		return MutationResult{}, err
	}

	return c.runAudited(ctx, "insert", table, opts, func(ctx context.Context, tx pgx.Tx) (int64, json.RawMessage, json.RawMessage, error) {
		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return 0, nil, nil, err
		}
		return tag.RowsAffected(), nil, afterState, nil
	})
}

// Update patches rows matching the predicate. The org filter is conjoined
// exactly as in Select, the pre-image is read under FOR UPDATE in the same
// transaction, and the patch may not touch the org column.
func (c *AuditedClient) Update(ctx context.Context, table string, p Predicate, patch Row, opts ...MutationOption) (MutationResult, error) {
	table = strings.ToLower(strings.TrimSpace(table))
	if err := c.guardAppendOnly(table); err != nil {
		return MutationResult{}, err
	}
	if len(patch) == 0 {
		return MutationResult{}, &AuditedAccessError{Reason: "update requires a non-empty patch"}
	}

	selectSQL, _, err := c.scoped.buildSelect(table, p, true)
	if err != nil {
		return MutationResult{}, err
	}
	orgColumn, err := c.scoped.resolveOrgColumn(table)
	if err != nil {
		return MutationResult{}, err
	}

	normalized := make(Row, len(patch))
	for k, v := range patch {
		k = strings.ToLower(strings.TrimSpace(k))
		if orgColumn != "" && k == orgColumn {
			return MutationResult{}, &ScopedAccessError{
				Reason: fmt.Sprintf("patch must not set org column %q on table %q", orgColumn, table),
			}
		}
		normalized[k] = v
	}
	patchCols := make([]string, 0, len(normalized))
	for k := range normalized {
		patchCols = append(patchCols, k)
	}
	sort.Strings(patchCols)

	where, whereArgs := scopedWhere(p, orgColumn, c.scoped.orgID)
	args := append([]any{}, whereArgs...)
	setParts := make([]string, 0, len(patchCols))
	for _, col := range patchCols {
		args = append(args, normalized[col])
		setParts = append(setParts, fmt.Sprintf("%s = $%d", quoteIdent(col), len(args)))
	}
	updateSQL := "UPDATE " + quoteIdent(table) + " SET " + strings.Join(setParts, ", ") + where + " RETURNING *"

	return c.runAudited(ctx, "update", table, opts, func(ctx context.Context, tx pgx.Tx) (int64, json.RawMessage, json.RawMessage, error) {
		beforeRows, err := queryRowsTx(ctx, tx, selectSQL, whereArgs)
		if err != nil {
			return 0, nil, nil, err
		}
		if len(beforeRows) == 0 {
			return 0, nil, nil, nil
		}
		afterRows, err := queryRowsTx(ctx, tx, updateSQL, args)
		if err != nil {
			return 0, nil, nil, err
		}
		before, err := json.Marshal(beforeRows)
		if err != nil {
			return 0, nil, nil, err
		}
		after, err := json.Marshal(afterRows)
		if err != nil {
			return 0, nil, nil, err
		}
		return int64(len(afterRows)), before, after, nil
	})
}

// Delete removes rows matching the predicate, capturing the pre-image via
// RETURNING inside the transaction. The audit entry's after state is null.
func (c *AuditedClient) Delete(ctx context.Context, table string, p Predicate, opts ...MutationOption) (MutationResult, error) {
	table = strings.ToLower(strings.TrimSpace(table))
	if err := c.guardAppendOnly(table); err != nil {
		return MutationResult{}, err
	}
	if err := validatePredicate(table, p); err != nil {
		return MutationResult{}, err
	}
	orgColumn, err := c.scoped.resolveOrgColumn(table)
	if err != nil {
		return MutationResult{}, err
	}

	where, args := scopedWhere(p, orgColumn, c.scoped.orgID)
	deleteSQL := "DELETE FROM " + quoteIdent(table) + where + " RETURNING *"

	return c.runAudited(ctx, "delete", table, opts, func(ctx context.Context, tx pgx.Tx) (int64, json.RawMessage, json.RawMessage, error) {
		beforeRows, err := queryRowsTx(ctx, tx, deleteSQL, args)
		if err != nil {
			return 0, nil, nil, err
		}
		if len(beforeRows) == 0 {
			return 0, nil, nil, nil
		}
		before, err := json.Marshal(beforeRows)
		if err != nil {
			return 0, nil, nil, err
		}
		return int64(len(beforeRows)), before, nil, nil
	})
}

// runAudited executes one mutation plus its audit append as a single
// transaction, retrying the whole unit a bounded number of times under a
// fixed idempotency key when the append fails transiently.
func (c *AuditedClient) runAudited(
	ctx context.Context,
	action string,
	table string,
	opts []MutationOption,
	mutate func(ctx context.Context, tx pgx.Tx) (int64, json.RawMessage, json.RawMessage, error),
) (MutationResult, error) {
	var cfg mutationConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.idempotencyKey == "" {
		key, err := uuidv7.NewString()
		if err != nil {
			return MutationResult{}, err
		}
		cfg.idempotencyKey = key
	}

	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		res, retryable, err := c.attemptUnit(ctx, action, table, cfg.idempotencyKey, mutate)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !retryable {
			return MutationResult{}, err
		}
		c.metrics.AuditAppend(action, "retry")
		if c.log != nil {
			c.log.WithFields(logrus.Fields{
				"table":   table,
				"action":  action,
				"attempt": attempt,
			}).WithError(err).Warn("audit append failed, retrying unit of work")
		}
	}
	c.metrics.AuditAppend(action, "failed")
	return MutationResult{}, &AuditedAccessError{Reason: "audit append failed, mutation aborted", Err: lastErr}
}

// attemptUnit runs one transaction: mutate, append, commit. retryable is
// true only for append failures that a fresh attempt under the same
// idempotency key may resolve.
func (c *AuditedClient) attemptUnit(
	ctx context.Context,
	action string,
	table string,
	idempotencyKey string,
	mutate func(ctx context.Context, tx pgx.Tx) (int64, json.RawMessage, json.RawMessage, error),
) (MutationResult, bool, error) {
	tx, err := c.scoped.conn.Begin(ctx)
	if err != nil {
		return MutationResult{}, false, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	affected, before, after, err := mutate(ctx, tx)
	if err != nil {
		return MutationResult{}, false, err
	}
	if affected == 0 {
		// Nothing matched: no state change, no audit entry.
		return MutationResult{}, false, nil
	}

	entry, err := c.ledger.AppendTx(ctx, tx, auditchain.Entry{
		OrgID:          c.scoped.orgID,
		ActorID:        c.actorID,
		Action:         action,
		TargetType:     table,
		BeforeState:    before,
		AfterState:     after,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		if errors.Is(err, auditchain.ErrDuplicateEntry) {
			// A prior attempt with this key already committed. This
			// attempt's mutation rolls back with the transaction, so
			// nothing is applied twice.
			return MutationResult{}, false, &AuditedAccessError{
				Reason: "mutation already applied under idempotency key",
				Err:    err,
			}
		}
		return MutationResult{}, true, err
	}

	if err := tx.Commit(ctx); err != nil {
		return MutationResult{}, true, err
	}
	c.metrics.AuditAppend(action, "ok")
	return MutationResult{Entry: entry, RowsAffected: affected}, false, nil
}

// guardAppendOnly refuses mutations against append-only tables. The ledger's
// own table stays in the registry for reads and schema validation, but its
// rows are written only by the ledger itself.
func (c *AuditedClient) guardAppendOnly(table string) error {
	if !c.scoped.reg.IsAppendOnly(table) {
		return nil
	}
	c.scoped.metrics.ScopeDenied(table, "append_only")
	return &AuditedAccessError{
		Reason: fmt.Sprintf("table %q is append-only; entries are written only through the audit ledger", table),
	}
}

func queryRowsTx(ctx context.Context, tx pgx.Tx, sql string, args []any) ([]Row, error) {
	rows, err := tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRows(rows)
}

// uniformColumns returns the sorted column set shared by every row, failing
// when rows disagree so a ragged insert cannot silently drop values.
func uniformColumns(rows []Row) ([]string, error) {
	columns := make([]string, 0, len(rows[0]))
	for k := range rows[0] {
		columns = append(columns, k)
	}
	sort.Strings(columns)
	for i, r := range rows {
		if len(r) != len(columns) {
			return nil, &AuditedAccessError{Reason: fmt.Sprintf("insert row %d has a different column set", i)}
		}
		for _, col := range columns {
			if _, ok := r[col]; !ok {
				return nil, &AuditedAccessError{Reason: fmt.Sprintf("insert row %d missing column %q", i, col)}
			}
		}
	}
	return columns, nil
}
