package access

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type capturedQuery struct {
	sql  string
	args []any
}

// fakeRows serves scripted result rows through the pgx.Rows surface.
type fakeRows struct {
	fields []string
	vals   [][]any
	pos    int
}

func newFakeRows(fields []string, vals ...[]any) *fakeRows {
	return &fakeRows{fields: fields, vals: vals}
}

func (r *fakeRows) Close()                        {}
func (r *fakeRows) Err() error                    { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription {
	out := make([]pgconn.FieldDescription, len(r.fields))
	for i, f := range r.fields {
		out[i] = pgconn.FieldDescription{Name: f}
	}
	return out
}
func (r *fakeRows) Next() bool {
	if r.pos >= len(r.vals) {
		return false
	}
	r.pos++
	return true
}
func (r *fakeRows) Scan(...any) error { return nil }
func (r *fakeRows) Values() ([]any, error) {
	return r.vals[r.pos-1], nil
}
func (r *fakeRows) RawValues() [][]byte { return nil }
func (r *fakeRows) Conn() *pgx.Conn     { return nil }

type queuedResult struct {
	rows *fakeRows
	err  error
}

// fakeTx records mutations and serves scripted query results in order.
type fakeTx struct {
	execs      []capturedQuery
	queries    []capturedQuery
	results    []queuedResult
	execErr    error
	execTag    string
	commitErr  error
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Begin(context.Context) (pgx.Tx, error) { return t, nil }
func (t *fakeTx) Commit(context.Context) error {
	if t.commitErr != nil {
		return t.commitErr
	}
	t.committed = true
	return nil
}
func (t *fakeTx) Rollback(context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}
func (t *fakeTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *fakeTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (t *fakeTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (t *fakeTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *fakeTx) Conn() *pgx.Conn { return nil }

func (t *fakeTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	t.execs = append(t.execs, capturedQuery{sql: sql, args: args})
	if t.execErr != nil {
		return pgconn.CommandTag{}, t.execErr
	}
	tag := t.execTag
	if tag == "" {
		tag = "INSERT 0 1"
	}
	return pgconn.NewCommandTag(tag), nil
}

func (t *fakeTx) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	t.queries = append(t.queries, capturedQuery{sql: sql, args: args})
	if len(t.results) == 0 {
		return newFakeRows(nil), nil
	}
	res := t.results[0]
	t.results = t.results[1:]
	if res.err != nil {
		return nil, res.err
	}
	return res.rows, nil
}

func (t *fakeTx) QueryRow(context.Context, string, ...any) pgx.Row { return nil }

// fakeConn hands out transactions and serves direct (non-transactional)
// queries.
type fakeConn struct {
	queries  []capturedQuery
	rows     *fakeRows
	queryErr error
	txs      []*fakeTx
	beginErr error
	// nextTx builds the transaction for each Begin; defaults to an empty
	// recorder.
	nextTx func() *fakeTx
}

func (c *fakeConn) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	c.queries = append(c.queries, capturedQuery{sql: sql, args: args})
	if c.queryErr != nil {
		return nil, c.queryErr
	}
	if c.rows != nil {
		return c.rows, nil
	}
	return newFakeRows(nil), nil
}

func (c *fakeConn) Begin(context.Context) (pgx.Tx, error) {
	if c.beginErr != nil {
		return nil, c.beginErr
	}
	var tx *fakeTx
	if c.nextTx != nil {
		tx = c.nextTx()
	} else {
		tx = &fakeTx{}
	}
	c.txs = append(c.txs, tx)
	return tx, nil
}

func containsAll(s string, parts ...string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}
