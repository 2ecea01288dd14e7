// Package access provides the only two surfaces application code may use to
// touch the shared relational store: a read-only scoped client and a
// write-capable audited client. Both consult the table registry on every
// call and fail closed on anything unregistered or ambiguous.
package access

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/clearline-hq/clearline/internal/metrics"
	"github.com/clearline-hq/clearline/internal/registry"
)

// Conn is the slice of a pgx pool the clients need.
type Conn interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Row is one result row keyed by column name.
type Row map[string]any

// ScopedClient is the read-only query surface for one verified tenant. It
// has no write methods: unaudited writes are a construction-time
// impossibility, not a runtime discipline.
type ScopedClient struct {
	conn    Conn
	reg     *registry.Registry
	orgID   string
	metrics *metrics.Recorder
}

// ScopedOption configures a ScopedClient.
type ScopedOption func(*ScopedClient)

// WithScopedMetrics wires a metrics recorder. Optional; nil is a no-op.
func WithScopedMetrics(m *metrics.Recorder) ScopedOption {
	return func(c *ScopedClient) { c.metrics = m }
}

// NewScopedClient binds a raw connection to a verified org id. The org id
// must come from the identity boundary, never from caller input.
func NewScopedClient(conn Conn, reg *registry.Registry, orgID string, opts ...ScopedOption) (*ScopedClient, error) {
	if conn == nil {
		return nil, &ScopedAccessError{Reason: "nil connection"}
	}
	if reg == nil {
		return nil, &ScopedAccessError{Reason: "nil registry"}
	}
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return nil, &ScopedAccessError{Reason: "empty org id"}
	}
	c := &ScopedClient{conn: conn, reg: reg, orgID: orgID}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// OrgID returns the verified tenant this client is bound to.
func (c *ScopedClient) OrgID() string { return c.orgID }

// Select runs the predicate against the table. Org-scoped tables get the
// tenant filter conjoined; shared tables run the predicate unmodified;
// unregistered tables fail closed.
func (c *ScopedClient) Select(ctx context.Context, table string, p Predicate) ([]Row, error) {
	query, args, err := c.buildSelect(table, p, false)
	if err != nil {
		return nil, err
	}
	rows, err := c.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRows(rows)
}

// buildSelect resolves the table's scope and produces the final query.
// forUpdate locks matched rows; the audited client uses it for in-transaction
// before-image capture.
func (c *ScopedClient) buildSelect(table string, p Predicate, forUpdate bool) (string, []any, error) {
	table = strings.ToLower(strings.TrimSpace(table))
	if err := validatePredicate(table, p); err != nil {
		c.metrics.ScopeDenied(table, "read_only_violation")
		return "", nil, err
	}

	orgColumn, err := c.resolveOrgColumn(table)
	if err != nil {
		return "", nil, err
	}

	where, args := scopedWhere(p, orgColumn, c.orgID)
	query := "SELECT * FROM " + quoteIdent(table) + where
	if forUpdate {
		query += " FOR UPDATE"
	}
	return query, args, nil
}

// resolveOrgColumn maps the table's classification to the column the org
// filter must use: "" for shared tables, a typed failure otherwise.
func (c *ScopedClient) resolveOrgColumn(table string) (string, error) {
	switch c.reg.Classify(table) {
	case registry.ScopeShared:
		return "", nil
	case registry.ScopeOrg:
		col, ok := c.reg.OrgColumnFor(table)
		if !ok || col == "" {
			c.metrics.ScopeDenied(table, "missing_org_column")
			return "", &MissingOrgColumnError{Table: table}
		}
		return col, nil
	default:
		c.metrics.ScopeDenied(table, "unregistered_table")
		return "", &UnregisteredTableError{Table: table}
	}
}

func scanRows(rows pgx.Rows) ([]Row, error) {
	fields := rows.FieldDescriptions()
	var out []Row
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(Row, len(fields))
		for i, fd := range fields {
			if i < len(vals) {
				row[fd.Name] = vals[i]
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
