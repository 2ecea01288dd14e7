package registry

import (
	"context"

	"github.com/jackc/pgx/v5"
)

type pgQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PGSchemaSource reads table and column names from information_schema.
type PGSchemaSource struct {
	q      pgQuerier
	schema string
}

// NewPGSchemaSource builds a schema source over a pgx pool or connection.
// schema defaults to "public".
func NewPGSchemaSource(q pgQuerier, schema string) *PGSchemaSource {
	if schema == "" {
		schema = "public"
	}
	return &PGSchemaSource{q: q, schema: schema}
}

func (s *PGSchemaSource) Tables(ctx context.Context) ([]SchemaTable, error) {
	rows, err := s.q.Query(ctx, `
SELECT c.table_name, c.column_name
FROM information_schema.columns c
JOIN information_schema.tables t
  ON t.table_schema = c.table_schema AND t.table_name = c.table_name
WHERE c.table_schema = $1
  AND t.table_type = 'BASE TABLE'
ORDER BY c.table_name, c.ordinal_position
`, s.schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SchemaTable
	index := make(map[string]int)
	for rows.Next() {
		var table, column string
		if err := rows.Scan(&table, &column); err != nil {
			return nil, err
		}
		i, ok := index[table]
		if !ok {
			i = len(out)
			index[table] = i
			out = append(out, SchemaTable{Name: table})
		}
		out[i].Columns = append(out[i].Columns, column)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
