package access

import (
	"fmt"
	"regexp"
	"strings"
)

// Predicate is a parameterized WHERE fragment. Placeholders are numbered
// $1..$n over Args; the scoped client renumbers nothing, it only appends the
// org filter after the caller's last placeholder.
type Predicate struct {
	SQL  string
	Args []any
}

// Where builds a predicate from a fragment and its arguments.
func Where(sql string, args ...any) Predicate {
	return Predicate{SQL: sql, Args: args}
}

// All matches every row the caller is allowed to see.
func All() Predicate {
	return Predicate{}
}

func (p Predicate) isEmpty() bool {
	return strings.TrimSpace(p.SQL) == ""
}

// forbiddenPredicate matches statement separators and mutation verbs inside
// a predicate fragment. Predicates feed a read path; anything that could
// turn the select into a write is refused up front.
var forbiddenPredicate = regexp.MustCompile(`(?i)(;|--|\b(insert|update|delete|drop|alter|truncate|grant|create)\b)`)

func validatePredicate(table string, p Predicate) error {
	if m := forbiddenPredicate.FindString(p.SQL); m != "" {
		return &ReadOnlyViolationError{Table: table, Op: fmt.Sprintf("predicate contains %q", strings.TrimSpace(m))}
	}
	return nil
}

// scopedWhere conjoins the caller's predicate with the org filter. orgColumn
// is taken from the registry, never from caller input. Returns the WHERE
// clause (possibly empty) and the full argument list.
func scopedWhere(p Predicate, orgColumn string, orgID string) (string, []any) {
	args := append([]any{}, p.Args...)
	var clauses []string
	if !p.isEmpty() {
		clauses = append(clauses, "("+p.SQL+")")
	}
	if orgColumn != "" {
		args = append(args, orgID)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", quoteIdent(orgColumn), len(args)))
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// quoteIdent double-quotes an identifier that came from the registry or a
// sorted row-column list. Registry names are validated lowercase
// identifiers; quoting keeps the SQL unambiguous regardless.
func quoteIdent(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
