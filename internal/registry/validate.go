package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// SchemaTable is one table as observed in the live schema.
type SchemaTable struct {
	Name    string
	Columns []string
}

// SchemaSource reads the live schema the registry must account for.
type SchemaSource interface {
	Tables(ctx context.Context) ([]SchemaTable, error)
}

// DiscrepancyKind classifies one registry/schema mismatch.
type DiscrepancyKind string

const (
	// DiscrepancyUnregistered: the live schema has a table the registry
	// does not declare at all.
	DiscrepancyUnregistered DiscrepancyKind = "unregistered_table"
	// DiscrepancyScopedMissingColumn: a table declared org-scoped lacks
	// its declared tenant column in the live schema.
	DiscrepancyScopedMissingColumn DiscrepancyKind = "scoped_missing_org_column"
	// DiscrepancySharedHasOrgColumn: a table declared shared carries a
	// tenant-marking column and so must be in the scoped list.
	DiscrepancySharedHasOrgColumn DiscrepancyKind = "shared_has_org_column"
	// DiscrepancyDeclaredMissing: the registry declares a table the live
	// schema does not have.
	DiscrepancyDeclaredMissing DiscrepancyKind = "declared_table_missing"
)

// Discrepancy is one deployment-blocking registry defect.
type Discrepancy struct {
	Table  string
	Kind   DiscrepancyKind
	Detail string
}

func (d Discrepancy) String() string {
	return fmt.Sprintf("%s: %s (%s)", d.Table, d.Kind, d.Detail)
}

// Validate diffs the declared registry against the live schema. A non-empty
// result is a deployment-blocking defect; it is surfaced at startup and as a
// CI gate, never tolerated at runtime.
func Validate(ctx context.Context, r *Registry, src SchemaSource) ([]Discrepancy, error) {
	live, err := src.Tables(ctx)
	if err != nil {
		return nil, err
	}

	var out []Discrepancy
	seen := make(map[string]bool, len(live))
	for _, st := range live {
		name := strings.ToLower(strings.TrimSpace(st.Name))
		seen[name] = true
		cols := make(map[string]bool, len(st.Columns))
		for _, c := range st.Columns {
			cols[strings.ToLower(strings.TrimSpace(c))] = true
		}

		switch r.Classify(name) {
		case ScopeUnknown:
			out = append(out, Discrepancy{
				Table:  name,
				Kind:   DiscrepancyUnregistered,
				Detail: "table exists in schema but is missing from the registry",
			})
		case ScopeOrg:
			col, _ := r.OrgColumnFor(name)
			if !cols[col] {
				out = append(out, Discrepancy{
					Table:  name,
					Kind:   DiscrepancyScopedMissingColumn,
					Detail: fmt.Sprintf("declared org column %q not present in schema", col),
				})
			}
		case ScopeShared:
			for _, marker := range r.orgColumns {
				if cols[marker] {
					out = append(out, Discrepancy{
						Table:  name,
						Kind:   DiscrepancySharedHasOrgColumn,
						Detail: fmt.Sprintf("declared shared but carries tenant column %q", marker),
					})
					break
				}
			}
		}
	}

	for _, d := range r.Tables() {
		if !seen[d.Name] {
			out = append(out, Discrepancy{
				Table:  d.Name,
				Kind:   DiscrepancyDeclaredMissing,
				Detail: "declared in registry but absent from live schema",
			})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Table != out[j].Table {
			return out[i].Table < out[j].Table
		}
		return out[i].Kind < out[j].Kind
	})
	return out, nil
}

// MustValidate runs Validate and converts any discrepancy into an error.
// Intended for process startup: misconfiguration fails the boot, not the
// first unscoped query.
func MustValidate(ctx context.Context, r *Registry, src SchemaSource) error {
	ds, err := Validate(ctx, r, src)
	if err != nil {
		return err
	}
	if len(ds) == 0 {
		return nil
	}
	lines := make([]string, 0, len(ds))
	for _, d := range ds {
		lines = append(lines, d.String())
	}
	return fmt.Errorf("registry: schema validation failed:\n%s", strings.Join(lines, "\n"))
}
