// Package registry declares the tenancy classification of every table in the
// schema. The registry is built once at boot from config and is immutable
// afterwards; an unknown or inconsistent classification is a deployment
// defect, never a runtime condition to route around.
package registry

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scope is the tenancy classification of a table.
type Scope int

const (
	// ScopeUnknown means the table is not declared in the registry.
	// Callers must treat it as fail-closed.
	ScopeUnknown Scope = iota
	// ScopeOrg means every row belongs to exactly one tenant, identified
	// by the table's org column.
	ScopeOrg
	// ScopeShared means the table holds shared/reference data with no
	// tenant column.
	ScopeShared
)

func (s Scope) String() string {
	switch s {
	case ScopeOrg:
		return "org-scoped"
	case ScopeShared:
		return "shared"
	default:
		return "unknown"
	}
}

// TableDescriptor declares one table's classification.
type TableDescriptor struct {
	Name      string `yaml:"name"`
	Scoped    bool   `yaml:"scoped"`
	OrgColumn string `yaml:"org_column,omitempty"`
	// AppendOnly marks tables whose rows, once written, are never updated
	// or deleted (the audit ledger). The write surface refuses mutations
	// against them.
	AppendOnly bool `yaml:"append_only,omitempty"`
}

// Registry is the immutable set of table descriptors covering the schema.
type Registry struct {
	tables map[string]TableDescriptor
	// orgColumns are the column names that mark a table as tenant-owned
	// when diffing against the live schema.
	orgColumns []string
}

// New builds a registry from descriptors, rejecting structural defects:
// duplicate names, scoped tables without an org column, shared tables that
// declare one.
func New(descriptors []TableDescriptor, orgColumns []string) (*Registry, error) {
	if len(descriptors) == 0 {
		return nil, errors.New("registry: empty")
	}
	if len(orgColumns) == 0 {
		orgColumns = []string{"org_id"}
	}
	tables := make(map[string]TableDescriptor, len(descriptors))
	for _, d := range descriptors {
		name := strings.ToLower(strings.TrimSpace(d.Name))
		if name == "" {
			return nil, errors.New("registry: descriptor with empty table name")
		}
		if _, dup := tables[name]; dup {
			return nil, fmt.Errorf("registry: table %q declared twice", name)
		}
		d.Name = name
		d.OrgColumn = strings.ToLower(strings.TrimSpace(d.OrgColumn))
		if d.Scoped && d.OrgColumn == "" {
			return nil, fmt.Errorf("registry: scoped table %q missing org column", name)
		}
		if !d.Scoped && d.OrgColumn != "" {
			return nil, fmt.Errorf("registry: shared table %q declares org column %q", name, d.OrgColumn)
		}
		tables[name] = d
	}
	normalized := make([]string, 0, len(orgColumns))
	for _, c := range orgColumns {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" {
			return nil, errors.New("registry: empty org column name")
		}
		normalized = append(normalized, c)
	}
	return &Registry{tables: tables, orgColumns: normalized}, nil
}

// Classify returns the tenancy scope of a table. Unregistered tables are
// ScopeUnknown.
func (r *Registry) Classify(table string) Scope {
	d, ok := r.tables[strings.ToLower(strings.TrimSpace(table))]
	if !ok {
		return ScopeUnknown
	}
	if d.Scoped {
		return ScopeOrg
	}
	return ScopeShared
}

// IsAppendOnly reports whether the table's rows are immutable once written.
func (r *Registry) IsAppendOnly(table string) bool {
	d, ok := r.tables[strings.ToLower(strings.TrimSpace(table))]
	return ok && d.AppendOnly
}

// OrgColumnFor returns the tenant column of an org-scoped table. The second
// return is false for shared and unregistered tables.
func (r *Registry) OrgColumnFor(table string) (string, bool) {
	d, ok := r.tables[strings.ToLower(strings.TrimSpace(table))]
	if !ok || !d.Scoped {
		return "", false
	}
	return d.OrgColumn, true
}

// Tables returns all declared descriptors sorted by name.
func (r *Registry) Tables() []TableDescriptor {
	out := make([]TableDescriptor, 0, len(r.tables))
	for _, d := range r.tables {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

type registryFile struct {
	Version    int               `yaml:"version"`
	OrgColumns []string          `yaml:"org_columns"`
	Tables     []TableDescriptor `yaml:"tables"`
}

// Load reads the registry declaration from a YAML file.
func Load(path string) (*Registry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// Parse builds a registry from the raw YAML declaration.
func Parse(b []byte) (*Registry, error) {
	var rf registryFile
	if err := yaml.Unmarshal(b, &rf); err != nil {
		return nil, err
	}
	if rf.Version != 1 {
		return nil, errors.New("registry: unsupported version")
	}
	return New(rf.Tables, rf.OrgColumns)
}
