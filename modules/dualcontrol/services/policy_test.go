package services

import (
	"strings"
	"testing"
)

const testPolicies = `
version: 1
actions:
  - action: case-close
    required_roles: [compliance-officer, admin]
  - action: severity-change
    required_roles: [compliance-officer]
    condition: 'ctx["new_severity"] == "critical" || ctx["old_severity"] == "critical"'
  - action: identity-unmask
    required_roles: [compliance-officer, admin]
`

func TestParsePolicies_Defects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{name: "bad version", yaml: "version: 2\nactions: []\n", want: "unsupported policy version"},
		{name: "empty", yaml: "version: 1\nactions: []\n", want: "empty policy set"},
		{
			name: "duplicate action",
			yaml: "version: 1\nactions:\n  - action: case-close\n    required_roles: [admin]\n  - action: Case-Close\n    required_roles: [admin]\n",
			want: "declared twice",
		},
		{
			name: "no roles",
			yaml: "version: 1\nactions:\n  - action: case-close\n    required_roles: []\n",
			want: "no required roles",
		},
		{
			name: "bad condition",
			yaml: "version: 1\nactions:\n  - action: case-close\n    required_roles: [admin]\n    condition: 'ctx[\"x\"] +'\n",
			want: "case-close",
		},
		{
			name: "non-bool condition",
			yaml: "version: 1\nactions:\n  - action: case-close\n    required_roles: [admin]\n    condition: 'ctx[\"x\"]'\n",
			want: "bool",
		},
	}
	for _, tt := range tests {
		_, err := ParsePolicies([]byte(tt.yaml))
		if err == nil {
			t.Fatalf("%s: expected error", tt.name)
		}
		if !strings.Contains(err.Error(), tt.want) {
			t.Fatalf("%s: err=%v", tt.name, err)
		}
	}
}

func TestRequiresDualControl(t *testing.T) {
	ps, err := ParsePolicies([]byte(testPolicies))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	// Unconditional policy.
	required, p, err := ps.RequiresDualControl("case-close", nil)
	if err != nil || !required {
		t.Fatalf("required=%v err=%v", required, err)
	}
	if len(p.RequiredRoles) != 2 {
		t.Fatalf("policy=%+v", p)
	}

	// Undeclared actions are not sensitive; the caller declares the set.
	required, _, err = ps.RequiresDualControl("comment-add", nil)
	if err != nil || required {
		t.Fatalf("required=%v err=%v", required, err)
	}

	// Conditional policy keyed off the mutation context.
	required, _, err = ps.RequiresDualControl("severity-change", map[string]string{
		"old_severity": "low", "new_severity": "critical",
	})
	if err != nil || !required {
		t.Fatalf("required=%v err=%v", required, err)
	}
	required, _, err = ps.RequiresDualControl("severity-change", map[string]string{
		"old_severity": "low", "new_severity": "medium",
	})
	if err != nil || required {
		t.Fatalf("required=%v err=%v", required, err)
	}

	// Missing context keys fail the evaluation and fall back to required.
	required, _, err = ps.RequiresDualControl("severity-change", map[string]string{})
	if err == nil {
		t.Fatal("expected evaluation error for missing keys")
	}
	if !required {
		t.Fatal("evaluation failure must not relax the rule")
	}

	// Action lookup is case-insensitive.
	if _, ok := ps.Lookup("CASE-CLOSE"); !ok {
		t.Fatal("lookup should normalize action names")
	}
}
