package services

import (
	"strings"
	"testing"
	"time"

	"github.com/clearline-hq/clearline/modules/caseaccess/domain/types"
)

var evalNow = time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

func newTestEvaluator() *Evaluator {
	return NewEvaluator(DefaultTierResolver(), WithClock(func() time.Time { return evalNow }))
}

func identityGrant(userID, caseID string, expiresAt *time.Time) types.AccessGrant {
	return types.AccessGrant{
		UserID:    userID,
		CaseID:    caseID,
		Level:     types.LevelIdentityAccess,
		GrantedBy: "officer-2",
		GrantedAt: evalNow.Add(-24 * time.Hour),
		ExpiresAt: expiresAt,
		Reason:    "active investigation",
	}
}

func TestEvaluate_NoneIsAlwaysDenied(t *testing.T) {
	e := newTestEvaluator()
	grant := identityGrant("u1", "c1", nil)

	d := e.Evaluate("u1", []string{"compliance-officer"}, "c1", types.LevelNone, []types.AccessGrant{grant})
	if d.Allowed {
		t.Fatalf("decision=%+v", d)
	}
}

func TestEvaluate_RoleTiers(t *testing.T) {
	e := newTestEvaluator()
	tests := []struct {
		name      string
		roles     []string
		requested types.AccessLevel
		want      bool
	}{
		{name: "case-manager metadata", roles: []string{"case-manager"}, requested: types.LevelMetadataOnly, want: true},
		{name: "case-manager details denied", roles: []string{"case-manager"}, requested: types.LevelCaseDetails, want: false},
		{name: "compliance-officer metadata", roles: []string{"compliance-officer"}, requested: types.LevelMetadataOnly, want: true},
		{name: "compliance-officer details", roles: []string{"compliance-officer"}, requested: types.LevelCaseDetails, want: true},
		{name: "no roles", roles: nil, requested: types.LevelMetadataOnly, want: false},
		{name: "unknown role", roles: []string{"intern"}, requested: types.LevelMetadataOnly, want: false},
		{name: "mixed roles use the highest", roles: []string{"intern", "compliance-officer"}, requested: types.LevelCaseDetails, want: true},
	}
	for _, tt := range tests {
		d := e.Evaluate("u1", tt.roles, "c1", tt.requested, nil)
		if d.Allowed != tt.want {
			t.Fatalf("%s: decision=%+v", tt.name, d)
		}
	}
}

func TestEvaluate_IdentityAccessRequiresGrant(t *testing.T) {
	e := newTestEvaluator()

	// Role membership never reaches identity access, whatever the role.
	d := e.Evaluate("u1", []string{"compliance-officer", "admin", "case-manager"}, "c1", types.LevelIdentityAccess, nil)
	if d.Allowed {
		t.Fatalf("decision=%+v", d)
	}

	// An active grant suffices even with no roles at all, and the reason
	// names the grantor for traceability.
	tomorrow := evalNow.Add(24 * time.Hour)
	d = e.Evaluate("u1", nil, "c1", types.LevelIdentityAccess,
		[]types.AccessGrant{identityGrant("u1", "c1", &tomorrow)})
	if !d.Allowed {
		t.Fatalf("decision=%+v", d)
	}
	if !strings.Contains(d.Reason, "officer-2") {
		t.Fatalf("reason=%q", d.Reason)
	}

	// A grant with no expiry never expires.
	d = e.Evaluate("u1", nil, "c1", types.LevelIdentityAccess,
		[]types.AccessGrant{identityGrant("u1", "c1", nil)})
	if !d.Allowed {
		t.Fatalf("decision=%+v", d)
	}
}

func TestEvaluate_ExpiredGrantIsNotHonored(t *testing.T) {
	e := newTestEvaluator()
	yesterday := evalNow.Add(-24 * time.Hour)

	d := e.Evaluate("u1", []string{"compliance-officer"}, "c1", types.LevelIdentityAccess,
		[]types.AccessGrant{identityGrant("u1", "c1", &yesterday)})
	if d.Allowed {
		t.Fatalf("decision=%+v", d)
	}

	// Expiry is exclusive: a grant expiring exactly now is no longer valid.
	exactlyNow := evalNow
	d = e.Evaluate("u1", nil, "c1", types.LevelIdentityAccess,
		[]types.AccessGrant{identityGrant("u1", "c1", &exactlyNow)})
	if d.Allowed {
		t.Fatalf("decision=%+v", d)
	}
}

func TestEvaluate_GrantsAreNotTransferable(t *testing.T) {
	e := newTestEvaluator()
	tomorrow := evalNow.Add(24 * time.Hour)

	// Grant issued to u1 never authorizes u2 for the same case and level.
	d := e.Evaluate("u2", nil, "c1", types.LevelIdentityAccess,
		[]types.AccessGrant{identityGrant("u1", "c1", &tomorrow)})
	if d.Allowed {
		t.Fatalf("decision=%+v", d)
	}

	// A grant for another case does not carry over.
	d = e.Evaluate("u1", nil, "c2", types.LevelIdentityAccess,
		[]types.AccessGrant{identityGrant("u1", "c1", &tomorrow)})
	if d.Allowed {
		t.Fatalf("decision=%+v", d)
	}

	// A lower-level grant does not satisfy identity access.
	lower := identityGrant("u1", "c1", &tomorrow)
	lower.Level = types.LevelCaseDetails
	d = e.Evaluate("u1", nil, "c1", types.LevelIdentityAccess, []types.AccessGrant{lower})
	if d.Allowed {
		t.Fatalf("decision=%+v", d)
	}
}

func TestStaticTierResolver_CapsAtCaseDetails(t *testing.T) {
	// Even a misdeclared table cannot hand out identity access by role.
	r := StaticTierResolver{"superuser": types.LevelIdentityAccess}
	if got := r.TierFor("superuser"); got != types.LevelCaseDetails {
		t.Fatalf("tier=%v", got)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    types.AccessLevel
		wantErr bool
	}{
		{in: "none", want: types.LevelNone},
		{in: "", want: types.LevelNone},
		{in: "metadata-only", want: types.LevelMetadataOnly},
		{in: " Case-Details ", want: types.LevelCaseDetails},
		{in: "identity-access", want: types.LevelIdentityAccess},
		{in: "root", wantErr: true},
	}
	for _, tt := range tests {
		got, err := types.ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("%q: err=%v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("%q: level=%v", tt.in, got)
		}
	}
}
