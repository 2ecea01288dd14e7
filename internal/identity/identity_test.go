package identity

import (
	"context"
	"testing"
)

func TestNewPrincipal_Validation(t *testing.T) {
	if _, err := NewPrincipal("", "actor-1", nil); err == nil {
		t.Fatal("expected error for empty org id")
	}
	if _, err := NewPrincipal("   ", "actor-1", nil); err == nil {
		t.Fatal("expected error for blank org id")
	}
	if _, err := NewPrincipal("org-1", "", nil); err == nil {
		t.Fatal("expected error for empty actor id")
	}

	p, err := NewPrincipal(" org-1 ", " actor-1 ", []string{" Case-Manager ", "", "ADMIN"})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if p.OrgID != "org-1" || p.ActorID != "actor-1" {
		t.Fatalf("principal=%+v", p)
	}
	if len(p.Roles) != 2 || p.Roles[0] != "case-manager" || p.Roles[1] != "admin" {
		t.Fatalf("roles=%v", p.Roles)
	}
}

func TestPrincipal_HasRole(t *testing.T) {
	p, err := NewPrincipal("org-1", "actor-1", []string{"compliance-officer"})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if !p.HasRole("Compliance-Officer") {
		t.Fatal("expected case-insensitive role match")
	}
	if p.HasRole("admin") {
		t.Fatal("unexpected role")
	}
}

func TestPrincipalContextRoundTrip(t *testing.T) {
	if _, ok := CurrentPrincipal(context.Background()); ok {
		t.Fatal("expected no principal on empty context")
	}
	p, _ := NewPrincipal("org-1", "actor-1", nil)
	ctx := WithPrincipal(context.Background(), p)
	got, ok := CurrentPrincipal(ctx)
	if !ok || got.OrgID != "org-1" {
		t.Fatalf("got=%+v ok=%v", got, ok)
	}
}
