package access

import (
	"github.com/clearline-hq/clearline/internal/identity"
	"github.com/clearline-hq/clearline/internal/registry"
)

// ForPrincipal builds the read and write surfaces for a verified principal.
// This is the intended construction path for request handlers: the identity
// boundary verifies the principal, and both clients inherit its org and
// actor ids with no way to substitute others.
func ForPrincipal(conn Conn, reg *registry.Registry, ledger ChainAppender, p identity.Principal, opts ...AuditedOption) (*ScopedClient, *AuditedClient, error) {
	scoped, err := NewScopedClient(conn, reg, p.OrgID)
	if err != nil {
		return nil, nil, err
	}
	audited, err := NewAuditedClient(scoped, ledger, p.ActorID, opts...)
	if err != nil {
		return nil, nil, err
	}
	return scoped, audited, nil
}
