// Package identity carries the verified caller identity through the
// governance layer. Values here are accepted only from the identity/session
// boundary after verification, never parsed from request payloads.
package identity

import (
	"context"
	"errors"
	"strings"
)

// Principal is a verified caller: the tenant it acts for, the acting user,
// and the role slugs attached to the session.
type Principal struct {
	OrgID   string
	ActorID string
	Roles   []string
}

var (
	errEmptyOrgID   = errors.New("identity: empty org id")
	errEmptyActorID = errors.New("identity: empty actor id")
)

// NewPrincipal validates and normalizes a verified identity triple.
// Empty org or actor ids are rejected so that a principal can never be
// constructed in a half-verified state.
func NewPrincipal(orgID string, actorID string, roles []string) (Principal, error) {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return Principal{}, errEmptyOrgID
	}
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return Principal{}, errEmptyActorID
	}
	normalized := make([]string, 0, len(roles))
	for _, r := range roles {
		r = strings.ToLower(strings.TrimSpace(r))
		if r == "" {
			continue
		}
		normalized = append(normalized, r)
	}
	return Principal{OrgID: orgID, ActorID: actorID, Roles: normalized}, nil
}

// HasRole reports whether the principal carries the given role slug.
func (p Principal) HasRole(role string) bool {
	role = strings.ToLower(strings.TrimSpace(role))
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type principalCtxKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey{}, p)
}

func CurrentPrincipal(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalCtxKey{}).(Principal)
	return p, ok
}
