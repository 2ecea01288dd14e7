// Package types defines the tiered case-confidentiality model: ordered
// access levels and explicit, time-bounded access grants.
package types

import (
	"fmt"
	"strings"
	"time"
)

// AccessLevel is an ordered confidentiality tier. Higher values reveal more.
type AccessLevel int

const (
	LevelNone AccessLevel = iota
	LevelMetadataOnly
	LevelCaseDetails
	LevelIdentityAccess
)

func (l AccessLevel) String() string {
	switch l {
	case LevelMetadataOnly:
		return "metadata-only"
	case LevelCaseDetails:
		return "case-details"
	case LevelIdentityAccess:
		return "identity-access"
	default:
		return "none"
	}
}

// ParseLevel maps a level name to its tier. Unknown names resolve to
// LevelNone with an error so misdeclared config cannot widen access.
func ParseLevel(s string) (AccessLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "":
		return LevelNone, nil
	case "metadata-only":
		return LevelMetadataOnly, nil
	case "case-details":
		return LevelCaseDetails, nil
	case "identity-access":
		return LevelIdentityAccess, nil
	default:
		return LevelNone, fmt.Errorf("caseaccess: unknown access level %q", s)
	}
}

// AccessGrant is an explicit, non-transferable authorization for exactly one
// (user, case, level) triple. Grants are created and expire; they are never
// updated or deleted.
type AccessGrant struct {
	UserID    string
	CaseID    string
	Level     AccessLevel
	GrantedBy string
	GrantedAt time.Time
	ExpiresAt *time.Time
	Reason    string
}

// ActiveAt reports whether the grant is honored at the given instant: an
// unset expiry never expires, otherwise the expiry must be strictly in the
// future.
func (g AccessGrant) ActiveAt(now time.Time) bool {
	return g.ExpiresAt == nil || g.ExpiresAt.After(now)
}
