// Package provider defines the enrichment provider collaborator: a
// closed set of named enrichment capabilities dispatched through a
// single interface. Adding a provider is a compile-time change, not a
// string key into a map.
package provider

import (
	"context"
	"fmt"
)

// Kind identifies one enrichment capability.
type Kind int

// The closed set of enrichment providers.
const (
	LinkedInFull Kind = iota
	EmailFull
	CompanyOnly
	MatchProspect
	ContactOnly
	ProfileOnly
)

// wireNames are the function names used in saved column configs; they
// must not change.
var wireNames = map[Kind]string{
	LinkedInFull:  "fullEnrichFromLinkedIn",
	EmailFull:     "fullEnrichFromEmail",
	CompanyOnly:   "enrichCompanyOnly",
	MatchProspect: "matchProspect",
	ContactOnly:   "enrichProspectContact",
	ProfileOnly:   "enrichProspectProfile",
}

// String returns the wire name of the kind.
func (k Kind) String() string {
	if s, ok := wireNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Valid reports whether the kind is a member of the closed set.
func (k Kind) Valid() bool {
	_, ok := wireNames[k]
	return ok
}

// ParseKind resolves a wire name to its Kind.
func ParseKind(name string) (Kind, error) {
	for k, s := range wireNames {
		if s == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown enrichment provider %q", name)
}

// Kinds returns every provider kind in declaration order.
func Kinds() []Kind {
	return []Kind{LinkedInFull, EmailFull, CompanyOnly, MatchProspect, ContactOnly, ProfileOnly}
}

// Provider executes enrichment calls. Implementations must be safe for
// concurrent use; the engine fans out batches of calls.
type Provider interface {
	// Enrich calls the capability identified by kind with the row's
	// input value and returns the structured result.
	Enrich(ctx context.Context, kind Kind, input string) (map[string]any, error)
}
