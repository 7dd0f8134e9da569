package finality

import (
	"fmt"

	"github.com/tispark/tispark/core/types"
)

// AuthoritySet is the trusted authority roster plus the optional emergency
// finalizer key. It is never modified after construction.
type AuthoritySet struct {
	authorities []types.PublicKey
	emergency   *types.PublicKey
}

// NewAuthoritySet copies authorities and emergency into a new set. A set
// must contain at least one authority and no duplicates. emergency may be
// nil.
func NewAuthoritySet(authorities []types.PublicKey, emergency *types.PublicKey) (*AuthoritySet, error) {
	if len(authorities) == 0 {
		return nil, ErrEmptyAuthoritySet
	}
	seen := make(map[types.PublicKey]struct{}, len(authorities))
	for _, a := range authorities {
		if _, dup := seen[a]; dup {
			return nil, fmt.Errorf("finality: duplicate authority %s", a)
		}
		seen[a] = struct{}{}
	}
	set := &AuthoritySet{authorities: append([]types.PublicKey(nil), authorities...)}
	if emergency != nil {
		key := *emergency
		set.emergency = &key
	}
	return set, nil
}

// Len returns the number of authorities.
func (s *AuthoritySet) Len() int { return len(s.authorities) }

// Authorities returns a copy of the authority keys.
func (s *AuthoritySet) Authorities() []types.PublicKey {
	return append([]types.PublicKey(nil), s.authorities...)
}

// Emergency returns the emergency key and whether one is installed.
func (s *AuthoritySet) Emergency() (types.PublicKey, bool) {
	if s.emergency == nil {
		return types.PublicKey{}, false
	}
	return *s.emergency, true
}

// AuthorityView is the roster a single proof is verified against: the
// caller's ordering of the trusted keys, which fixes the signature indices.
type AuthorityView struct {
	Authorities []types.PublicKey
	Emergency   *types.PublicKey
}

// SetupAuthorityView checks that claimed is the trusted roster, possibly
// reordered, and returns a view in the claimed order. The sets must have
// the same size and every claimed key must be trusted and appear once.
func SetupAuthorityView(trusted, claimed []types.PublicKey, emergency *types.PublicKey) (*AuthorityView, error) {
	if len(claimed) != len(trusted) {
		return nil, fmt.Errorf("%w: %d claimed, %d trusted", ErrUntrustedAuthorities, len(claimed), len(trusted))
	}
	known := make(map[types.PublicKey]bool, len(trusted))
	for _, a := range trusted {
		known[a] = false
	}
	for _, c := range claimed {
		used, ok := known[c]
		if !ok {
			return nil, fmt.Errorf("%w: %s is not trusted", ErrUntrustedAuthorities, c)
		}
		if used {
			return nil, fmt.Errorf("%w: %s claimed twice", ErrUntrustedAuthorities, c)
		}
		known[c] = true
	}
	return &AuthorityView{
		Authorities: append([]types.PublicKey(nil), claimed...),
		Emergency:   emergency,
	}, nil
}
