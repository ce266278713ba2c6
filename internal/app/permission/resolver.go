package permission

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnauthenticated is returned when no user is attached to the request.
// Callers must not treat it as an empty grant set.
var ErrUnauthenticated = errors.New("unauthenticated user")

// Source loads raw grants for a user.
type Source interface {
	DirectCodenames(ctx context.Context, userID uint) ([]string, error)
	GroupCodenames(ctx context.Context, userID uint) ([]string, error)
}

// Resolver computes effective capability sets.
type Resolver struct {
	source Source
}

// NewResolver returns a Resolver backed by source.
func NewResolver(source Source) *Resolver {
	return &Resolver{source: source}
}

// Resolve returns the union of direct and group-derived grants for userID.
// A zero userID means the caller skipped authentication.
func (r *Resolver) Resolve(ctx context.Context, userID uint) (Set, error) {
	if userID == 0 {
		return Set{}, ErrUnauthenticated
	}

	direct, err := r.source.DirectCodenames(ctx, userID)
	if err != nil {
		return Set{}, fmt.Errorf("load direct permissions: %w", err)
	}
	group, err := r.source.GroupCodenames(ctx, userID)
	if err != nil {
		return Set{}, fmt.Errorf("load group permissions: %w", err)
	}

	all := make([]Codename, 0, len(direct)+len(group))
	for _, c := range direct {
		all = append(all, Codename(c))
	}
	for _, c := range group {
		all = append(all, Codename(c))
	}
	return NewSet(all...), nil
}
