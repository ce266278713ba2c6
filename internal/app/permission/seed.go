package permission

import (
	"context"
	"fmt"
)

// Tier names seeded by SeedDefaultTiers.
const (
	BasicTier      = "BasicTierUsers"
	PremiumTier    = "PremiumTierUsers"
	EnterpriseTier = "EnterpriseTierUsers"
)

// Seeder persists permissions and groups.
type Seeder interface {
	EnsurePermission(ctx context.Context, codename, name string) error
	EnsureGroup(ctx context.Context, name string, codenames ...string) error
}

type definition struct {
	codename Codename
	name     string
}

var defaultPermissions = []definition{
	{ThumbnailAccess(200), "can access 200px thumbnail"},
	{ThumbnailAccess(400), "can access 400px thumbnail"},
	{OriginalAccess, "Can access original image"},
	{GenerateLink, "Can generate expiring link"},
}

// DefaultTiers maps each built-in tier to its grants. Custom tiers are just
// more groups; nothing outside seeding refers to these names.
var DefaultTiers = map[string][]Codename{
	BasicTier:      {ThumbnailAccess(200)},
	PremiumTier:    {ThumbnailAccess(200), ThumbnailAccess(400)},
	EnterpriseTier: {ThumbnailAccess(200), ThumbnailAccess(400), OriginalAccess, GenerateLink},
}

// SeedDefaultTiers creates the built-in permissions and tier groups. It is idempotent.
func SeedDefaultTiers(ctx context.Context, s Seeder) error {
	for _, def := range defaultPermissions {
		if err := s.EnsurePermission(ctx, string(def.codename), def.name); err != nil {
			return fmt.Errorf("seed permission %s: %w", def.codename, err)
		}
	}
	for _, tier := range []string{BasicTier, PremiumTier, EnterpriseTier} {
		grants := DefaultTiers[tier]
		codenames := make([]string, len(grants))
		for i, g := range grants {
			codenames[i] = string(g)
		}
		if err := s.EnsureGroup(ctx, tier, codenames...); err != nil {
			return fmt.Errorf("seed group %s: %w", tier, err)
		}
	}
	return nil
}
