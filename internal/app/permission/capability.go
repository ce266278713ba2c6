package permission

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Codename identifies a single grant.
type Codename string

const (
	// OriginalAccess allows the original file to be exposed.
	OriginalAccess Codename = "can_access_original_image"
	// GenerateLink allows minting expiring links.
	GenerateLink Codename = "can_generate_expiring_link"

	// ThumbnailPrefix starts every thumbnail grant: "thumbnail:<height>".
	ThumbnailPrefix = "thumbnail:"
)

// ErrMalformedCodename reports a thumbnail grant without a usable height.
var ErrMalformedCodename = errors.New("malformed permission codename")

// ThumbnailAccess returns the grant for the thumbnail of the given height.
func ThumbnailAccess(height int) Codename {
	return Codename(ThumbnailPrefix + strconv.Itoa(height))
}

// Set is an immutable, deduplicated capability set. Iteration order is
// lexical and therefore stable for the lifetime of the value.
type Set struct {
	codenames []Codename
	index     map[Codename]struct{}
}

// NewSet builds a Set from the given codenames, dropping duplicates.
func NewSet(codenames ...Codename) Set {
	index := make(map[Codename]struct{}, len(codenames))
	unique := make([]Codename, 0, len(codenames))
	for _, c := range codenames {
		if _, ok := index[c]; ok {
			continue
		}
		index[c] = struct{}{}
		unique = append(unique, c)
	}
	sort.Slice(unique, func(i, j int) bool { return unique[i] < unique[j] })
	return Set{codenames: unique, index: index}
}

// Has reports whether the exact codename is held.
func (s Set) Has(c Codename) bool {
	_, ok := s.index[c]
	return ok
}

// WithPrefix returns every held codename starting with prefix.
func (s Set) WithPrefix(prefix string) []Codename {
	var out []Codename
	for _, c := range s.codenames {
		if strings.HasPrefix(string(c), prefix) {
			out = append(out, c)
		}
	}
	return out
}

// Codenames returns a copy of all held codenames.
func (s Set) Codenames() []Codename {
	out := make([]Codename, len(s.codenames))
	copy(out, s.codenames)
	return out
}

// Len returns the number of distinct grants.
func (s Set) Len() int {
	return len(s.codenames)
}

// ThumbnailHeights parses every thumbnail grant. A grant with an empty or
// non-positive height is a corrupt permission record and fails the whole call.
func (s Set) ThumbnailHeights() ([]int, error) {
	grants := s.WithPrefix(ThumbnailPrefix)
	heights := make([]int, 0, len(grants))
	for _, c := range grants {
		h, err := ParseThumbnailHeight(c)
		if err != nil {
			return nil, err
		}
		heights = append(heights, h)
	}
	sort.Ints(heights)
	return heights, nil
}

// ParseThumbnailHeight extracts H from "thumbnail:H".
func ParseThumbnailHeight(c Codename) (int, error) {
	raw, ok := strings.CutPrefix(string(c), ThumbnailPrefix)
	if !ok {
		return 0, fmt.Errorf("%w: %q is not a thumbnail grant", ErrMalformedCodename, c)
	}
	h, err := strconv.Atoi(raw)
	if err != nil || h <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedCodename, c)
	}
	return h, nil
}
