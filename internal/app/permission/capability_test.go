package permission

import (
	"errors"
	"testing"
)

func TestNewSet_Deduplicates(t *testing.T) {
	s := NewSet(ThumbnailAccess(200), OriginalAccess, ThumbnailAccess(200), OriginalAccess)
	if s.Len() != 2 {
		t.Fatalf("expected 2 distinct grants, got %d (%v)", s.Len(), s.Codenames())
	}
}

func TestSet_Has(t *testing.T) {
	s := NewSet(ThumbnailAccess(200))
	if !s.Has("thumbnail:200") {
		t.Fatal("expected thumbnail:200 to be held")
	}
	if s.Has("thumbnail:20") {
		t.Fatal("Has must be an exact match")
	}
	if s.Has(OriginalAccess) {
		t.Fatal("unexpected original access")
	}

	var empty Set
	if empty.Has(GenerateLink) {
		t.Fatal("zero Set must hold nothing")
	}
}

func TestSet_WithPrefixStableOrder(t *testing.T) {
	s := NewSet(ThumbnailAccess(400), GenerateLink, ThumbnailAccess(200), "thumbnail:1000")

	first := s.WithPrefix(ThumbnailPrefix)
	second := s.WithPrefix(ThumbnailPrefix)
	if len(first) != 3 {
		t.Fatalf("expected 3 thumbnail grants, got %v", first)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("order changed between calls: %v vs %v", first, second)
		}
	}
}

func TestSet_ThumbnailHeights(t *testing.T) {
	s := NewSet(ThumbnailAccess(400), ThumbnailAccess(200), OriginalAccess)
	heights, err := s.ThumbnailHeights()
	if err != nil {
		t.Fatalf("ThumbnailHeights error: %v", err)
	}
	if len(heights) != 2 || heights[0] != 200 || heights[1] != 400 {
		t.Fatalf("unexpected heights %v", heights)
	}
}

func TestSet_ThumbnailHeightsMalformed(t *testing.T) {
	for _, bad := range []Codename{"thumbnail:", "thumbnail:abc", "thumbnail:-5", "thumbnail:0"} {
		s := NewSet(ThumbnailAccess(200), bad)
		if _, err := s.ThumbnailHeights(); !errors.Is(err, ErrMalformedCodename) {
			t.Fatalf("%q: expected ErrMalformedCodename, got %v", bad, err)
		}
	}
}
