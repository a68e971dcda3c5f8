package correlation

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// TestLinkRegistry_AddIsIdempotent tests that re-adding a pair leaves one entry.
// Follows AAA (Arrange, Act, Assert) pattern.
func TestLinkRegistry_AddIsIdempotent(t *testing.T) {
	// Arrange
	r := NewLinkRegistry()

	// Act
	r.Add("c1a2b3", "9")
	r.Add("c1a2b3", "9")

	// Assert
	if r.Count("c1a2b3") != 1 {
		t.Errorf("expected 1 value, got %d", r.Count("c1a2b3"))
	}
	if r.Len() != 1 {
		t.Errorf("expected 1 key, got %d", r.Len())
	}
}

// TestLinkRegistry_GetSortedSet tests that values come back as a sorted set.
func TestLinkRegistry_GetSortedSet(t *testing.T) {
	r := NewLinkRegistry()
	r.Add("10", "3")
	r.Add("10", "1")
	r.Add("10", "2")
	r.Add("10", "1")

	if diff := cmp.Diff([]string{"1", "2", "3"}, r.Get("10")); diff != "" {
		t.Errorf("Get mismatch (-want +got):\n%s", diff)
	}
}

// TestLinkRegistry_GetMissingKey tests that an absent key yields an empty set.
func TestLinkRegistry_GetMissingKey(t *testing.T) {
	r := NewLinkRegistry()

	got := r.Get("nope")

	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", got)
	}
	if r.Count("nope") != 0 {
		t.Errorf("expected count 0, got %d", r.Count("nope"))
	}
}
