package statestore

import (
	"context"
	"testing"
)

func TestMemoryStore_EnsureLeafIsIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.EnsureLeaf(ctx, "quotes:AAPL:price", map[string]string{"metric": "price"}); err != nil {
		t.Fatalf("EnsureLeaf() error: %v", err)
	}
	if err := s.WriteLeaf(ctx, "quotes:AAPL:price", "100", true); err != nil {
		t.Fatalf("WriteLeaf() error: %v", err)
	}

	// Re-ensuring must not clobber the existing value.
	if err := s.EnsureLeaf(ctx, "quotes:AAPL:price", nil); err != nil {
		t.Fatalf("EnsureLeaf() error: %v", err)
	}
	if v, _ := s.Leaf("quotes:AAPL:price"); v != "100" {
		t.Errorf("Leaf() = %q, want 100 after re-ensure", v)
	}
}

func TestMemoryStore_DeleteSubtree(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for _, p := range []string{"quotes:AAPL:price", "quotes:AAPL:volume", "quotes:MSFT:price"} {
		if err := s.WriteLeaf(ctx, p, "1", true); err != nil {
			t.Fatalf("WriteLeaf(%s) error: %v", p, err)
		}
	}

	if err := s.DeleteSubtree(ctx, "quotes:AAPL"); err != nil {
		t.Fatalf("DeleteSubtree() error: %v", err)
	}

	if _, ok := s.Leaf("quotes:AAPL:price"); ok {
		t.Error("deleted subtree leaf still present")
	}
	if _, ok := s.Leaf("quotes:MSFT:price"); !ok {
		t.Error("sibling subtree leaf was deleted")
	}
}

func TestMemoryStore_ListSubtrees(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for _, p := range []string{
		"quotes:MSFT:price",
		"quotes:AAPL:price",
		"quotes:AAPL:volume",
		"other:GOOG:price",
	} {
		if err := s.WriteLeaf(ctx, p, "1", true); err != nil {
			t.Fatalf("WriteLeaf(%s) error: %v", p, err)
		}
	}

	got, err := s.ListSubtrees(ctx, "quotes")
	if err != nil {
		t.Fatalf("ListSubtrees() error: %v", err)
	}

	want := []string{"AAPL", "MSFT"}
	if len(got) != len(want) {
		t.Fatalf("ListSubtrees() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ListSubtrees()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestPath(t *testing.T) {
	if got := Path("quotes", "AAPL", "price"); got != "quotes:AAPL:price" {
		t.Errorf("Path() = %q, want quotes:AAPL:price", got)
	}
}
