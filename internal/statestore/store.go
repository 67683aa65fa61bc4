package statestore

import (
	"context"
	"errors"
	"strings"
)

// Sep joins path segments in the hierarchical key space.
const Sep = ":"

// ErrUnavailable is wrapped around every backend failure so callers can
// treat the store as down regardless of the underlying driver error.
var ErrUnavailable = errors.New("state store unavailable")

// Store is the persistent hierarchical state store. A symbol owns one
// subtree; each metric is a leaf under it. The reconciler is the only
// writer and depends on exactly these four primitives.
type Store interface {
	// EnsureLeaf creates the leaf at path if absent, leaving any existing
	// value untouched. Idempotent.
	EnsureLeaf(ctx context.Context, path string, metadata map[string]string) error

	// WriteLeaf sets the leaf's value. When ack is true the write is
	// confirmed by the backend before returning.
	WriteLeaf(ctx context.Context, path string, value string, ack bool) error

	// DeleteSubtree removes the subtree rooted at path, including path
	// itself if it is a leaf.
	DeleteSubtree(ctx context.Context, path string) error

	// ListSubtrees returns the distinct child segment names directly under
	// prefix, sorted.
	ListSubtrees(ctx context.Context, prefix string) ([]string, error)
}

// Path joins segments into a store path.
func Path(segments ...string) string {
	return strings.Join(segments, Sep)
}
