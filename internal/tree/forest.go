package tree

import (
	"fmt"
	"sort"

	"go.uber.org/multierr"

	apperrors "github.com/macrame/admin/pkg/errors"
)

const (
	noParent       = -1
	danglingParent = -2
)

// Forest is an in-memory arena of tree nodes indexed by id. Relations are kept as
// slice indexes so traversal never follows live pointers.
type Forest[E any, P Record[E]] struct {
	nodes    []E
	index    map[string]int
	parent   []int
	children [][]int
	roots    []int
}

// Branch is a node with its ordered children, used for nested presentation.
type Branch[E any] struct {
	Node     E            `json:"node"`
	Children []*Branch[E] `json:"children"`
}

// NewForest indexes nodes. Siblings are ordered by their order column; ties keep the
// order of the input slice.
func NewForest[E any, P Record[E]](nodes []E) *Forest[E, P] {
	f := &Forest[E, P]{
		nodes:    append([]E(nil), nodes...),
		index:    make(map[string]int, len(nodes)),
		parent:   make([]int, len(nodes)),
		children: make([][]int, len(nodes)),
	}

	for i := range f.nodes {
		f.index[f.ptr(i).NodeID()] = i
	}

	for i := range f.nodes {
		parentID := f.ptr(i).NodeParentID()
		switch {
		case parentID == nil:
			f.parent[i] = noParent
			f.roots = append(f.roots, i)
		default:
			p, ok := f.index[*parentID]
			if !ok {
				f.parent[i] = danglingParent
				continue
			}
			f.parent[i] = p
			f.children[p] = append(f.children[p], i)
		}
	}

	f.sortLevel(f.roots)
	for i := range f.children {
		f.sortLevel(f.children[i])
	}
	return f
}

func (f *Forest[E, P]) ptr(i int) P {
	return P(&f.nodes[i])
}

func (f *Forest[E, P]) sortLevel(level []int) {
	sort.SliceStable(level, func(a, b int) bool {
		return f.ptr(level[a]).NodeOrder() < f.ptr(level[b]).NodeOrder()
	})
}

func (f *Forest[E, P]) collect(level []int) []E {
	out := make([]E, 0, len(level))
	for _, i := range level {
		out = append(out, f.nodes[i])
	}
	return out
}

// Len returns the number of indexed nodes.
func (f *Forest[E, P]) Len() int {
	return len(f.nodes)
}

// Node looks up a node by id.
func (f *Forest[E, P]) Node(id string) (E, bool) {
	i, ok := f.index[id]
	if !ok {
		var zero E
		return zero, false
	}
	return f.nodes[i], true
}

// Roots returns the nodes without a parent in sibling order.
func (f *Forest[E, P]) Roots() []E {
	return f.collect(f.roots)
}

// Children returns the direct children of id in sibling order.
func (f *Forest[E, P]) Children(id string) []E {
	i, ok := f.index[id]
	if !ok {
		return []E{}
	}
	return f.collect(f.children[i])
}

// Parent returns the parent of id, nil for a root.
func (f *Forest[E, P]) Parent(id string) (*E, error) {
	i, ok := f.index[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	switch p := f.parent[i]; p {
	case noParent:
		return nil, nil
	case danglingParent:
		return nil, brokenParent(id, *f.ptr(i).NodeParentID())
	default:
		parent := f.nodes[p]
		return &parent, nil
	}
}

// Ancestors returns the chain from the direct parent of id up to its root.
func (f *Forest[E, P]) Ancestors(id string) ([]E, error) {
	chain, err := f.chain(id)
	if err != nil {
		return nil, err
	}
	return f.collect(chain[1:]), nil
}

// Depth is zero for roots.
func (f *Forest[E, P]) Depth(id string) (int, error) {
	chain, err := f.chain(id)
	if err != nil {
		return 0, err
	}
	return len(chain) - 1, nil
}

// FullSlug joins the path segments from the root down to id.
func (f *Forest[E, P]) FullSlug(id string) (string, error) {
	chain, err := f.chain(id)
	if err != nil {
		return "", err
	}
	segments := make([]string, 0, len(chain))
	for i := len(chain) - 1; i >= 0; i-- {
		segments = append(segments, f.ptr(chain[i]).PathSegment())
	}
	return JoinPath(segments), nil
}

// chain returns the indexes from id (first) to its root (last).
func (f *Forest[E, P]) chain(id string) ([]int, error) {
	start, ok := f.index[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}

	chain := []int{start}
	visited := map[int]struct{}{start: {}}
	for current := start; ; {
		switch p := f.parent[current]; p {
		case noParent:
			return chain, nil
		case danglingParent:
			return nil, brokenParent(f.ptr(current).NodeID(), *f.ptr(current).NodeParentID())
		default:
			if _, seen := visited[p]; seen {
				return nil, apperrors.ErrBrokenHierarchy.WithInternal(
					fmt.Errorf("cycle through node %s", f.ptr(p).NodeID()))
			}
			visited[p] = struct{}{}
			chain = append(chain, p)
			current = p
		}
	}
}

// Validate checks every node reaches a root. All problems are reported together.
func (f *Forest[E, P]) Validate() error {
	var errs error
	for i := range f.nodes {
		if _, err := f.chain(f.ptr(i).NodeID()); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("node %s: %w", f.ptr(i).NodeID(), err))
		}
	}
	return errs
}

// Branches returns the nested tree below the roots. Nodes that cannot reach a root
// are left out.
func (f *Forest[E, P]) Branches() []*Branch[E] {
	var build func(level []int) []*Branch[E]
	build = func(level []int) []*Branch[E] {
		out := make([]*Branch[E], 0, len(level))
		for _, i := range level {
			out = append(out, &Branch[E]{
				Node:     f.nodes[i],
				Children: build(f.children[i]),
			})
		}
		return out
	}
	return build(f.roots)
}

// Walk visits reachable nodes depth first with their depth. Returning false from fn
// skips the node's subtree.
func (f *Forest[E, P]) Walk(fn func(node E, depth int) bool) {
	var visit func(level []int, depth int)
	visit = func(level []int, depth int) {
		for _, i := range level {
			if fn(f.nodes[i], depth) {
				visit(f.children[i], depth+1)
			}
		}
	}
	visit(f.roots, 0)
}

func brokenParent(id, parentID string) error {
	return apperrors.ErrBrokenHierarchy.WithInternal(
		fmt.Errorf("node %s references missing parent %s", id, parentID))
}
