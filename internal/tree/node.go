// Package tree implements the ordered, self-referencing hierarchy shared by pages,
// navigation items and menu items.
package tree

import "strings"

// Node is the read side every tree record exposes.
type Node interface {
	NodeID() string
	NodeParentID() *string
	NodeOrder() int
	PathSegment() string
}

// Record is satisfied by a pointer to a gorm model that participates in a tree.
type Record[E any] interface {
	*E
	Node
	SetParentID(id *string)
	SetOrder(order int)
}

// OrderItem is one entry of a nested reorder specification. Position in the slice
// becomes the order column; Children are placed below the item.
type OrderItem struct {
	ID       string      `json:"id"`
	Children []OrderItem `json:"children,omitempty"`
}

// Placement is the parent and order a reorder assigns to a single node.
type Placement struct {
	ID       string
	ParentID *string
	Order    int
}

// JoinPath builds a full slug from root-first segments. Empty segments are skipped so
// a root with an empty slug maps to "/".
func JoinPath(segments []string) string {
	parts := make([]string, 0, len(segments))
	for _, segment := range segments {
		segment = strings.Trim(segment, "/")
		if segment == "" {
			continue
		}
		parts = append(parts, segment)
	}
	return "/" + strings.Join(parts, "/")
}

func sameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
