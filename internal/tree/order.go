package tree

import (
	"fmt"
	"strings"

	apperrors "github.com/macrame/admin/pkg/errors"
)

// Flatten converts a nested specification into placements. Top level items are placed
// under parentID. Blank or repeated ids make the specification invalid.
func Flatten(parentID *string, items []OrderItem) ([]Placement, error) {
	var (
		out  []Placement
		seen = make(map[string]struct{})
	)

	var walk func(parent *string, level []OrderItem) error
	walk = func(parent *string, level []OrderItem) error {
		for i, item := range level {
			id := strings.TrimSpace(item.ID)
			if id == "" {
				return apperrors.ErrInvalidOrder.WithMessage("order item without id")
			}
			if _, dup := seen[id]; dup {
				return apperrors.ErrInvalidOrder.WithMessage(fmt.Sprintf("id %s appears more than once", id))
			}
			if parent != nil && *parent == id {
				return apperrors.ErrCycle
			}
			seen[id] = struct{}{}
			out = append(out, Placement{ID: id, ParentID: parent, Order: i})

			if len(item.Children) > 0 {
				childParent := id
				if err := walk(&childParent, item.Children); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if err := walk(parentID, items); err != nil {
		return nil, err
	}
	return out, nil
}

// IDs returns the node ids referenced by the placements in order.
func IDs(placements []Placement) []string {
	ids := make([]string, len(placements))
	for i, p := range placements {
		ids[i] = p.ID
	}
	return ids
}

// hasCycle reports whether following parents from start returns to a visited node.
// Walking stops at roots and at parents outside the map.
func hasCycle(parents map[string]*string, start string) bool {
	visited := map[string]struct{}{start: {}}
	current := parents[start]
	for current != nil {
		if _, seen := visited[*current]; seen {
			return true
		}
		visited[*current] = struct{}{}
		next, ok := parents[*current]
		if !ok {
			return false
		}
		current = next
	}
	return false
}
