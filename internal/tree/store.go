package tree

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	apperrors "github.com/macrame/admin/pkg/errors"
	"github.com/macrame/admin/pkg/logger"
	"github.com/macrame/admin/pkg/metrics"
)

const siblingOrder = "order_column ASC, created_at ASC, id ASC"

// Scope restricts a store to a subset of a table, e.g. the items of one menu.
type Scope func(*gorm.DB) *gorm.DB

// Store persists one tree in a gorm table. All structural mutations run in a single
// transaction.
type Store[E any, P Record[E]] struct {
	db     *gorm.DB
	name   string
	scopes []Scope
}

type slot struct {
	ID          string
	ParentID    *string
	OrderColumn int
}

// NewStore creates a store for the table backing E. name labels metrics and logs.
func NewStore[E any, P Record[E]](db *gorm.DB, name string, scopes ...Scope) *Store[E, P] {
	return &Store[E, P]{db: db, name: name, scopes: scopes}
}

// WithScope returns a copy of the store narrowed by the extra scopes.
func (s *Store[E, P]) WithScope(scopes ...Scope) *Store[E, P] {
	merged := make([]Scope, 0, len(s.scopes)+len(scopes))
	merged = append(merged, s.scopes...)
	merged = append(merged, scopes...)
	return &Store[E, P]{db: s.db, name: s.name, scopes: merged}
}

// Name returns the label the store was created with.
func (s *Store[E, P]) Name() string {
	return s.name
}

func (s *Store[E, P]) scoped(db *gorm.DB) *gorm.DB {
	q := db.Model(new(E))
	for _, scope := range s.scopes {
		q = q.Scopes(scope)
	}
	return q
}

func underParent(db *gorm.DB, parentID *string) *gorm.DB {
	if parentID == nil {
		return db.Where("parent_id IS NULL")
	}
	return db.Where("parent_id = ?", *parentID)
}

// Find loads a node by id.
func (s *Store[E, P]) Find(ctx context.Context, id string) (*E, error) {
	return s.find(s.db.WithContext(ctx), id)
}

func (s *Store[E, P]) find(db *gorm.DB, id string) (*E, error) {
	var node E
	if err := s.scoped(db).Where("id = ?", id).First(&node).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound(fmt.Sprintf("%s node %s not found", s.name, id))
		}
		return nil, fmt.Errorf("find %s node: %w", s.name, err)
	}
	return &node, nil
}

// All returns every node of the tree in sibling order.
func (s *Store[E, P]) All(ctx context.Context) ([]E, error) {
	var nodes []E
	if err := s.scoped(s.db.WithContext(ctx)).Order(siblingOrder).Find(&nodes).Error; err != nil {
		return nil, fmt.Errorf("list %s nodes: %w", s.name, err)
	}
	return nodes, nil
}

// Children returns the direct children of parentID in sibling order. A nil parentID
// lists the roots.
func (s *Store[E, P]) Children(ctx context.Context, parentID *string) ([]E, error) {
	var nodes []E
	q := underParent(s.scoped(s.db.WithContext(ctx)), parentID)
	if err := q.Order(siblingOrder).Find(&nodes).Error; err != nil {
		return nil, fmt.Errorf("list %s children: %w", s.name, err)
	}
	return nodes, nil
}

// Roots lists the nodes without a parent. An empty tree yields an empty slice.
func (s *Store[E, P]) Roots(ctx context.Context) ([]E, error) {
	roots, err := s.Children(ctx, nil)
	if err != nil {
		return nil, err
	}
	if roots == nil {
		roots = []E{}
	}
	return roots, nil
}

// Parent returns the parent of id, or nil when id is a root.
func (s *Store[E, P]) Parent(ctx context.Context, id string) (*E, error) {
	db := s.db.WithContext(ctx)
	node, err := s.find(db, id)
	if err != nil {
		return nil, err
	}

	parentID := P(node).NodeParentID()
	if parentID == nil {
		return nil, nil
	}

	parent, err := s.find(db, *parentID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, brokenParent(id, *parentID)
	}
	return parent, err
}

// Ancestors returns the chain from the node itself (first) up to its root (last).
func (s *Store[E, P]) Ancestors(ctx context.Context, id string) ([]E, error) {
	return s.lineage(s.db.WithContext(ctx), id)
}

func (s *Store[E, P]) lineage(db *gorm.DB, id string) ([]E, error) {
	node, err := s.find(db, id)
	if err != nil {
		return nil, err
	}

	chain := []E{*node}
	visited := map[string]struct{}{id: {}}
	for current := P(node); current.NodeParentID() != nil; {
		parentID := *current.NodeParentID()
		if _, seen := visited[parentID]; seen {
			return nil, apperrors.ErrBrokenHierarchy.WithInternal(
				fmt.Errorf("cycle through %s node %s", s.name, parentID))
		}
		visited[parentID] = struct{}{}

		parent, err := s.find(db, parentID)
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, brokenParent(current.NodeID(), parentID)
		}
		if err != nil {
			return nil, err
		}
		chain = append(chain, *parent)
		current = P(parent)
	}
	return chain, nil
}

// Root returns the topmost ancestor of id, which is the node itself for roots.
func (s *Store[E, P]) Root(ctx context.Context, id string) (*E, error) {
	chain, err := s.Ancestors(ctx, id)
	if err != nil {
		return nil, err
	}
	root := chain[len(chain)-1]
	return &root, nil
}

// FullSlug joins the path segments from the root down to id.
func (s *Store[E, P]) FullSlug(ctx context.Context, id string) (string, error) {
	chain, err := s.Ancestors(ctx, id)
	if err != nil {
		return "", err
	}
	segments := make([]string, len(chain))
	for i := range chain {
		segments[len(chain)-1-i] = P(&chain[i]).PathSegment()
	}
	return JoinPath(segments), nil
}

// Forest loads the whole tree into memory.
func (s *Store[E, P]) Forest(ctx context.Context) (*Forest[E, P], error) {
	nodes, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	return NewForest[E, P](nodes), nil
}

// Tree returns the nested representation of the whole tree.
func (s *Store[E, P]) Tree(ctx context.Context) ([]*Branch[E], error) {
	forest, err := s.Forest(ctx)
	if err != nil {
		return nil, err
	}
	return forest.Branches(), nil
}

func (s *Store[E, P]) nextOrder(db *gorm.DB, parentID *string) (int, error) {
	var next int
	q := underParent(s.scoped(db), parentID).Select("COALESCE(MAX(order_column), -1) + 1")
	if err := q.Scan(&next).Error; err != nil {
		return 0, fmt.Errorf("next %s order: %w", s.name, err)
	}
	return next, nil
}

func (s *Store[E, P]) requireParent(db *gorm.DB, parentID *string) error {
	if parentID == nil {
		return nil
	}
	if _, err := s.find(db, *parentID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NewNotFound(fmt.Sprintf("parent %s not found", *parentID))
		}
		return err
	}
	return nil
}

// Insert creates node as the last child of its parent.
func (s *Store[E, P]) Insert(ctx context.Context, node P) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.requireParent(tx, node.NodeParentID()); err != nil {
			return err
		}
		next, err := s.nextOrder(tx, node.NodeParentID())
		if err != nil {
			return err
		}
		node.SetOrder(next)
		if err := tx.Create(node).Error; err != nil {
			return fmt.Errorf("create %s node: %w", s.name, err)
		}
		return nil
	})
}

// Move re-parents id and appends it after its new siblings. The former siblings are
// renumbered densely. Moving a node below itself or one of its descendants fails
// with ErrCycle.
func (s *Store[E, P]) Move(ctx context.Context, id string, parentID *string) (*E, error) {
	var moved *E
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		node, err := s.find(tx, id)
		if err != nil {
			return err
		}
		current := P(node)
		if sameParent(current.NodeParentID(), parentID) {
			moved = node
			return nil
		}

		if parentID != nil {
			if *parentID == id {
				return apperrors.ErrCycle
			}
			if err := s.requireParent(tx, parentID); err != nil {
				return err
			}
			chain, err := s.lineage(tx, *parentID)
			if err != nil {
				return err
			}
			for i := range chain {
				if P(&chain[i]).NodeID() == id {
					return apperrors.ErrCycle
				}
			}
		}

		next, err := s.nextOrder(tx, parentID)
		if err != nil {
			return err
		}
		previous := current.NodeParentID()
		if err := s.place(tx, Placement{ID: id, ParentID: parentID, Order: next}); err != nil {
			return err
		}
		if err := s.compact(tx, previous, nil); err != nil {
			return err
		}

		current.SetParentID(parentID)
		current.SetOrder(next)
		moved = node
		return nil
	})
	if err != nil {
		return nil, err
	}
	return moved, nil
}

// UpdateOrder applies a nested order specification below parentID. Every referenced
// node must exist in the tree and the result must stay acyclic; otherwise nothing is
// written. Siblings left out of the specification follow the listed ones.
func (s *Store[E, P]) UpdateOrder(ctx context.Context, parentID *string, items []OrderItem) (err error) {
	defer func() {
		metrics.TreeReorders.WithLabelValues(s.name, metrics.Result(err)).Inc()
	}()

	placements, err := Flatten(parentID, items)
	if err != nil {
		return err
	}
	if len(placements) == 0 {
		return nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.requireParent(tx, parentID); err != nil {
			return err
		}

		var slots []slot
		if err := s.scoped(tx).Select("id", "parent_id", "order_column").Find(&slots).Error; err != nil {
			return fmt.Errorf("load %s nodes: %w", s.name, err)
		}
		parents := make(map[string]*string, len(slots))
		for _, sl := range slots {
			parents[sl.ID] = sl.ParentID
		}

		var missing []string
		for _, p := range placements {
			if _, ok := parents[p.ID]; !ok {
				missing = append(missing, p.ID)
			}
		}
		if len(missing) > 0 {
			return apperrors.ErrNotFound.WithInternal(
				fmt.Errorf("unknown %s nodes: %s", s.name, strings.Join(missing, ", ")))
		}

		// parents whose child list changes, in first-seen order
		touched := make([]*string, 0)
		leading := make(map[string][]string)
		remember := func(parentID *string) {
			key := parentKey(parentID)
			if _, ok := leading[key]; !ok {
				leading[key] = nil
				touched = append(touched, parentID)
			}
		}

		for _, p := range placements {
			remember(parents[p.ID])
			remember(p.ParentID)
			parents[p.ID] = p.ParentID
			key := parentKey(p.ParentID)
			leading[key] = append(leading[key], p.ID)
		}
		for _, p := range placements {
			if hasCycle(parents, p.ID) {
				return apperrors.ErrCycle.WithInternal(fmt.Errorf("%s node %s", s.name, p.ID))
			}
		}

		for _, p := range placements {
			if err := s.place(tx, p); err != nil {
				return err
			}
		}
		for _, parent := range touched {
			if err := s.compact(tx, parent, leading[parentKey(parent)]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.WithModule("tree").Debug("tree reordered",
		zap.String("tree", s.name),
		zap.Int("nodes", len(placements)),
	)
	return nil
}

// Delete removes id. Its children move up to the deleted node's parent and are
// appended after their new siblings.
func (s *Store[E, P]) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		node, err := s.find(tx, id)
		if err != nil {
			return err
		}
		parentID := P(node).NodeParentID()

		var children []slot
		if err := underParent(s.scoped(tx), &id).Select("id", "parent_id", "order_column").
			Order(siblingOrder).Find(&children).Error; err != nil {
			return fmt.Errorf("load %s children: %w", s.name, err)
		}

		next, err := s.nextOrder(tx, parentID)
		if err != nil {
			return err
		}
		for i, child := range children {
			if err := s.place(tx, Placement{ID: child.ID, ParentID: parentID, Order: next + i}); err != nil {
				return err
			}
		}

		if err := tx.Where("id = ?", id).Delete(new(E)).Error; err != nil {
			return fmt.Errorf("delete %s node: %w", s.name, err)
		}
		return s.compact(tx, parentID, nil)
	})
}

func (s *Store[E, P]) place(tx *gorm.DB, p Placement) error {
	err := tx.Model(new(E)).Where("id = ?", p.ID).Updates(map[string]any{
		"parent_id":    p.ParentID,
		"order_column": p.Order,
	}).Error
	if err != nil {
		return fmt.Errorf("place %s node %s: %w", s.name, p.ID, err)
	}
	return nil
}

// compact renumbers the children of parentID from zero. Ids in leading come first in
// the given order, the remaining children keep their relative order.
func (s *Store[E, P]) compact(tx *gorm.DB, parentID *string, leading []string) error {
	var children []slot
	if err := underParent(s.scoped(tx), parentID).Select("id", "parent_id", "order_column").
		Order(siblingOrder).Find(&children).Error; err != nil {
		return fmt.Errorf("load %s siblings: %w", s.name, err)
	}

	present := make(map[string]slot, len(children))
	for _, child := range children {
		present[child.ID] = child
	}

	ordered := make([]slot, 0, len(children))
	used := make(map[string]struct{}, len(leading))
	for _, id := range leading {
		if child, ok := present[id]; ok {
			ordered = append(ordered, child)
			used[id] = struct{}{}
		}
	}
	for _, child := range children {
		if _, ok := used[child.ID]; !ok {
			ordered = append(ordered, child)
		}
	}

	for i, child := range ordered {
		if child.OrderColumn == i {
			continue
		}
		if err := tx.Model(new(E)).Where("id = ?", child.ID).Update("order_column", i).Error; err != nil {
			return fmt.Errorf("renumber %s node %s: %w", s.name, child.ID, err)
		}
	}
	return nil
}

func parentKey(parentID *string) string {
	if parentID == nil {
		return ""
	}
	return *parentID
}
