package models

import "strings"

// NavType describes what a navigation entry points at.
type NavType string

const (
	NavTypeInternal NavType = "internal"
	NavTypeExternal NavType = "external"
	NavTypePage     NavType = "page"
)

// Valid reports whether the nav type is one of the known variants.
func (t NavType) Valid() bool {
	switch t {
	case NavTypeInternal, NavTypeExternal, NavTypePage:
		return true
	}
	return false
}

// NavItem is an entry of the admin navigation tree.
type NavItem struct {
	BaseModel

	ParentID    *string `gorm:"type:uuid;index" json:"parent_id"`
	OrderColumn int     `gorm:"column:order_column;default:0;index" json:"order_column"`
	Title       string  `gorm:"not null" json:"title"`
	Route       string  `json:"route"`
	Type        NavType `gorm:"size:32;default:'internal'" json:"type"`
}

func (n *NavItem) NodeID() string { return n.ID }
func (n *NavItem) NodeParentID() *string { return n.ParentID }
func (n *NavItem) NodeOrder() int { return n.OrderColumn }
func (n *NavItem) SetParentID(id *string) { n.ParentID = id }
func (n *NavItem) SetOrder(order int) { n.OrderColumn = order }

// PathSegment uses the last element of the route.
func (n *NavItem) PathSegment() string {
	route := strings.Trim(n.Route, "/")
	if idx := strings.LastIndex(route, "/"); idx >= 0 {
		return route[idx+1:]
	}
	return route
}

func (n *NavItem) AttachableRef() AttachableRef {
	return AttachableRef{Type: AttachableNavItem, ID: n.ID}
}
