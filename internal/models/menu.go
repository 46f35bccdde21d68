package models

import (
	"strings"

	"gorm.io/datatypes"
)

// Menu groups a tree of menu items under a unique key (e.g. "main", "footer").
type Menu struct {
	BaseModel

	Title string     `gorm:"not null" json:"title"`
	Key   string     `gorm:"size:128;uniqueIndex" json:"key"`
	Items []MenuItem `gorm:"foreignKey:MenuID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

// MenuLinkType enumerates the link targets a menu item may reference.
type MenuLinkType string

const (
	MenuLinkURL   MenuLinkType = "url"
	MenuLinkPage  MenuLinkType = "page"
	MenuLinkRoute MenuLinkType = "route"
)

// MenuLink is stored as JSON on the menu item.
type MenuLink struct {
	Type   MenuLinkType `json:"type"`
	Value  string       `json:"value,omitempty"`
	PageID string       `json:"page_id,omitempty"`
}

// MenuItem is a node of a menu tree. Items of different menus never share a tree.
type MenuItem struct {
	BaseModel

	MenuID      string                       `gorm:"type:uuid;not null;index" json:"menu_id"`
	ParentID    *string                      `gorm:"type:uuid;index" json:"parent_id"`
	OrderColumn int                          `gorm:"column:order_column;default:0;index" json:"order_column"`
	Title       string                       `gorm:"not null" json:"title"`
	Link        datatypes.JSONType[MenuLink] `json:"link"`
	NewTab      bool                         `gorm:"default:false" json:"new_tab"`
}

func (m *MenuItem) NodeID() string { return m.ID }
func (m *MenuItem) NodeParentID() *string { return m.ParentID }
func (m *MenuItem) NodeOrder() int { return m.OrderColumn }
func (m *MenuItem) SetParentID(id *string) { m.ParentID = id }
func (m *MenuItem) SetOrder(order int) { m.OrderColumn = order }

func (m *MenuItem) PathSegment() string {
	return strings.ToLower(strings.Join(strings.Fields(m.Title), "-"))
}

func (m *MenuItem) AttachableRef() AttachableRef {
	return AttachableRef{Type: AttachableMenuItem, ID: m.ID}
}
