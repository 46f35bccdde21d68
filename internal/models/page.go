package models

import (
	"time"

	"gorm.io/datatypes"
)

// Page is a routable content page. Pages form a tree; the full slug of a page is the
// slug chain from its root.
type Page struct {
	BaseModel

	ParentID        *string        `gorm:"type:uuid;index" json:"parent_id"`
	OrderColumn     int            `gorm:"column:order_column;default:0;index" json:"order_column"`
	Name            string         `gorm:"not null" json:"name"`
	Slug            string         `gorm:"index" json:"slug"`
	Template        string         `json:"template"`
	Content         datatypes.JSON `json:"content"`
	Attributes      datatypes.JSON `json:"attributes"`
	IsLive          bool           `gorm:"default:false" json:"is_live"`
	PublishAt       *time.Time     `gorm:"index" json:"publish_at"`
	MetaTitle       string         `json:"meta_title"`
	MetaDescription string         `json:"meta_description"`
	CreatorID       *string        `gorm:"type:uuid" json:"creator_id"`
}

func (p *Page) NodeID() string { return p.ID }
func (p *Page) NodeParentID() *string { return p.ParentID }
func (p *Page) NodeOrder() int { return p.OrderColumn }
func (p *Page) PathSegment() string { return p.Slug }
func (p *Page) SetParentID(id *string) { p.ParentID = id }
func (p *Page) SetOrder(order int) { p.OrderColumn = order }
func (p *Page) AttachableRef() AttachableRef {
	return AttachableRef{Type: AttachablePage, ID: p.ID}
}
