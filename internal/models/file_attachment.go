package models

import (
	"fmt"

	"gorm.io/datatypes"
)

// FileType discriminates the owning file record of an attachment.
type FileType string

const (
	FileTypeMedia FileType = "file"
)

// AttachableType discriminates the record a file is attached to.
type AttachableType string

const (
	AttachablePage            AttachableType = "page"
	AttachableMediaCollection AttachableType = "media_collection"
	AttachableMenuItem        AttachableType = "menu_item"
	AttachableNavItem         AttachableType = "nav_item"
)

// AttachableTypes lists every attachable variant.
var AttachableTypes = []AttachableType{
	AttachablePage,
	AttachableMediaCollection,
	AttachableMenuItem,
	AttachableNavItem,
}

// Valid reports whether t is a known attachable variant.
func (t AttachableType) Valid() bool {
	return t.Model() != nil
}

// Model returns an empty model of the variant, usable with gorm's Model().
func (t AttachableType) Model() any {
	switch t {
	case AttachablePage:
		return &Page{}
	case AttachableMediaCollection:
		return &MediaCollection{}
	case AttachableMenuItem:
		return &MenuItem{}
	case AttachableNavItem:
		return &NavItem{}
	}
	return nil
}

// AttachableRef identifies one concrete attachable record.
type AttachableRef struct {
	Type AttachableType `json:"type"`
	ID   string         `json:"id"`
}

func (r AttachableRef) String() string {
	return fmt.Sprintf("%s:%s", r.Type, r.ID)
}

// AttachableRef lets a bare reference be passed where an Attachable is expected.
func (r AttachableRef) AttachableRef() AttachableRef { return r }

// Attachable is implemented by every record files can be attached to.
type Attachable interface {
	AttachableRef() AttachableRef
}

// FileAttachment links a file to an attachable record under an optional collection
// label. Rows are owned by the file.
type FileAttachment struct {
	BaseModel

	FileID     string         `gorm:"type:uuid;not null;index:idx_file_attachments_file" json:"file_id"`
	FileType   FileType       `gorm:"size:64;not null;index:idx_file_attachments_file" json:"file_type"`
	ModelID    string         `gorm:"type:uuid;not null;index:idx_file_attachments_model" json:"model_id"`
	ModelType  AttachableType `gorm:"size:64;not null;index:idx_file_attachments_model" json:"model_type"`
	Collection *string        `gorm:"size:128;index" json:"collection"`
	Attributes datatypes.JSON `json:"attributes"`
}

// Target returns the attached-to side of the row.
func (a FileAttachment) Target() AttachableRef {
	return AttachableRef{Type: a.ModelType, ID: a.ModelID}
}
