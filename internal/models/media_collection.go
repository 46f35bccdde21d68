package models

// MediaCollection is a named group of files, e.g. a gallery. Files join a collection
// through file attachments.
type MediaCollection struct {
	BaseModel

	Title string `gorm:"not null" json:"title"`
	Key   string `gorm:"size:128;uniqueIndex" json:"key"`
}

func (c *MediaCollection) AttachableRef() AttachableRef {
	return AttachableRef{Type: AttachableMediaCollection, ID: c.ID}
}
