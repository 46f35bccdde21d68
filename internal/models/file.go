package models

// File is an uploaded file. The stored bytes live on Disk under Filepath/Filename.
type File struct {
	BaseModel

	Disk     string `gorm:"size:32;not null;default:'local'" json:"disk"`
	Filepath string `gorm:"index" json:"filepath"`
	Filename string `gorm:"not null" json:"filename"`
	Mimetype string `json:"mimetype"`
	Size     int64  `json:"size"`
	Group    string `gorm:"column:file_group;size:128;index" json:"group"`

	Attachments []FileAttachment `gorm:"foreignKey:FileID;constraint:OnDelete:CASCADE" json:"attachments,omitempty"`
}

// FileKind returns the discriminator stored on attachment rows owned by this file.
func (f *File) FileKind() FileType {
	return FileTypeMedia
}

// StorageKey is the object key of the stored bytes.
func (f *File) StorageKey() string {
	if f.Filepath == "" {
		return f.Filename
	}
	return f.Filepath + "/" + f.Filename
}
