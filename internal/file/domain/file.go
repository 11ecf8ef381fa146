package domain

import "time"

// Storage backends.
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// File is the metadata of an uploaded object. Path locates the object within its storage backend.
type File struct {
	ID           string     `json:"id"`
	UserID       string     `json:"userId"`
	OriginalName string     `json:"originalName"`
	Filename     string     `json:"filename"`
	MimeType     string     `json:"mimeType"`
	Size         int64      `json:"size"`
	Path         string     `json:"path"`
	StorageType  string     `json:"storageType"`
	CreatedAt    time.Time  `json:"createdAt"`
	DeletedAt    *time.Time `json:"-"`
}
