package models

import (
	"strings"
	"time"
)

// FileIDPrefix is the record-type prefix shared by every file identifier.
const FileIDPrefix = "file:"

// NativeFileExtension marks dropped files that carry a serialized document.
const NativeFileExtension = ".tldr"

// FileID is the stable key of a document in the application's file namespace.
type FileID string

// NewFileID derives the file identifier for a human-readable slug.
func NewFileID(slug string) FileID {
	return FileID(FileIDPrefix + slug)
}

// Slug returns the slug the identifier was derived from.
func (id FileID) Slug() string {
	return strings.TrimPrefix(string(id), FileIDPrefix)
}

func (id FileID) String() string { return string(id) }

// EditRecord is the last time a user edited a file within a session.
type EditRecord struct {
	ID               string    `json:"id"`
	UserID           string    `json:"userId"`
	FileID           FileID    `json:"fileId"`
	SessionStartedAt time.Time `json:"sessionStartedAt"` // session creation time
	FileOpenedAt     time.Time `json:"fileOpenedAt"`     // captured once per mount
	EditedAt         time.Time `json:"editedAt"`
}

// FileSnapshot is a serialized document read from a dropped native file.
type FileSnapshot struct {
	Name     string `json:"name"`
	Document []byte `json:"document"`
}

// DroppedFile is a file handed to the editor by a drop or paste.
type DroppedFile struct {
	Name string
	Type string
	Data []byte
}

// IsNativeDocument reports whether the file is recognized by extension as a
// serialized document.
func (f DroppedFile) IsNativeDocument() bool {
	return strings.HasSuffix(f.Name, NativeFileExtension)
}

// File is a persisted document record.
type File struct {
	ID        FileID    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Name      string    `json:"name"`
	Document  []byte    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}
