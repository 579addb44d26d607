package listing

import "errors"

// Status is the publication state of a listing
type Status string

// Listing statuses
const (
	StatusDraft     Status = "DRAFT"
	StatusPublished Status = "PUBLISHED"
	StatusArchived  Status = "ARCHIVED"
	StatusRemoved   Status = "REMOVED"
)

// ErrNotFound is returned when a listing does not exist
var ErrNotFound = errors.New("listing not found")

// Valid reports whether s is one of the known statuses
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusArchived, StatusRemoved:
		return true
	}
	return false
}

// File is the metadata of a code file attached to a listing.
// StorageKey addresses the file's content in the blob store.
type File struct {
	ID         string `json:"id" yaml:"id"`
	Filename   string `json:"filename" yaml:"filename"`
	Language   string `json:"language" yaml:"language"`
	IsMain     bool   `json:"isMain" yaml:"is_main"`
	StorageKey string `json:"storageKey" yaml:"storage_key"`
}

// Listing is a marketplace listing with its files in upload order
type Listing struct {
	ID        string `json:"id" yaml:"id"`
	CreatorID string `json:"creatorId" yaml:"creator_id"`
	Status    Status `json:"status" yaml:"status"`
	Files     []File `json:"files" yaml:"files"`
}
