package domain

import "time"

// MaintenanceNote captures free-text communication on a request thread.
type MaintenanceNote struct {
	ID         string
	RequestID  string
	AuthorType ActorType
	AuthorID   *string
	Body       string
	CreatedAt  time.Time
}

// PhotoReference stores metadata for an externally stored photo. Binary
// content never enters this core.
type PhotoReference struct {
	ID           string
	RequestID    string
	StorageURL   string
	ThumbnailURL *string
	Caption      *string
	CreatedAt    time.Time
}
