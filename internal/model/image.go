package model

import "time"

// Image types. A try-on request consumes one "user" photo and one "outfit"
// photo and produces a "generated" image.
const (
	ImageTypeUser      = "user"
	ImageTypeOutfit    = "outfit"
	ImageTypeGenerated = "generated"
)

// Image is a stored picture owned by a single user. StorageKey is set only
// for objects this backend uploaded itself; externally hosted results keep it
// nil and cannot be cleaned up remotely. Metadata links a generated image
// back to its two source images.
type Image struct {
	ID         string         `db:"id" json:"id"`
	UserID     string         `db:"user_id" json:"user_id"`
	URL        string         `db:"url" json:"url"`
	StorageKey *string        `db:"storage_key" json:"storage_key,omitempty"`
	Type       string         `db:"type" json:"type"`
	Metadata   map[string]any `db:"metadata" json:"metadata,omitempty"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
}
