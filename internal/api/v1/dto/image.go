package dto

// SaveGeneratedRequest persists an already-hosted generated image.
type SaveGeneratedRequest struct {
	URL        string         `json:"url" validate:"required"`
	StorageKey *string        `json:"storageKey,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// ImageListResponse wraps the caller's images.
type ImageListResponse struct {
	Images []ImageResponse `json:"images"`
}
