package dto

import "time"

// GenerateRequest is the try-on generation payload.
type GenerateRequest struct {
	PersonImageID string `json:"personImageId" validate:"required"`
	OutfitImageID string `json:"outfitImageId" validate:"required"`
}

// GenerateResponse returns the new image and the remaining balance.
type GenerateResponse struct {
	Image            ImageResponse `json:"image"`
	CreditsRemaining int           `json:"creditsRemaining"`
}

// ImageResponse is the API shape of a stored image.
type ImageResponse struct {
	ID        string         `json:"id"`
	URL       string         `json:"url"`
	Type      string         `json:"type"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}
