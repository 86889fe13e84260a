package dto

import "time"

// ProfileUpdateRequest carries optional profile changes. Changing the
// password requires the current one.
type ProfileUpdateRequest struct {
	Name            *string `json:"name,omitempty"`
	Email           *string `json:"email,omitempty" validate:"omitempty,email"`
	NewPassword     *string `json:"newPassword,omitempty"`
	CurrentPassword string  `json:"currentPassword,omitempty"`
}

// ProfileResponse is the API shape of a user account.
type ProfileResponse struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	Name             *string   `json:"name,omitempty"`
	Credits          int       `json:"credits"`
	SubscriptionTier string    `json:"subscriptionTier"`
	CreatedAt        time.Time `json:"createdAt"`
}
