package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"app/internal/api/v1/dto"
	"app/internal/model"
	"app/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// UserHandler exposes profile and account endpoints.
type UserHandler struct {
	userService service.UserService
	validate    *validator.Validate
	environment string
	logger      zerolog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(userService service.UserService, v *validator.Validate, environment string, logger zerolog.Logger) *UserHandler {
	return &UserHandler{userService: userService, validate: v, environment: environment, logger: logger}
}

// RegisterRoutes mounts user routes.
func (h *UserHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/user/profile", authMw(http.HandlerFunc(h.handleProfile)))
	mux.Handle("/user/account", authMw(http.HandlerFunc(h.deleteAccount)))
}

func (h *UserHandler) handleProfile(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.getProfile(w, r)
	case http.MethodPut:
		h.updateProfile(w, r)
	default:
		http.NotFound(w, r)
	}
}

func toProfileResponse(u *model.User) dto.ProfileResponse {
	return dto.ProfileResponse{
		ID:               u.ID,
		Email:            u.Email,
		Name:             u.Name,
		Credits:          u.Credits,
		SubscriptionTier: u.SubscriptionTier,
		CreatedAt:        u.CreatedAt,
	}
}

func (h *UserHandler) getProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(w, r)
	if !ok {
		return
	}
	user, err := h.userService.GetProfile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to fetch profile")
		writeErrorDetail(w, http.StatusInternalServerError, "Failed to fetch profile", err, h.environment)
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(user))
}

func (h *UserHandler) updateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(w, r)
	if !ok {
		return
	}

	var req dto.ProfileUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid profile fields")
		return
	}

	user, err := h.userService.UpdateProfile(r.Context(), userID, service.ProfileUpdate{
		Name:            req.Name,
		Email:           req.Email,
		NewPassword:     req.NewPassword,
		CurrentPassword: req.CurrentPassword,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmailTaken), errors.Is(err, service.ErrWeakPassword):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrWrongCurrentPassword):
			writeError(w, http.StatusUnauthorized, err.Error())
		case errors.Is(err, service.ErrUserNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to update profile")
			writeErrorDetail(w, http.StatusInternalServerError, "Failed to update profile", err, h.environment)
		}
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(user))
}

func (h *UserHandler) deleteAccount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.NotFound(w, r)
		return
	}
	userID, ok := userIDFromContext(w, r)
	if !ok {
		return
	}
	if err := h.userService.DeleteAccount(r.Context(), userID); err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to delete account")
		writeErrorDetail(w, http.StatusInternalServerError, "Failed to delete account", err, h.environment)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Account deleted"})
}
