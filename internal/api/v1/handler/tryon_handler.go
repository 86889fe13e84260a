package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"app/internal/api/v1/dto"
	"app/internal/middleware"
	"app/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// TryOnHandler exposes the try-on generation endpoint.
type TryOnHandler struct {
	tryOnService service.TryOnService
	validate     *validator.Validate
	environment  string
	logger       zerolog.Logger
}

// NewTryOnHandler creates a new TryOnHandler.
func NewTryOnHandler(tryOnService service.TryOnService, v *validator.Validate, environment string, logger zerolog.Logger) *TryOnHandler {
	return &TryOnHandler{tryOnService: tryOnService, validate: v, environment: environment, logger: logger}
}

// RegisterRoutes mounts the try-on routes.
func (h *TryOnHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/tryon/generate", authMw(http.HandlerFunc(h.generate)))
}

func (h *TryOnHandler) generate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req dto.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Both personImageId and outfitImageId are required")
		return
	}

	img, remaining, err := h.tryOnService.Generate(r.Context(), userID, req.PersonImageID, req.OutfitImageID)
	if err != nil {
		var insufficient *service.InsufficientCreditsError
		switch {
		case errors.As(err, &insufficient):
			writeJSON(w, http.StatusPaymentRequired, map[string]any{
				"message":  "Insufficient credits. Purchase more credits or upgrade your plan.",
				"credits":  insufficient.Credits,
				"required": insufficient.Required,
			})
		case errors.Is(err, service.ErrMissingImageID), errors.Is(err, service.ErrImageTypeMismatch):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrUserNotFound), errors.Is(err, service.ErrImageNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrNotImageOwner):
			writeError(w, http.StatusForbidden, err.Error())
		case errors.Is(err, service.ErrGenerationFailed):
			writeErrorDetail(w, http.StatusInternalServerError, "Image generation failed", err, h.environment)
		default:
			h.logger.Error().Err(err).Str("user_id", userID).Msg("Try-on generation failed")
			writeErrorDetail(w, http.StatusInternalServerError, "Internal server error", err, h.environment)
		}
		return
	}

	writeJSON(w, http.StatusOK, dto.GenerateResponse{
		Image:            toImageResponse(img),
		CreditsRemaining: remaining,
	})
}
