package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"app/internal/api/v1/dto"
	"app/internal/middleware"
	"app/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// multipartOverhead leaves room for form boundaries and fields on top of the
// image payload itself.
const multipartOverhead = 1 << 20

// ImageHandler exposes upload, list, delete and save endpoints for images.
type ImageHandler struct {
	imageService  service.ImageService
	validate      *validator.Validate
	maxUploadSize int64
	environment   string
	logger        zerolog.Logger
}

// NewImageHandler creates a new ImageHandler.
func NewImageHandler(imageService service.ImageService, v *validator.Validate, maxUploadSize int64, environment string, logger zerolog.Logger) *ImageHandler {
	return &ImageHandler{
		imageService:  imageService,
		validate:      v,
		maxUploadSize: maxUploadSize,
		environment:   environment,
		logger:        logger,
	}
}

// RegisterRoutes mounts image routes under /images.
func (h *ImageHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/images", authMw(http.HandlerFunc(h.list)))
	mux.Handle("/images/upload", authMw(http.HandlerFunc(h.upload)))
	mux.Handle("/images/save", authMw(http.HandlerFunc(h.saveGenerated)))
	mux.Handle("/images/", authMw(http.HandlerFunc(h.handleImage)))
}

func (h *ImageHandler) handleImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.NotFound(w, r)
		return
	}
	h.delete(w, r)
}

func userIDFromContext(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return "", false
	}
	return userID, true
}

func (h *ImageHandler) upload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	userID, ok := userIDFromContext(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "File exceeds the maximum upload size")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing image file")
		return
	}
	defer func() {
		_ = file.Close()
	}()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read image file")
		return
	}

	img, err := h.imageService.Upload(r.Context(), userID, header.Filename, data, r.FormValue("type"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidImageType), errors.Is(err, service.ErrInvalidExtension):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrFileTooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		default:
			h.logger.Error().Err(err).Str("user_id", userID).Msg("Image upload failed")
			writeErrorDetail(w, http.StatusInternalServerError, "Failed to upload image", err, h.environment)
		}
		return
	}
	writeJSON(w, http.StatusCreated, toImageResponse(img))
}

func (h *ImageHandler) list(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	userID, ok := userIDFromContext(w, r)
	if !ok {
		return
	}

	images, err := h.imageService.List(r.Context(), userID, r.URL.Query().Get("type"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidImageType) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to list images")
		writeErrorDetail(w, http.StatusInternalServerError, "Failed to list images", err, h.environment)
		return
	}

	resp := dto.ImageListResponse{Images: make([]dto.ImageResponse, 0, len(images))}
	for i := range images {
		resp.Images = append(resp.Images, toImageResponse(&images[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ImageHandler) delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(w, r)
	if !ok {
		return
	}
	imageID := strings.TrimPrefix(r.URL.Path, "/images/")
	if imageID == "" || strings.Contains(imageID, "/") {
		http.NotFound(w, r)
		return
	}

	if err := h.imageService.Delete(r.Context(), userID, imageID); err != nil {
		switch {
		case errors.Is(err, service.ErrImageNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrNotImageOwner):
			writeError(w, http.StatusForbidden, err.Error())
		default:
			h.logger.Error().Err(err).Str("image_id", imageID).Msg("Failed to delete image")
			writeErrorDetail(w, http.StatusInternalServerError, "Failed to delete image", err, h.environment)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Image deleted"})
}

func (h *ImageHandler) saveGenerated(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	userID, ok := userIDFromContext(w, r)
	if !ok {
		return
	}

	var req dto.SaveGeneratedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	img, err := h.imageService.SaveGenerated(r.Context(), userID, req.URL, req.StorageKey, req.Metadata)
	if err != nil {
		if errors.Is(err, service.ErrMissingURL) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to save generated image")
		writeErrorDetail(w, http.StatusInternalServerError, "Failed to save image", err, h.environment)
		return
	}
	writeJSON(w, http.StatusCreated, toImageResponse(img))
}
