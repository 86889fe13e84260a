package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"app/internal/config"
	"app/internal/model"
	"app/internal/repository"
	"app/internal/storage"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrInvalidImageType = errors.New("image type must be 'user' or 'outfit'")
	ErrInvalidExtension = errors.New("file extension is not allowed")
	ErrFileTooLarge     = errors.New("file exceeds the maximum upload size")
	ErrMissingURL       = errors.New("url is required")
)

// ImageService manages the upload, listing and deletion of a user's images.
type ImageService interface {
	Upload(ctx context.Context, userID, filename string, data []byte, imageType string) (*model.Image, error)
	List(ctx context.Context, userID, imageType string) ([]model.Image, error)
	Delete(ctx context.Context, userID, imageID string) error
	SaveGenerated(ctx context.Context, userID, url string, storageKey *string, metadata map[string]any) (*model.Image, error)
}

type imageService struct {
	repo        repository.ImageRepository
	store       storage.ObjectStore
	maxSize     int64
	allowedExts map[string]bool
	logger      zerolog.Logger
}

// NewImageService creates a new ImageService with the configured upload
// limits.
func NewImageService(repo repository.ImageRepository, store storage.ObjectStore, cfg *config.Config, logger zerolog.Logger) ImageService {
	allowed := make(map[string]bool)
	for _, ext := range cfg.AllowedImageExts() {
		allowed[ext] = true
	}
	return &imageService{
		repo:        repo,
		store:       store,
		maxSize:     cfg.MaxUploadSizeBytes(),
		allowedExts: allowed,
		logger:      logger.With().Str("service", "ImageService").Logger(),
	}
}

// Upload validates the payload, stores it remotely and persists the image row.
// The extension check goes by filename suffix, not content sniffing.
func (s *imageService) Upload(ctx context.Context, userID, filename string, data []byte, imageType string) (*model.Image, error) {
	if imageType != model.ImageTypeUser && imageType != model.ImageTypeOutfit {
		return nil, ErrInvalidImageType
	}
	if int64(len(data)) > s.maxSize {
		return nil, ErrFileTooLarge
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if !s.allowedExts[ext] {
		return nil, ErrInvalidExtension
	}

	key := fmt.Sprintf("uploads/%s/%s.%s", userID, uuid.NewString(), ext)
	url, err := s.store.Upload(ctx, key, data, contentTypeForExt(ext))
	if err != nil {
		return nil, fmt.Errorf("upload image: %w", err)
	}

	img := &model.Image{
		ID:         uuid.NewString(),
		UserID:     userID,
		URL:        url,
		StorageKey: &key,
		Type:       imageType,
	}
	if err := s.repo.CreateImage(ctx, img); err != nil {
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			s.logger.Warn().Err(delErr).Str("storage_key", key).Msg("Failed to clean up orphaned upload")
		}
		return nil, fmt.Errorf("save image record: %w", err)
	}
	return img, nil
}

func (s *imageService) List(ctx context.Context, userID, imageType string) ([]model.Image, error) {
	if imageType != "" && imageType != model.ImageTypeUser && imageType != model.ImageTypeOutfit && imageType != model.ImageTypeGenerated {
		return nil, ErrInvalidImageType
	}
	images, err := s.repo.ListImagesByUserID(ctx, userID, imageType)
	if err != nil {
		return nil, err
	}
	return images, nil
}

// Delete removes an owned image. Remote cleanup is best-effort: once
// ownership is confirmed the database row always goes, a failed remote delete
// is only logged.
func (s *imageService) Delete(ctx context.Context, userID, imageID string) error {
	img, err := s.repo.GetImageByID(ctx, imageID)
	if err != nil {
		return err
	}
	if img == nil {
		return ErrImageNotFound
	}
	if img.UserID != userID {
		return ErrNotImageOwner
	}

	if img.StorageKey != nil {
		if err := s.store.Delete(ctx, *img.StorageKey); err != nil {
			s.logger.Warn().Err(err).Str("storage_key", *img.StorageKey).Msg("Failed to delete remote object, removing record anyway")
		}
	}
	return s.repo.DeleteImage(ctx, imageID)
}

// SaveGenerated persists an already-hosted generated image without
// re-uploading it.
func (s *imageService) SaveGenerated(ctx context.Context, userID, url string, storageKey *string, metadata map[string]any) (*model.Image, error) {
	if url == "" {
		return nil, ErrMissingURL
	}
	img := &model.Image{
		ID:         uuid.NewString(),
		UserID:     userID,
		URL:        url,
		StorageKey: storageKey,
		Type:       model.ImageTypeGenerated,
		Metadata:   metadata,
	}
	if err := s.repo.CreateImage(ctx, img); err != nil {
		return nil, fmt.Errorf("save generated image record: %w", err)
	}
	return img, nil
}

func contentTypeForExt(ext string) string {
	switch ext {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
