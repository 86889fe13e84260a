package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"app/internal/metrics"
	"app/internal/model"
	"app/internal/repository"
	"app/internal/storage"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// GenerationCost is the number of credits one try-on generation consumes.
const GenerationCost = 1

var (
	ErrMissingImageID    = errors.New("both person and outfit image ids are required")
	ErrImageNotFound     = errors.New("image not found")
	ErrNotImageOwner     = errors.New("image does not belong to the requesting user")
	ErrImageTypeMismatch = errors.New("first image must be a user photo and second an outfit")
	ErrGenerationFailed  = errors.New("image generation failed")
)

// InsufficientCreditsError reports a balance that does not cover the
// generation cost.
type InsufficientCreditsError struct {
	Credits  int
	Required int
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: have %d, need %d", e.Credits, e.Required)
}

// TryOnService orchestrates the credit/generation flow: validate the request,
// spend exactly one credit, and materialize a generated image.
type TryOnService interface {
	Generate(ctx context.Context, userID, personImageID, outfitImageID string) (*model.Image, int, error)
}

type tryOnService struct {
	userRepo  repository.UserRepository
	imageRepo repository.ImageRepository
	generator Generator
	store     storage.ObjectStore
	collector *metrics.Collector
	logger    zerolog.Logger
}

// NewTryOnService creates a new TryOnService.
func NewTryOnService(
	userRepo repository.UserRepository,
	imageRepo repository.ImageRepository,
	generator Generator,
	store storage.ObjectStore,
	collector *metrics.Collector,
	logger zerolog.Logger,
) TryOnService {
	return &tryOnService{
		userRepo:  userRepo,
		imageRepo: imageRepo,
		generator: generator,
		store:     store,
		collector: collector,
		logger:    logger.With().Str("service", "TryOnService").Logger(),
	}
}

// Generate runs the try-on flow. The credit decrement is a single conditional
// update executed before the provider call; any failure after it re-credits
// the user, so a failed generation leaves balance and image set untouched.
func (s *tryOnService) Generate(ctx context.Context, userID, personImageID, outfitImageID string) (*model.Image, int, error) {
	if personImageID == "" || outfitImageID == "" {
		return nil, 0, ErrMissingImageID
	}

	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch user: %w", err)
	}
	if user == nil {
		return nil, 0, ErrUserNotFound
	}
	if user.Credits < GenerationCost {
		return nil, 0, &InsufficientCreditsError{Credits: user.Credits, Required: GenerationCost}
	}

	person, err := s.imageRepo.GetImageByID(ctx, personImageID)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch person image: %w", err)
	}
	outfit, err := s.imageRepo.GetImageByID(ctx, outfitImageID)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch outfit image: %w", err)
	}
	if person == nil || outfit == nil {
		return nil, 0, ErrImageNotFound
	}
	if person.UserID != userID || outfit.UserID != userID {
		return nil, 0, ErrNotImageOwner
	}
	// Type validation is strict and positional: swapping the two ids fails
	// even when both images exist and are owned correctly.
	if person.Type != model.ImageTypeUser || outfit.Type != model.ImageTypeOutfit {
		return nil, 0, ErrImageTypeMismatch
	}

	deducted, err := s.userRepo.DeductCredits(ctx, userID, GenerationCost)
	if err != nil {
		return nil, 0, fmt.Errorf("deduct credits: %w", err)
	}
	if !deducted {
		// A concurrent request won the balance; report the current state.
		credits := 0
		if u, err := s.userRepo.GetUserByID(ctx, userID); err == nil && u != nil {
			credits = u.Credits
		}
		return nil, 0, &InsufficientCreditsError{Credits: credits, Required: GenerationCost}
	}

	result, err := s.generator.Generate(ctx, person.URL, outfit.URL)
	if err != nil {
		s.refund(ctx, userID)
		s.collector.RecordGeneration(false, 0)
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Generation provider call failed")
		return nil, 0, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	url, storageKey, err := s.materialize(ctx, userID, result)
	if err != nil {
		s.refund(ctx, userID)
		s.collector.RecordGeneration(false, 0)
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to store generation result")
		return nil, 0, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	img := &model.Image{
		ID:         uuid.NewString(),
		UserID:     userID,
		URL:        url,
		StorageKey: storageKey,
		Type:       model.ImageTypeGenerated,
		Metadata: map[string]any{
			"person_image_id": personImageID,
			"outfit_image_id": outfitImageID,
			"generated_at":    time.Now().UTC().Format(time.RFC3339),
		},
	}
	if err := s.imageRepo.CreateImage(ctx, img); err != nil {
		s.refund(ctx, userID)
		if storageKey != nil {
			if delErr := s.store.Delete(ctx, *storageKey); delErr != nil {
				s.logger.Warn().Err(delErr).Str("storage_key", *storageKey).Msg("Failed to clean up orphaned generation object")
			}
		}
		return nil, 0, fmt.Errorf("save generated image: %w", err)
	}

	remaining := user.Credits - GenerationCost
	if u, err := s.userRepo.GetUserByID(ctx, userID); err == nil && u != nil {
		remaining = u.Credits
	} else if err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("Failed to re-read balance after generation")
	}

	s.collector.RecordGeneration(true, GenerationCost)
	return img, remaining, nil
}

// materialize turns a provider result into a stored URL. Hosted and inline
// data URLs are used directly; raw bytes are uploaded to object storage.
func (s *tryOnService) materialize(ctx context.Context, userID string, result *GenerationResult) (string, *string, error) {
	if result.URL != "" {
		if strings.HasPrefix(result.URL, "http://") || strings.HasPrefix(result.URL, "https://") || strings.HasPrefix(result.URL, "data:") {
			return result.URL, nil, nil
		}
		return "", nil, fmt.Errorf("provider returned unusable result URL %q", result.URL)
	}
	if len(result.Data) == 0 {
		return "", nil, errors.New("provider returned an empty result")
	}

	key := fmt.Sprintf("generated/%s/%s%s", userID, uuid.NewString(), extensionForMIME(result.MIMEType))
	url, err := s.store.Upload(ctx, key, result.Data, result.MIMEType)
	if err != nil {
		return "", nil, fmt.Errorf("upload generated image: %w", err)
	}
	return url, &key, nil
}

// refund is the compensating increment after a post-deduction failure.
func (s *tryOnService) refund(ctx context.Context, userID string) {
	if err := s.userRepo.AddCredits(ctx, userID, GenerationCost); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to refund credit after generation failure")
	}
}

func extensionForMIME(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}
