package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"app/internal/metrics"
	"app/internal/model"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

func strPtr(s string) *string { return &s }

func testCollector() *metrics.Collector {
	return metrics.NewCollector(prometheus.NewRegistry())
}

func tryOnFixture(credits int) (*mockUserRepo, *mockImageRepo, *mockObjectStore, *mockGenerator) {
	users := newMockUserRepo(&model.User{ID: "u1", Email: "u1@example.com", Credits: credits, SubscriptionTier: model.TierFree})
	images := newMockImageRepo(
		&model.Image{ID: "person-1", UserID: "u1", URL: "https://cdn.example.com/person.jpg", Type: model.ImageTypeUser},
		&model.Image{ID: "outfit-1", UserID: "u1", URL: "https://cdn.example.com/outfit.jpg", Type: model.ImageTypeOutfit},
		&model.Image{ID: "person-other", UserID: "u2", URL: "https://cdn.example.com/other.jpg", Type: model.ImageTypeUser},
	)
	store := newMockObjectStore()
	gen := &mockGenerator{generateFn: func(ctx context.Context, personURL, outfitURL string) (*GenerationResult, error) {
		return &GenerationResult{Data: []byte("png-bytes"), MIMEType: "image/png"}, nil
	}}
	return users, images, store, gen
}

func newTryOnService(users *mockUserRepo, images *mockImageRepo, store *mockObjectStore, gen *mockGenerator) TryOnService {
	return NewTryOnService(users, images, gen, store, testCollector(), zerolog.Nop())
}

func TestGenerate_Success(t *testing.T) {
	users, images, store, gen := tryOnFixture(5)
	svc := newTryOnService(users, images, store, gen)

	img, remaining, err := svc.Generate(context.Background(), "u1", "person-1", "outfit-1")
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if remaining != 4 {
		t.Errorf("expected 4 credits remaining, got %d", remaining)
	}
	if users.credits("u1") != 4 {
		t.Errorf("expected stored balance 4, got %d", users.credits("u1"))
	}
	if img.Type != model.ImageTypeGenerated {
		t.Errorf("expected generated image type, got %q", img.Type)
	}
	if img.UserID != "u1" {
		t.Errorf("expected image owned by u1, got %q", img.UserID)
	}
	if img.Metadata["person_image_id"] != "person-1" || img.Metadata["outfit_image_id"] != "outfit-1" {
		t.Errorf("metadata does not link source images: %v", img.Metadata)
	}
	if generated := images.byType("u1", model.ImageTypeGenerated); len(generated) != 1 {
		t.Errorf("expected exactly one generated image, got %d", len(generated))
	}
	if img.StorageKey == nil {
		t.Fatal("expected a storage key for uploaded raw bytes")
	}
	if _, ok := store.uploads[*img.StorageKey]; !ok {
		t.Errorf("result bytes were not uploaded under key %q", *img.StorageKey)
	}
}

func TestGenerate_HostedResultURL(t *testing.T) {
	users, images, store, gen := tryOnFixture(2)
	gen.generateFn = func(ctx context.Context, personURL, outfitURL string) (*GenerationResult, error) {
		return &GenerationResult{URL: "https://provider.example.com/result.png"}, nil
	}
	svc := newTryOnService(users, images, store, gen)

	img, _, err := svc.Generate(context.Background(), "u1", "person-1", "outfit-1")
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if img.URL != "https://provider.example.com/result.png" {
		t.Errorf("expected hosted URL to be used directly, got %q", img.URL)
	}
	if img.StorageKey != nil {
		t.Error("hosted results must not get a storage key")
	}
	if len(store.uploads) != 0 {
		t.Error("hosted results must not be re-uploaded")
	}
}

func TestGenerate_MissingIDs(t *testing.T) {
	users, images, store, gen := tryOnFixture(5)
	svc := newTryOnService(users, images, store, gen)

	if _, _, err := svc.Generate(context.Background(), "u1", "", "outfit-1"); !errors.Is(err, ErrMissingImageID) {
		t.Errorf("expected ErrMissingImageID, got %v", err)
	}
}

func TestGenerate_UserNotFound(t *testing.T) {
	users, images, store, gen := tryOnFixture(5)
	svc := newTryOnService(users, images, store, gen)

	if _, _, err := svc.Generate(context.Background(), "nobody", "person-1", "outfit-1"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestGenerate_InsufficientCredits(t *testing.T) {
	users, images, store, gen := tryOnFixture(0)
	svc := newTryOnService(users, images, store, gen)

	_, _, err := svc.Generate(context.Background(), "u1", "person-1", "outfit-1")
	var insufficient *InsufficientCreditsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientCreditsError, got %v", err)
	}
	if insufficient.Credits != 0 || insufficient.Required != GenerationCost {
		t.Errorf("expected credits=0 required=%d, got %+v", GenerationCost, insufficient)
	}
	if users.credits("u1") != 0 {
		t.Errorf("balance changed on rejected request: %d", users.credits("u1"))
	}
	if generated := images.byType("u1", model.ImageTypeGenerated); len(generated) != 0 {
		t.Errorf("image set changed on rejected request: %d generated images", len(generated))
	}
}

func TestGenerate_ImageNotFound(t *testing.T) {
	users, images, store, gen := tryOnFixture(5)
	svc := newTryOnService(users, images, store, gen)

	if _, _, err := svc.Generate(context.Background(), "u1", "person-1", "missing"); !errors.Is(err, ErrImageNotFound) {
		t.Errorf("expected ErrImageNotFound, got %v", err)
	}
}

func TestGenerate_SwappedIDsFailTypeValidation(t *testing.T) {
	users, images, store, gen := tryOnFixture(5)
	svc := newTryOnService(users, images, store, gen)

	// Both ids are valid and owned; only the positional order is wrong.
	_, _, err := svc.Generate(context.Background(), "u1", "outfit-1", "person-1")
	if !errors.Is(err, ErrImageTypeMismatch) {
		t.Errorf("expected ErrImageTypeMismatch, got %v", err)
	}
	if users.credits("u1") != 5 {
		t.Errorf("balance changed on type mismatch: %d", users.credits("u1"))
	}
}

func TestGenerate_ForeignImageForbidden(t *testing.T) {
	users, images, store, gen := tryOnFixture(5)
	svc := newTryOnService(users, images, store, gen)

	_, _, err := svc.Generate(context.Background(), "u1", "person-other", "outfit-1")
	if !errors.Is(err, ErrNotImageOwner) {
		t.Errorf("expected ErrNotImageOwner, got %v", err)
	}
	if users.credits("u1") != 5 {
		t.Errorf("balance changed on ownership failure: %d", users.credits("u1"))
	}
	if generated := images.byType("u1", model.ImageTypeGenerated); len(generated) != 0 {
		t.Errorf("image created on ownership failure: %d", len(generated))
	}
}

func TestGenerate_ProviderFailureIsEffectFree(t *testing.T) {
	users, images, store, gen := tryOnFixture(5)
	gen.generateFn = func(ctx context.Context, personURL, outfitURL string) (*GenerationResult, error) {
		return nil, errors.New("provider exploded")
	}
	svc := newTryOnService(users, images, store, gen)

	_, _, err := svc.Generate(context.Background(), "u1", "person-1", "outfit-1")
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}
	if users.credits("u1") != 5 {
		t.Errorf("credit not refunded after provider failure: %d", users.credits("u1"))
	}
	if generated := images.byType("u1", model.ImageTypeGenerated); len(generated) != 0 {
		t.Errorf("image created despite provider failure: %d", len(generated))
	}
}

func TestGenerate_UnconfiguredProvider(t *testing.T) {
	users, images, store, gen := tryOnFixture(3)
	gen.generateFn = func(ctx context.Context, personURL, outfitURL string) (*GenerationResult, error) {
		return nil, ErrProviderUnavailable
	}
	svc := newTryOnService(users, images, store, gen)

	_, _, err := svc.Generate(context.Background(), "u1", "person-1", "outfit-1")
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}
	if users.credits("u1") != 3 {
		t.Errorf("credit not refunded: %d", users.credits("u1"))
	}
}

func TestGenerate_UploadFailureRefunds(t *testing.T) {
	users, images, store, gen := tryOnFixture(5)
	store.uploadErr = errors.New("bucket unavailable")
	svc := newTryOnService(users, images, store, gen)

	_, _, err := svc.Generate(context.Background(), "u1", "person-1", "outfit-1")
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}
	if users.credits("u1") != 5 {
		t.Errorf("credit not refunded after upload failure: %d", users.credits("u1"))
	}
}

func TestGenerate_ConcurrentSingleCredit(t *testing.T) {
	users, images, store, gen := tryOnFixture(1)
	svc := newTryOnService(users, images, store, gen)

	const attempts = 10
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := svc.Generate(context.Background(), "u1", "person-1", "outfit-1")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	successes := 0
	for err := range results {
		if err == nil {
			successes++
		}
	}
	if successes != 1 {
		t.Errorf("expected exactly one success on a single-credit account, got %d", successes)
	}
	if credits := users.credits("u1"); credits < 0 {
		t.Errorf("balance went negative: %d", credits)
	}
	if generated := images.byType("u1", model.ImageTypeGenerated); len(generated) != 1 {
		t.Errorf("expected one generated image, got %d", len(generated))
	}
}
