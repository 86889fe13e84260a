package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"app/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// ImageRepository defines access to image rows.
type ImageRepository interface {
	CreateImage(ctx context.Context, img *model.Image) error
	GetImageByID(ctx context.Context, id string) (*model.Image, error)
	// ListImagesByUserID returns the user's images newest first, optionally
	// filtered by type ("" means all).
	ListImagesByUserID(ctx context.Context, userID, imageType string) ([]model.Image, error)
	DeleteImage(ctx context.Context, id string) error
	// ListStorageKeysByUserID returns the storage keys of every object this
	// backend uploaded for the user. Used for remote cleanup on account
	// deletion.
	ListStorageKeysByUserID(ctx context.Context, userID string) ([]string, error)
}

type imageRepo struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewImageRepo creates a new ImageRepository.
func NewImageRepo(pool *pgxpool.Pool, logger zerolog.Logger) ImageRepository {
	return &imageRepo{pool: pool, logger: logger.With().Str("repository", "ImageRepository").Logger()}
}

func (r *imageRepo) CreateImage(ctx context.Context, img *model.Image) error {
	var metadata []byte
	if img.Metadata != nil {
		var err error
		metadata, err = json.Marshal(img.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata for image %s: %w", img.ID, err)
		}
	}
	const q = `
        INSERT INTO images (id, user_id, url, storage_key, type, metadata)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING created_at
    `
	err := r.pool.QueryRow(ctx, q, img.ID, img.UserID, img.URL, img.StorageKey, img.Type, metadata).Scan(&img.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert image for user %s: %w", img.UserID, err)
	}
	return nil
}

func (r *imageRepo) GetImageByID(ctx context.Context, id string) (*model.Image, error) {
	const q = `
        SELECT id, user_id, url, storage_key, type, metadata, created_at
        FROM images
        WHERE id = $1
    `
	var img model.Image
	var rawMetadata []byte
	err := r.pool.QueryRow(ctx, q, id).Scan(&img.ID, &img.UserID, &img.URL, &img.StorageKey, &img.Type, &rawMetadata, &img.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch image %s: %w", id, err)
	}
	if len(rawMetadata) > 0 {
		if err := json.Unmarshal(rawMetadata, &img.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata for image %s: %w", id, err)
		}
	}
	return &img, nil
}

func (r *imageRepo) ListImagesByUserID(ctx context.Context, userID, imageType string) ([]model.Image, error) {
	q := `
        SELECT id, user_id, url, storage_key, type, metadata, created_at
        FROM images
        WHERE user_id = $1
    `
	args := []any{userID}
	if imageType != "" {
		q += ` AND type = $2`
		args = append(args, imageType)
	}
	q += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list images for user %s: %w", userID, err)
	}
	defer rows.Close()

	images := []model.Image{}
	for rows.Next() {
		var img model.Image
		var rawMetadata []byte
		if err := rows.Scan(&img.ID, &img.UserID, &img.URL, &img.StorageKey, &img.Type, &rawMetadata, &img.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan image row for user %s: %w", userID, err)
		}
		if len(rawMetadata) > 0 {
			if err := json.Unmarshal(rawMetadata, &img.Metadata); err != nil {
				r.logger.Warn().Err(err).Str("image_id", img.ID).Msg("Skipping unreadable image metadata")
			}
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate images for user %s: %w", userID, err)
	}
	return images, nil
}

func (r *imageRepo) DeleteImage(ctx context.Context, id string) error {
	const q = `DELETE FROM images WHERE id = $1`
	if _, err := r.pool.Exec(ctx, q, id); err != nil {
		return fmt.Errorf("delete image %s: %w", id, err)
	}
	return nil
}

func (r *imageRepo) ListStorageKeysByUserID(ctx context.Context, userID string) ([]string, error) {
	const q = `SELECT storage_key FROM images WHERE user_id = $1 AND storage_key IS NOT NULL`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list storage keys for user %s: %w", userID, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan storage key for user %s: %w", userID, err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate storage keys for user %s: %w", userID, err)
	}
	return keys, nil
}
