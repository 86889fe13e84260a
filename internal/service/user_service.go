package service

import (
	"context"
	"errors"
	"fmt"

	"app/internal/model"
	"app/internal/repository"
	"app/internal/storage"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrEmailTaken           = errors.New("email is already registered")
	ErrWrongCurrentPassword = errors.New("current password is incorrect")
	ErrWeakPassword         = errors.New("password must be at least 8 characters")
)

const minPasswordLength = 8

// ProfileUpdate carries the optional profile changes. A non-nil NewPassword
// requires the matching CurrentPassword.
type ProfileUpdate struct {
	Name            *string
	Email           *string
	NewPassword     *string
	CurrentPassword string
}

// UserService manages profile and account lifecycle.
type UserService interface {
	GetProfile(ctx context.Context, userID string) (*model.User, error)
	UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*model.User, error)
	DeleteAccount(ctx context.Context, userID string) error
}

type userService struct {
	userRepo  repository.UserRepository
	imageRepo repository.ImageRepository
	store     storage.ObjectStore
	logger    zerolog.Logger
}

// NewUserService creates a new UserService.
func NewUserService(userRepo repository.UserRepository, imageRepo repository.ImageRepository, store storage.ObjectStore, logger zerolog.Logger) UserService {
	return &userService{
		userRepo:  userRepo,
		imageRepo: imageRepo,
		store:     store,
		logger:    logger.With().Str("service", "UserService").Logger(),
	}
}

func (s *userService) GetProfile(ctx context.Context, userID string) (*model.User, error) {
	u, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (s *userService) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*model.User, error) {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	if update.Name != nil {
		user.Name = update.Name
	}
	if update.Email != nil && *update.Email != user.Email {
		existing, err := s.userRepo.GetUserByEmail(ctx, *update.Email)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.ID != userID {
			return nil, ErrEmailTaken
		}
		user.Email = *update.Email
	}
	if update.NewPassword != nil {
		if len(*update.NewPassword) < minPasswordLength {
			return nil, ErrWeakPassword
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(update.CurrentPassword)); err != nil {
			return nil, ErrWrongCurrentPassword
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*update.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		user.PasswordHash = string(hash)
	}

	if err := s.userRepo.UpdateProfile(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// DeleteAccount removes the user. Remote objects are cleaned up best-effort
// first; the database cascade then removes images and transactions with the
// user row.
func (s *userService) DeleteAccount(ctx context.Context, userID string) error {
	keys, err := s.imageRepo.ListStorageKeysByUserID(ctx, userID)
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("Failed to list objects for cleanup, deleting account anyway")
	}
	for _, key := range keys {
		if err := s.store.Delete(ctx, key); err != nil {
			s.logger.Warn().Err(err).Str("storage_key", key).Msg("Failed to delete remote object during account deletion")
		}
	}
	return s.userRepo.DeleteUser(ctx, userID)
}
