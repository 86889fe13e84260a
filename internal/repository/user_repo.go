package repository

import (
	"context"
	"errors"
	"fmt"

	"app/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository defines access to user rows. Lookup methods return
// (nil, nil) when no row matches.
type UserRepository interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByStripeCustomerID(ctx context.Context, customerID string) (*model.User, error)
	UpdateProfile(ctx context.Context, u *model.User) error
	UpdateStripeCustomerID(ctx context.Context, userID, customerID string) error
	// DeductCredits atomically decrements the balance if it covers the
	// amount. Returns false when the balance was insufficient; no row is
	// modified in that case.
	DeductCredits(ctx context.Context, userID string, amount int) (bool, error)
	AddCredits(ctx context.Context, userID string, amount int) error
	SetSubscriptionTier(ctx context.Context, userID, tier string) error
	DeleteUser(ctx context.Context, userID string) error
}

type userRepo struct {
	pool *pgxpool.Pool
}

// NewUserRepo creates a new UserRepository.
func NewUserRepo(pool *pgxpool.Pool) UserRepository {
	return &userRepo{pool: pool}
}

const userColumns = `id, email, password_hash, name, credits, subscription_tier, stripe_customer_id, created_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Credits, &u.SubscriptionTier, &u.StripeCustomerID, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *userRepo) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		return nil, fmt.Errorf("fetch user %s: %w", id, err)
	}
	return u, nil
}

func (r *userRepo) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	u, err := scanUser(r.pool.QueryRow(ctx, q, email))
	if err != nil {
		return nil, fmt.Errorf("fetch user by email: %w", err)
	}
	return u, nil
}

func (r *userRepo) GetUserByStripeCustomerID(ctx context.Context, customerID string) (*model.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE stripe_customer_id = $1`
	u, err := scanUser(r.pool.QueryRow(ctx, q, customerID))
	if err != nil {
		return nil, fmt.Errorf("fetch user by stripe customer %s: %w", customerID, err)
	}
	return u, nil
}

func (r *userRepo) UpdateProfile(ctx context.Context, u *model.User) error {
	const q = `UPDATE users SET email = $2, password_hash = $3, name = $4 WHERE id = $1`
	if _, err := r.pool.Exec(ctx, q, u.ID, u.Email, u.PasswordHash, u.Name); err != nil {
		return fmt.Errorf("update profile for user %s: %w", u.ID, err)
	}
	return nil
}

func (r *userRepo) UpdateStripeCustomerID(ctx context.Context, userID, customerID string) error {
	const q = `UPDATE users SET stripe_customer_id = $2 WHERE id = $1`
	if _, err := r.pool.Exec(ctx, q, userID, customerID); err != nil {
		return fmt.Errorf("update stripe customer id for user %s: %w", userID, err)
	}
	return nil
}

// DeductCredits is the conditional decrement guarding the try-on flow: the
// balance check and the write are a single statement, so two concurrent
// requests can never drive the balance negative.
func (r *userRepo) DeductCredits(ctx context.Context, userID string, amount int) (bool, error) {
	const q = `UPDATE users SET credits = credits - $2 WHERE id = $1 AND credits >= $2`
	tag, err := r.pool.Exec(ctx, q, userID, amount)
	if err != nil {
		return false, fmt.Errorf("deduct %d credits from user %s: %w", amount, userID, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *userRepo) AddCredits(ctx context.Context, userID string, amount int) error {
	const q = `UPDATE users SET credits = credits + $2 WHERE id = $1`
	if _, err := r.pool.Exec(ctx, q, userID, amount); err != nil {
		return fmt.Errorf("add %d credits to user %s: %w", amount, userID, err)
	}
	return nil
}

func (r *userRepo) SetSubscriptionTier(ctx context.Context, userID, tier string) error {
	const q = `UPDATE users SET subscription_tier = $2 WHERE id = $1`
	if _, err := r.pool.Exec(ctx, q, userID, tier); err != nil {
		return fmt.Errorf("set subscription tier for user %s: %w", userID, err)
	}
	return nil
}

func (r *userRepo) DeleteUser(ctx context.Context, userID string) error {
	const q = `DELETE FROM users WHERE id = $1`
	if _, err := r.pool.Exec(ctx, q, userID); err != nil {
		return fmt.Errorf("delete user %s: %w", userID, err)
	}
	return nil
}
