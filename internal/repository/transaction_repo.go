package repository

import (
	"context"
	"fmt"

	"app/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TransactionRepository records completed credit purchases.
type TransactionRepository interface {
	CreateTransaction(ctx context.Context, t *model.Transaction) error
}

type transactionRepo struct {
	pool *pgxpool.Pool
}

// NewTransactionRepo creates a new TransactionRepository.
func NewTransactionRepo(pool *pgxpool.Pool) TransactionRepository {
	return &transactionRepo{pool: pool}
}

func (r *transactionRepo) CreateTransaction(ctx context.Context, t *model.Transaction) error {
	const q = `
        INSERT INTO transactions (id, user_id, kind, amount_cents, credits, stripe_session_id, status)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING created_at
    `
	err := r.pool.QueryRow(ctx, q, t.ID, t.UserID, t.Kind, t.AmountCents, t.Credits, t.StripeSessionID, t.Status).Scan(&t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert transaction for user %s: %w", t.UserID, err)
	}
	return nil
}
